package repositories

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// AlumniRepository defines the interface for alumni directory operations
type AlumniRepository interface {
	CreateAlumni(ctx context.Context, alumni *models.Alumni) error
	GetAlumniByID(ctx context.Context, id uint) (*models.Alumni, error)
	GetAlumniByIDs(ctx context.Context, ids []uint) ([]models.Alumni, error)
	GetAlumniByEmail(ctx context.Context, email string) (*models.Alumni, error)
	GetAlumniByFirebaseUID(ctx context.Context, firebaseUID string) (*models.Alumni, error)
	UpdateAlumni(ctx context.Context, alumni *models.Alumni) error
	ListAlumni(ctx context.Context, opts ListOptions) ([]models.Alumni, error)
}

// PostgresAlumniRepository implements AlumniRepository for PostgreSQL
type PostgresAlumniRepository struct {
	db *gorm.DB
}

// NewPostgresAlumniRepository creates a new PostgresAlumniRepository
func NewPostgresAlumniRepository(db *gorm.DB) *PostgresAlumniRepository {
	return &PostgresAlumniRepository{db: db}
}

// CreateAlumni creates a new alumni in PostgreSQL
func (r *PostgresAlumniRepository) CreateAlumni(ctx context.Context, alumni *models.Alumni) error {
	return r.db.WithContext(ctx).Create(alumni).Error
}

// GetAlumniByID retrieves an alumni by ID from PostgreSQL
func (r *PostgresAlumniRepository) GetAlumniByID(ctx context.Context, id uint) (*models.Alumni, error) {
	var alumni models.Alumni
	if err := r.db.WithContext(ctx).First(&alumni, id).Error; err != nil {
		return nil, err
	}
	return &alumni, nil
}

// GetAlumniByIDs loads a batch of alumni in one query, used to embed authors
func (r *PostgresAlumniRepository) GetAlumniByIDs(ctx context.Context, ids []uint) ([]models.Alumni, error) {
	var alumni []models.Alumni
	if len(ids) == 0 {
		return alumni, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&alumni).Error; err != nil {
		return nil, err
	}
	return alumni, nil
}

// GetAlumniByEmail retrieves an alumni by email
func (r *PostgresAlumniRepository) GetAlumniByEmail(ctx context.Context, email string) (*models.Alumni, error) {
	var alumni models.Alumni
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&alumni).Error; err != nil {
		return nil, err
	}
	return &alumni, nil
}

// GetAlumniByFirebaseUID retrieves an alumni by Firebase UID from PostgreSQL
func (r *PostgresAlumniRepository) GetAlumniByFirebaseUID(ctx context.Context, firebaseUID string) (*models.Alumni, error) {
	var alumni models.Alumni
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&alumni).Error; err != nil {
		return nil, err
	}
	return &alumni, nil
}

// UpdateAlumni updates an existing alumni in PostgreSQL
func (r *PostgresAlumniRepository) UpdateAlumni(ctx context.Context, alumni *models.Alumni) error {
	return r.db.WithContext(ctx).Save(alumni).Error
}

var alumniSortColumns = map[string]string{
	"name":           "name",
	"graduationYear": "graduation_year",
	"createdAt":      "created_at",
}

// ListAlumni searches the directory by name, company or position with optional filters
func (r *PostgresAlumniRepository) ListAlumni(ctx context.Context, opts ListOptions) ([]models.Alumni, error) {
	var alumni []models.Alumni
	q := r.db.WithContext(ctx).
		Scopes(
			searchScope(opts.Search, "name", "company", "position", "major"),
			eqScope("location", opts.Location),
			eqScope("industry", opts.Industry),
		)
	if opts.Year > 0 {
		q = q.Where("graduation_year = ?", opts.Year)
	}
	err := q.Order(opts.orderClause(alumniSortColumns, "created_at")).
		Offset(opts.Offset).Limit(opts.limit()).
		Find(&alumni).Error
	return alumni, err
}
