package repositories

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// JobRepository defines the interface for job board operations
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	ListJobs(ctx context.Context, opts ListOptions) ([]models.Job, error)
}

// PostgresJobRepository implements JobRepository for PostgreSQL
type PostgresJobRepository struct {
	db *gorm.DB
}

// NewPostgresJobRepository creates a new PostgresJobRepository
func NewPostgresJobRepository(db *gorm.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

// CreateJob creates a new job listing
func (r *PostgresJobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

var jobSortColumns = map[string]string{
	"createdAt": "created_at",
	"deadline":  "deadline",
	"title":     "title",
	"company":   "company",
}

// ListJobs returns job listings matching the options, most recent first by default
func (r *PostgresJobRepository) ListJobs(ctx context.Context, opts ListOptions) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Scopes(
			searchScope(opts.Search, "title", "company", "description"),
			eqScope("category", opts.Category),
			eqScope("location", opts.Location),
			eqScope("job_type", opts.Type),
		).
		Order(opts.orderClause(jobSortColumns, "created_at")).
		Offset(opts.Offset).Limit(opts.limit()).
		Find(&jobs).Error
	return jobs, err
}

// SavedJobRepository defines the interface for saved job operations
type SavedJobRepository interface {
	Toggle(ctx context.Context, jobID string, userID uint) (bool, error)
	CheckMembership(ctx context.Context, jobIDs []string, userID uint) (map[string]bool, error)
	MemberIDs(ctx context.Context, userID uint) ([]string, error)
}

// PostgresSavedJobRepository implements SavedJobRepository
type PostgresSavedJobRepository struct {
	db *gorm.DB
}

func NewPostgresSavedJobRepository(db *gorm.DB) *PostgresSavedJobRepository {
	return &PostgresSavedJobRepository{db: db}
}

// Toggle saves the job if unsaved and unsaves it otherwise
func (r *PostgresSavedJobRepository) Toggle(ctx context.Context, jobID string, userID uint) (bool, error) {
	id, err := ParseID(jobID)
	if err != nil {
		return false, err
	}
	row := &models.SavedJob{UserID: userID, JobID: id}
	return toggleMembership(ctx, r.db, row, nil, "user_id = ? AND job_id = ?", userID, id)
}

func (r *PostgresSavedJobRepository) CheckMembership(ctx context.Context, jobIDs []string, userID uint) (map[string]bool, error) {
	return checkMembership[models.SavedJob](ctx, r.db, userID, "job_id", jobIDs)
}

func (r *PostgresSavedJobRepository) MemberIDs(ctx context.Context, userID uint) ([]string, error) {
	return memberIDs[models.SavedJob](ctx, r.db, userID, "job_id")
}
