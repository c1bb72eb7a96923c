package repositories

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for alumni connection operations
type ConnectionRepository interface {
	Toggle(ctx context.Context, alumniID string, userID uint) (bool, error)
	CheckMembership(ctx context.Context, alumniIDs []string, userID uint) (map[string]bool, error)
	MemberIDs(ctx context.Context, userID uint) ([]string, error)
}

// PostgresConnectionRepository implements ConnectionRepository for PostgreSQL
type PostgresConnectionRepository struct {
	db *gorm.DB
}

// NewPostgresConnectionRepository creates a new PostgresConnectionRepository
func NewPostgresConnectionRepository(db *gorm.DB) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

// Toggle connects to or disconnects from another alumni
func (r *PostgresConnectionRepository) Toggle(ctx context.Context, alumniID string, userID uint) (bool, error) {
	id, err := ParseID(alumniID)
	if err != nil {
		return false, err
	}
	if id == userID {
		return false, ErrSelfConnection
	}
	row := &models.Connection{UserID: userID, ConnectedID: id}
	return toggleMembership(ctx, r.db, row, nil, "user_id = ? AND connected_id = ?", userID, id)
}

func (r *PostgresConnectionRepository) CheckMembership(ctx context.Context, alumniIDs []string, userID uint) (map[string]bool, error) {
	return checkMembership[models.Connection](ctx, r.db, userID, "connected_id", alumniIDs)
}

func (r *PostgresConnectionRepository) MemberIDs(ctx context.Context, userID uint) ([]string, error) {
	return memberIDs[models.Connection](ctx, r.db, userID, "connected_id")
}
