package repositories

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	Toggle(ctx context.Context, postID string, userID uint) (bool, error)
	CheckMembership(ctx context.Context, postIDs []string, userID uint) (map[string]bool, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// Toggle likes the post if the user has not liked it yet and unlikes it otherwise
func (r *PostgresLikeRepository) Toggle(ctx context.Context, postID string, userID uint) (bool, error) {
	row := &models.Like{PostID: postID, UserID: userID}
	return toggleMembership(ctx, r.db, row, nil, "post_id = ? AND user_id = ?", postID, userID)
}

// CheckMembership reports which of the posts the user has liked, in one query
func (r *PostgresLikeRepository) CheckMembership(ctx context.Context, postIDs []string, userID uint) (map[string]bool, error) {
	result := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	for _, id := range postIDs {
		result[id] = false
	}
	var liked []string
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}
