package repositories

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentsByPostIDs(ctx context.Context, postIDs []string) (map[string][]models.Comment, error)
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetCommentsByPostIDs loads the comments of a whole page of posts in one query, oldest first
func (r *PostgresCommentRepository) GetCommentsByPostIDs(ctx context.Context, postIDs []string) (map[string][]models.Comment, error) {
	result := make(map[string][]models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var comments []models.Comment
	if err := r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	for _, c := range comments {
		result[c.PostID] = append(result[c.PostID], c)
	}
	return result, nil
}
