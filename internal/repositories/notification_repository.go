package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID uint, opts ListOptions) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkAsRead(ctx context.Context, notificationID string, recipientID uint) error
	MarkAllAsRead(ctx context.Context, recipientID uint) error
}

type postgresNotificationRepository struct {
	db        *gorm.DB
	publisher *redis.Client
}

// NewPostgresNotificationRepository stores notifications in PostgreSQL and,
// when publisher is non-nil, announces inserts on the notifications change channel.
func NewPostgresNotificationRepository(db *gorm.DB, publisher *redis.Client) NotificationRepository {
	return &postgresNotificationRepository{db: db, publisher: publisher}
}

// NotificationsChannel is the redis pub/sub channel carrying notification changes
const NotificationsChannel = "changes:notifications"

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return err
	}
	if r.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"eventType": "INSERT",
		"table":     "notifications",
		"new":       notification,
		"old":       nil,
	})
	if err != nil {
		return fmt.Errorf("encode notification change: %w", err)
	}
	return r.publisher.Publish(ctx, NotificationsChannel, payload).Err()
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, opts ListOptions) ([]models.Notification, error) {
	var notifications []models.Notification
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Scopes(eqScope("type", opts.Type))
	err := q.Order("created_at DESC").
		Offset(opts.Offset).Limit(opts.limit()).
		Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ? AND is_read = false", recipientID).Count(&count).Error
	return count, err
}

// MarkAsRead marks one of the recipient's notifications as read
func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID string, recipientID uint) error {
	id, err := ParseID(notificationID)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ? AND is_read = false", recipientID).Update("is_read", true).Error
}
