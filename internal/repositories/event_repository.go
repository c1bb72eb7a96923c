package repositories

import (
	"context"

	"github.com/anonto42/alumni-connect/backend/internal/models"
	"gorm.io/gorm"
)

// EventRepository defines the interface for event operations
type EventRepository interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context, opts ListOptions) ([]models.Event, error)
}

// PostgresEventRepository implements EventRepository for PostgreSQL
type PostgresEventRepository struct {
	db *gorm.DB
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(db *gorm.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

var eventSortColumns = map[string]string{
	"createdAt": "created_at",
	"startsAt":  "starts_at",
	"title":     "title",
}

func (r *PostgresEventRepository) ListEvents(ctx context.Context, opts ListOptions) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Scopes(
			searchScope(opts.Search, "title", "description"),
			eqScope("category", opts.Category),
			eqScope("location", opts.Location),
			eqScope("event_type", opts.Type),
		).
		Order(opts.orderClause(eventSortColumns, "created_at")).
		Offset(opts.Offset).Limit(opts.limit()).
		Find(&events).Error
	return events, err
}

// RegistrationRepository defines the interface for event registration operations
type RegistrationRepository interface {
	Toggle(ctx context.Context, eventID string, userID uint) (bool, error)
	CheckMembership(ctx context.Context, eventIDs []string, userID uint) (map[string]bool, error)
	MemberIDs(ctx context.Context, userID uint) ([]string, error)
}

// PostgresRegistrationRepository implements RegistrationRepository
type PostgresRegistrationRepository struct {
	db *gorm.DB
}

func NewPostgresRegistrationRepository(db *gorm.DB) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{db: db}
}

// Toggle registers or unregisters the user and keeps attendees_count in the same transaction
func (r *PostgresRegistrationRepository) Toggle(ctx context.Context, eventID string, userID uint) (bool, error) {
	id, err := ParseID(eventID)
	if err != nil {
		return false, err
	}
	row := &models.EventRegistration{UserID: userID, EventID: id}
	adjust := func(tx *gorm.DB, registered bool) error {
		delta := -1
		if registered {
			delta = 1
		}
		return tx.Model(&models.Event{}).Where("id = ?", id).
			Update("attendees_count", gorm.Expr("GREATEST(attendees_count + ?, 0)", delta)).Error
	}
	return toggleMembership(ctx, r.db, row, adjust, "user_id = ? AND event_id = ?", userID, id)
}

func (r *PostgresRegistrationRepository) CheckMembership(ctx context.Context, eventIDs []string, userID uint) (map[string]bool, error) {
	return checkMembership[models.EventRegistration](ctx, r.db, userID, "event_id", eventIDs)
}

func (r *PostgresRegistrationRepository) MemberIDs(ctx context.Context, userID uint) ([]string, error) {
	return memberIDs[models.EventRegistration](ctx, r.db, userID, "event_id")
}
