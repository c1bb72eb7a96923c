package models

import "time"

// Event is an alumni event (PostgreSQL)
type Event struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category" gorm:"size:50;index"`
	EventType      string     `json:"event_type" gorm:"size:20;index"` // virtual, in-person, hybrid
	Location       string     `json:"location" gorm:"index"`
	StartsAt       time.Time  `json:"starts_at" gorm:"index"`
	EndsAt         *time.Time `json:"ends_at"`
	Capacity       *int       `json:"capacity"`
	AttendeesCount int        `json:"attendees_count" gorm:"default:0"`
	OrganizerID    uint       `json:"organizer_id" gorm:"index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateEventRequest defines the request body for creating an event
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=120"`
	Description string     `json:"description" validate:"required,max=5000"`
	Category    string     `json:"category" validate:"required,max=50"`
	EventType   string     `json:"type" validate:"required,oneof=virtual in-person hybrid"`
	Location    string     `json:"location" validate:"required,max=120"`
	StartsAt    time.Time  `json:"startsAt" validate:"required"`
	EndsAt      *time.Time `json:"endsAt,omitempty" validate:"omitempty,gtfield=StartsAt"`
	Capacity    *int       `json:"capacity,omitempty" validate:"omitempty,min=1"`
}
