package models

import "time"

// SavedJob represents a bookmarked job
type SavedJob struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_job_save"`
	JobID     uint      `json:"job_id" gorm:"index;uniqueIndex:idx_user_job_save"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRegistration represents a user registered for an event
type EventRegistration struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_event_registration"`
	EventID   uint      `json:"event_id" gorm:"index;uniqueIndex:idx_user_event_registration"`
	CreatedAt time.Time `json:"created_at"`
}

// Connection is a one-directional alumni connection
type Connection struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index;uniqueIndex:idx_user_connection"`
	ConnectedID uint      `json:"connected_id" gorm:"index;uniqueIndex:idx_user_connection"`
	CreatedAt   time.Time `json:"created_at"`
}
