package models

import "time"

// Job is a job board listing (PostgreSQL)
type Job struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       string     `json:"location" gorm:"index"`
	JobType        string     `json:"job_type" gorm:"size:30;index"` // full-time, part-time, contract, internship
	Category       string     `json:"category" gorm:"size:50;index"`
	Description    string     `json:"description"`
	SalaryRange    string     `json:"salary_range"`
	ApplicationURL string     `json:"application_url"`
	PostedByID     uint       `json:"posted_by_id" gorm:"index"`
	Deadline       *time.Time `json:"deadline"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateJobRequest defines the request body for posting a job
type CreateJobRequest struct {
	Title          string     `json:"title" validate:"required,min=3,max=120"`
	Company        string     `json:"company" validate:"required,max=120"`
	Location       string     `json:"location" validate:"required,max=120"`
	JobType        string     `json:"type" validate:"required,oneof=full-time part-time contract internship"`
	Category       string     `json:"category" validate:"required,max=50"`
	Description    string     `json:"description" validate:"required,max=5000"`
	SalaryRange    string     `json:"salaryRange,omitempty" validate:"omitempty,max=60"`
	ApplicationURL string     `json:"applicationUrl,omitempty" validate:"omitempty,url"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}
