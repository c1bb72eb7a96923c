package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Alumni is a member of the network, stored in the PostgreSQL users table
type Alumni struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"index"`
	Email          string    `json:"email" gorm:"uniqueIndex"`
	Password       string    `json:"-"`                                         // bcrypt hash, never serialized
	FirebaseUID    *string   `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	AvatarURL      string    `json:"avatar_url"`
	GraduationYear int       `json:"graduation_year" gorm:"index"`
	Degree         string    `json:"degree"`
	Major          string    `json:"major"`
	Company        string    `json:"company"`
	Position       string    `json:"position"`
	Location       string    `json:"location" gorm:"index"`
	Industry       string    `json:"industry" gorm:"index"`
	Bio            string    `json:"bio"`
	Skills         []string  `json:"skills" gorm:"serializer:json"`
	LinkedInURL    string    `json:"linkedin_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName keeps the historical users table name the change feed reports
func (Alumni) TableName() string {
	return "users"
}

type CreateLocalAlumniRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=80"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	GraduationYear int    `json:"graduation_year" validate:"required,min=1900,max=2100"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UpdateProfileRequest carries the editable profile fields. Empty fields are
// left unchanged.
type UpdateProfileRequest struct {
	Name        string   `json:"name,omitempty" validate:"omitempty,min=2,max=80"`
	AvatarURL   string   `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	Degree      string   `json:"degree,omitempty" validate:"omitempty,max=80"`
	Major       string   `json:"major,omitempty" validate:"omitempty,max=80"`
	Company     string   `json:"company,omitempty" validate:"omitempty,max=120"`
	Position    string   `json:"position,omitempty" validate:"omitempty,max=120"`
	Location    string   `json:"location,omitempty" validate:"omitempty,max=120"`
	Industry    string   `json:"industry,omitempty" validate:"omitempty,max=60"`
	Bio         string   `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Skills      []string `json:"skills,omitempty" validate:"omitempty,max=30,dive,min=1,max=40"`
	LinkedInURL string   `json:"linkedinUrl,omitempty" validate:"omitempty,url"`
}
