// Package entity defines the canonical shapes every component above the
// fetcher boundary works with. Backend naming never leaks past this package's
// callers; see fetchers.Normalizer for the only place rows are converted.
package entity

import "time"

// Entity is anything a Collection can hold.
type Entity interface {
	EntityID() string
}

// Type names an entity kind carried by a change event.
type Type string

const (
	TypeAlumni       Type = "alumni"
	TypeJob          Type = "job"
	TypeEvent        Type = "event"
	TypePost         Type = "post"
	TypeComment      Type = "comment"
	TypeNotification Type = "notification"
)

// Author is the single embedded person shape used for post and comment
// authors, job posters and event organizers.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Headline  string `json:"headline,omitempty"`
}

type Alumni struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	GraduationYear int       `json:"graduationYear"`
	Degree         string    `json:"degree,omitempty"`
	Major          string    `json:"major,omitempty"`
	Company        string    `json:"company,omitempty"`
	Position       string    `json:"position,omitempty"`
	Location       string    `json:"location,omitempty"`
	Industry       string    `json:"industry,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Skills         []string  `json:"skills"`
	LinkedInURL    string    `json:"linkedinUrl,omitempty"`
	IsConnected    bool      `json:"isConnected"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (a Alumni) EntityID() string { return a.ID }

type Job struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       string     `json:"location"`
	Type           string     `json:"type"`
	Category       string     `json:"category"`
	Description    string     `json:"description"`
	SalaryRange    string     `json:"salaryRange,omitempty"`
	ApplicationURL string     `json:"applicationUrl,omitempty"`
	PostedBy       *Author    `json:"postedBy,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	IsSaved        bool       `json:"isSaved"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (j Job) EntityID() string { return j.ID }

type Event struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Type           string     `json:"type"`
	Location       string     `json:"location"`
	StartsAt       time.Time  `json:"startsAt"`
	EndsAt         *time.Time `json:"endsAt,omitempty"`
	Capacity       *int       `json:"capacity,omitempty"`
	AttendeesCount int        `json:"attendeesCount"`
	Organizer      *Author    `json:"organizer,omitempty"`
	IsRegistered   bool       `json:"isRegistered"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (e Event) EntityID() string { return e.ID }

// Post carries a denormalized like count, the viewer-relative IsLiked flag
// and its embedded comments.
type Post struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	ImageURLs []string  `json:"imageUrls"`
	Likes     int       `json:"likes"`
	IsLiked   bool      `json:"isLiked"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Post) EntityID() string { return p.ID }

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Comment) EntityID() string { return c.ID }

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (n Notification) EntityID() string { return n.ID }
