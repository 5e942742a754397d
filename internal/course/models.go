package course

import "errors"

// ErrNotFound is returned when a course, lesson or enrollment does not exist.
var ErrNotFound = errors.New("not found")

type Course struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Level       string  `json:"level,omitempty"` // beginner|intermediate|advanced
	PriceCents  int64   `json:"price_cents"`
	Published   bool    `json:"published"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
	AvgRating   float64 `json:"avg_rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
}

type Lesson struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Position int    `json:"position"`
}

type Enrollment struct {
	CourseID   string `json:"course_id"`
	UserID     string `json:"user_id"`
	Status     string `json:"status"` // active|dropped
	EnrolledAt int64  `json:"enrolled_at"`
}

type Review struct {
	CourseID  string `json:"course_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"` // 1-5
	Comment   string `json:"comment,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type ListOpts struct {
	Q             string
	Category      string
	PublishedOnly bool
	CreatedBy     string
	Limit         int
	Offset        int
}
