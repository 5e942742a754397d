package quiz

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a quiz or attempt does not exist.
var ErrNotFound = errors.New("not found")

// AnswerInput is one learner answer as submitted over the wire.
type AnswerInput struct {
	QuestionID   string      `json:"question_id"`
	Value        interface{} `json:"value"`
	TimeSpentSec int         `json:"time_spent_sec,omitempty"`
}

// ManualGrade is an instructor's points award for a single answer.
type ManualGrade struct {
	Points  float64 `json:"points"`
	Comment string  `json:"comment,omitempty"`
}

type ListOpts struct {
	CourseID string
	Q        string
	Limit    int
	Offset   int
}

type AttemptListOpts struct {
	QuizID string
	UserID string
	Status string
	Limit  int
	Offset int
}

// Summary is a quiz row without its question list.
type Summary struct {
	ID            string  `json:"id"`
	CourseID      string  `json:"course_id"`
	Title         string  `json:"title"`
	QuestionCount int     `json:"question_count"`
	TotalPoints   float64 `json:"total_points"`
	CreatedAt     int64   `json:"created_at"`
}

type Store interface {
	PutQuiz(ctx context.Context, z Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)     // student-safe: no correctness data
	GetQuizFull(ctx context.Context, id string) (Quiz, error) // with answer keys, for grading/instructors
	ListQuizzes(ctx context.Context, opts ListOpts) ([]Summary, error)
	DeleteQuiz(ctx context.Context, id string) error

	NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	SaveAnswers(ctx context.Context, attemptID string, in []AnswerInput) (Attempt, error)
	Submit(ctx context.Context, attemptID string) (Attempt, error)
	Abandon(ctx context.Context, attemptID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGrade, feedback, gradedBy string) (Attempt, error)

	// ExpireOverdue auto-submits in-progress attempts whose deadline has
	// passed, grading whatever answers were saved. Returns the number of
	// attempts transitioned.
	ExpireOverdue(ctx context.Context, now int64) (int, error)
}
