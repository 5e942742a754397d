package quiz

import (
	"fmt"

	"github.com/skillforge/skillforge/internal/grading"
)

// Attempt lifecycle states. in_progress is the only non-terminal state.
const (
	StatusInProgress    = "in_progress"
	StatusSubmitted     = "submitted"
	StatusAutoSubmitted = "auto_submitted"
	StatusAbandoned     = "abandoned"
)

// Terminal reports whether status permits no further transitions.
func Terminal(status string) bool {
	return status == StatusSubmitted || status == StatusAutoSubmitted || status == StatusAbandoned
}

// Result-visibility policies.
const (
	VisibilityImmediate       = "immediate"
	VisibilityAfterSubmission = "after_submission"
	VisibilityAfterDueDate    = "after_due_date"
	VisibilityNever           = "never"
)

type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type Question struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"` // multiple_choice, true_false, short_answer, essay
	Prompt           string   `json:"prompt"`
	Choices          []Choice `json:"choices,omitempty"`           // choice types only
	ReferenceAnswers []string `json:"reference_answers,omitempty"` // short_answer / essay
	Points           float64  `json:"points"`
	Difficulty       string   `json:"difficulty,omitempty"`
}

// AnswerKey returns the correctness data the grading engine compares against:
// correct choice ids for choice types, reference answers otherwise.
func (q Question) AnswerKey() []string {
	switch q.Type {
	case grading.TypeMultipleChoice, grading.TypeTrueFalse:
		var key []string
		for _, c := range q.Choices {
			if c.Correct {
				key = append(key, c.ID)
			}
		}
		return key
	default:
		return q.ReferenceAnswers
	}
}

type Settings struct {
	TimeLimitSec       int     `json:"time_limit_sec"`
	MaxAttempts        int     `json:"max_attempts"` // 0 = unlimited
	PassingScore       float64 `json:"passing_score"`
	ShuffleQuestions   bool    `json:"shuffle_questions"`
	ShuffleChoices     bool    `json:"shuffle_choices"`
	ResultVisibility   string  `json:"result_visibility"` // immediate|after_submission|after_due_date|never
	ShowCorrectAnswers bool    `json:"show_correct_answers"`
	QuestionSubset     int     `json:"question_subset,omitempty"` // 0 = deliver all questions
	DueAt              int64   `json:"due_at,omitempty"`          // unix seconds
}

type Quiz struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Questions   []Question `json:"questions"`
	Settings    Settings   `json:"settings"`
	TotalPoints float64    `json:"total_points"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   int64      `json:"created_at,omitempty"`
}

// RecomputeTotalPoints sums the current question list. Must run whenever the
// question list changes, before the quiz is persisted.
func (z *Quiz) RecomputeTotalPoints() {
	total := 0.0
	for _, q := range z.Questions {
		total += q.Points
	}
	z.TotalPoints = total
}

// Validate checks the quiz definition before it is persisted.
func (z *Quiz) Validate() error {
	if z.ID == "" {
		return &grading.ValidationError{Reason: "quiz id required"}
	}
	if z.Settings.PassingScore < 0 || z.Settings.PassingScore > 100 {
		return &grading.ValidationError{Reason: "passing score must be within 0-100"}
	}
	switch z.Settings.ResultVisibility {
	case "", VisibilityImmediate, VisibilityAfterSubmission, VisibilityAfterDueDate, VisibilityNever:
	default:
		return &grading.ValidationError{Reason: "unknown result visibility: " + z.Settings.ResultVisibility}
	}
	seen := make(map[string]bool, len(z.Questions))
	for i, q := range z.Questions {
		if q.ID == "" {
			return &grading.ValidationError{Reason: fmt.Sprintf("question %d has no id", i)}
		}
		if seen[q.ID] {
			return &grading.ValidationError{Reason: "duplicate question id: " + q.ID}
		}
		seen[q.ID] = true
		if q.Points < 0 {
			return &grading.ValidationError{Reason: "question " + q.ID + " has negative points"}
		}
		switch q.Type {
		case grading.TypeMultipleChoice, grading.TypeTrueFalse:
			if len(q.Choices) == 0 {
				return &grading.ValidationError{Reason: "question " + q.ID + " has no choices"}
			}
		case grading.TypeShortAnswer, grading.TypeEssay:
		default:
			return &grading.ValidationError{Reason: "question " + q.ID + " has unknown type: " + q.Type}
		}
	}
	return nil
}

// View converts the quiz into the snapshot the grading engine consumes.
func (z Quiz) View() grading.QuizView {
	v := grading.QuizView{
		Questions:    make([]grading.Q, len(z.Questions)),
		TotalPoints:  z.TotalPoints,
		PassingScore: z.Settings.PassingScore,
	}
	for i, q := range z.Questions {
		v.Questions[i] = grading.Q{ID: q.ID, Type: q.Type, Points: q.Points, AnswerKey: q.AnswerKey()}
	}
	return v
}

// Answer is one stored learner answer with its grading result.
type Answer struct {
	QuestionID   string      `json:"question_id"`
	Value        interface{} `json:"value"`
	TimeSpentSec int         `json:"time_spent_sec,omitempty"`
	Correct      bool        `json:"correct"`
	PointsEarned float64     `json:"points_earned"`
	AutoGraded   bool        `json:"auto_graded"`
	Comment      string      `json:"comment,omitempty"` // instructor note from manual grading
}

// Attempt is one learner's try at a quiz. Score, Percentage and Passed are
// derived from Answers and recomputed immediately before every durable save.
type Attempt struct {
	ID          string   `json:"id"`
	QuizID      string   `json:"quiz_id"`
	UserID      string   `json:"user_id"`
	Number      int      `json:"number"` // 1-based, unique per learner per quiz
	Status      string   `json:"status"`
	Answers     []Answer `json:"answers"`
	Score       float64  `json:"score"`
	Percentage  int      `json:"percentage"`
	Passed      bool     `json:"passed"`
	StartedAt   int64    `json:"started_at"`
	SubmittedAt int64    `json:"submitted_at,omitempty"`
	ElapsedSec  int      `json:"elapsed_sec,omitempty"`
	Deadline    int64    `json:"deadline,omitempty"` // unix seconds; 0 = no time limit
	Feedback    string   `json:"feedback,omitempty"`
	GradedBy    string   `json:"graded_by,omitempty"`
}
