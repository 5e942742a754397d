package grading

import (
	"context"
	"fmt"
	"math"
)

// Question type identifiers understood by the engine.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeShortAnswer    = "short_answer"
	TypeEssay          = "essay"
)

// Q is a minimal view of a question needed for grading. For choice types
// AnswerKey holds the ids of the options flagged correct; for short_answer
// it holds the accepted reference answers.
type Q struct {
	ID        string
	Type      string
	Points    float64
	AnswerKey []string
}

// QuizView is the immutable quiz snapshot an attempt is graded against.
// TotalPoints must already reflect the question list.
type QuizView struct {
	Questions    []Q
	TotalPoints  float64
	PassingScore float64 // percentage threshold, 0-100
}

// Submission is one learner answer as received from the client.
type Submission struct {
	QuestionID   string
	Value        interface{} // string or []string depending on question type
	TimeSpentSec int
}

// Result is the outcome of grading a single question response.
type Result struct {
	Correct     bool
	AutoPoints  float64
	MaxPoints   float64
	NeedsManual bool // instructor review required (essay)
}

// AnswerResult pairs a submission with its grading result.
type AnswerResult struct {
	QuestionID   string      `json:"question_id"`
	Value        interface{} `json:"value"`
	TimeSpentSec int         `json:"time_spent_sec"`
	Correct      bool        `json:"correct"`
	PointsEarned float64     `json:"points_earned"`
	AutoGraded   bool        `json:"auto_graded"`
}

// Outcome is the aggregate grading result for a whole attempt.
type Outcome struct {
	Answers    []AnswerResult
	Score      float64
	Percentage int
	Passed     bool
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, value interface{}) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, value interface{}) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, value interface{}) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, &ValidationError{Reason: "unknown question type: " + q.Type}
	}
	return s.Grade(ctx, q, value)
}

// Engine options

type Option func(*config)

type config struct {
	CaseFold        bool // normalize case/whitespace/punctuation for short answers
	MaxEditDistance int  // accept short answers within this edit distance (0 = exact)
}

func WithCaseFold(b bool) Option       { return func(c *config) { c.CaseFold = b } }
func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewDefaultGrader installs the built-in strategies. The default short-answer
// policy is exact match on trimmed text.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: choiceStrategy{},
			TypeTrueFalse:      choiceStrategy{},
			TypeShortAnswer:    shortAnswerStrategy{caseFold: cfg.CaseFold, maxEdit: cfg.MaxEditDistance},
			TypeEssay:          essayStrategy{},
		},
	}
}

// GradeAttempt grades a full set of submissions against a quiz snapshot.
// It is pure: no I/O, and identical inputs yield identical outcomes.
// Persisting the result is the caller's responsibility.
func GradeAttempt(ctx context.Context, g Grader, quiz QuizView, subs []Submission) (Outcome, error) {
	byID := make(map[string]Q, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if q.Points < 0 {
			return Outcome{}, &ValidationError{Reason: fmt.Sprintf("question %s has negative points", q.ID)}
		}
		byID[q.ID] = q
	}

	out := Outcome{Answers: make([]AnswerResult, 0, len(subs))}
	seen := make(map[string]bool, len(subs))
	for _, sub := range subs {
		q, ok := byID[sub.QuestionID]
		if !ok {
			return Outcome{}, &ValidationError{Reason: "answer references unknown question: " + sub.QuestionID}
		}
		if seen[sub.QuestionID] {
			return Outcome{}, &ValidationError{Reason: "duplicate answer for question: " + sub.QuestionID}
		}
		seen[sub.QuestionID] = true

		res, err := g.Grade(ctx, q, sub.Value)
		if err != nil {
			return Outcome{}, err
		}
		out.Answers = append(out.Answers, AnswerResult{
			QuestionID:   sub.QuestionID,
			Value:        sub.Value,
			TimeSpentSec: sub.TimeSpentSec,
			Correct:      res.Correct,
			PointsEarned: res.AutoPoints,
			AutoGraded:   !res.NeedsManual,
		})
		out.Score += res.AutoPoints
	}

	out.Percentage = Percentage(out.Score, quiz.TotalPoints)
	out.Passed = float64(out.Percentage) >= quiz.PassingScore
	return out, nil
}

// Percentage computes round-half-up(score/total*100). A quiz with zero total
// points always yields 0; that is a defined degenerate case, not an error.
func Percentage(score, totalPoints float64) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Floor(score/totalPoints*100 + 0.5))
}

// --- Strategies ---

// choiceStrategy covers multiple_choice and true_false. The submitted value
// may be a single option id or a list of ids (multi-select); it is correct
// iff the submitted set equals the set of options flagged correct. Full
// points or zero, no partial credit.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, value interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	selected, ok := toStringSlice(value)
	if !ok {
		return res, &ValidationError{Reason: "choice response must be a string or list of strings"}
	}
	if len(q.AnswerKey) > 0 && setEqual(toSet(selected), toSet(q.AnswerKey)) {
		res.Correct = true
		res.AutoPoints = q.Points
	}
	return res, nil
}

type shortAnswerStrategy struct {
	caseFold bool
	maxEdit  int
}

func (s shortAnswerStrategy) Grade(_ context.Context, q Q, value interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	text, ok := value.(string)
	if !ok {
		return res, &ValidationError{Reason: "short answer response must be a string"}
	}
	got := canonical(text, s.caseFold)
	for _, ref := range q.AnswerKey {
		want := canonical(ref, s.caseFold)
		if got == want {
			res.Correct = true
			res.AutoPoints = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(got, want) <= s.maxEdit {
			res.Correct = true
			res.AutoPoints = q.Points
			return res, nil
		}
	}
	return res, nil
}

// essayStrategy never auto-grades; points stay zero until an instructor
// applies a manual grade.
type essayStrategy struct{}

func (essayStrategy) Grade(_ context.Context, q Q, value interface{}) (Result, error) {
	if _, ok := value.(string); !ok {
		return Result{MaxPoints: q.Points}, &ValidationError{Reason: "essay response must be a string"}
	}
	return Result{MaxPoints: q.Points, NeedsManual: true}, nil
}

// helpers

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
