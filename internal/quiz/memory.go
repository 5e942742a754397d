package quiz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge/skillforge/internal/grading"
)

// memoryStore is a map-backed Store used in tests and single-process dev
// setups. Same transition rules as the SQL store.
type memoryStore struct {
	mu       sync.RWMutex
	grader   grading.Grader
	now      func() int64
	quizzes  map[string]Quiz
	attempts map[string]Attempt
}

// NewMemoryStore builds an in-memory Store. nowFn may be nil.
func NewMemoryStore(grader grading.Grader, nowFn func() int64) Store {
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}
	return &memoryStore{
		grader:   grader,
		now:      nowFn,
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, z Quiz) error {
	if err := z.Validate(); err != nil {
		return err
	}
	z.RecomputeTotalPoints()
	if z.CreatedAt == 0 {
		z.CreatedAt = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[z.ID] = z
	return nil
}

func (m *memoryStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	z, err := m.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	for i := range z.Questions {
		z.Questions[i].ReferenceAnswers = nil
		for j := range z.Questions[i].Choices {
			z.Questions[i].Choices[j].Correct = false
		}
	}
	return z, nil
}

func (m *memoryStore) GetQuizFull(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	cp := z
	cp.Questions = make([]Question, len(z.Questions))
	copy(cp.Questions, z.Questions)
	// Choices must be copied too; callers strip correct flags in place.
	for i := range cp.Questions {
		if len(cp.Questions[i].Choices) > 0 {
			cs := make([]Choice, len(cp.Questions[i].Choices))
			copy(cs, cp.Questions[i].Choices)
			cp.Questions[i].Choices = cs
		}
	}
	return cp, nil
}

func (m *memoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Summary{}
	for _, z := range m.quizzes {
		if opts.CourseID != "" && z.CourseID != opts.CourseID {
			continue
		}
		if opts.Q != "" && !strings.Contains(strings.ToLower(z.Title), strings.ToLower(opts.Q)) {
			continue
		}
		out = append(out, Summary{
			ID: z.ID, CourseID: z.CourseID, Title: z.Title,
			QuestionCount: len(z.Questions), TotalPoints: z.TotalPoints, CreatedAt: z.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) DeleteQuiz(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	delete(m.quizzes, id)
	return nil
}

func (m *memoryStore) NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	z, err := m.GetQuizFull(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	number := 1
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.Number >= number {
			number = a.Number + 1
		}
	}
	if max := z.Settings.MaxAttempts; max > 0 && number > max {
		return Attempt{}, &grading.StateError{Reason: fmt.Sprintf("max attempts (%d) reached for quiz %s", max, quizID)}
	}
	now := m.now()
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Number:    number,
		Status:    StatusInProgress,
		Answers:   []Answer{},
		StartedAt: now,
	}
	if z.Settings.TimeLimitSec > 0 {
		a.Deadline = now + int64(z.Settings.TimeLimitSec)
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) SaveAnswers(ctx context.Context, attemptID string, in []AnswerInput) (Attempt, error) {
	a, err := m.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if Terminal(a.Status) {
		return Attempt{}, &grading.StateError{Reason: "attempt " + attemptID + " is already " + a.Status}
	}
	z, err := m.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	delivered := GradingSnapshot(z, a.ID)
	known := make(map[string]bool, len(delivered.Questions))
	for _, q := range delivered.Questions {
		known[q.ID] = true
	}
	for _, ai := range in {
		if !known[ai.QuestionID] {
			return Attempt{}, &grading.ValidationError{Reason: "answer references unknown question: " + ai.QuestionID}
		}
		merged := false
		for i := range a.Answers {
			if a.Answers[i].QuestionID == ai.QuestionID {
				a.Answers[i] = Answer{QuestionID: ai.QuestionID, Value: ai.Value, TimeSpentSec: ai.TimeSpentSec}
				merged = true
				break
			}
		}
		if !merged {
			a.Answers = append(a.Answers, Answer{QuestionID: ai.QuestionID, Value: ai.Value, TimeSpentSec: ai.TimeSpentSec})
		}
	}
	m.mu.Lock()
	m.attempts[a.ID] = a
	m.mu.Unlock()
	return a, nil
}

func (m *memoryStore) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := m.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	now := m.now()
	auto := a.Deadline > 0 && now > a.Deadline
	return m.finish(ctx, a, auto, now)
}

func (m *memoryStore) finish(ctx context.Context, a Attempt, auto bool, now int64) (Attempt, error) {
	z, err := m.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	graded, err := GradeAttempt(ctx, m.grader, GradingSnapshot(z, a.ID), a)
	if err != nil {
		return Attempt{}, err
	}
	graded.Status = StatusSubmitted
	if auto {
		graded.Status = StatusAutoSubmitted
	}
	graded.SubmittedAt = now
	graded.ElapsedSec = int(now - graded.StartedAt)
	m.mu.Lock()
	m.attempts[graded.ID] = graded
	m.mu.Unlock()
	return graded, nil
}

func (m *memoryStore) Abandon(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := m.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if Terminal(a.Status) {
		return Attempt{}, &grading.StateError{Reason: "attempt " + attemptID + " is already " + a.Status}
	}
	a.Status = StatusAbandoned
	a.ElapsedSec = int(m.now() - a.StartedAt)
	m.mu.Lock()
	m.attempts[a.ID] = a
	m.mu.Unlock()
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	cp := a
	cp.Answers = make([]Answer, len(a.Answers))
	copy(cp.Answers, a.Answers)
	return cp, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGrade, feedback, gradedBy string) (Attempt, error) {
	a, err := m.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusSubmitted && a.Status != StatusAutoSubmitted {
		return Attempt{}, &grading.StateError{Reason: "attempt " + attemptID + " is " + a.Status + ", not submitted"}
	}
	z, err := m.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	if err := applyManual(&a, GradingSnapshot(z, a.ID), updates, feedback, gradedBy); err != nil {
		return Attempt{}, err
	}
	m.mu.Lock()
	m.attempts[a.ID] = a
	m.mu.Unlock()
	return a, nil
}

func (m *memoryStore) ExpireOverdue(ctx context.Context, now int64) (int, error) {
	m.mu.RLock()
	overdue := []Attempt{}
	for _, a := range m.attempts {
		if a.Status == StatusInProgress && a.Deadline > 0 && a.Deadline < now {
			overdue = append(overdue, a)
		}
	}
	m.mu.RUnlock()
	n := 0
	for _, a := range overdue {
		if _, err := m.finish(ctx, a, true, now); err == nil {
			n++
		}
	}
	return n, nil
}

func paginate[T any](in []T, limit, offset int) []T {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset >= len(in) {
		return []T{}
	}
	end := offset + limit
	if end > len(in) {
		end = len(in)
	}
	return in[offset:end]
}
