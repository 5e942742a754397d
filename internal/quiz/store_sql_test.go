package quiz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/skillforge/skillforge/internal/audit"
	"github.com/skillforge/skillforge/internal/db"
	"github.com/skillforge/skillforge/internal/grading"
)

var sqlDBSeq int

func openSQLStore(t *testing.T, clk *fakeClock) (*SQLStore, *audit.EventRepo) {
	t.Helper()
	sqlDBSeq++
	dsn := fmt.Sprintf("file:quiztest%d?mode=memory&cache=shared", sqlDBSeq)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	events := audit.NewEventRepo(dbh, "test")
	s := NewSQLStore(dbh, grading.NewDefaultGrader()).WithEventLog(events)
	s.now = clk.now
	return s, events
}

func TestSQLStoreAttemptRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: 1000}
	s, events := openSQLStore(t, clk)

	z := validQuiz()
	if err := s.PutQuiz(ctx, z); err != nil {
		t.Fatalf("put quiz: %v", err)
	}

	a, err := s.NewAttempt(ctx, z.ID, "alice")
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	_, err = s.SaveAnswers(ctx, a.ID, []AnswerInput{
		{QuestionID: "q1", Value: "a", TimeSpentSec: 9},
		{QuestionID: "q2", Value: "Paris"},
	})
	if err != nil {
		t.Fatalf("save answers: %v", err)
	}

	clk.advance(42)
	sub, err := s.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Status != StatusSubmitted || sub.Score != 5 || sub.Percentage != 100 || !sub.Passed {
		t.Fatalf("submitted = %+v", sub)
	}

	// Everything survives a round trip through the attempts table.
	got, err := s.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != StatusSubmitted || got.Score != 5 || !got.Passed {
		t.Fatalf("reloaded = %+v", got)
	}
	if got.SubmittedAt != 1042 || got.ElapsedSec != 42 {
		t.Fatalf("timing reloaded = submitted_at %d elapsed %d", got.SubmittedAt, got.ElapsedSec)
	}
	if len(got.Answers) != 2 || !got.Answers[0].Correct || got.Answers[0].TimeSpentSec != 9 {
		t.Fatalf("answers reloaded = %+v", got.Answers)
	}

	// The submit landed in the event log.
	evs, err := events.Tail(ctx, a.ID, 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != audit.EventAttemptSubmitted {
		t.Fatalf("events = %+v", evs)
	}
}

func TestSQLStoreAttemptNumbering(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: 1000}
	s, _ := openSQLStore(t, clk)

	z := validQuiz()
	z.Settings.MaxAttempts = 2
	if err := s.PutQuiz(ctx, z); err != nil {
		t.Fatalf("put quiz: %v", err)
	}

	a1, err := s.NewAttempt(ctx, z.ID, "alice")
	if err != nil || a1.Number != 1 {
		t.Fatalf("first = %+v, %v", a1, err)
	}
	if _, err := s.Abandon(ctx, a1.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	a2, err := s.NewAttempt(ctx, z.ID, "alice")
	if err != nil || a2.Number != 2 {
		t.Fatalf("second = %+v, %v", a2, err)
	}

	var serr *grading.StateError
	if _, err := s.NewAttempt(ctx, z.ID, "alice"); !errors.As(err, &serr) {
		t.Fatalf("third attempt: %v", err)
	}
	if b, err := s.NewAttempt(ctx, z.ID, "bob"); err != nil || b.Number != 1 {
		t.Fatalf("bob = %+v, %v", b, err)
	}
}

func TestSQLStoreListAttemptsFilters(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: 1000}
	s, _ := openSQLStore(t, clk)

	z := validQuiz()
	if err := s.PutQuiz(ctx, z); err != nil {
		t.Fatalf("put quiz: %v", err)
	}

	alice, _ := s.NewAttempt(ctx, z.ID, "alice")
	clk.advance(1)
	if _, err := s.NewAttempt(ctx, z.ID, "bob"); err != nil {
		t.Fatalf("bob attempt: %v", err)
	}
	if _, err := s.Submit(ctx, alice.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	all, err := s.ListAttempts(ctx, AttemptListOpts{QuizID: z.ID})
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %d, %v", len(all), err)
	}
	mine, _ := s.ListAttempts(ctx, AttemptListOpts{UserID: "alice"})
	if len(mine) != 1 || mine[0].UserID != "alice" {
		t.Fatalf("alice's = %+v", mine)
	}
	open, _ := s.ListAttempts(ctx, AttemptListOpts{Status: StatusInProgress})
	if len(open) != 1 || open[0].UserID != "bob" {
		t.Fatalf("open = %+v", open)
	}
}

func TestSQLStoreExpireOverdueLogsAutoSubmit(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: 1000}
	s, events := openSQLStore(t, clk)

	z := validQuiz()
	z.Settings.TimeLimitSec = 60
	if err := s.PutQuiz(ctx, z); err != nil {
		t.Fatalf("put quiz: %v", err)
	}
	a, _ := s.NewAttempt(ctx, z.ID, "alice")

	clk.advance(120)
	n, err := s.ExpireOverdue(ctx, clk.now())
	if err != nil || n != 1 {
		t.Fatalf("expire = %d, %v", n, err)
	}
	got, _ := s.GetAttempt(ctx, a.ID)
	if got.Status != StatusAutoSubmitted {
		t.Fatalf("status = %s", got.Status)
	}
	evs, _ := events.Tail(ctx, a.ID, 10)
	if len(evs) != 1 || evs[0].Type != audit.EventAttemptAutoSubmitted {
		t.Fatalf("events = %+v", evs)
	}
}

func TestSQLStoreQuizList(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: 1000}
	s, _ := openSQLStore(t, clk)

	z1 := validQuiz()
	z1.CourseID = "c-1"
	if err := s.PutQuiz(ctx, z1); err != nil {
		t.Fatalf("put: %v", err)
	}
	z2 := validQuiz()
	z2.ID = "q-other"
	z2.Title = "History"
	z2.CourseID = "c-2"
	if err := s.PutQuiz(ctx, z2); err != nil {
		t.Fatalf("put: %v", err)
	}

	all, err := s.ListQuizzes(ctx, ListOpts{})
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %d, %v", len(all), err)
	}
	if all[0].QuestionCount != 2 || all[0].TotalPoints != 5 {
		t.Fatalf("summary = %+v", all[0])
	}
	byCourse, _ := s.ListQuizzes(ctx, ListOpts{CourseID: "c-2"})
	if len(byCourse) != 1 || byCourse[0].ID != "q-other" {
		t.Fatalf("by course = %+v", byCourse)
	}
	byTitle, _ := s.ListQuizzes(ctx, ListOpts{Q: "Hist"})
	if len(byTitle) != 1 || byTitle[0].ID != "q-other" {
		t.Fatalf("by title = %+v", byTitle)
	}

	if err := s.DeleteQuiz(ctx, "q-other"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteQuiz(ctx, "q-other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}
