package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge/skillforge/internal/audit"
	"github.com/skillforge/skillforge/internal/grading"
)

// SQLStore persists quizzes and attempts behind database/sql (sqlite or
// postgres). Question lists, settings and answers are stored as JSON text
// columns; derived attempt fields are regraded from the stored answers
// before every save.
type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
	events *audit.EventRepo // optional
	now    func() int64
}

func NewSQLStore(db *sql.DB, grader grading.Grader) *SQLStore {
	return &SQLStore{db: db, grader: grader, now: func() int64 { return time.Now().Unix() }}
}

// WithEventLog attaches an audit log for attempt lifecycle events.
func (s *SQLStore) WithEventLog(events *audit.EventRepo) *SQLStore {
	s.events = events
	return s
}

func (s *SQLStore) PutQuiz(ctx context.Context, z Quiz) error {
	if err := z.Validate(); err != nil {
		return err
	}
	z.RecomputeTotalPoints()
	qj, err := json.Marshal(z.Questions)
	if err != nil {
		return err
	}
	sj, err := json.Marshal(z.Settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,course_id,title,questions_json,settings_json,total_points,created_by,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, title=EXCLUDED.title,
			questions_json=EXCLUDED.questions_json, settings_json=EXCLUDED.settings_json,
			total_points=EXCLUDED.total_points`,
		z.ID, z.CourseID, z.Title, string(qj), string(sj), z.TotalPoints, z.CreatedBy, s.now())
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	z, err := s.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	// Strip correctness data when serving to learners.
	for i := range z.Questions {
		z.Questions[i].ReferenceAnswers = nil
		for j := range z.Questions[i].Choices {
			z.Questions[i].Choices[j].Correct = false
		}
	}
	return z, nil
}

func (s *SQLStore) GetQuizFull(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,course_id,title,questions_json,settings_json,total_points,created_by,created_at FROM quizzes WHERE id=$1`, id)
	var z Quiz
	var qjson, sjson string
	if err := row.Scan(&z.ID, &z.CourseID, &z.Title, &qjson, &sjson, &z.TotalPoints, &z.CreatedBy, &z.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &z.Questions); err != nil {
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(sjson), &z.Settings); err != nil {
		return Quiz{}, err
	}
	return z, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sqlStr := `SELECT id,course_id,title,questions_json,total_points,created_at FROM quizzes WHERE 1=1`
	args := []interface{}{}
	if opts.CourseID != "" {
		args = append(args, opts.CourseID)
		sqlStr += fmt.Sprintf(" AND course_id=$%d", len(args))
	}
	if opts.Q != "" {
		args = append(args, "%"+opts.Q+"%")
		sqlStr += fmt.Sprintf(" AND title LIKE $%d", len(args))
	}
	args = append(args, limit, opts.Offset)
	sqlStr += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var qjson string
		if err := rows.Scan(&sum.ID, &sum.CourseID, &sum.Title, &qjson, &sum.TotalPoints, &sum.CreatedAt); err != nil {
			return nil, err
		}
		var qs []Question
		if err := json.Unmarshal([]byte(qjson), &qs); err == nil {
			sum.QuestionCount = len(qs)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	z, err := s.GetQuizFull(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(number) FROM attempts WHERE quiz_id=$1 AND user_id=$2`, quizID, userID).Scan(&last); err != nil {
		return Attempt{}, err
	}
	number := int(last.Int64) + 1
	if max := z.Settings.MaxAttempts; max > 0 && number > max {
		return Attempt{}, &grading.StateError{Reason: fmt.Sprintf("max attempts (%d) reached for quiz %s", max, quizID)}
	}
	now := s.now()
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
	if err := s.saveAttempt(ctx, a, true); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SaveAnswers(ctx context.Context, attemptID string, in []AnswerInput) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if Terminal(a.Status) {
		return Attempt{}, &grading.StateError{Reason: "attempt " + attemptID + " is already " + a.Status}
	}
	z, err := s.GetQuizFull(ctx, a.QuizID)
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
	if err := s.saveAttempt(ctx, a, false); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	now := s.now()
	auto := a.Deadline > 0 && now > a.Deadline
	return s.finish(ctx, a, auto, now)
}

// finish grades the attempt and moves it to its terminal submitted state.
func (s *SQLStore) finish(ctx context.Context, a Attempt, auto bool, now int64) (Attempt, error) {
	z, err := s.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	graded, err := GradeAttempt(ctx, s.grader, GradingSnapshot(z, a.ID), a)
	if err != nil {
		return Attempt{}, err
	}
	graded.Status = StatusSubmitted
	event := audit.EventAttemptSubmitted
	if auto {
		graded.Status = StatusAutoSubmitted
		event = audit.EventAttemptAutoSubmitted
	}
	graded.SubmittedAt = now
	graded.ElapsedSec = int(now - graded.StartedAt)
	if err := s.saveAttempt(ctx, graded, false); err != nil {
		return Attempt{}, err
	}
	if s.events != nil {
		_ = s.events.Append(ctx, event, graded.ID, map[string]interface{}{
			"quiz_id": graded.QuizID, "user_id": graded.UserID,
			"score": graded.Score, "percentage": graded.Percentage, "passed": graded.Passed,
		})
	}
	return graded, nil
}

func (s *SQLStore) Abandon(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if Terminal(a.Status) {
		return Attempt{}, &grading.StateError{Reason: "attempt " + attemptID + " is already " + a.Status}
	}
	// No grading on abandon; score stays at its default zero.
	a.Status = StatusAbandoned
	a.ElapsedSec = int(s.now() - a.StartedAt)
	if err := s.saveAttempt(ctx, a, false); err != nil {
		return Attempt{}, err
	}
	if s.events != nil {
		_ = s.events.Append(ctx, audit.EventAttemptAbandoned, a.ID, map[string]interface{}{
			"quiz_id": a.QuizID, "user_id": a.UserID,
		})
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,quiz_id,user_id,number,status,score,percentage,passed,
		answers_json,started_at,submitted_at,elapsed_sec,deadline,feedback,graded_by
		FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sqlStr := `SELECT id,quiz_id,user_id,number,status,score,percentage,passed,
		answers_json,started_at,submitted_at,elapsed_sec,deadline,feedback,graded_by
		FROM attempts WHERE 1=1`
	args := []interface{}{}
	if opts.QuizID != "" {
		args = append(args, opts.QuizID)
		sqlStr += fmt.Sprintf(" AND quiz_id=$%d", len(args))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		sqlStr += fmt.Sprintf(" AND user_id=$%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		sqlStr += fmt.Sprintf(" AND status=$%d", len(args))
	}
	args = append(args, limit, opts.Offset)
	sqlStr += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGrade, feedback, gradedBy string) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusSubmitted && a.Status != StatusAutoSubmitted {
		return Attempt{}, &grading.StateError{Reason: "attempt " + attemptID + " is " + a.Status + ", not submitted"}
	}
	z, err := s.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	if err := applyManual(&a, GradingSnapshot(z, a.ID), updates, feedback, gradedBy); err != nil {
		return Attempt{}, err
	}
	if err := s.saveAttempt(ctx, a, false); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) ExpireOverdue(ctx context.Context, now int64) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM attempts WHERE status=$1 AND deadline > 0 AND deadline < $2`,
		StatusInProgress, now)
	if err != nil {
		return 0, err
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		a, err := s.GetAttempt(ctx, id)
		if err != nil {
			continue
		}
		if _, err := s.finish(ctx, a, true, now); err == nil {
			n++
		}
	}
	return n, nil
}

// applyManual folds instructor grades into the answers and re-derives the
// attempt aggregates. Shared with the in-memory store.
func applyManual(a *Attempt, z Quiz, updates map[string]ManualGrade, feedback, gradedBy string) error {
	byID := make(map[string]Question, len(z.Questions))
	for _, q := range z.Questions {
		byID[q.ID] = q
	}
	for qid, mg := range updates {
		q, ok := byID[qid]
		if !ok {
			return &grading.ValidationError{Reason: "grade references unknown question: " + qid}
		}
		found := false
		for i := range a.Answers {
			if a.Answers[i].QuestionID != qid {
				continue
			}
			pts := mg.Points
			if pts < 0 {
				pts = 0
			}
			if pts > q.Points {
				pts = q.Points
			}
			a.Answers[i].PointsEarned = pts
			a.Answers[i].Correct = pts >= q.Points && q.Points > 0
			a.Answers[i].AutoGraded = false
			a.Answers[i].Comment = mg.Comment
			found = true
			break
		}
		if !found {
			return &grading.ValidationError{Reason: "no answer recorded for question: " + qid}
		}
	}
	if feedback != "" {
		a.Feedback = feedback
	}
	if gradedBy != "" {
		a.GradedBy = gradedBy
	}
	RecomputeDerived(z, a)
	return nil
}

func (s *SQLStore) saveAttempt(ctx context.Context, a Attempt, insert bool) error {
	buf, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	passed := 0
	if a.Passed {
		passed = 1
	}
	if insert {
		_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
			(id,quiz_id,user_id,number,status,score,percentage,passed,answers_json,started_at,submitted_at,elapsed_sec,deadline,feedback,graded_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			a.ID, a.QuizID, a.UserID, a.Number, a.Status, a.Score, a.Percentage, passed,
			string(buf), a.StartedAt, a.SubmittedAt, a.ElapsedSec, a.Deadline, a.Feedback, a.GradedBy)
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE attempts SET status=$1, score=$2, percentage=$3, passed=$4,
		answers_json=$5, submitted_at=$6, elapsed_sec=$7, feedback=$8, graded_by=$9 WHERE id=$10`,
		a.Status, a.Score, a.Percentage, passed, string(buf),
		a.SubmittedAt, a.ElapsedSec, a.Feedback, a.GradedBy, a.ID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var ajson string
	var passed int
	var submittedAt, deadline sql.NullInt64
	var feedback, gradedBy sql.NullString
	err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Number, &a.Status, &a.Score, &a.Percentage, &passed,
		&ajson, &a.StartedAt, &submittedAt, &a.ElapsedSec, &deadline, &feedback, &gradedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("attempt: %w", ErrNotFound)
		}
		return Attempt{}, err
	}
	a.Passed = passed != 0
	a.SubmittedAt = submittedAt.Int64
	a.Deadline = deadline.Int64
	a.Feedback = feedback.String
	a.GradedBy = gradedBy.String
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = []Answer{}
	}
	return a, nil
}
