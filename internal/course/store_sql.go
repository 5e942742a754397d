package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/skillforge/skillforge/internal/grading"
)

// SQLStore persists the marketplace catalog: courses, lessons, enrollments
// and reviews.
type SQLStore struct {
	db  *sql.DB
	now func() int64
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: func() int64 { return time.Now().Unix() }}
}

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	if c.ID == "" || c.Title == "" {
		return &grading.ValidationError{Reason: "course id and title required"}
	}
	if c.PriceCents < 0 {
		return &grading.ValidationError{Reason: "course price must not be negative"}
	}
	published := 0
	if c.Published {
		published = 1
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses
		(id,title,description,category,level,price_cents,published,created_by,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			category=EXCLUDED.category, level=EXCLUDED.level, price_cents=EXCLUDED.price_cents,
			published=EXCLUDED.published, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Title, c.Description, c.Category, c.Level, c.PriceCents, published, c.CreatedBy, now, now)
	return err
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT c.id, c.title, c.description, c.category, c.level,
		c.price_cents, c.published, c.created_by, c.created_at, c.updated_at,
		COALESCE(AVG(r.rating), 0), COUNT(r.rating)
		FROM courses c LEFT JOIN reviews r ON r.course_id = c.id
		WHERE c.id=$1
		GROUP BY c.id, c.title, c.description, c.category, c.level, c.price_cents,
			c.published, c.created_by, c.created_at, c.updated_at`, id)
	var c Course
	var published int
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Level,
		&c.PriceCents, &published, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&c.AvgRating, &c.ReviewCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, fmt.Errorf("course %s: %w", id, ErrNotFound)
		}
		return Course{}, err
	}
	c.Published = published != 0
	return c, nil
}

func (s *SQLStore) ListCourses(ctx context.Context, opts ListOpts) ([]Course, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sqlStr := `SELECT id,title,description,category,level,price_cents,published,created_by,created_at,updated_at
		FROM courses WHERE 1=1`
	args := []interface{}{}
	if opts.PublishedOnly {
		sqlStr += " AND published=1"
	}
	if opts.CreatedBy != "" {
		args = append(args, opts.CreatedBy)
		sqlStr += fmt.Sprintf(" AND created_by=$%d", len(args))
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		sqlStr += fmt.Sprintf(" AND category=$%d", len(args))
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
	out := []Course{}
	for rows.Next() {
		var c Course
		var published int
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Category, &c.Level,
			&c.PriceCents, &published, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Published = published != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetPublished(ctx context.Context, id string, published bool) error {
	v := 0
	if published {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE courses SET published=$1, updated_at=$2 WHERE id=$3`, v, s.now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) PutLesson(ctx context.Context, l Lesson) error {
	if l.ID == "" || l.CourseID == "" || l.Title == "" {
		return &grading.ValidationError{Reason: "lesson id, course_id and title required"}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO lessons (id,course_id,title,content,position)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, content=EXCLUDED.content, position=EXCLUDED.position`,
		l.ID, l.CourseID, l.Title, l.Content, l.Position)
	return err
}

func (s *SQLStore) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,course_id,title,content,position FROM lessons WHERE course_id=$1 ORDER BY position, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Lesson{}
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Content, &l.Position); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteLesson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lesson %s: %w", id, ErrNotFound)
	}
	return nil
}

// Enroll activates an enrollment; re-enrolling a dropped student reactivates it.
func (s *SQLStore) Enroll(ctx context.Context, courseID, userID string) (Enrollment, error) {
	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.Published {
		return Enrollment{}, &grading.StateError{Reason: "course " + courseID + " is not published"}
	}
	e := Enrollment{CourseID: courseID, UserID: userID, Status: "active", EnrolledAt: s.now()}
	_, err = s.db.ExecContext(ctx, `INSERT INTO enrollments (course_id,user_id,status,enrolled_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (course_id,user_id) DO UPDATE SET status='active'`,
		e.CourseID, e.UserID, e.Status, e.EnrolledAt)
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (s *SQLStore) Unenroll(ctx context.Context, courseID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET status='dropped' WHERE course_id=$1 AND user_id=$2`, courseID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("enrollment: %w", ErrNotFound)
	}
	return nil
}

func (s *SQLStore) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id=$1 AND user_id=$2 AND status='active')`,
		courseID, userID).Scan(&ok)
	return ok, err
}

func (s *SQLStore) ListEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id,user_id,status,enrolled_at FROM enrollments WHERE course_id=$1 ORDER BY enrolled_at`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.CourseID, &e.UserID, &e.Status, &e.EnrolledAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PutReview stores one review per learner per course; only enrolled learners
// may review.
func (s *SQLStore) PutReview(ctx context.Context, r Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return &grading.ValidationError{Reason: "rating must be within 1-5"}
	}
	enrolled, err := s.IsEnrolled(ctx, r.CourseID, r.UserID)
	if err != nil {
		return err
	}
	if !enrolled {
		return &grading.StateError{Reason: "user " + r.UserID + " is not enrolled in course " + r.CourseID}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO reviews (course_id,user_id,rating,comment,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (course_id,user_id) DO UPDATE SET rating=EXCLUDED.rating, comment=EXCLUDED.comment`,
		r.CourseID, r.UserID, r.Rating, r.Comment, s.now())
	return err
}

func (s *SQLStore) ListReviews(ctx context.Context, courseID string, limit, offset int) ([]Review, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id,user_id,rating,comment,created_at FROM reviews
		  WHERE course_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, courseID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.CourseID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
