package course

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/skillforge/skillforge/internal/db"
	"github.com/skillforge/skillforge/internal/grading"
)

var dbSeq int

// openTestStore backs the store with a fresh in-memory sqlite database.
func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:coursetest%d?mode=memory&cache=shared", dbSeq)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	s := NewSQLStore(dbh)
	clock := int64(1000)
	s.now = func() int64 { clock++; return clock }
	return s
}

func putCourse(t *testing.T, s *SQLStore, c Course) {
	t.Helper()
	if err := s.PutCourse(context.Background(), c); err != nil {
		t.Fatalf("put course %s: %v", c.ID, err)
	}
}

func TestPutGetCourse(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	putCourse(t, s, Course{
		ID: "c-1", Title: "Intro to Go", Description: "basics", Category: "programming",
		Level: "beginner", PriceCents: 4999, CreatedBy: "teach",
	})

	c, err := s.GetCourse(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Title != "Intro to Go" || c.PriceCents != 4999 || c.Published {
		t.Fatalf("course = %+v", c)
	}
	if c.AvgRating != 0 || c.ReviewCount != 0 {
		t.Fatalf("unreviewed course has rating %v/%d", c.AvgRating, c.ReviewCount)
	}

	// Upsert replaces mutable fields.
	putCourse(t, s, Course{ID: "c-1", Title: "Go, Revised", PriceCents: 5999, CreatedBy: "teach"})
	c, _ = s.GetCourse(ctx, "c-1")
	if c.Title != "Go, Revised" || c.PriceCents != 5999 {
		t.Fatalf("upsert ignored: %+v", c)
	}

	if _, err := s.GetCourse(ctx, "c-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing course: %v", err)
	}
}

func TestPutCourseValidation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	var verr *grading.ValidationError
	if err := s.PutCourse(ctx, Course{ID: "", Title: "x"}); !errors.As(err, &verr) {
		t.Fatalf("missing id: %v", err)
	}
	if err := s.PutCourse(ctx, Course{ID: "c-1", Title: ""}); !errors.As(err, &verr) {
		t.Fatalf("missing title: %v", err)
	}
	if err := s.PutCourse(ctx, Course{ID: "c-1", Title: "x", PriceCents: -1}); !errors.As(err, &verr) {
		t.Fatalf("negative price: %v", err)
	}
}

func TestListCoursesFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	putCourse(t, s, Course{ID: "c-1", Title: "Go Basics", Category: "programming", Published: true, CreatedBy: "alice"})
	putCourse(t, s, Course{ID: "c-2", Title: "Advanced Go", Category: "programming", CreatedBy: "alice"})
	putCourse(t, s, Course{ID: "c-3", Title: "Watercolors", Category: "art", Published: true, CreatedBy: "bob"})

	all, err := s.ListCourses(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}

	pub, _ := s.ListCourses(ctx, ListOpts{PublishedOnly: true})
	if len(pub) != 2 {
		t.Fatalf("published = %d, want 2", len(pub))
	}
	art, _ := s.ListCourses(ctx, ListOpts{Category: "art"})
	if len(art) != 1 || art[0].ID != "c-3" {
		t.Fatalf("art = %+v", art)
	}
	mine, _ := s.ListCourses(ctx, ListOpts{CreatedBy: "alice"})
	if len(mine) != 2 {
		t.Fatalf("alice's = %d, want 2", len(mine))
	}
	match, _ := s.ListCourses(ctx, ListOpts{Q: "Go", PublishedOnly: true})
	if len(match) != 1 || match[0].ID != "c-1" {
		t.Fatalf("search = %+v", match)
	}
}

func TestSetPublished(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	putCourse(t, s, Course{ID: "c-1", Title: "Draft", CreatedBy: "alice"})

	if err := s.SetPublished(ctx, "c-1", true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	c, _ := s.GetCourse(ctx, "c-1")
	if !c.Published {
		t.Fatalf("still unpublished")
	}
	if err := s.SetPublished(ctx, "c-missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing course: %v", err)
	}
}

func TestLessons(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	putCourse(t, s, Course{ID: "c-1", Title: "Go", CreatedBy: "alice"})

	for i, title := range []string{"Setup", "Syntax", "Testing"} {
		err := s.PutLesson(ctx, Lesson{ID: fmt.Sprintf("l-%d", i), CourseID: "c-1", Title: title, Position: i})
		if err != nil {
			t.Fatalf("put lesson: %v", err)
		}
	}
	ls, err := s.ListLessons(ctx, "c-1")
	if err != nil {
		t.Fatalf("list lessons: %v", err)
	}
	if len(ls) != 3 || ls[0].Title != "Setup" || ls[2].Title != "Testing" {
		t.Fatalf("lessons = %+v", ls)
	}

	if err := s.DeleteLesson(ctx, "l-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ls, _ = s.ListLessons(ctx, "c-1")
	if len(ls) != 2 {
		t.Fatalf("after delete = %d", len(ls))
	}
	if err := s.DeleteLesson(ctx, "l-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}

	var verr *grading.ValidationError
	if err := s.PutLesson(ctx, Lesson{ID: "l-x", CourseID: "", Title: "x"}); !errors.As(err, &verr) {
		t.Fatalf("lesson without course: %v", err)
	}
}

func TestEnrollmentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	putCourse(t, s, Course{ID: "c-1", Title: "Go", CreatedBy: "alice"})

	// Unpublished courses reject enrollment.
	var serr *grading.StateError
	if _, err := s.Enroll(ctx, "c-1", "bob"); !errors.As(err, &serr) {
		t.Fatalf("enroll unpublished: %v", err)
	}

	if err := s.SetPublished(ctx, "c-1", true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := s.Enroll(ctx, "c-1", "bob"); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	ok, err := s.IsEnrolled(ctx, "c-1", "bob")
	if err != nil || !ok {
		t.Fatalf("enrolled = %v, %v", ok, err)
	}

	if err := s.Unenroll(ctx, "c-1", "bob"); err != nil {
		t.Fatalf("unenroll: %v", err)
	}
	ok, _ = s.IsEnrolled(ctx, "c-1", "bob")
	if ok {
		t.Fatalf("dropped student still enrolled")
	}

	// Re-enrolling reactivates.
	if _, err := s.Enroll(ctx, "c-1", "bob"); err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	ok, _ = s.IsEnrolled(ctx, "c-1", "bob")
	if !ok {
		t.Fatalf("re-enroll did not reactivate")
	}

	es, err := s.ListEnrollments(ctx, "c-1")
	if err != nil || len(es) != 1 {
		t.Fatalf("enrollments = %+v, %v", es, err)
	}

	if _, err := s.Enroll(ctx, "c-missing", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("enroll missing course: %v", err)
	}
}

func TestReviews(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	putCourse(t, s, Course{ID: "c-1", Title: "Go", Published: true, CreatedBy: "alice"})

	var verr *grading.ValidationError
	if err := s.PutReview(ctx, Review{CourseID: "c-1", UserID: "bob", Rating: 0}); !errors.As(err, &verr) {
		t.Fatalf("rating 0: %v", err)
	}
	if err := s.PutReview(ctx, Review{CourseID: "c-1", UserID: "bob", Rating: 6}); !errors.As(err, &verr) {
		t.Fatalf("rating 6: %v", err)
	}

	// Only enrolled learners may review.
	var serr *grading.StateError
	if err := s.PutReview(ctx, Review{CourseID: "c-1", UserID: "bob", Rating: 5}); !errors.As(err, &serr) {
		t.Fatalf("unenrolled review: %v", err)
	}

	for _, u := range []string{"bob", "carol"} {
		if _, err := s.Enroll(ctx, "c-1", u); err != nil {
			t.Fatalf("enroll %s: %v", u, err)
		}
	}
	if err := s.PutReview(ctx, Review{CourseID: "c-1", UserID: "bob", Rating: 5, Comment: "great"}); err != nil {
		t.Fatalf("review: %v", err)
	}
	if err := s.PutReview(ctx, Review{CourseID: "c-1", UserID: "carol", Rating: 2}); err != nil {
		t.Fatalf("review: %v", err)
	}

	c, _ := s.GetCourse(ctx, "c-1")
	if c.ReviewCount != 2 || c.AvgRating != 3.5 {
		t.Fatalf("rating rollup = %v/%d, want 3.5/2", c.AvgRating, c.ReviewCount)
	}

	// One review per learner: a resubmission replaces the old rating.
	if err := s.PutReview(ctx, Review{CourseID: "c-1", UserID: "carol", Rating: 4}); err != nil {
		t.Fatalf("re-review: %v", err)
	}
	c, _ = s.GetCourse(ctx, "c-1")
	if c.ReviewCount != 2 || c.AvgRating != 4.5 {
		t.Fatalf("after re-review = %v/%d, want 4.5/2", c.AvgRating, c.ReviewCount)
	}

	rs, err := s.ListReviews(ctx, "c-1", 10, 0)
	if err != nil || len(rs) != 2 {
		t.Fatalf("reviews = %+v, %v", rs, err)
	}
}
