package grading

import (
	"context"
	"errors"
	"testing"
)

func mcQ(id string, points float64, correct ...string) Q {
	return Q{ID: id, Type: TypeMultipleChoice, Points: points, AnswerKey: correct}
}

func saQ(id string, points float64, refs ...string) Q {
	return Q{ID: id, Type: TypeShortAnswer, Points: points, AnswerKey: refs}
}

func TestGradeAttemptBasic(t *testing.T) {
	quiz := QuizView{
		Questions: []Q{
			mcQ("q1", 2, "a"),
			saQ("q2", 3, "Paris"),
		},
		TotalPoints:  5,
		PassingScore: 60,
	}
	g := NewDefaultGrader()

	// Wrong short answer casing: exact-match policy, so only the MC scores.
	out, err := GradeAttempt(context.Background(), g, quiz, []Submission{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q2", Value: "paris"},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if out.Score != 2 {
		t.Fatalf("score = %v, want 2", out.Score)
	}
	if out.Percentage != 40 {
		t.Fatalf("percentage = %d, want 40", out.Percentage)
	}
	if out.Passed {
		t.Fatalf("passed = true, want false")
	}

	// Exact casing scores full marks and passes.
	out, err = GradeAttempt(context.Background(), g, quiz, []Submission{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q2", Value: "Paris"},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if out.Score != 5 || out.Percentage != 100 || !out.Passed {
		t.Fatalf("got score=%v pct=%d passed=%v, want 5/100/true", out.Score, out.Percentage, out.Passed)
	}
}

func TestGradeAttemptIsDeterministic(t *testing.T) {
	quiz := QuizView{
		Questions:    []Q{mcQ("q1", 1, "b"), saQ("q2", 1, "ok")},
		TotalPoints:  2,
		PassingScore: 50,
	}
	g := NewDefaultGrader()
	subs := []Submission{{QuestionID: "q1", Value: "b"}, {QuestionID: "q2", Value: "nope"}}

	first, err := GradeAttempt(context.Background(), g, quiz, subs)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := GradeAttempt(context.Background(), g, quiz, subs)
		if err != nil {
			t.Fatalf("regrade %d: %v", i, err)
		}
		if again.Score != first.Score || again.Percentage != first.Percentage || again.Passed != first.Passed {
			t.Fatalf("regrade %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestGradeAttemptZeroTotalPoints(t *testing.T) {
	quiz := QuizView{
		Questions:    []Q{mcQ("q1", 0, "a")},
		TotalPoints:  0,
		PassingScore: 60,
	}
	out, err := GradeAttempt(context.Background(), NewDefaultGrader(), quiz, []Submission{
		{QuestionID: "q1", Value: "a"},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if out.Percentage != 0 || out.Passed {
		t.Fatalf("zero-point quiz: pct=%d passed=%v, want 0/false", out.Percentage, out.Passed)
	}
}

func TestGradeAttemptEmptyQuiz(t *testing.T) {
	out, err := GradeAttempt(context.Background(), NewDefaultGrader(), QuizView{PassingScore: 60}, nil)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if out.Score != 0 || out.Percentage != 0 || out.Passed {
		t.Fatalf("empty quiz got %+v", out)
	}
}

func TestGradeAttemptPassAtExactThreshold(t *testing.T) {
	quiz := QuizView{
		Questions:    []Q{mcQ("q1", 3, "a"), mcQ("q2", 2, "b")},
		TotalPoints:  5,
		PassingScore: 60,
	}
	out, err := GradeAttempt(context.Background(), NewDefaultGrader(), quiz, []Submission{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q2", Value: "x"},
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if out.Percentage != 60 || !out.Passed {
		t.Fatalf("pct=%d passed=%v, want 60/true", out.Percentage, out.Passed)
	}
}

func TestGradeAttemptRejectsUnknownQuestion(t *testing.T) {
	quiz := QuizView{Questions: []Q{mcQ("q1", 1, "a")}, TotalPoints: 1}
	_, err := GradeAttempt(context.Background(), NewDefaultGrader(), quiz, []Submission{
		{QuestionID: "ghost", Value: "a"},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestGradeAttemptRejectsDuplicateAnswer(t *testing.T) {
	quiz := QuizView{Questions: []Q{mcQ("q1", 1, "a")}, TotalPoints: 1}
	_, err := GradeAttempt(context.Background(), NewDefaultGrader(), quiz, []Submission{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q1", Value: "b"},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestGradeAttemptRejectsNegativePoints(t *testing.T) {
	quiz := QuizView{Questions: []Q{mcQ("q1", -1, "a")}, TotalPoints: -1}
	_, err := GradeAttempt(context.Background(), NewDefaultGrader(), quiz, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestChoiceMultiSelectSetEquality(t *testing.T) {
	q := mcQ("q1", 4, "a", "c")
	s := choiceStrategy{}

	cases := []struct {
		name    string
		value   interface{}
		correct bool
	}{
		{"exact set", []string{"a", "c"}, true},
		{"order ignored", []string{"c", "a"}, true},
		{"json decoded list", []interface{}{"a", "c"}, true},
		{"missing one", []string{"a"}, false},
		{"extra one", []string{"a", "b", "c"}, false},
		{"disjoint", []string{"b"}, false},
		{"empty", []string{}, false},
	}
	for _, tc := range cases {
		res, err := s.Grade(context.Background(), q, tc.value)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Correct != tc.correct {
			t.Fatalf("%s: correct = %v, want %v", tc.name, res.Correct, tc.correct)
		}
		wantPts := 0.0
		if tc.correct {
			wantPts = 4
		}
		if res.AutoPoints != wantPts {
			t.Fatalf("%s: points = %v, want %v", tc.name, res.AutoPoints, wantPts)
		}
	}
}

func TestChoiceRejectsNonStringValue(t *testing.T) {
	_, err := choiceStrategy{}.Grade(context.Background(), mcQ("q1", 1, "a"), 42)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestChoiceEmptyAnswerKeyNeverCorrect(t *testing.T) {
	res, err := choiceStrategy{}.Grade(context.Background(), Q{ID: "q1", Type: TypeMultipleChoice, Points: 1}, "a")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Correct || res.AutoPoints != 0 {
		t.Fatalf("keyless question scored: %+v", res)
	}
}

func TestShortAnswerDefaultPolicy(t *testing.T) {
	s := shortAnswerStrategy{}
	q := saQ("q1", 2, "Paris")

	cases := []struct {
		value   string
		correct bool
	}{
		{"Paris", true},
		{"  Paris  ", true}, // trimmed
		{"paris", false},    // case differs
		{"Pariss", false},
		{"London", false},
	}
	for _, tc := range cases {
		res, err := s.Grade(context.Background(), q, tc.value)
		if err != nil {
			t.Fatalf("%q: %v", tc.value, err)
		}
		if res.Correct != tc.correct {
			t.Fatalf("%q: correct = %v, want %v", tc.value, res.Correct, tc.correct)
		}
	}
}

func TestShortAnswerCaseFold(t *testing.T) {
	s := shortAnswerStrategy{caseFold: true}
	q := saQ("q1", 2, "New York")

	for _, v := range []string{"new york", "NEW   YORK", "New York.", " new york "} {
		res, err := s.Grade(context.Background(), q, v)
		if err != nil {
			t.Fatalf("%q: %v", v, err)
		}
		if !res.Correct {
			t.Fatalf("%q: not accepted under casefold", v)
		}
	}
}

func TestShortAnswerEditDistance(t *testing.T) {
	s := shortAnswerStrategy{caseFold: true, maxEdit: 1}
	q := saQ("q1", 2, "mitochondria")

	res, err := s.Grade(context.Background(), q, "mitochondira")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.Correct {
		t.Fatalf("two-edit typo accepted at maxEdit=1")
	}
	res, err = s.Grade(context.Background(), q, "mitochondri")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !res.Correct {
		t.Fatalf("one-edit typo rejected at maxEdit=1")
	}
}

func TestShortAnswerMultipleReferences(t *testing.T) {
	s := shortAnswerStrategy{}
	q := saQ("q1", 1, "4", "four")
	for _, v := range []string{"4", "four"} {
		res, err := s.Grade(context.Background(), q, v)
		if err != nil {
			t.Fatalf("%q: %v", v, err)
		}
		if !res.Correct {
			t.Fatalf("%q not accepted", v)
		}
	}
}

func TestEssayNeedsManual(t *testing.T) {
	res, err := essayStrategy{}.Grade(context.Background(), Q{ID: "q1", Type: TypeEssay, Points: 10}, "my essay")
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !res.NeedsManual || res.AutoPoints != 0 || res.Correct {
		t.Fatalf("essay result = %+v, want zero points pending manual review", res)
	}

	quiz := QuizView{
		Questions:    []Q{{ID: "e1", Type: TypeEssay, Points: 10}},
		TotalPoints:  10,
		PassingScore: 50,
	}
	out, err := GradeAttempt(context.Background(), NewDefaultGrader(), quiz, []Submission{
		{QuestionID: "e1", Value: "my essay"},
	})
	if err != nil {
		t.Fatalf("grade attempt: %v", err)
	}
	if out.Answers[0].AutoGraded {
		t.Fatalf("essay answer flagged auto_graded")
	}
	if out.Score != 0 || out.Passed {
		t.Fatalf("essay-only attempt got %+v, want zero score", out)
	}
}

func TestPercentageRounding(t *testing.T) {
	cases := []struct {
		score, total float64
		want         int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{5, -1, 0},
		{0, 10, 0},
		{10, 10, 100},
		{2, 5, 40},
		{1, 3, 33},  // 33.33 rounds down
		{2, 3, 67},  // 66.67 rounds up
		{1, 8, 13},  // 12.5 rounds half up
		{7, 8, 88},  // 87.5 rounds half up
		{1, 200, 1}, // 0.5 rounds half up
	}
	for _, tc := range cases {
		if got := Percentage(tc.score, tc.total); got != tc.want {
			t.Fatalf("Percentage(%v, %v) = %d, want %d", tc.score, tc.total, got, tc.want)
		}
	}
}

func TestUnknownQuestionType(t *testing.T) {
	g := NewDefaultGrader()
	_, err := g.Grade(context.Background(), Q{ID: "q1", Type: "matching", Points: 1}, "a")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
