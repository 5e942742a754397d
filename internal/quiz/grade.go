package quiz

import (
	"context"

	"github.com/skillforge/skillforge/internal/grading"
)

// GradeAttempt regrades the attempt's current answers against the given quiz
// snapshot and returns the attempt with per-answer correctness and derived
// score/percentage/pass set. The attempt itself is not mutated and nothing is
// persisted; callers save the returned value. Grading a terminal attempt is a
// StateError.
func GradeAttempt(ctx context.Context, g grading.Grader, z Quiz, a Attempt) (Attempt, error) {
	if Terminal(a.Status) {
		return Attempt{}, &grading.StateError{Reason: "attempt " + a.ID + " is already " + a.Status}
	}
	subs := make([]grading.Submission, len(a.Answers))
	for i, ans := range a.Answers {
		subs[i] = grading.Submission{QuestionID: ans.QuestionID, Value: ans.Value, TimeSpentSec: ans.TimeSpentSec}
	}
	out, err := grading.GradeAttempt(ctx, g, z.View(), subs)
	if err != nil {
		return Attempt{}, err
	}
	graded := a
	graded.Answers = make([]Answer, len(out.Answers))
	for i, r := range out.Answers {
		graded.Answers[i] = Answer{
			QuestionID:   r.QuestionID,
			Value:        r.Value,
			TimeSpentSec: r.TimeSpentSec,
			Correct:      r.Correct,
			PointsEarned: r.PointsEarned,
			AutoGraded:   r.AutoGraded,
		}
	}
	graded.Score = out.Score
	graded.Percentage = out.Percentage
	graded.Passed = out.Passed
	return graded, nil
}

// RecomputeDerived refreshes score/percentage/pass from the answers as
// stored. Used after manual grading so the aggregates always match the
// per-answer points.
func RecomputeDerived(z Quiz, a *Attempt) {
	score := 0.0
	for _, ans := range a.Answers {
		score += ans.PointsEarned
	}
	a.Score = score
	a.Percentage = grading.Percentage(score, z.TotalPoints)
	a.Passed = float64(a.Percentage) >= z.Settings.PassingScore
}

// ResultsVisible reports whether a learner may see grading results for the
// attempt under the quiz's visibility policy.
func ResultsVisible(s Settings, a Attempt, now int64) bool {
	switch s.ResultVisibility {
	case "", VisibilityImmediate:
		return true
	case VisibilityAfterSubmission:
		return Terminal(a.Status)
	case VisibilityAfterDueDate:
		return s.DueAt > 0 && now >= s.DueAt && Terminal(a.Status)
	default: // never
		return false
	}
}

// RedactAttempt strips grading results from an attempt when the quiz's
// visibility policy hides them from the learner. When results are visible but
// ShowCorrectAnswers is off, the aggregates stay and only the per-answer
// correctness is hidden.
func RedactAttempt(s Settings, a Attempt, now int64) Attempt {
	if ResultsVisible(s, a, now) {
		if !s.ShowCorrectAnswers {
			a.Answers = append([]Answer(nil), a.Answers...)
			for i := range a.Answers {
				a.Answers[i].Correct = false
				a.Answers[i].PointsEarned = 0
			}
		}
		return a
	}
	a.Score = 0
	a.Percentage = 0
	a.Passed = false
	a.Feedback = ""
	a.Answers = append([]Answer(nil), a.Answers...)
	for i := range a.Answers {
		a.Answers[i].Correct = false
		a.Answers[i].PointsEarned = 0
		a.Answers[i].Comment = ""
	}
	return a
}
