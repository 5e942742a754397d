package quiz

import (
	"hash/fnv"
	"math/rand"
)

// DeliverySeed derives a stable shuffle seed so one attempt always sees the
// same question order across fetches.
func DeliverySeed(attemptID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(attemptID))
	return int64(h.Sum64())
}

// deliveredQuestions applies the shuffle and question-subset settings for the
// given seed. Answer keys are left intact; callers decide whether to strip.
func deliveredQuestions(z Quiz, seed int64) []Question {
	qs := make([]Question, len(z.Questions))
	copy(qs, z.Questions)

	rng := rand.New(rand.NewSource(seed))
	if z.Settings.ShuffleQuestions {
		rng.Shuffle(len(qs), func(i, j int) {
			qs[i], qs[j] = qs[j], qs[i]
		})
	}
	if n := z.Settings.QuestionSubset; n > 0 && n < len(qs) {
		qs = qs[:n]
	}
	return qs
}

// GradingSnapshot returns the quiz as it applies to one attempt. For a quiz
// delivered as a random subset, the attempt is graded out of the points of
// the questions that attempt actually received, not the whole bank.
func GradingSnapshot(z Quiz, attemptID string) Quiz {
	if n := z.Settings.QuestionSubset; n > 0 && n < len(z.Questions) {
		z.Questions = deliveredQuestions(z, DeliverySeed(attemptID))
		z.RecomputeTotalPoints()
	}
	return z
}

// DeliveryView prepares a quiz for serving to a learner: correctness data is
// stripped, and the shuffle/subset settings are applied using the given seed.
func DeliveryView(z Quiz, seed int64) Quiz {
	out := z
	out.Questions = deliveredQuestions(z, seed)

	rng := rand.New(rand.NewSource(seed))
	for i := range out.Questions {
		q := &out.Questions[i]
		q.ReferenceAnswers = nil
		if len(q.Choices) > 0 {
			choices := make([]Choice, len(q.Choices))
			copy(choices, q.Choices)
			if z.Settings.ShuffleChoices {
				rng.Shuffle(len(choices), func(i, j int) {
					choices[i], choices[j] = choices[j], choices[i]
				})
			}
			for j := range choices {
				choices[j].Correct = false
			}
			q.Choices = choices
		}
	}
	return out
}
