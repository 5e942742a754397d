package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/grading"
	"github.com/skillforge/skillforge/internal/quiz"
)

// gradingItem is one answer joined with its question, for instructor review.
type gradingItem struct {
	QuestionID   string      `json:"question_id"`
	Type         string      `json:"type"`
	Prompt       string      `json:"prompt"`
	MaxPoints    float64     `json:"max_points"`
	Value        interface{} `json:"value"`
	Correct      bool        `json:"correct"`
	PointsEarned float64     `json:"points_earned"`
	AutoGraded   bool        `json:"auto_graded"`
	NeedsManual  bool        `json:"needs_manual"`
	Comment      string      `json:"comment,omitempty"`
}

// GET /attempts/{attemptID}/grading
func GetAttemptGradingHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeErr(w, err)
			return
		}
		z, err := store.GetQuizFull(r.Context(), a.QuizID)
		if err != nil {
			writeErr(w, err)
			return
		}
		byID := make(map[string]quiz.Question, len(z.Questions))
		for _, q := range z.Questions {
			byID[q.ID] = q
		}
		items := make([]gradingItem, 0, len(a.Answers))
		for _, ans := range a.Answers {
			q := byID[ans.QuestionID]
			items = append(items, gradingItem{
				QuestionID:   ans.QuestionID,
				Type:         q.Type,
				Prompt:       q.Prompt,
				MaxPoints:    q.Points,
				Value:        ans.Value,
				Correct:      ans.Correct,
				PointsEarned: ans.PointsEarned,
				AutoGraded:   ans.AutoGraded,
				NeedsManual:  q.Type == grading.TypeEssay && ans.AutoGraded,
				Comment:      ans.Comment,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	}
}

type applyGradesReq struct {
	Items    map[string]quiz.ManualGrade `json:"items"` // question_id -> grade
	Feedback string                      `json:"feedback,omitempty"`
}

// POST /attempts/{attemptID}/grading
func ApplyAttemptGradingHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		var req applyGradesReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		gradedBy := authmw.SubjectFromContext(r.Context())
		a, err := store.ApplyManualGrades(r.Context(), attemptID, req.Items, req.Feedback, gradedBy)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}
