package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/course"
	"github.com/skillforge/skillforge/internal/quiz"
	"github.com/skillforge/skillforge/internal/rbac"
)

// POST /attempts  { "quiz_id": "..." }
// Learners must hold an active enrollment in the quiz's course.
func CreateAttemptHandler(store quiz.Store, courses *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		var req struct {
			QuizID string `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.QuizID) == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		z, err := store.GetQuiz(r.Context(), req.QuizID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if z.CourseID != "" && role == "student" {
			enrolled, err := courses.IsEnrolled(r.Context(), z.CourseID, sub)
			if err != nil {
				writeErr(w, err)
				return
			}
			if !enrolled {
				http.Error(w, "not enrolled in course "+z.CourseID, http.StatusForbidden)
				return
			}
		}
		a, err := store.NewAttempt(r.Context(), req.QuizID, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// GET /attempts/{attemptID}/quiz — the quiz as delivered for this attempt:
// answer keys stripped, shuffle and question-subset settings applied with a
// seed stable per attempt.
func AttemptQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		z, err := store.GetQuizFull(r.Context(), a.QuizID)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(quiz.DeliveryView(z, quiz.DeliverySeed(a.ID)))
	}
}

// POST /attempts/{attemptID}/answers — saves or replaces answers in place.
func SaveAnswersHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		if !ownsAttempt(r, store, attemptID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var in []quiz.AnswerInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.SaveAnswers(r.Context(), attemptID, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

// POST /attempts/{attemptID}/submit — grades and finalizes the attempt.
func SubmitAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		if !ownsAttempt(r, store, attemptID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, err := store.Submit(r.Context(), attemptID)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(redactForCaller(r, store, a))
	}
}

// POST /attempts/{attemptID}/abandon — learner walks away; nothing is graded.
func AbandonAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		if !ownsAttempt(r, store, attemptID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, err := store.Abandon(r.Context(), attemptID)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(a)
	}
}

func GetAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(redactForCaller(r, store, a))
	}
}

// GET /attempts?quiz_id=...&user_id=...&status=...&limit=50&offset=0
// Roles without attempt:view-all are scoped to their own attempts.
func ListAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if role != "admin" && role != "instructor" {
			userID = sub
		}
		list, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			QuizID: strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			UserID: userID,
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

func canViewAttempt(r *http.Request, a quiz.Attempt) bool {
	role := rbac.RoleFromContext(r.Context())
	if role == "admin" || role == "instructor" {
		return true
	}
	return a.UserID == authmw.SubjectFromContext(r.Context())
}

func ownsAttempt(r *http.Request, store quiz.Store, attemptID string) bool {
	a, err := store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		// let the handler surface the proper not-found error
		return true
	}
	return a.UserID == authmw.SubjectFromContext(r.Context()) ||
		rbac.RoleFromContext(r.Context()) == "admin"
}

// redactForCaller hides grading results from learners according to the
// quiz's result-visibility policy. Instructors and admins always see them.
func redactForCaller(r *http.Request, store quiz.Store, a quiz.Attempt) quiz.Attempt {
	role := rbac.RoleFromContext(r.Context())
	if role == "admin" || role == "instructor" {
		return a
	}
	z, err := store.GetQuizFull(r.Context(), a.QuizID)
	if err != nil {
		return a
	}
	return quiz.RedactAttempt(z.Settings, a, time.Now().Unix())
}
