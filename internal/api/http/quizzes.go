package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/quiz"
	"github.com/skillforge/skillforge/internal/rbac"
)

// POST /quizzes — instructor uploads or replaces a quiz definition. Total
// points are recomputed by the store on every save.
func UploadQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var z quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if z.ID == "" {
			z.ID = "q-" + uuid.NewString()
		}
		if z.CreatedBy == "" {
			z.CreatedBy = authmw.SubjectFromContext(r.Context())
		}
		if err := store.PutQuiz(r.Context(), z); err != nil {
			writeErr(w, err)
			return
		}
		saved, err := store.GetQuizFull(r.Context(), z.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(saved)
	}
}

// GET /quizzes/{quizID} — instructors see answer keys, learners do not.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "quizID"))
		role := rbac.RoleFromContext(r.Context())

		var (
			z   quiz.Quiz
			err error
		)
		if role == "instructor" || role == "admin" {
			z, err = store.GetQuizFull(r.Context(), id)
		} else {
			z, err = store.GetQuiz(r.Context(), id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(z)
	}
}

// GET /quizzes?course_id=...&q=...
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			CourseID: strings.TrimSpace(r.URL.Query().Get("course_id")),
			Q:        strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:    parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:   parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
