package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/course"
)

// POST /courses/{courseID}/enroll — the caller enrolls themselves.
func EnrollSelfHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		e, err := store.Enroll(r.Context(), chi.URLParam(r, "courseID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}

// DELETE /courses/{courseID}/enroll — the caller drops the course.
func UnenrollSelfHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		if err := store.Unenroll(r.Context(), chi.URLParam(r, "courseID"), sub); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /courses/{courseID}/enrollments — instructor/admin roster view.
func ListEnrollmentsHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListEnrollments(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}
