package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/course"
	"github.com/skillforge/skillforge/internal/rbac"
)

func PutLessonHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		c, err := store.GetCourse(r.Context(), courseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if c.CreatedBy != sub && role != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var l course.Lesson
		if err := json.NewDecoder(r.Body).Decode(&l); err != nil || strings.TrimSpace(l.Title) == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		l.CourseID = courseID
		if l.ID == "" {
			l.ID = "l-" + uuid.NewString()
		}
		if err := store.PutLesson(r.Context(), l); err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(l)
	}
}

func ListLessonsHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListLessons(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

func DeleteLessonHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		c, err := store.GetCourse(r.Context(), courseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if c.CreatedBy != sub && role != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := store.DeleteLesson(r.Context(), chi.URLParam(r, "lessonID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
