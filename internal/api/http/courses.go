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

// Handlers only — routes remain in main.go

type courseReq struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Level       string `json:"level,omitempty"`
	PriceCents  int64  `json:"price_cents,omitempty"`
}

func CreateCourseHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var req courseReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		id := strings.TrimSpace(req.ID)
		if id == "" {
			id = "c-" + uuid.NewString()
		}
		c := course.Course{
			ID:          id,
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Level:       req.Level,
			PriceCents:  req.PriceCents,
			CreatedBy:   sub,
		}
		if err := store.PutCourse(r.Context(), c); err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(c)
	}
}

func UpdateCourseHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		existing, err := store.GetCourse(r.Context(), courseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if existing.CreatedBy != sub && role != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req courseReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Title != "" {
			existing.Title = req.Title
		}
		if req.Description != "" {
			existing.Description = req.Description
		}
		if req.Category != "" {
			existing.Category = req.Category
		}
		if req.Level != "" {
			existing.Level = req.Level
		}
		if req.PriceCents != 0 {
			existing.PriceCents = req.PriceCents
		}
		if err := store.PutCourse(r.Context(), existing); err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(existing)
	}
}

func PublishCourseHandler(store *course.SQLStore) http.HandlerFunc {
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
		var req struct {
			Published bool `json:"published"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := store.SetPublished(r.Context(), courseID, req.Published); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetCourseHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c)
	}
}

// GET /courses?q=...&category=...&mine=1&limit=50&offset=0
// Students browse published courses only; instructors can list their own
// drafts with mine=1; admins see everything.
func ListCoursesHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		opts := course.ListOpts{
			Q:        strings.TrimSpace(r.URL.Query().Get("q")),
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			Limit:    parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:   parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		mine := r.URL.Query().Get("mine") == "1"
		switch {
		case mine && (role == "instructor" || role == "admin"):
			opts.CreatedBy = sub
		case role == "admin":
		default:
			opts.PublishedOnly = true
		}
		list, err := store.ListCourses(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}
