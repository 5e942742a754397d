package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/course"
)

// POST /courses/{courseID}/reviews — one review per learner per course;
// posting again replaces the previous rating.
func PutReviewHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var req struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		rev := course.Review{
			CourseID: chi.URLParam(r, "courseID"),
			UserID:   sub,
			Rating:   req.Rating,
			Comment:  req.Comment,
		}
		if err := store.PutReview(r.Context(), rev); err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(rev)
	}
}

func ListReviewsHandler(store *course.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
		list, err := store.ListReviews(r.Context(), chi.URLParam(r, "courseID"), limit, offset)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}
