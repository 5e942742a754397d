package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/skillforge/skillforge/internal/course"
	"github.com/skillforge/skillforge/internal/grading"
	"github.com/skillforge/skillforge/internal/quiz"
)

func parseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// writeErr maps the error taxonomy onto HTTP status codes: ValidationError
// is a client error, StateError a conflict, not-found a 404.
func writeErr(w http.ResponseWriter, err error) {
	var ve *grading.ValidationError
	var se *grading.StateError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusBadRequest)
	case errors.As(err, &se):
		http.Error(w, se.Error(), http.StatusConflict)
	case errors.Is(err, quiz.ErrNotFound), errors.Is(err, course.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
