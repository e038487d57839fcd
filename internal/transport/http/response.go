package httptransport

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fleet-orchestrator/internal/repository"
	"fleet-orchestrator/internal/service"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response error=%v", err)
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// writeServiceErr maps service and repository errors onto HTTP statuses. Anything it does
// not recognise is logged and reported as a bare 500.
func writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, repository.ErrAlreadyExists):
		writeErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidJob),
		errors.Is(err, service.ErrInvalidHeartbeat),
		errors.Is(err, repository.ErrInvalidToken):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[http] method=%s path=%s error=%v", r.Method, r.URL.Path, err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
