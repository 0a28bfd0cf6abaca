package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pumpdev/pumphouse/models"
	"github.com/pumpdev/pumphouse/policy"
	"github.com/pumpdev/pumphouse/store"
)

const maxActivitySz = 16 * (1 << 20) // 16 MB

func errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, err error) {
	w.WriteHeader(statusCode)
	_, writeErr := w.Write([]byte(err.Error()))
	if writeErr != nil {
		log.Printf("error writing response: %v\n", writeErr)
	}
}

// statusFor maps the error kinds the core produces onto response codes.
// Anything unrecognized is an internal fault and gets logged by the
// caller.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, policy.ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrMissingVerb),
		errors.Is(err, models.ErrMissingObject),
		errors.Is(err, models.ErrMissingObjectType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error serving %s %s: %v\n", r.Method, r.URL.Path, err)
	}
	errorResponse(w, r, status, err)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("error marshalling response: %v\n", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, writeErr := w.Write(b)
	if writeErr != nil {
		log.Printf("error writing response: %v\n", writeErr)
	}
}
