package httpapi

import (
	"errors"
	"net/http"

	"github.com/prrrssa/sarsabz/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }

// writeDomainErr maps service errors onto HTTP statuses via the sentinel
// taxonomy. Unrecognized errors become 500s.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrMissingAccount):
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), "missing_account")
	case errors.Is(err, errs.ErrSystemManagedEntry):
		writeErr(w, http.StatusConflict, err.Error(), "system_managed_entry")
	case errors.Is(err, errs.ErrCompensation):
		writeErr(w, http.StatusInternalServerError, err.Error(), "compensation_failure")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}
