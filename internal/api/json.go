package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/lease"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string            `json:"error" validate:"required"`
	Code   string            `json:"code,omitempty" example:"lease_conflict"`
	Holder string            `json:"holder,omitempty"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a service error to a status code. Contention and
// validation outcomes carry a machine-readable code; anything unrecognized
// is logged and reported as an opaque 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var conflict *lease.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errResponse{
			Error:  "image is leased by another holder",
			Code:   "lease_conflict",
			Holder: conflict.Holder,
		})
	case errors.Is(err, apperr.ErrInvalid):
		body := errResponse{Error: "validation failed", Code: "invalid"}
		var fields validation.Errors
		if errors.As(err, &fields) {
			body.Fields = fields
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, apperr.ErrNotHeld):
		writeJSON(w, http.StatusConflict, errResponse{Error: "lease not held", Code: "not_held"})
	case errors.Is(err, apperr.ErrLeaseLost):
		writeJSON(w, http.StatusConflict, errResponse{Error: "lease lost to another holder", Code: "lease_lost"})
	case errors.Is(err, apperr.ErrSkipped):
		writeJSON(w, http.StatusConflict, errResponse{Error: "image was skipped", Code: "skipped"})
	case errors.Is(err, apperr.ErrLabeled):
		writeJSON(w, http.StatusConflict, errResponse{Error: "image already labeled", Code: "labeled"})
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errResponse{Error: "already exists", Code: "already_exists"})
	case errors.Is(err, apperr.ErrSourceMissing):
		writeJSON(w, http.StatusGone, errResponse{Error: "source image no longer in the pool", Code: "source_missing"})
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
