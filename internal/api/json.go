package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/vcs"
)

const maxBodyBytes = 10 << 20 // 10 MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a JSON body of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// statusOf maps domain errors to HTTP status codes and a stable code string.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, vcs.ErrTargetNotEmpty):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "checksum_mismatch"
	case errors.Is(err, vcs.ErrMergeRequired):
		return http.StatusConflict, "merge_required"
	case errors.Is(err, vcs.ErrMergeInProgress):
		return http.StatusConflict, "merge_in_progress"
	case errors.Is(err, vcs.ErrUnresolvedConflicts):
		return http.StatusConflict, "unresolved_conflicts"
	case errors.Is(err, vcs.ErrNonFastForward):
		return http.StatusConflict, "non_fast_forward"
	case errors.Is(err, vcs.ErrNoMergeInProgress):
		return http.StatusConflict, "no_merge_in_progress"
	case errors.Is(err, apperr.ErrFutureDate):
		return http.StatusBadRequest, "future_date"
	case errors.Is(err, apperr.ErrMalformedInput):
		return http.StatusBadRequest, "malformed_input"
	case errors.Is(err, vcs.ErrNoRemote):
		return http.StatusBadRequest, "no_remote"
	case errors.Is(err, vcs.ErrNotARepository), errors.Is(err, vcs.ErrNotAPath):
		return http.StatusBadRequest, "not_a_repository"
	case errors.Is(err, apperr.ErrNotInitialized), errors.Is(err, vcs.ErrGitUnavailable):
		return http.StatusServiceUnavailable, "not_initialized"
	case errors.Is(err, vcs.ErrAuthFailure):
		return http.StatusBadGateway, "auth_failure"
	case errors.Is(err, vcs.ErrNetwork):
		return http.StatusBadGateway, "network"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError writes err with the status from statusOf. Unclassified errors
// are logged and reported as "internal error".
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, status, errResponse{Error: "internal error", Code: code})
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Code: code})
}
