package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Quantum-Fiend/PolyAutomate/internal/auth"
	"github.com/Quantum-Fiend/PolyAutomate/internal/execution"
	"github.com/Quantum-Fiend/PolyAutomate/internal/plugin"
	"github.com/Quantum-Fiend/PolyAutomate/internal/task"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeValidationError writes a 400 error response with the validation code.
func writeValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a domain error to its HTTP response.
//
// Status mapping:
//   - not-found sentinels → 404
//   - validation sentinels → 400
//   - duplicate sentinels → 400 (auth) / 409 (plugins)
//   - invalid transitions → 409
//   - anything else → 500 (store unavailable)
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, execution.ErrExecutionNotFound),
		errors.Is(err, plugin.ErrPluginNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, task.ErrInvalidTask),
		errors.Is(err, task.ErrInvalidName),
		errors.Is(err, task.ErrInvalidScriptType),
		errors.Is(err, task.ErrNoScript),
		errors.Is(err, task.ErrEmptyPatch),
		errors.Is(err, plugin.ErrInvalidPlugin),
		errors.Is(err, execution.ErrTaskDisabled),
		errors.Is(err, execution.ErrInvalidStatus):
		writeValidationError(w, err.Error())

	case errors.Is(err, auth.ErrUsernameExists):
		writeBadRequest(w, err.Error())

	case errors.Is(err, plugin.ErrPluginExists):
		writeConflict(w, err.Error())

	case errors.Is(err, execution.ErrInvalidTransition):
		writeConflict(w, err.Error())

	default:
		writeInternalError(w, "internal server error")
	}
}
