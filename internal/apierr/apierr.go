package apierr

import (
	"fmt"
	"net/http"
)

// Error codes surfaced in the error envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error is a typed API failure. The response layer renders it as
// {"error": {code, message, details}} with Status as the HTTP status.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Details)
}

// New builds an Error with an explicit status.
func New(code, message string, status int, details map[string]string) *Error {
	return &Error{Code: code, Message: message, Status: status, Details: details}
}

func Validation(message string, details map[string]string) *Error {
	return New(CodeValidation, message, http.StatusBadRequest, details)
}

// NotFound reports a missing resource, e.g. NotFound("Project") -> "Project not found".
func NotFound(resource string) *Error {
	return New(CodeNotFound, resource+" not found", http.StatusNotFound, nil)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message, http.StatusForbidden, nil)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message, http.StatusConflict, nil)
}

// MethodNotAllowed keeps the validation code with a 405 status.
func MethodNotAllowed() *Error {
	return New(CodeValidation, "Method not allowed", http.StatusMethodNotAllowed, nil)
}

func Internal() *Error {
	return New(CodeInternal, "An unexpected error occurred", http.StatusInternalServerError, nil)
}
