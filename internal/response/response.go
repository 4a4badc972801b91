package response

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/logging"
)

// Pagination describes one page of a list result.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"pageSize"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewPagination derives page counts from the total row count.
func NewPagination(page, pageSize, totalItems int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(pageSize)))
	}
	return Pagination{
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type successBody struct {
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type errorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp string            `json:"timestamp"`
	RequestID string            `json:"requestId,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encode response", "err", err)
	}
}

// OK wraps data in the success envelope with status 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, successBody{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, successBody{Data: data})
}

// List writes data with pagination metadata.
func List(w http.ResponseWriter, data any, p Pagination) {
	JSON(w, http.StatusOK, successBody{Data: data, Pagination: &p})
}

// Deleted answers 204. The confirmation text travels in a header since a
// 204 response has no body.
func Deleted(w http.ResponseWriter, message string) {
	w.Header().Set("X-Result-Message", message)
	w.WriteHeader(http.StatusNoContent)
}

// Error renders err in the error envelope. Errors that are not *apierr.Error
// become INTERNAL_ERROR and only the log sees the cause.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		log.Error("unhandled error", "method", r.Method, "path", r.URL.Path, "err", err)
		apiErr = apierr.Internal()
	} else if apiErr.Status >= http.StatusInternalServerError {
		log.Error("request failed", "code", apiErr.Code, "err", err)
	} else {
		log.Debug("request rejected", "code", apiErr.Code, "status", apiErr.Status, "message", apiErr.Message)
	}

	JSON(w, apiErr.Status, errorBody{Error: errorDetail{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID: RequestID(r.Context()),
	}})
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
