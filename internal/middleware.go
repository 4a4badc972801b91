package internal

import (
	"net/http"
	"strings"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/db"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/response"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// handlerFunc is a handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle is the error boundary: whatever a handler returns is classified
// and rendered as an error envelope.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			response.Error(w, r, db.Classify(err))
		}
	}
}

// requestContext assigns a request id (reusing a well-formed inbound
// X-Request-Id) and stores a logger carrying it in the request context.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := response.WithRequestID(r.Context(), id)
		ctx = logging.WithLogger(ctx, s.log.With("requestId", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// missingID answers PUT/DELETE on a collection path.
func (s *Server) missingID(resource string) http.HandlerFunc {
	return s.handle(func(http.ResponseWriter, *http.Request) error {
		return apierr.Validation(resource+" ID required", nil)
	})
}
