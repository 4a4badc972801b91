package internal

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cost-control-api/internal/config"
	"cost-control-api/internal/db"
	"cost-control-api/internal/handlers"
	"cost-control-api/pkg/importer"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newDocsServer(t *testing.T, enabled bool) *Server {
	t.Helper()
	errNoDB := errors.New("no database")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := db.NewClient(func(context.Context) (*sql.DB, error) { return nil, errNoDB }, log)
	imports := handlers.NewImportsHandler(func(context.Context) (importer.DB, error) { return nil, errNoDB }, "")

	s, err := NewServer(&config.Config{
		JWTSecret:     testSecret,
		JWTIssuer:     "cost-control-api",
		JWTAudience:   "cost-control-api",
		JWTExpiry:     time.Hour,
		EnableSwagger: enabled,
	}, Deps{Store: client, Imports: imports, Log: log})
	require.NoError(t, err)
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestDocsDisabledByDefault(t *testing.T) {
	s := newDocsServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(s, "/openapi.yaml").Code)
	assert.Equal(t, http.StatusNotFound, get(s, "/docs").Code)
}

func TestDocsPage(t *testing.T) {
	w := get(newDocsServer(t, true), "/docs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "url: '/openapi.yaml'")
}

// isMissingIDGuard matches the PUT/DELETE routes on collection paths that
// only answer "ID required".
func isMissingIDGuard(method, route string) bool {
	if method != http.MethodPut && method != http.MethodDelete {
		return false
	}
	return !strings.HasSuffix(route, "}")
}

func TestOpenAPIMatchesRoutes(t *testing.T) {
	s := newDocsServer(t, true)
	w := get(s, "/openapi.yaml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string                    `yaml:"openapi"`
		Paths   map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)

	documented := map[string]bool{}
	for path, ops := range doc.Paths {
		for method := range ops {
			if method == "parameters" {
				continue
			}
			documented[strings.ToUpper(method)+" "+path] = true
		}
	}

	routed := map[string]bool{}
	require.NoError(t, chi.Walk(s.Router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routed[method+" "+route] = true
		for _, prefix := range []string{"/projects", "/time-entries", "/cost-codes", "/labor-rates"} {
			if strings.HasPrefix(route, prefix) && !isMissingIDGuard(method, route) {
				assert.True(t, documented[method+" "+route], "undocumented route %s %s", method, route)
			}
		}
		return nil
	}))

	for op := range documented {
		assert.True(t, routed[op], "documented operation %s has no route", op)
	}
}
