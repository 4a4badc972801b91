package response

import (
	"net/http"

	"github.com/go-chi/cors"
)

var allowAnyOrigin = cors.Handler(cors.Options{
	AllowedOrigins:     []string{"*"},
	AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	AllowedHeaders:     []string{"Content-Type", "Authorization"},
	ExposedHeaders:     []string{"X-Request-Id", "X-Result-Message"},
	MaxAge:             300,
	OptionsPassthrough: true,
})

// CORS lets browsers on any origin call the API. OPTIONS requests end here
// with 204, before routing and authentication.
func CORS(next http.Handler) http.Handler {
	return allowAnyOrigin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
