package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/response"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userKey contextKey = "user"

// WithUser stores the caller in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the caller set by Authenticate, or nil.
func UserFromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(userKey).(*User); ok {
		return u
	}
	return nil
}

// sendTokenExpirationWarning adds headers when the token expires within the hour.
func sendTokenExpirationWarning(w http.ResponseWriter, expiresAt time.Time) {
	timeUntilExpiry := time.Until(expiresAt)
	if timeUntilExpiry <= time.Hour && timeUntilExpiry > 0 {
		w.Header().Set("X-Token-Expires-At", expiresAt.Format(time.RFC3339))
		w.Header().Set("X-Token-Expires-In", timeUntilExpiry.String())
	}
}

func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token cannot be empty")
	}
	if len(tokenString) > 8192 {
		return errors.New("token size exceeds maximum allowed")
	}
	if len(strings.Split(tokenString, ".")) != 3 {
		return errors.New("invalid JWT token format")
	}
	return nil
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Token is malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Invalid token signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "Token was not issued for this API"
	}
	return "Invalid or expired token"
}

// Authenticate verifies the bearer token and stores the caller in the
// request context.
func Authenticate(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Error(w, r, apierr.Unauthorized("Authorization header required"))
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Error(w, r, apierr.Unauthorized("Invalid authorization header format. Expected: Bearer <token>"))
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if err := validateTokenFormat(tokenString); err != nil {
				response.Error(w, r, apierr.Unauthorized("Invalid token format: "+err.Error()))
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", "err", err)
				response.Error(w, r, apierr.Unauthorized(tokenErrorMessage(err)))
				return
			}

			user, err := UserFromClaims(claims)
			if err != nil {
				response.Error(w, r, err)
				return
			}

			if claims.ExpiresAt != nil {
				sendTokenExpirationWarning(w, claims.ExpiresAt.Time)
			}

			ctx := WithUser(r.Context(), user)
			ctx = logging.With(ctx, "userId", user.UserID, "role", string(user.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MustRole rejects callers ranked below min before the handler runs.
func MustRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := RequireRole(UserFromContext(r.Context()), min); err != nil {
				response.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
