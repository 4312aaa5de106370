package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kirillqa17/vpn-api/pkg/apperrors"
	"github.com/kirillqa17/vpn-api/pkg/hash"
	"github.com/kirillqa17/vpn-api/pkg/jwt"
	"github.com/kirillqa17/vpn-api/pkg/response"
)

type contextKey string

const ClaimsKey contextKey = "claims"

var (
	errUnauthorized = apperrors.New("UNAUTHORIZED", "missing or invalid service token")
	errForbidden    = apperrors.New("FORBIDDEN", "admin token required")
)

// JWTAuth accepts requests carrying a valid bearer service token and stores
// its claims in the request context.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				response.JSON(w, http.StatusUnauthorized, response.Body(errUnauthorized))
				return
			}

			claims, err := jwt.ParseToken(secret, raw)
			if err != nil {
				response.JSON(w, http.StatusUnauthorized, response.Body(errUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin must run after JWTAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || !claims.Admin {
			response.JSON(w, http.StatusForbidden, response.Body(errForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

func ClaimsFrom(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims)
	return claims, ok
}

// BasicAuth protects an endpoint with a username and a bcrypt password hash.
func BasicAuth(username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)

			user, password, ok := r.BasicAuth()
			if !ok || !constantTimeCompare(user, username) || !hash.CheckPassword(passwordHash, password) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// constantTimeCompare compares equal-length strings in constant time.
func constantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	result := 0
	for i := range a {
		result |= int(a[i] ^ b[i])
	}
	return result == 0
}
