package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillqa17/vpn-api/pkg/hash"
	"github.com/kirillqa17/vpn-api/pkg/jwt"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	token, err := jwt.GenerateToken("secret", "bot", false, time.Hour)
	require.NoError(t, err)

	var seen *jwt.Claims
	h := JWTAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(h, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "bot", seen.Subject)
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(noContent)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	user := req.WithContext(WithClaims(req.Context(), &jwt.Claims{Admin: false}))
	assert.Equal(t, http.StatusForbidden, serve(h, user).Code)

	admin := req.WithContext(WithClaims(req.Context(), &jwt.Claims{Admin: true}))
	assert.Equal(t, http.StatusNoContent, serve(h, admin).Code)
}

func TestBasicAuth(t *testing.T) {
	hashed, err := hash.HashPassword("s3cret")
	require.NoError(t, err)
	h := BasicAuth("metrics", hashed)(noContent)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req.SetBasicAuth("metrics", "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req.SetBasicAuth("metrics", "s3cret")
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }
	h := limiter.Middleware(noContent)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	assert.Equal(t, http.StatusNoContent, serve(h, other).Code)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestValidateRequestRejectsNonJSON(t *testing.T) {
	h := ValidateRequest(noContent)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	var seen string
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	id := rec.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, seen)

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", given)
	rec = serve(h, req)
	assert.Equal(t, given, rec.Header().Get("X-Request-ID"))
}
