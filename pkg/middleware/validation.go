package middleware

import (
	"net/http"
	"strings"

	"github.com/kirillqa17/vpn-api/pkg/response"
)

const maxBodySize = 1 << 20

// ValidateRequest rejects non-JSON bodies on writes and caps the body size.
// Empty bodies are allowed: several action routes take none.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && contentType != "" && !strings.Contains(contentType, "application/json") {
				response.BadRequest(w, "invalid Content-Type, expected application/json")
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}
