// Package apicors provides CORS middleware for the JSON API consumed by the
// single-page frontend.
//
// The API authenticates with Bearer tokens, not cookies, so origins can be
// permissive ("*") and AllowCredentials stays false. The refresh-token cookie
// endpoints are same-origin and unaffected by these headers.
package apicors

import (
	"net/http"
	"strings"
)

// Middleware returns CORS middleware suitable for Bearer-token API endpoints.
//
//   - Allows any origin (Access-Control-Allow-Origin: *)
//   - Does not allow credentials
//   - Allows common API methods and headers
//   - Handles preflight OPTIONS requests
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareWithOrigins returns CORS middleware that only allows specific
// origins. Use this when the SPA is served from known hosts and the API
// should reject requests from anywhere else.
func MiddlewareWithOrigins(origins ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[strings.TrimRight(origin, "/")] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
