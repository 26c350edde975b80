// Package api implements the Historian REST API using chi.
package api

import (
	"net/http"
	"strings"
)

// AdminHeader carries the shared admin secret on mutating requests.
const AdminHeader = "X-Admin-Secret"

// credential returns the admin credential presented with r: the
// X-Admin-Secret header, or a Bearer token when the header is absent.
// Comparison against the server secret happens in the service.
func credential(r *http.Request) string {
	if v := r.Header.Get(AdminHeader); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// LimitBody caps request bodies at n bytes.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
