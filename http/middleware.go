package http

import (
	"crypto/subtle"
	"net/http"
)

// AdminSecretHeader carries the admin secret.
const AdminSecretHeader = "X-Admin-Secret"

// AdminAuthMiddleware accepts requests presenting secret in the
// X-Admin-Secret header or the "password" query or form parameter.
// A missing credential yields 401 and a wrong one 403.
func AdminAuthMiddleware(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := adminCredential(r)
			if got == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				WriteError(w, http.StatusForbidden, "forbidden", "Invalid credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func adminCredential(r *http.Request) string {
	if v := r.Header.Get(AdminSecretHeader); v != "" {
		return v
	}
	if v := r.URL.Query().Get("password"); v != "" {
		return v
	}
	if r.Method == http.MethodPost {
		return r.PostFormValue("password")
	}
	return ""
}

// BodyLimitMiddleware bounds request bodies to limit bytes. A limit of zero
// or less disables the bound.
func BodyLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
