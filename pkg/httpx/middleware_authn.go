package httpx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/quollsec/authgate/pkg/jwtx"
)

// AuthnMiddleware enforces a valid bearer session token and places the
// resolved identity on the request context.
func AuthnMiddleware(verifier jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if raw == "" {
				writeBearerError(w, http.StatusUnauthorized, "invalid_request", "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok || token == "" {
				writeBearerError(w, http.StatusUnauthorized, "invalid_request", "authorization header must use the Bearer scheme")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeBearerError(w, http.StatusUnauthorized, "invalid_token", "session token is expired or invalid")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims)))
		})
	}
}

// writeBearerError writes an RFC 6750 style challenge response.
func writeBearerError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer error=%q, error_description=%q`, code, description))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"error_description":%q}`+"\n", code, description)
}
