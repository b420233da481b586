package httpserver

import (
	"crypto/subtle"
	"net/http"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
)

// adminAuth gates an endpoint behind the X-Admin-Token header (§6's
// CLI/environment note). An empty configured token disables the route
// entirely rather than leaving it open.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeInvalidToken, "admin endpoint is disabled"))
				return
			}
			supplied := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				gwerrors.WriteError(w, gwerrors.New(gwerrors.CodeInvalidToken, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
