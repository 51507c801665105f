package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	apierrors "keygate/internal/errors"
)

// AdminSecretHeader carries the shared admin secret.
const AdminSecretHeader = "X-API-KEY"

// AdminGuard gates mutating admin operations behind a shared secret.
// The comparison is constant-time; a mismatch short-circuits before any
// store access.
type AdminGuard struct {
	secret []byte
	logger *slog.Logger
}

// NewAdminGuard creates a guard for the configured secret.
func NewAdminGuard(secret string, logger *slog.Logger) *AdminGuard {
	return &AdminGuard{
		secret: []byte(secret),
		logger: logger.With(slog.String("component", "admin_guard")),
	}
}

// Handler rejects requests whose admin secret header does not match.
func (g *AdminGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), g.secret) != 1 {
			g.logger.WarnContext(r.Context(), "admin secret mismatch",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
			apierrors.WriteError(w, apierrors.ErrUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
