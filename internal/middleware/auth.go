package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/clinic-settlement/internal/auth"
	"github.com/josh-kwaku/clinic-settlement/internal/handler"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
)

// Auth resolves the bearer token into a principal and adds the caller's
// actor tag to the request logger.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			principal, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Info("token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), *principal)
			logger := logging.FromContext(ctx).With("actor", principal.Actor(), "role", principal.Role)
			ctx = logging.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
