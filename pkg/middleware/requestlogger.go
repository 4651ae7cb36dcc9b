package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sofi161/martapp/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, user_id, role
// and trace ids in the request context. Mount it after RequestLogging,
// Tracing and Identify so those fields exist.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
