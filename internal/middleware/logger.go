package middleware

import (
	"log/slog"
	"net/http"

	"github.com/vtfsd/vtfs/pkg/logging"
)

// LoggerMiddleware seeds every request context with the process logger
// so downstream layers can pull it back out with GetLoggerFromContext.
func LoggerMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.MakeContextWithLogger(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
