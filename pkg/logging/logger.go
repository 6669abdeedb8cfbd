// Package logging carries a *slog.Logger and a request ID through
// context.Context so every layer logs with the same handler and the
// same correlation fields.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxLoggerKey struct {
	Key string
}

var (
	cKey   = ctxLoggerKey{Key: "logger"}
	reqKey = ctxLoggerKey{Key: "request_id"}
)

// GetLoggerFromContext returns the context's logger, falling back to a
// plain JSON stdout logger when none was attached. The request ID, when
// present, is re-attached every time so it survives logger replacement.
func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	var l *slog.Logger

	if logger := ctx.Value(cKey); logger != nil {
		l = logger.(*slog.Logger)
	} else {
		l = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	if requestID := GetRequestIDFromCtx(ctx); requestID != "" {
		l = l.With(slog.String("request_id", requestID))
	}

	return l
}

// GetLoggerFromContextWithOp returns the context's logger with the
// operation name attached.
func GetLoggerFromContextWithOp(ctx context.Context, op string) *slog.Logger {
	return GetLoggerFromContext(ctx).With(slog.String("op", op))
}

func MakeContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, cKey, logger)
}
