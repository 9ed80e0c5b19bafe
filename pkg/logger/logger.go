package logger

import (
	"context"
	"log/slog"
	"os"
)

// New returns a structured JSON logger for the given environment.
// Debug level is enabled outside production-like environments.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// WithCall returns a logger scoped to one phone call. All conversation and
// dispatch logging should go through this so call traces can be correlated.
func WithCall(l *slog.Logger, callSid string) *slog.Logger {
	if callSid == "" {
		return l
	}
	return l.With("call_sid", callSid)
}
