// Package logging defines the context-aware structured logger used across
// the server. Backends wrap log/slog or go.uber.org/zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "letter drawn", "owner", ownerID, "letter", letterID)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds a Logger for the given backend ("slog" or "zap") and format
// ("json" or "text") writing to w.
func New(backend, format string, w io.Writer) (Logger, error) {
	switch backend {
	case "", "slog":
		var h slog.Handler
		switch format {
		case "", "json":
			h = slog.NewJSONHandler(w, nil)
		case "text":
			h = slog.NewTextHandler(w, nil)
		default:
			return nil, fmt.Errorf("unknown log format %q", format)
		}
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		var encoder zapcore.Encoder
		switch format {
		case "", "json":
			encoder = zapcore.NewJSONEncoder(enc)
		case "text":
			encoder = zapcore.NewConsoleEncoder(enc)
		default:
			return nil, fmt.Errorf("unknown log format %q", format)
		}
		core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.InfoLevel)
		return NewZapLogger(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

type fieldsKey struct{}

// ContextWith returns a copy of ctx carrying key–value pairs that every
// Logger adds to entries logged with that context, e.g. a request id.
func ContextWith(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]any)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(append(fields, prev...), args...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func withContextFields(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	fields, _ := ctx.Value(fieldsKey{}).([]any)
	if len(fields) == 0 {
		return args
	}
	out := make([]any, 0, len(fields)+len(args))
	return append(append(out, fields...), args...)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
