package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "session resolved", "owner", "alice")
	log.Info(ctx, "letter drawn", "letter", 7)
	log.Warn(ctx, "quota exceeded", "limit", 3)
	log.Error(ctx, "draw failed", "err", "boom")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=\"session resolved\"", "owner=alice",
		"level=INFO", "letter=7",
		"level=WARN", "limit=3",
		"level=ERROR", "err=boom",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "letters", "owner", "alice").Info(context.Background(), "submitted", "letter", 1)

	out := buf.String()
	for _, want := range []string{"module=letters", "owner=alice", "letter=1", "msg=submitted"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogLogger_SkipsDisabledLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	log.Info(ContextWith(context.Background(), "request_id", "r"), "ignored")
	log.Warn(ContextWith(context.Background(), "request_id", "r"), "kept")

	out := buf.String()
	if strings.Contains(out, "ignored") || !strings.Contains(out, "request_id=r") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
