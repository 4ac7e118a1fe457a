package logger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("expected 8-character ids, got %q and %q", a, b)
	}
	if a == b {
		t.Errorf("expected distinct ids, got %q twice", a)
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	ctx := WithRequestID(context.Background(), "abc12345")
	if got := RequestIDFromContext(ctx); got != "abc12345" {
		t.Errorf("expected abc12345, got %q", got)
	}
}

func TestInitCLILevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	InitCLI("debug")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", zerolog.GlobalLevel())
	}

	t.Setenv("LOG_LEVEL", "")
	InitCLI("nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", zerolog.GlobalLevel())
	}
}

func TestParseLevelFallsBackToEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	if got := parseLevel(""); got != zerolog.WarnLevel {
		t.Errorf("expected warn from LOG_LEVEL, got %s", got)
	}
	if got := parseLevel("error"); got != zerolog.ErrorLevel {
		t.Errorf("explicit level should win, got %s", got)
	}
}

func TestForRequestWithoutID(t *testing.T) {
	l := ForRequest(context.Background())
	if l.GetLevel() != log.Logger.GetLevel() {
		t.Error("expected the global logger when no request id is set")
	}
}
