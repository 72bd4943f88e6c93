package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextHandlerAddsFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewContextHandler(slog.NewTextHandler(&buf, nil))
	log := slog.New(handler)

	ctx := WithSessionID(context.Background(), "sess-9")
	ctx = WithAttemptID(ctx, "att-3")
	ctx = WithMode(ctx, "voice")

	log.InfoContext(ctx, "processing response")

	out := buf.String()
	for _, want := range []string{"session_id=sess-9", "attempt_id=att-3", "mode=voice"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestContextHandlerCommonFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewContextHandler(
		slog.NewTextHandler(&buf, nil),
		slog.String("environment", "test"),
	)
	slog.New(handler).Info("hello")

	if !strings.Contains(buf.String(), "environment=test") {
		t.Errorf("common field missing: %s", buf.String())
	}
}

func TestWithLoggingContext(t *testing.T) {
	ctx := WithLoggingContext(context.Background(), &LoggingFields{
		SessionID: "s1",
		CardID:    "card-42",
	})

	if v := ctx.Value(ContextKeySessionID); v != "s1" {
		t.Errorf("session_id = %v, want s1", v)
	}
	if v := ctx.Value(ContextKeyCardID); v != "card-42" {
		t.Errorf("card_id = %v, want card-42", v)
	}
	// Unset fields must not appear.
	if v := ctx.Value(ContextKeyProvider); v != nil {
		t.Errorf("provider should be unset, got %v", v)
	}
}

func TestWithLoggingContextNil(t *testing.T) {
	ctx := context.Background()
	if got := WithLoggingContext(ctx, nil); got != ctx {
		t.Error("nil fields should return the original context")
	}
}
