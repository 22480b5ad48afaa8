package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithContextCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", true)

	ctx := NewContext(context.Background(), "request_id", "abc")
	ctx = NewContext(ctx, "user_id", 42)
	WithContext(ctx).Info("claimed")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"abc"`) || !strings.Contains(out, `"user_id":42`) {
		t.Fatalf("attributes missing from %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", false)

	Info("hidden")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
	if WithContext(context.Background()) != Get() {
		t.Fatalf("expected default logger for bare context")
	}
}
