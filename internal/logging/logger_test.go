package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "bogus").Info("defaulted")
	if !strings.Contains(buf.String(), "defaulted") {
		t.Fatalf("invalid level should default to info, got %q", buf.String())
	}
}
