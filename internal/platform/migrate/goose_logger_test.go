package migrate

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestGooseSlogLoggerPrintf(t *testing.T) {
	var buf bytes.Buffer
	logger := gooseSlogLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	logger.Printf("OK   %s (%d ms)\n", "00001_browser_sessions.sql", 3)

	out := buf.String()
	if !strings.Contains(out, "00001_browser_sessions.sql") || !strings.Contains(out, "component=goose") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestGooseSlogLoggerNilLogger(t *testing.T) {
	logger := gooseSlogLogger{}
	logger.Printf("ignored %d", 1)
}

func TestMigrationsEmbedded(t *testing.T) {
	if err := configure(nil); err != nil {
		t.Fatalf("configure returned error: %v", err)
	}
}
