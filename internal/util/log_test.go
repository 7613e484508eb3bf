package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug", "json")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid", "")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger("", "")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger := NewLoggerTo(&buf, "info", "json")
	jsonLogger.Info().Str("sym", "BTC").Msg("hello")
	if !strings.Contains(buf.String(), `"sym":"BTC"`) || !strings.Contains(buf.String(), `"time":`) {
		t.Fatalf("expected json line with timestamp, got %s", buf.String())
	}

	buf.Reset()
	consoleLogger := NewLoggerTo(&buf, "info", "CONSOLE")
	consoleLogger.Info().Str("sym", "ETH").Msg("hello")
	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "sym=ETH") {
		t.Fatalf("expected console output, got %s", out)
	}
}
