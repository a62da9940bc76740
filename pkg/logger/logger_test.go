package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dollhouse/pkg/config"
)

func TestLoggerJSONEntryShape(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log, err := NewWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.With("component", "chaos.event").Info("Spawned bots", "added", 2, "terminal", false, "wait", 1500*time.Millisecond, "error", errors.New("boom"))

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}

	if entry.Level != "info" {
		t.Fatalf("level = %q, want %q", entry.Level, "info")
	}
	if entry.Component != "chaos.event" {
		t.Fatalf("component = %q, want %q", entry.Component, "chaos.event")
	}
	if entry.Timestamp == "" {
		t.Fatal("expected timestamp")
	}
	require.Equal(t, float64(2), entry.Fields["added"])
	require.Equal(t, false, entry.Fields["terminal"])
	require.Equal(t, "1.5s", entry.Fields["wait"])
	require.Equal(t, "boom", entry.Fields["error"])
}

func TestLoggerGroupsQualifyKeys(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log, err := NewWithWriter(config.LoggingConfig{Format: "json"}, &out)
	require.NoError(t, err)

	log.WithGroup("frame").Info("Rendered", "bots", 3)

	var entry LogEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	require.Contains(t, entry.Fields, "frame.bots")
}

func TestLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log, err := NewWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.Info("Ignored")
	if got := strings.TrimSpace(out.String()); got != "" {
		t.Fatalf("expected no output for info, got %q", got)
	}

	log.Error("Kept")
	if got := strings.TrimSpace(out.String()); got == "" {
		t.Fatal("expected output for error")
	}
}

func TestLoggerDefaultsToTextFormat(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log, err := NewWithWriter(config.LoggingConfig{}, &out)
	if err != nil {
		t.Fatalf("NewWithWriter error: %v", err)
	}

	log.Info("Default format")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format by default, got %q", line)
	}
}

func TestLoggerRejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := NewWithWriter(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "dollhouse.log")
	log, closeLog, err := New(config.LoggingConfig{Format: "json", File: path})
	require.NoError(t, err)

	log.Warn("Written to file")
	require.NoError(t, closeLog())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "Written to file")
}
