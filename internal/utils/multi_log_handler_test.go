package utils

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiLogHandler_RespectsPerHandlerLevels(t *testing.T) {
	var file, console bytes.Buffer
	fileHandler := slog.NewTextHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug})
	consoleHandler := slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelError})

	logger := slog.New(NewMultiLogHandler(fileHandler, consoleHandler)).With("component", "archive")
	logger.Debug("members counted", "members", 3)
	logger.Info("archive changed")
	logger.Error("extract failed", "error", "boom")

	assert.Equal(t, 3, strings.Count(file.String(), "\n"))
	assert.Equal(t, 1, strings.Count(console.String(), "\n"))
	assert.Contains(t, console.String(), "extract failed")
	assert.Contains(t, console.String(), "component=archive")
}

func TestMultiLogHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, h.Enabled(t.Context(), slog.LevelWarn))
}

func TestMultiLogHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMultiLogHandler(slog.NewTextHandler(&buf, nil))).WithGroup("ledger")
	logger.Info("saved", "entries", 2)

	assert.Contains(t, buf.String(), "ledger.entries=2")
}
