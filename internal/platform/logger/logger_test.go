// Package logger_test contains tests for the logger package
package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobqueue/internal/config"
	"github.com/phrazzld/jobqueue/internal/platform/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"Warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			level, err := logger.ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expected, level)
		})
	}
}

// Not parallel: SetupWithWriter replaces the process default logger.
func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	t.Run("respects configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, &buf)
		require.NoError(t, err)
		require.NotNil(t, l)

		l.Info("should be filtered")
		l.Warn("should appear", "task_id", 7)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "should appear", entry["msg"])
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, float64(7), entry["task_id"])
	})

	t.Run("becomes the default logger", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "debug"}, &buf)
		require.NoError(t, err)

		slog.Debug("via default")
		assert.Contains(t, buf.String(), "via default")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "chatty"}, &buf)
		require.NoError(t, err)

		l.Debug("hidden")
		l.Info("visible")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})
}

func TestTestLogBuffer(t *testing.T) {
	t.Parallel()

	l, buf := logger.GetTestLogger(t)
	l.Warn("cleanup failed", "dir", "/tmp/a")
	l.Info("sweep finished")
	l.Warn("cleanup failed", "dir", "/tmp/b")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	matched := buf.EntriesWithMessage("cleanup failed")
	require.Len(t, matched, 2)
	assert.Equal(t, "/tmp/b", matched[1]["dir"])

	logger.AssertLogContains(t, buf, "sweep finished")

	buf.Reset()
	assert.Empty(t, buf.String())
}
