package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expectedLogger := NewLogger(TestConfig())
		ctx := ContextWithLogger(t.Context(), expectedLogger)

		actualLogger := FromContext(ctx)

		require.NotNil(t, actualLogger)
		assert.Equal(t, expectedLogger, actualLogger)
	})

	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		log := FromContext(t.Context())

		require.NotNil(t, log)
		log.Info("test message from default logger")
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, "not a logger")

		log := FromContext(ctx)

		require.NotNil(t, log)
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should convert all log levels to charm log levels correctly", func(t *testing.T) {
		testCases := []struct {
			level    LogLevel
			expected charmlog.Level
		}{
			{DebugLevel, charmlog.DebugLevel},
			{InfoLevel, charmlog.InfoLevel},
			{WarnLevel, charmlog.WarnLevel},
			{ErrorLevel, charmlog.ErrorLevel},
			{NoLevel, charmlog.InfoLevel},
			{LogLevel("bogus"), charmlog.InfoLevel},
		}
		for _, tc := range testCases {
			assert.Equal(t, tc.expected, tc.level.ToCharmlogLevel(), "level %q", tc.level)
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write structured output to the configured writer", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: DebugLevel, Output: &buf})

		log.Info("hello", "job_id", "job-1")

		out := buf.String()
		assert.Contains(t, out, "hello")
		assert.Contains(t, out, "job-1")
	})

	t.Run("Should emit JSON when configured", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

		log.Info("hello")

		assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
	})

	t.Run("Should respect the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: ErrorLevel, Output: &buf})

		log.Info("suppressed")

		assert.Empty(t, buf.String())
	})

	t.Run("Should carry With fields to child loggers", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf})

		log.With("spike", "summary").Info("streaming")

		assert.Contains(t, buf.String(), "summary")
	})
}
