package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expected := NewLogger(TestConfig())
		ctx := ContextWithLogger(context.Background(), expected)

		actual := FromContext(ctx)

		require.NotNil(t, actual)
		assert.Equal(t, expected, actual)
	})

	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		assert.Equal(t, GetDefault(), l)
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerCtxKey, "not a logger")
		assert.Equal(t, GetDefault(), FromContext(ctx))
	})
}

func TestParseLevel(t *testing.T) {
	t.Run("Should map known names and default to info", func(t *testing.T) {
		assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
		assert.Equal(t, WarnLevel, ParseLevel("warning"))
		assert.Equal(t, ErrorLevel, ParseLevel(" error "))
		assert.Equal(t, DisabledLevel, ParseLevel("off"))
		assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should convert levels to charm levels", func(t *testing.T) {
		assert.Equal(t, -4, int(DebugLevel.ToCharmlogLevel()))
		assert.Equal(t, 0, int(InfoLevel.ToCharmlogLevel()))
		assert.Equal(t, 4, int(WarnLevel.ToCharmlogLevel()))
		assert.Equal(t, 8, int(ErrorLevel.ToCharmlogLevel()))
		assert.Equal(t, 1000, int(DisabledLevel.ToCharmlogLevel()))
		assert.Equal(t, 0, int(LogLevel("unknown").ToCharmlogLevel()))
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write text output at the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf, TimeFormat: "15:04:05"})

		l.Info("hidden message")
		l.Warn("visible message", "key", "value")

		out := buf.String()
		assert.NotContains(t, out, "hidden message")
		assert.Contains(t, out, "visible message")
		assert.Contains(t, out, "key=value")
	})

	t.Run("Should write JSON when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

		l.Info("json message")

		out := strings.TrimSpace(buf.String())
		assert.True(t, strings.HasPrefix(out, "{"))
		assert.Contains(t, out, `"msg":"json message"`)
	})

	t.Run("Should carry fields added with With", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&Config{Level: InfoLevel, Output: &buf})

		base.With("component", "supervisor").Info("started")

		assert.Contains(t, buf.String(), "component=supervisor")
	})
}
