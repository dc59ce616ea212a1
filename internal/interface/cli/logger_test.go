package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelFromString(t *testing.T) {
	assert.Equal(t, LogLevelDebug, LogLevelFromString("debug"))
	assert.Equal(t, LogLevelInfo, LogLevelFromString("INFO"))
	assert.Equal(t, LogLevelWarn, LogLevelFromString("warning"))
	assert.Equal(t, LogLevelError, LogLevelFromString(" error "))
	assert.Equal(t, LogLevelInfo, LogLevelFromString("verbose"), "unknown levels default to info")
}

func TestLogger_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelWarn, &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden too")
	logger.Warn("shown %s", "warning")
	logger.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: shown warning")
	assert.Contains(t, out, "ERROR: shown error")
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevelError, &buf)

	logger.Info("before")
	logger.SetLevel(LogLevelDebug)
	logger.Debug("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "DEBUG: after")
}
