package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zap.InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, zap.InfoLevel, ParseLevel(""))
}

func TestNewWithWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", &buf)
	logger.Info("hidden line")
	logger.Warn("visible line", zap.String("file", "warehouse.txt"))
	_ = logger.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden line")
	assert.Contains(t, out, "visible line")
	assert.Contains(t, out, "warehouse.txt")
}
