// Package logging builds the zap logger shared by the server and the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "stockledger"

// ParseLevel maps a LOG_LEVEL value to a zap level. Unknown values fall back to info.
func ParseLevel(levelStr string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN", "WARNING":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	case "FATAL":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// New returns a console logger on stdout, tee'd into the global OpenTelemetry log provider.
func New(levelStr string) *zap.Logger {
	return NewWithWriter(levelStr, os.Stdout)
}

// NewWithWriter is New with an explicit sink. The CLI uses stderr so log lines
// do not interleave with prompts.
func NewWithWriter(levelStr string, w io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		ParseLevel(levelStr),
	)
	otelCore := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(global.GetLoggerProvider()))

	return zap.New(zapcore.NewTee(console, otelCore), zap.AddCaller())
}
