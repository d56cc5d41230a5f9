// Package logging builds the zap-backed logr.Logger shared by every package.
package logging

import (
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr.Logger.V.
const (
	DEBUG = 1
	TRACE = 2
)

// ParseLevel maps a level name to a zap level. debug enables V(DEBUG) and
// trace enables V(TRACE) as well.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return zapcore.Level(-TRACE), nil
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, errors.Errorf("unknown log level %q", level)
}

// New returns a JSON production logger, or a console logger when development
// is set.
func New(level string, development bool) (logr.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = !development

	z, err := cfg.Build()
	if err != nil {
		return logr.Discard(), errors.Wrap(err, "building zap logger")
	}
	return zapr.NewLogger(z), nil
}

// NewWriterLogger logs every level to w in console format. Intended for tests.
func NewWriterLogger(w io.Writer) logr.Logger {
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.Level(-TRACE))
	return zapr.NewLogger(zap.New(core))
}
