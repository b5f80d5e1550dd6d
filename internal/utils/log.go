// Package utils
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is where GetLogger writes when no explicit logger is built.
const DefaultLogFile = "signalforge.log"

var (
	logger *zap.Logger
	once   sync.Once
)

// GetLogger returns the process-wide logger, teeing JSON to stdout and
// DefaultLogFile. Falls back to stdout only if the file cannot be opened.
func GetLogger() *zap.Logger {
	once.Do(func() {
		l, err := NewLogger(DefaultLogFile, "info")
		if err != nil {
			l = newConsoleLogger(zap.InfoLevel)
			l.Warn("Logger | falling back to stdout", zap.Error(err))
		}
		logger = l
	})
	return logger
}

// SetLogger replaces the process-wide logger. Call it before the first GetLogger.
func SetLogger(l *zap.Logger) {
	once.Do(func() {})
	logger = l
}

// NewLogger builds a logger that writes JSON to both stdout and path.
// An empty path logs to stdout only.
func NewLogger(path, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	if path == "" {
		return newConsoleLogger(lvl), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	enc := encoderConfig()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(os.Stdout), lvl),
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), lvl),
	)
	return zap.New(core), nil
}

func newConsoleLogger(lvl zapcore.Level) *zap.Logger {
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), lvl))
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
