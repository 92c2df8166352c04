// Package logging provides the structured logger used across the edge service.
package logging

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures a zap-backed logger.
type Options struct {
	Level  zapcore.Level
	Format string    // FormatConsole (default) or FormatJSON
	Output io.Writer // nil means stdout
	Name   string
}

// ParseLevel maps LOG_LEVEL values onto zap levels. Anything unrecognised is
// info.
func ParseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zapcore.WarnLevel
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil || level > zapcore.ErrorLevel || s == "" {
		return zapcore.InfoLevel
	}
	return level
}

type holder struct{ logger Logger }

var global atomic.Pointer[holder]

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(logger Logger) {
	global.Store(&holder{logger: logger})
}

// GetGlobalLogger returns the process-wide logger, installing a stdout logger
// on first use.
func GetGlobalLogger() Logger {
	if h := global.Load(); h != nil {
		return h.logger
	}
	global.CompareAndSwap(nil, &holder{logger: NewDefaultLogger()})
	return global.Load().logger
}

func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
