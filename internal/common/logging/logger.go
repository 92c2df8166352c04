package logging

import (
	"context"
	"fmt"
	"os"
	"time"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	sessionIDKey ctxKey = "session_id"
)

// ContextWithRequestID stores the request id picked up by WithContext.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithSessionID stores the visitor session id picked up by WithContext.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// SessionIDFromContext returns the visitor session id, if any.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// NewDefaultLogger returns an info-level stdout logger.
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(Options{Level: ParseLevel(os.Getenv("LOG_LEVEL"))})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger installs the global logger. An empty file writes to stdout.
func InitGlobalLogger(level, format, file string) error {
	opts := Options{Level: ParseLevel(level), Format: format, Name: "renda-edge"}

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", file, err)
		}
		opts.Output = f
	}

	logger, err := NewZapLogger(opts)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		String("level", opts.Level.String()),
		String("format", format),
		String("log_file", file),
	)
	return nil
}

// MustSync flushes buffered entries. Call before exit.
func MustSync() {
	if z, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = z.Sync()
	}
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
