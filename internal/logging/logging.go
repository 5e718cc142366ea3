/**
 * Log Sink.
 *
 * A leveled sink matching spec.md §6: accepts (level, message), never
 * fails the caller. Wraps zap the way the stack's larger agents do,
 * scaled down to the four levels the core actually emits.
 *
 * Author: raventrace
 */

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// One of the four levels the core's sink contract recognizes.
type Level int

const (
	Debug Level = iota
	Notice
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Notice:
		return "notice"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Accepts (level, message) posts. Implementations must never panic or
// return an error to the caller; posting failures are swallowed.
type Sink interface {
	Log(level Level, msg string, fields ...zap.Field)
}

// Sink backed by a zap.Logger. Notice maps to zap's Info level tagged
// with a "notice" field since zap has no native notice level.
type ZapSink struct {
	l *zap.Logger
}

// Builds a production zap logger (JSON, ISO8601 timestamps) wrapped as a Sink.
func New() (*ZapSink, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapSink{l: l}, nil
}

// Wraps an already-built zap.Logger.
func Wrap(l *zap.Logger) *ZapSink {
	return &ZapSink{l: l}
}

func (s *ZapSink) Log(level Level, msg string, fields ...zap.Field) {
	if s == nil || s.l == nil {
		return
	}
	switch level {
	case Debug:
		s.l.Debug(msg, fields...)
	case Notice:
		s.l.Info(msg, append(fields, zap.String("level", "notice"))...)
	case Warning:
		s.l.Warn(msg, fields...)
	case Error:
		s.l.Error(msg, fields...)
	}
}

func (s *ZapSink) Sync() error {
	if s == nil || s.l == nil {
		return nil
	}
	return s.l.Sync()
}
