// Package logging provides the leveled, structured logger used across the
// service. The facade keeps call sites decoupled from the backend, which is
// zerolog writing to stderr.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Level controls the minimum severity that gets emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Field is a set of structured key/value pairs attached to one log call.
type Field map[string]interface{}

// WithField builds a single-pair Field.
func WithField(key string, value interface{}) Field {
	return Field{key: value}
}

// WithFields wraps a map as a Field.
func WithFields(fields map[string]interface{}) Field {
	return Field(fields)
}

// Logger is a leveled structured logger.
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing human-readable lines to stderr at the given
// minimum level.
func New(level Level) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerologLevel(level)).
		With().Timestamp().Logger()

	return &Logger{zl: zl}
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		for k, v := range f {
			ev = ev.Interface(k, v)
		}
	}
	ev.Msg(msg)
}
