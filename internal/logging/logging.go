// Package logging provides the leveled logger shared across autobackup.
package logging

import (
	"log"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the printf-style leveled logger used by every component.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StdLogger writes to the standard log package, filtered by minimum level.
type StdLogger struct {
	min Level
}

func NewStd(min Level) *StdLogger {
	return &StdLogger{min: min}
}

func (l *StdLogger) Debug(msg string, args ...any) { l.emit(LevelDebug, "DEBUG: ", msg, args) }
func (l *StdLogger) Info(msg string, args ...any)  { l.emit(LevelInfo, "INFO: ", msg, args) }
func (l *StdLogger) Warn(msg string, args ...any)  { l.emit(LevelWarn, "WARN: ", msg, args) }
func (l *StdLogger) Error(msg string, args ...any) { l.emit(LevelError, "ERROR: ", msg, args) }

func (l *StdLogger) emit(lv Level, prefix, msg string, args []any) {
	if lv < l.min {
		return
	}
	log.Printf(prefix+msg, args...)
}

// NopLogger discards all output. Use in tests.
type NopLogger struct{}

func NewNop() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
