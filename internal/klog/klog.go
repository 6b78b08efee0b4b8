// Package klog adapts the terminal's error/diagnostic events onto zerolog.
package klog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors the severity levels spec.md §7 passes to error_callback.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Source identifies which core component raised an event.
type Source string

const (
	SourceParser Source = "parser"
	SourceSession Source = "session"
	SourceOpQueue Source = "opqueue"
	SourceGateway Source = "gateway"
	SourceNet     Source = "net"
	SourceTelnet  Source = "telnet"
	SourceGraphics Source = "graphics"
)

// Callback is the host-facing error/diagnostic hook (spec.md §6, §7).
type Callback func(level Level, source Source, msg string)

// Logger wraps a zerolog.Logger and the optional host Callback, so every
// internal event both logs (if a sink was configured) and reaches the
// host's error_callback.
type Logger struct {
	zl       zerolog.Logger
	callback Callback
}

// New builds a Logger writing to w (nil disables logging entirely, the
// default for an embedded core that hasn't opted in).
func New(w io.Writer, cb Callback) Logger {
	if w == nil {
		return Logger{zl: zerolog.Nop(), callback: cb}
	}
	return Logger{zl: zerolog.New(w).With().Timestamp().Logger(), callback: cb}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

// Stderr is a convenience constructor used by example hosts.
func Stderr(cb Callback) Logger {
	return New(os.Stderr, cb)
}

func (l Logger) Event(level Level, source Source, msg string) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelInfo:
		ev = l.zl.Info()
	case LevelWarn:
		ev = l.zl.Warn()
	default:
		ev = l.zl.Error()
	}
	ev.Str("source", string(source)).Msg(msg)

	if l.callback != nil {
		l.callback(level, source, msg)
	}
}

func (l Logger) Debugf(source Source, format string, args ...any) {
	l.Event(LevelDebug, source, sprintf(format, args...))
}

func (l Logger) Warnf(source Source, format string, args ...any) {
	l.Event(LevelWarn, source, sprintf(format, args...))
}

func (l Logger) Errorf(source Source, format string, args ...any) {
	l.Event(LevelError, source, sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
