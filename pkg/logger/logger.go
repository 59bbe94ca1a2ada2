// Package logger provides the leveled structured logger used across the
// engine. It wraps zerolog behind a small surface so services never depend
// on the backend directly.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a named, leveled logger with structured field support.
type Logger struct {
	zl   zerolog.Logger
	name string
}

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output io.Writer
}

// New constructs a logger from config.
func New(name string, cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Str("component", name).Logger()
	return &Logger{zl: zl, name: name}
}

// NewDefault returns an info-level JSON logger for the named component.
func NewDefault(name string) *Logger {
	return New(name, Config{})
}

// Named returns a child logger for a sub-component.
func (l *Logger) Named(name string) *Logger {
	child := l.zl.With().Str("component", l.name+"."+name).Logger()
	return &Logger{zl: child, name: l.name + "." + name}
}

// WithField returns a logger carrying an extra structured field.
func (l *Logger) WithField(key string, value any) *Logger {
	child := l.zl.With().Interface(key, value).Logger()
	return &Logger{zl: child, name: l.name}
}

// WithError returns a logger carrying the error as a field.
func (l *Logger) WithError(err error) *Logger {
	child := l.zl.With().Err(err).Logger()
	return &Logger{zl: child, name: l.name}
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zl.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msg(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msg(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msg(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msg(fmt.Sprintf(format, args...)) }
