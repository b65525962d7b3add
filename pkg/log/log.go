// Package log provides the structured logger used by the engine and the
// CLI. It is a thin layer over log/slog; the zero Logger discards.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler output.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

type config struct {
	level  slog.Level
	format Format
}

// Option configures a Logger.
type Option func(*config)

// WithLevel sets the minimum level. The default is warn.
func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithFormat sets the output format. The default is text.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// Logger logs structured records. The zero value discards everything.
type Logger struct {
	l *slog.Logger
}

// New creates a Logger writing to w.
func New(w io.Writer, opts ...Option) Logger {
	cfg := config{level: slog.LevelWarn}
	for _, opt := range opts {
		opt(&cfg)
	}
	hopts := &slog.HandlerOptions{Level: cfg.level}
	var h slog.Handler
	if cfg.format == FormatJSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return Logger{l: slog.New(h)}
}

// Slog returns the underlying slog logger, or nil for the zero Logger.
func (l Logger) Slog() *slog.Logger {
	return l.l
}

// With returns a Logger that adds attrs to every record.
func (l Logger) With(attrs ...slog.Attr) Logger {
	if l.l == nil {
		return l
	}
	return Logger{l: slog.New(l.l.Handler().WithAttrs(attrs))}
}

// Debug logs at debug level.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelDebug, msg, attrs)
}

// Info logs at info level.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelInfo, msg, attrs)
}

// Warn logs at warn level.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelWarn, msg, attrs)
}

// Error logs at error level.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.log(slog.LevelError, msg, attrs)
}

func (l Logger) log(level slog.Level, msg string, attrs []slog.Attr) {
	if l.l == nil {
		return
	}
	l.l.LogAttrs(context.Background(), level, msg, attrs...)
}
