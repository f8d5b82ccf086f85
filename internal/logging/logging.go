// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options holds logger configuration.
type Options struct {
	Level      slog.Level
	AddSource  bool
	JSON       bool
	SetDefault bool
	Writer     io.Writer
}

// Option configures the logger.
type Option func(*Options)

// New creates a text logger on stderr at info level unless configured
// otherwise, and installs it as the slog default.
func New(opts ...Option) *slog.Logger {
	o := &Options{
		Level:      slog.LevelInfo,
		SetDefault: true,
		Writer:     os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	ho := &slog.HandlerOptions{AddSource: o.AddSource, Level: o.Level}
	var h slog.Handler = slog.NewTextHandler(o.Writer, ho)
	if o.JSON {
		h = slog.NewJSONHandler(o.Writer, ho)
	}

	logger := slog.New(h)
	if o.SetDefault {
		slog.SetDefault(logger)
	}
	return logger
}

// WithLevel parses a level name ("debug", "info", "warn", "error").
// Unknown names fall back to info and are reported on the current default
// logger.
func WithLevel(level string) Option {
	return func(o *Options) {
		var l slog.Level
		if err := l.UnmarshalText([]byte(level)); err != nil {
			slog.Default().Warn("unknown log level, using info",
				slog.String("input", level), slog.Any("error", err))
			l = slog.LevelInfo
		}
		o.Level = l
	}
}

// WithJSON selects JSON output.
func WithJSON(json bool) Option {
	return func(o *Options) { o.JSON = json }
}

// WithSource adds source file and line to records.
func WithSource(addSource bool) Option {
	return func(o *Options) { o.AddSource = addSource }
}

// WithSetDefault controls whether the logger becomes the slog default.
func WithSetDefault(setDefault bool) Option {
	return func(o *Options) { o.SetDefault = setDefault }
}

// WithWriter sends output to w.
func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
