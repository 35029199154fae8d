package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogOptions select where the bot logs and how much.
type LogOptions struct {
	Debug bool
	// File, when set, receives a copy of every record.
	File string
	// Format is "json" (default) or "text".
	Format string
	// Silent drops the stdout handler.
	Silent bool
}

// InitLogger installs a logger built from opts as the default. The returned
// func closes the log file, if one was opened.
func InitLogger(opts LogOptions) func() error {
	logger, closeFn := NewLogger(opts)
	slog.SetDefault(logger)
	return closeFn
}

// NewLogger builds a logger writing to stdout unless silent, and to opts.File
// when one is given. A file that cannot be opened is reported and skipped.
func NewLogger(opts LogOptions) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if !opts.Silent {
		handlers = append(handlers, newHandler(os.Stdout, opts.Format, hopts))
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			handlers = append(handlers, newHandler(f, opts.Format, hopts))
			closeFn = f.Close
		} else {
			slog.Error("Failed to open log file", "path", opts.File, "error", err)
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewJSONHandler(io.Discard, hopts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	return slog.New(handler), closeFn
}

// ValidFormat reports whether format names a supported log format.
func ValidFormat(format string) error {
	switch format {
	case "", "json", "text":
		return nil
	}
	return fmt.Errorf("unknown log format %q", format)
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// Component returns the default logger tagged with a component name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// multiHandler fans records out to every handler enabled for their level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(fn func(slog.Handler) slog.Handler) *multiHandler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = fn(h)
	}
	return &multiHandler{handlers: out}
}
