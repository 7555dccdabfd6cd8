// Package logging wraps log/slog with a single text handler, installed as
// the default logger by the command-line entry point. The hart logs fetch
// traces and trap entries through it; the MMU, the devices and the
// co-simulation driver do not log.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler formats records as "timestamp LEVEL: message attr attr ..." and
// always echoes warnings and errors to stderr, regardless of the configured
// sink, so a run never silently drops a fault report.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	debug bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05.000000")

	strs := []string{formattedTime, level, r.Message}
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, a.Key+"="+a.Value.String())
		return true
	})
	line := strings.Join(strs, " ") + "\n"
	b := []byte(line)

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if h.debug || r.Level >= slog.LevelWarn {
		_, err = os.Stderr.Write(b)
	}
	return err
}

// SetDebug toggles whether debug/info records are also echoed to stderr.
// Warnings and errors always are.
func (h *Handler) SetDebug(debug bool) {
	h.mu.Lock()
	h.debug = debug
	h.mu.Unlock()
}

// New builds a Handler writing to out at the given minimum level. debug
// additionally mirrors every record (not just warnings/errors) to stderr,
// which is how the ISS driver's per-instruction trace is surfaced.
func New(out io.Writer, level slog.Level, debug bool) *Handler {
	return &Handler{
		out:   out,
		h:     slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}

// Default installs a Handler as the slog default logger and returns it so
// callers can still flip SetDebug later (e.g. from a CLI flag parsed after
// logging is wired up).
func Default(out io.Writer, level slog.Level, debug bool) *Handler {
	h := New(out, level, debug)
	slog.SetDefault(slog.New(h))
	return h
}
