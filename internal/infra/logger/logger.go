package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gitduel/internal/infra/config"
)

// Option adjusts how New builds the logger.
type Option func(*settings)

type settings struct {
	terminal bool
}

// WithTerminalUI keeps records off the terminal while a full screen program
// owns it. Console targets are discarded; file targets still receive records.
func WithTerminalUI() Option {
	return func(s *settings) { s.terminal = true }
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds the process logger from cfg. Every record carries app=gitduel.
// The returned close function releases a file target and is safe to call
// for console targets.
func New(cfg config.LoggerConfig, opts ...Option) (*slog.Logger, func() error, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}

	out, closeFn, err := sink(cfg.Output, s.terminal)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %q: %w", cfg.Output, err)
	}

	ho := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler = slog.NewTextHandler(out, ho)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, ho)
	}
	return slog.New(h).With("app", "gitduel"), closeFn, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// parseLevel falls back to info for anything unrecognised.
func parseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(s)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// sink resolves an output target. An empty target means stderr.
func sink(target string, terminal bool) (io.Writer, func() error, error) {
	nop := func() error { return nil }

	var console io.Writer
	switch strings.ToLower(target) {
	case "discard", "none":
		return io.Discard, nop, nil
	case "stdout":
		console = os.Stdout
	case "stderr", "":
		console = os.Stderr
	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}

	if terminal {
		return io.Discard, nop, nil
	}
	return console, nop, nil
}
