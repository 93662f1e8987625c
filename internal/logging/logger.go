// Package logging assembles the slog loggers used by ddp-inspect.
//
// Library packages take a *slog.Logger and fall back to a no-op logger when
// given nil; only the CLI constructs real handlers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console, json, auto
	File   string // optional log file, rotated
	// Rotation limits for File
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	Stderr io.Writer // defaults to os.Stderr
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	format, err := resolveFormat(opts.Format, stderr)
	if err != nil {
		return nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: levelVar}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(stderr, handlerOpts)
	default:
		handler = slog.NewTextHandler(stderr, handlerOpts)
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    defaultInt(opts.MaxSizeMB, 10),
			MaxBackups: defaultInt(opts.MaxBackups, 3),
			MaxAge:     defaultInt(opts.MaxAgeDays, 28),
		}
		// the file always gets JSON so it can be grepped with jq
		fileHandler := slog.NewJSONHandler(rotator, handlerOpts)
		handler = fanout{handler, fileHandler}
	}

	return slog.New(handler), nil
}

func resolveFormat(format string, w io.Writer) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "json", "console":
		return f, nil
	case "", "auto":
		if isTerminal(w) {
			return "console", nil
		}
		return "json", nil
	default:
		return "", fmt.Errorf("log format: unsupported value %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
