package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

const NoLoggingLevel = slog.Level(100) // A level higher than any standard level to disable logging

// Options configures Setup.
type Options struct {
	// Level applies to the console handler.
	Level slog.Level
	// LogFile, when set, receives every record at debug level through a rotating writer.
	LogFile string
	// Writer is the console destination. Defaults to os.Stderr so report output on stdout stays clean.
	Writer io.Writer
	// NoColor disables ANSI colours on the console handler.
	NoColor bool
}

// ParseLevel maps a CLI level name to a slog level. "off" disables console logging.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off", "none":
		return NoLoggingLevel, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup installs the default slog logger and returns it together with a
// closer for the log file (a no-op when no file is configured).
func Setup(opts Options) (*slog.Logger, func() error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handler := &MultiLevelHandler{}
	if opts.Level != NoLoggingLevel {
		handler.consoleHandler = tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		})
	}

	closer := func() error { return nil }
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0755); err != nil {
			slog.Error("Failed to create log folder hierarchy", "error", err)
		} else {
			lumber := &lumberjack.Logger{
				Filename: opts.LogFile,
				Compress: true,
			}
			handler.fileHandler = tint.NewHandler(lumber, &tint.Options{
				Level:      slog.LevelDebug,
				TimeFormat: time.RFC3339,
				NoColor:    true,
			})
			closer = lumber.Close
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	//overwrite standard log so it's always redirected to slog, in case some deep dep is using it
	lw := &slogWriter{}
	log.Default().SetOutput(lw)
	log.SetOutput(lw)
	log.SetFlags(0)

	return logger, closer
}

// Discard returns a logger that drops every record. Used by tests and library callers.
func Discard() *slog.Logger {
	return slog.New(&MultiLevelHandler{})
}

// MultiLevelHandler fans records out to an optional console handler and an
// optional file handler, each with its own level.
type MultiLevelHandler struct {
	fileHandler    slog.Handler
	consoleHandler slog.Handler
}

func (h *MultiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.fileHandler != nil && h.fileHandler.Enabled(ctx, level) {
		return true
	}
	if h.consoleHandler != nil && h.consoleHandler.Enabled(ctx, level) {
		return true
	}
	return false
}

func (h *MultiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.fileHandler != nil && h.fileHandler.Enabled(ctx, r.Level) {
		if err := h.fileHandler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}

	if h.consoleHandler != nil && h.consoleHandler.Enabled(ctx, r.Level) {
		if err := h.consoleHandler.Handle(ctx, r); err != nil {
			return err
		}
	}

	return nil
}

func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandler := &MultiLevelHandler{}
	if h.fileHandler != nil {
		newHandler.fileHandler = h.fileHandler.WithAttrs(attrs)
	}
	if h.consoleHandler != nil {
		newHandler.consoleHandler = h.consoleHandler.WithAttrs(attrs)
	}
	return newHandler
}

func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	newHandler := &MultiLevelHandler{}
	if h.fileHandler != nil {
		newHandler.fileHandler = h.fileHandler.WithGroup(name)
	}
	if h.consoleHandler != nil {
		newHandler.consoleHandler = h.consoleHandler.WithGroup(name)
	}
	return newHandler
}
