// Package logger configures the process-wide slog loggers: the
// application log and the rotating audit log of signing and access events.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes how the application logger should behave.
type Config struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AddSource   bool     `json:"add_source"`
	// Service is attached to every record when set.
	Service string      `json:"service"`
	Audit   AuditConfig `json:"audit"`
}

// AuditConfig controls audit log output behaviour.
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// redactedKeys never reach a log sink in clear text.
var redactedKeys = map[string]struct{}{
	"authorization": {},
	"private_key":   {},
	"secret":        {},
	"password":      {},
	"token":         {},
}

var (
	defaultLogger *slog.Logger
	auditLogger   *slog.Logger
	once          sync.Once
	closers       []io.Closer
	initErr       error
)

// Init configures the global logger instances. Only the first call has an
// effect.
func Init(cfg Config) error {
	once.Do(func() {
		handlerOpts := &slog.HandlerOptions{
			Level:       parseLevel(cfg.Level),
			AddSource:   cfg.AddSource,
			ReplaceAttr: redact,
		}

		handler, err := buildHandler(cfg.Format, cfg.OutputPaths, handlerOpts)
		if err != nil {
			initErr = err
			return
		}
		defaultLogger = slog.New(handler)
		if cfg.Service != "" {
			defaultLogger = defaultLogger.With(slog.String("service", cfg.Service))
		}

		auditLogger = defaultLogger
		if cfg.Audit.Enabled {
			audit, err := buildAuditLogger(cfg.Audit)
			if err != nil {
				initErr = err
				return
			}
			auditLogger = audit
		}
	})
	if initErr != nil {
		return initErr
	}
	if defaultLogger == nil {
		return errors.New("logger already initialised")
	}
	return nil
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

func buildHandler(format string, outputs []string, opts *slog.HandlerOptions) (slog.Handler, error) {
	writers := make([]io.Writer, 0, len(outputs))
	if len(outputs) == 0 {
		writers = append(writers, os.Stderr)
	}
	for _, out := range outputs {
		writer, closer, err := openWriter(out)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		writers = append(writers, writer)
	}

	writer := writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}
	return newHandler(format, writer, opts), nil
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func buildAuditLogger(cfg AuditConfig) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit log path cannot be empty when enabled")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	writer := newRotatingWriter(cfg)
	closers = append(closers, writer)
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo, ReplaceAttr: redact})
	return slog.New(handler).With(slog.String("log", "audit")), nil
}

func newRotatingWriter(cfg AuditConfig) *lumberjack.Logger {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 7
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}

func openWriter(path string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(path) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		return file, file, nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// L returns the application logger, initialising defaults on first use.
func L() *slog.Logger {
	if defaultLogger == nil {
		_ = Init(Config{})
	}
	return defaultLogger
}

// Audit returns the audit logger, or the application logger when no
// audit sink is configured.
func Audit() *slog.Logger {
	if auditLogger == nil {
		return L()
	}
	return auditLogger
}

// Sync closes file outputs.
func Sync() error {
	var err error
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	closers = nil
	return err
}

// Named returns a logger tagged with a component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}
