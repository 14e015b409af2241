// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package logging provides structured logging for the relman CLI.

The logging system is built on Go's standard library slog package,
with multi-destination output (stderr plus an optional per-day log
file) and an optional Sink for capturing entries in tests.

# Usage

	logger := logging.New(logging.Config{
	    Level:   logging.LevelInfo,
	    LogDir:  "~/.relman/logs",
	    Service: "relman",
	})
	defer logger.Close()

	opLogger := logger.With("operation", "upgrade", "run_id", runID)
	opLogger.Info("build started", "revision", rev)
*/
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
// Setting a minimum level filters out everything below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for situations the operation can survive
	// (degraded builds, skipped verification contexts).
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string ("debug", "info", "warn", "error")
// to a Level. Unknown strings fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior. A zero-value Config creates a
// logger that writes Info+ messages to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging to the specified directory.
	// The file is named "{Service}_{YYYY-MM-DD}.log" and is always JSON.
	// Supports ~ expansion. Default: "" (file logging disabled).
	LogDir string

	// Service is included in every entry as the "service" attribute.
	Service string

	// JSON switches the terminal stream to JSON format.
	JSON bool

	// Quiet disables the terminal stream entirely.
	Quiet bool

	// Output overrides the terminal stream destination (stderr by
	// default). Primarily for tests.
	Output io.Writer

	// Sink, when set, receives every entry that passes the level
	// filter. Primarily for tests and diagnostics capture.
	Sink Sink
}

// =============================================================================
// Sink
// =============================================================================

// Entry is a materialized log record handed to a Sink.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// Sink receives log entries in addition to the configured streams.
// Record must not block; failures are swallowed so logging never
// disrupts the operation being logged.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// BufferedSink is an in-memory Sink for tests.
type BufferedSink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewBufferedSink returns an empty BufferedSink.
func NewBufferedSink() *BufferedSink {
	return &BufferedSink{}
}

// Record appends the entry to the buffer.
func (s *BufferedSink) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (s *BufferedSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with multi-destination output and an
// optional Sink. Safe for concurrent use. Call Close when done to
// release the log file handle.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	sink   Sink
	mu     sync.Mutex
}

// New creates a Logger from config. The returned Logger should be
// closed with Close to flush and release the log file.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	stream := config.Output
	if stream == nil {
		stream = os.Stderr
	}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(stream, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(stream, opts))
		}
	}

	logger := &Logger{
		config: config,
		sink:   config.Sink,
	}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			service := config.Service
			if service == "" {
				service = "relman"
			}
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns a stderr-only Info-level logger for the relman CLI.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "relman"})
}

// Debug logs at debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info logs at info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn logs at warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error logs at error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child logger that includes the given attributes in
// every entry. The child shares the parent's destinations and sink.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
		file:   l.file,
		sink:   l.sink,
	}
}

// Slog exposes the underlying slog.Logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close releases the log file handle, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if level < l.config.Level {
		return
	}
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		// Sink failures never disrupt the operation being logged.
		_ = l.sink.Record(ctx, Entry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(args),
		})
		cancel()
	}
}

// =============================================================================
// Internal helpers
// =============================================================================

// multiHandler fans a record out to every configured handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		wrapped[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: wrapped}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	wrapped := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		wrapped[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: wrapped}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// argsToMap converts alternating key-value slog args to a map.
func argsToMap(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	attrs := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		attrs[key] = args[i+1]
	}
	return attrs
}
