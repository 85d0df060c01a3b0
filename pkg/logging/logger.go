// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the keta CLI.
//
// # Description
//
//	Wraps log/slog with file-based output so diagnostic detail never
//	pollutes the interactive terminal. Logs go to a per-service file
//	under the log directory; the console stays reserved for ux output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents a logging severity level
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) slogLevel() slog.Level {
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

// Config controls logger construction
type Config struct {
	// Level is the minimum severity emitted
	Level Level

	// LogDir is the directory where log files are written.
	// Supports ~ expansion. Empty disables file logging.
	LogDir string

	// Service names the component, used for the log filename
	// and attached to every record.
	Service string

	// Console mirrors records to stderr when true. Off by default
	// so interactive sessions stay clean.
	Console bool
}

// Logger wraps slog.Logger with lifecycle management
type Logger struct {
	slog    *slog.Logger
	file    *os.File
	service string
}

var (
	defaultLogger *Logger
	defaultOnce   sync.Once
)

// New creates a Logger from the given config.
//
// # Limitations
//
//	If the log directory cannot be created, file output is skipped and
//	records go to stderr regardless of Console.
func New(cfg Config) (*Logger, error) {
	var writers []io.Writer
	var file *os.File

	if cfg.LogDir != "" {
		dir := expandPath(cfg.LogDir)
		if err := os.MkdirAll(dir, 0o755); err == nil {
			name := fmt.Sprintf("%s-%s.log", cfg.Service, time.Now().Format("2006-01-02"))
			f, ferr := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if ferr == nil {
				file = f
				writers = append(writers, f)
			}
		}
	}

	if cfg.Console || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: cfg.Level.slogLevel(),
	})

	logger := slog.New(handler).With("service", cfg.Service)
	return &Logger{slog: logger, file: file, service: cfg.Service}, nil
}

// Default returns the process-wide logger, creating it on first use
func Default() *Logger {
	return Configure(Config{
		Level:   LevelInfo,
		LogDir:  "~/.keta/logs",
		Service: "keta",
	})
}

// Configure builds the process-wide logger from explicit settings.
// Only the first Configure or Default call takes effect; the
// KETA_LOG_LEVEL environment variable overrides cfg.Level either way.
func Configure(cfg Config) *Logger {
	defaultOnce.Do(func() {
		if env := os.Getenv("KETA_LOG_LEVEL"); env != "" {
			cfg.Level = Level(strings.ToLower(env))
		}
		if cfg.Service == "" {
			cfg.Service = "keta"
		}
		l, err := New(cfg)
		if err != nil {
			l = &Logger{slog: slog.Default(), service: cfg.Service}
		}
		defaultLogger = l
	})
	return defaultLogger
}

// Debug logs at debug level
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs at info level
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs at warn level
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs at error level
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// With returns a Logger with the given attributes attached
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file, service: l.service}
}

// Slog exposes the underlying slog.Logger for libraries that want one
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the log file if one is open
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
