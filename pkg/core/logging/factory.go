// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     logging
// Description: Factory functions and process-wide logger configuration
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	globalMu     sync.RWMutex
	globalConfig = DefaultLoggerConfig("voicepilot")
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name, used as the logger prefix
	ServiceName string

	// Log level (debug, info, warn, error)
	Level string

	// Output format: "text", "json" or "logfmt" (default: text)
	Format string

	// Output writer (default: stderr)
	Output io.Writer

	// Additional outputs, e.g. a log file
	AdditionalOutputs []io.Writer

	// ReportTimestamp adds a timestamp to every line
	ReportTimestamp bool
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName:     serviceName,
		Level:           "info",
		Format:          "text",
		ReportTimestamp: true,
	}
}

// Configure sets the process-wide defaults used by New. Loggers created
// before the call keep their previous settings.
func Configure(cfg LoggerConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// CurrentConfig returns the process-wide defaults.
func CurrentConfig() LoggerConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// NewLogger creates a charmbracelet logger from cfg
func NewLogger(cfg LoggerConfig) *log.Logger {
	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}
	if len(cfg.AdditionalOutputs) > 0 {
		writers := append([]io.Writer{output}, cfg.AdditionalOutputs...)
		output = io.MultiWriter(writers...)
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(output, log.Options{
		Prefix:          cfg.ServiceName,
		Level:           ParseLevel(cfg.Level).charm(),
		Formatter:       formatter,
		ReportTimestamp: cfg.ReportTimestamp,
		TimeFormat:      time.TimeOnly,
	})
}

// Logger is a named logger taking alternating key/value pairs
type Logger struct {
	*log.Logger
	name string
}

// New creates a logger named after a component, using the process-wide
// configuration set by Configure.
func New(name string) *Logger {
	cfg := CurrentConfig()
	cfg.ServiceName = name
	return &Logger{
		Logger: NewLogger(cfg),
		name:   name,
	}
}

// Name returns the component name
func (l *Logger) Name() string {
	return l.name
}

// WithLevel returns a new logger with the specified level
func (l *Logger) WithLevel(level Level) *Logger {
	child := l.Logger.With()
	child.SetLevel(level.charm())
	return &Logger{Logger: child, name: l.name}
}

// With returns a logger that always carries the given key/value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keysAndValues...), name: l.name}
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

// Info logs an info message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, keysAndValues...)
}
