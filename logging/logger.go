// Package logging provides the structured logger shared by every docqa component.
//
// The logger wraps zap, writes human-readable output to the console and JSON
// lines to a rotating file, and masks credentials before any field reaches a
// sink. Extraction pipelines log uploaded file names and service URLs, which
// occasionally carry API keys in query strings, so redaction is not optional.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures a Logger.
type Options struct {
	// Development switches the console to the colored encoder and lowers
	// the default level to debug.
	Development bool

	// FilePath is the JSON log file. Empty disables the file sink.
	FilePath string

	// Level overrides the default level ("debug", "info", "warn", "error").
	Level string

	// Rotation controls lumberjack rotation of FilePath.
	Rotation RotationConfig

	// Console receives console output. Defaults to os.Stdout.
	Console io.Writer
}

// Logger wraps zap.Logger and redacts sensitive values from every field.
//
// Example:
//
//	logger, err := logging.NewLogger(true, "docqa.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("pdf accepted", zap.String("file", "report.pdf"), zap.String("strategy", "structured"))
type Logger struct {
	zap         *zap.Logger
	development bool
}

// NewLogger creates a logger writing to the console and to logFilePath.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	return New(Options{Development: isDevelopment, FilePath: logFilePath})
}

// New creates a logger from Options.
func New(opts Options) (*Logger, error) {
	defaultLevel := zapcore.InfoLevel
	if opts.Development {
		defaultLevel = zapcore.DebugLevel
	}
	level := ParseLevel(opts.Level, defaultLevel)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	cores := []zapcore.Core{newConsoleCore(level, zapcore.AddSync(console), opts.Development)}
	if opts.FilePath != "" {
		fileSink, err := newRotatingWriter(opts.FilePath, opts.Rotation)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %q: %w", opts.FilePath, err)
		}
		cores = append(cores, newFileCore(level, fileSink))
	}

	zl := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
	return &Logger{zap: zl, development: opts.Development}, nil
}

// NewNop returns a logger that discards everything. Used by tests and by
// components constructed without a logger.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// FromZap wraps an existing zap logger, typically one built by zaptest.
func FromZap(zl *zap.Logger) *Logger {
	if zl == nil {
		return NewNop()
	}
	return &Logger{zap: zl.WithOptions(zap.AddCallerSkip(1))}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Fatal logs and exits the process. Only main should call it.
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, redactFields(fields)...)
}

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(redactFields(fields)...), development: l.development}
}

// Named returns a child logger for a component, e.g. "pdf-chain".
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name), development: l.development}
}

// Zap exposes the underlying logger for libraries that want a *zap.Logger.
// Fields logged through it bypass redaction.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// IsDevelopment reports whether the logger was built in development mode.
func (l *Logger) IsDevelopment() bool {
	return l.development
}

// Sync flushes buffered entries. Errors from syncing stdout on some
// platforms are ignored by callers.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = redactField(f)
	}
	return out
}

func redactField(f zap.Field) zap.Field {
	if IsSensitiveKey(f.Key) {
		return zap.String(f.Key, RedactedPlaceholder)
	}
	switch f.Type {
	case zapcore.StringType:
		if redacted := Redact(f.String); redacted != f.String {
			return zap.String(f.Key, redacted)
		}
	case zapcore.ErrorType:
		// Upstream errors often echo request URLs or headers.
		if err, ok := f.Interface.(error); ok && err != nil {
			msg := err.Error()
			if redacted := Redact(msg); redacted != msg {
				return zap.String(f.Key, redacted)
			}
		}
	}
	return f
}
