// Package logging is the structured logger shared by every molstruct
// component.  It is a thin layer over zap; other packages depend on the
// Logger interface and never import zap themselves.
package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/turtacn/molstruct/pkg/errors"
)

// Logger is injected through constructors.  NewNopLogger serves tests and
// components built without one.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal exits the process after logging.  Startup only.
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Logger
	Named(name string) Logger
	// WithContext binds the request ID carried by ctx, if any.
	WithContext(ctx context.Context) Logger
	// WithError binds err and, for application errors, their code.
	WithError(err error) Logger

	Sync() error
}

// LevelSetter is implemented by loggers whose threshold can move at runtime.
type LevelSetter interface {
	SetLevel(level Level)
}

// ─── levels ──────────────────────────────────────────────────────────────────

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) String() string { return string(l) }

var zapLevels = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

// ParseLevel accepts the configured spelling of a level.  Empty means info
// and "warning" is taken as warn.
func ParseLevel(s string) (Level, error) {
	lvl := Level(strings.ToLower(strings.TrimSpace(s)))
	switch lvl {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zapLevels[lvl]; !ok {
		return "", fmt.Errorf("logging: unknown level %q", s)
	}
	return lvl, nil
}

// ─── construction ────────────────────────────────────────────────────────────

// LogConfig selects the level, encoding and sinks of a Logger.
type LogConfig struct {
	Level  Level  `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"` // json | console

	// OutputPaths defaults to stdout when nil; an empty non-nil slice is an
	// error.
	OutputPaths      []string `mapstructure:"output_paths" yaml:"output_paths" json:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths" yaml:"error_output_paths" json:"error_output_paths"`
}

// NewLogger builds a zap logger from cfg.  The result implements LevelSetter.
func NewLogger(cfg LogConfig) (Logger, error) {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		return nil, err
	}
	outputs := cfg.OutputPaths
	switch {
	case outputs == nil:
		outputs = []string{"stdout"}
	case len(outputs) == 0:
		return nil, errors.New("logging: at least one output path is required")
	}
	errOutputs := cfg.ErrorOutputPaths
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}

	console := cfg.Format == "console"
	zc := zap.NewProductionConfig()
	if console {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapLevels[level])
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = errOutputs
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	return &zapLogger{z: z, level: &zc.Level}, nil
}

// NewDefaultLogger is an info-level JSON logger on stdout, or a no-op logger
// when that cannot be built.
func NewDefaultLogger() Logger {
	if l, err := NewLogger(LogConfig{}); err == nil {
		return l
	}
	return NewNopLogger()
}

// ─── zap implementation ──────────────────────────────────────────────────────

type zapLogger struct {
	z     *zap.Logger
	level *zap.AtomicLevel
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }
func (l *zapLogger) Sync() error                       { return l.z.Sync() }

func (l *zapLogger) derive(z *zap.Logger) Logger { return &zapLogger{z: z, level: l.level} }

func (l *zapLogger) With(fields ...Field) Logger { return l.derive(l.z.With(fields...)) }
func (l *zapLogger) Named(name string) Logger    { return l.derive(l.z.Named(name)) }

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.With(String(FieldRequestID, id))
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.With(errorFields(err)...)
}

// SetLevel moves the threshold of l and every logger derived from it.
func (l *zapLogger) SetLevel(level Level) {
	if zl, ok := zapLevels[level]; ok && l.level != nil {
		l.level.SetLevel(zl)
	}
}

func errorFields(err error) []Field {
	fields := []Field{Err(err)}
	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		fields = append(fields, String(FieldErrorCode, ae.Code.String()))
	}
	return fields
}

// ─── no-op ───────────────────────────────────────────────────────────────────

type nopLogger struct{}

// NewNopLogger discards everything.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)               {}
func (nopLogger) Info(string, ...Field)                {}
func (nopLogger) Warn(string, ...Field)                {}
func (nopLogger) Error(string, ...Field)               {}
func (nopLogger) Fatal(string, ...Field)               {}
func (nopLogger) Sync() error                          { return nil }
func (n nopLogger) With(...Field) Logger               { return n }
func (n nopLogger) Named(string) Logger                { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
func (n nopLogger) WithError(error) Logger             { return n }

// ─── process default ─────────────────────────────────────────────────────────

type holder struct{ Logger }

var defaultLogger atomic.Pointer[holder]

// SetDefault installs l as the process logger; nil is ignored.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger.Store(&holder{l})
	}
}

// Default returns the process logger, a no-op one until SetDefault runs.
func Default() Logger {
	if h := defaultLogger.Load(); h != nil {
		return h.Logger
	}
	return nopLogger{}
}

//Personal.AI order the ending
