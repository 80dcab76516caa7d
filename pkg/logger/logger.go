// Package logger is the structured logger shared by the library, the seed CLI
// and the HTTP service. Lines logged through a context carry the trace and
// materialization run identifiers stored in it.
package logger

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "seedgraph/internal/core/context"
)

// Logger wraps zap.SugaredLogger with context-aware logging.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error; empty means info
	Development bool   // console encoder with colored levels
	OutputPaths []string
}

// New creates a Logger from configuration. An unknown level is an error.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return NewFromZap(z), nil
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(z *zap.Logger) *Logger {
	return &Logger{z.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewFromZap(zap.NewNop())
}

// fallback serves contexts without a logger. Library callers that never
// configure logging only see warnings on stderr.
var fallback atomic.Pointer[Logger]

func init() {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zc.OutputPaths = []string{"stderr"}
	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		z = zap.NewNop()
	}
	fallback.Store(NewFromZap(z))
}

// Default returns the logger used for contexts that carry none.
func Default() *Logger { return fallback.Load() }

// SetDefault replaces the fallback logger; nil restores silence.
func SetDefault(l *Logger) {
	if l == nil {
		l = Nop()
	}
	fallback.Store(l)
}

// WithContext adds the trace and run identifiers found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return &Logger{l.SugaredLogger.With(fields...)}
}

func contextFields(ctx context.Context) []any {
	var fields []any
	if trace := appctx.GetTrace(ctx); trace != nil {
		fields = append(fields, "trace_id", trace.TraceID, "request_id", trace.RequestID)
	}
	if run := appctx.GetRun(ctx); run != nil {
		fields = append(fields, "run_id", run.RunID, "root", run.Root)
	}
	return fields
}

// WithLogger adds Logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context logger, or Default, enriched with the
// context identifiers.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return Default().WithContext(ctx)
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs and exits the process.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Fatalw(msg, keysAndValues...)
}
