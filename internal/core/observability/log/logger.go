package log

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

var (
	global     *Logger
	globalOnce sync.Once
)

// Logger is the zap backed Log implementation. Loggers derived through With
// share the level of their parent.
type Logger struct {
	zapLogger *zap.Logger
	zapLevel  zap.AtomicLevel
}

// New builds a JSON logger writing to stderr. The first logger built becomes
// the one returned by Provide.
func New(level Level) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.DisableCaller = true
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := cfg.Build()
	if err != nil {
		// stderr sinks only fail on a broken process environment
		panic(err)
	}

	logger := &Logger{zapLogger: zapLogger, zapLevel: cfg.Level}
	globalOnce.Do(func() { global = logger })
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		zapLogger: zap.NewNop(),
		zapLevel:  zap.NewAtomicLevelAt(zapcore.FatalLevel),
	}
}

// ParseLevel maps a config string to a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Provide returns the first logger created by New, or a no-op logger.
func Provide() *Logger {
	if global == nil {
		return NewNop()
	}
	return global
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

func (l *Logger) Log(level Level, msg string, fields ...Field) {
	if ce := l.zapLogger.Check(toZapLevel(level), msg); ce != nil {
		ce.Write(toZapFields(fields...)...)
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.Log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.Log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.Log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.Log(LevelError, msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.Log(LevelFatal, msg, fields...) }

func (l *Logger) With(fields ...Field) Log {
	return &Logger{
		zapLogger: l.zapLogger.With(toZapFields(fields...)...),
		zapLevel:  l.zapLevel,
	}
}

// WithContext attaches the peer and entity ids stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) Log {
	var fields []Field
	for _, key := range []contextKey{PeerKey, EntityKey} {
		if v, ok := ctx.Value(key).(string); ok {
			fields = append(fields, String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func (l *Logger) SetLevel(level Level) {
	l.zapLevel.SetLevel(toZapLevel(level))
}

func (l *Logger) GetLevel() Level {
	return fromZapLevel(l.zapLevel.Level())
}

var levels = [...]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
	LevelFatal: zapcore.FatalLevel,
}

func toZapLevel(level Level) zapcore.Level {
	if int(level) < len(levels) {
		return levels[level]
	}
	return zapcore.InfoLevel
}

func fromZapLevel(level zapcore.Level) Level {
	for l, zl := range levels {
		if zl == level {
			return Level(l)
		}
	}
	return LevelInfo
}

func toZapFields(fields ...Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = toZapField(f)
	}
	return out
}

func toZapField(f Field) zap.Field {
	switch v := f.Value.(type) {
	case bool:
		if f.Type == BoolType {
			return zap.Bool(f.Key, v)
		}
	case time.Duration:
		if f.Type == DurationType {
			return zap.Duration(f.Key, v)
		}
	case float64:
		if f.Type == Float64Type {
			return zap.Float64(f.Key, v)
		}
	case int:
		if f.Type == IntType {
			return zap.Int(f.Key, v)
		}
	case string:
		if f.Type == StringType {
			return zap.String(f.Key, v)
		}
	case uint64:
		if f.Type == Uint64Type {
			return zap.Uint64(f.Key, v)
		}
	}

	if f.Type == ErrorType {
		err, _ := f.Value.(error) // nil is skipped by zap
		return zap.NamedError(f.Key, err)
	}
	return zap.Any(f.Key, f.Value)
}
