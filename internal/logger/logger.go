package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//nolint:gochecknoglobals // One process-wide logger and level, adjusted by the CLI.
var (
	global *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() { //nolint:gochecknoinits // Packages log before the CLI parses flags.
	global = New(level)
}

// New builds a console logger on stderr. A nil enabler uses the process level.
func New(enabler zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if enabler == nil {
		enabler = level
	}

	//nolint:exhaustruct // Unset keys are omitted from the output.
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "message",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ", ",
	})

	return zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), enabler), options...).Sugar()
}

// ParseLogLevel maps the log_level setting to a zap level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	}

	return zapcore.InfoLevel, false
}

// LevelFromVerbosity maps -v and -q to a level. -q wins; any -v means debug.
func LevelFromVerbosity(verbosity int, quiet bool) zapcore.Level {
	switch {
	case quiet:
		return zapcore.ErrorLevel
	case verbosity > 0:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger returns the process logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLevel changes the level of the process logger and every logger derived from it.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// Info writes a plain message at info level.
func Info(ctx context.Context, message string) {
	FromContext(ctx).Info(message)
}

// DebugKV writes message with key-value pairs at debug level.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	logKV(ctx, zapcore.DebugLevel, message, kvs)
}

// InfoKV writes message with key-value pairs at info level.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	logKV(ctx, zapcore.InfoLevel, message, kvs)
}

// WarnKV writes message with key-value pairs at warn level.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	logKV(ctx, zapcore.WarnLevel, message, kvs)
}

// ErrorKV writes message with key-value pairs at error level.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	logKV(ctx, zapcore.ErrorLevel, message, kvs)
}

func logKV(ctx context.Context, lvl zapcore.Level, message string, kvs []any) {
	l := FromContext(ctx)

	switch lvl {
	case zapcore.DebugLevel:
		l.Debugw(message, kvs...)
	case zapcore.WarnLevel:
		l.Warnw(message, kvs...)
	case zapcore.ErrorLevel:
		l.Errorw(message, kvs...)
	default:
		l.Infow(message, kvs...)
	}
}
