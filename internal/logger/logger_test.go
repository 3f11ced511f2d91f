package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestLevelFromVerbosity checks that quiet overrides verbosity.
func TestLevelFromVerbosity(t *testing.T) {
	t.Parallel()

	require.Equal(t, zapcore.InfoLevel, LevelFromVerbosity(0, false))
	require.Equal(t, zapcore.DebugLevel, LevelFromVerbosity(2, false))
	require.Equal(t, zapcore.ErrorLevel, LevelFromVerbosity(3, true))
}

// TestContextHelpers ensures scoped loggers travel through the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "pipeline")
	ctx = WithKV(ctx, "stream", "rm8")

	WarnKV(ctx, "Dropped entry", "entry_id", "1-0")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "pipeline", entries[0].LoggerName)
	require.Equal(t, "rm8", entries[0].ContextMap()["stream"])
	require.Equal(t, "1-0", entries[0].ContextMap()["entry_id"])
}

// TestWithLevel verifies that the wrapped core filters messages below its level.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core, WithLevel(zapcore.WarnLevel)).Sugar()

	l.Info("hidden")
	l.Warn("visible")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "visible", logs.All()[0].Message)
}

// TestKVHelpers routes each helper to its level.
func TestKVHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	DebugKV(ctx, "debug", "k", 1)
	Info(ctx, "info")
	InfoKV(ctx, "info kv", "k", 2)
	WarnKV(ctx, "warn", "k", 3)
	ErrorKV(ctx, "error", "k", 4)

	levels := make([]zapcore.Level, 0, logs.Len())
	for _, e := range logs.All() {
		levels = append(levels, e.Level)
	}

	require.Equal(t, []zapcore.Level{
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
	}, levels)
	require.Equal(t, int64(4), logs.All()[4].ContextMap()["k"])
}
