package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// coreWithLevel wraps a zapcore.Core with its own minimum level.
type coreWithLevel struct {
	zapcore.Core

	// level is the minimum log level for this core to process messages.
	level zapcore.Level
}

// Enabled reports whether l passes both the wrapped level and the core.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

// Check adds the core to a checked entry if the entry level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With returns a new core with added fields, keeping the wrapped level.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		c.Core.With(fields),
		c.level,
	}
}

// WithLevel raises the minimum level of an existing logger.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &coreWithLevel{core, lvl}
		})
}

// BadgerLogger adapts the context logger to badger's Logger interface.
// Badger is chatty at info level, so its messages start at warn.
type BadgerLogger struct {
	log *zap.SugaredLogger
}

// NewBadgerLogger builds a BadgerLogger named "badger" from the context logger.
func NewBadgerLogger(ctx context.Context) *BadgerLogger {
	l := FromContext(ctx).Desugar().WithOptions(WithLevel(zapcore.WarnLevel)).Named("badger").Sugar()

	return &BadgerLogger{log: l}
}

// Errorf logs at error level.
func (b *BadgerLogger) Errorf(format string, args ...any) {
	b.log.Errorf(format, args...)
}

// Warningf logs at warn level.
func (b *BadgerLogger) Warningf(format string, args ...any) {
	b.log.Warnf(format, args...)
}

// Infof logs at info level.
func (b *BadgerLogger) Infof(format string, args ...any) {
	b.log.Infof(format, args...)
}

// Debugf logs at debug level.
func (b *BadgerLogger) Debugf(format string, args ...any) {
	b.log.Debugf(format, args...)
}
