package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
}

func (imp *impl) Sublogger(subname string) Logger {
	return &impl{imp.SugaredLogger.Named(subname), imp.level}
}

func (imp *impl) SetLevel(level zapcore.Level) {
	imp.level.SetLevel(level)
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.SugaredLogger
}

// Sync flushes buffered entries. Syncing stdout on some platforms returns EINVAL,
// which is not worth surfacing.
func (imp *impl) Sync() error {
	//nolint:errcheck
	imp.SugaredLogger.Sync()
	return nil
}
