package scheduler

import (
	"sailboat/pkg/logger"

	"github.com/robfig/cron/v3"
)

var _ cron.Logger = cronLogger{}

// cronLogger routes robfig/cron's internal logging into zap.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
