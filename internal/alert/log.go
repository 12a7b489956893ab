package alert

import (
	"context"

	"sailboat/pkg/logger"
)

// LogDispatcher writes alerts to the process log. It is the default when no
// webhook is configured.
type LogDispatcher struct {
	log *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	d.log.WarnContext(ctx, "Alert",
		logger.StringField("title", msg.Title),
		logger.IntField("error_count", msg.ErrorCount),
		logger.IntField("traceback_count", msg.TracebackCount),
		logger.StringField("project", msg.Context.Project),
		logger.StringField("schedule_id", msg.Context.ScheduleID),
		logger.Field("lines", msg.Lines),
	)
	return nil
}
