package service

import (
	"context"
	"time"

	"sailboat/internal/alert"
	"sailboat/internal/model"
	"sailboat/pkg/logger"
	"sailboat/pkg/metrics"
	"sailboat/pkg/ratelimit"
)

// Alerter turns captured stderr into a delivered alert.
type Alerter interface {
	Alert(ctx context.Context, raw string, occurredAt time.Time, tc model.TriggerContext) error
}

type alerter struct {
	log        *logger.Logger
	formatter  alert.Formatter
	dispatcher alert.Dispatcher
	limiter    *ratelimit.LimiterStore
	timeout    time.Duration
}

func NewAlerter(log *logger.Logger, formatter alert.Formatter, dispatcher alert.Dispatcher, limiter *ratelimit.LimiterStore, timeout time.Duration) Alerter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &alerter{
		log:        log,
		formatter:  formatter,
		dispatcher: dispatcher,
		limiter:    limiter,
		timeout:    timeout,
	}
}

// Alert never retries. Failures are logged without the alert tag so a broken
// webhook cannot feed itself.
func (a *alerter) Alert(ctx context.Context, raw string, occurredAt time.Time, tc model.TriggerContext) error {
	if a.limiter != nil && !a.limiter.Allow(tc.Project) {
		metrics.Alerts.WithLabelValues("dropped").Inc()
		a.log.WarnContext(ctx, "Alert suppressed by rate limit", logger.StringField("project", tc.Project))
		return nil
	}

	msg := a.formatter.Format(raw, occurredAt, tc)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.dispatcher.Send(ctx, msg); err != nil {
		metrics.Alerts.WithLabelValues("failed").Inc()
		a.log.WarnContext(ctx, "Failed to deliver alert",
			logger.ErrorField(err),
			logger.StringField("project", tc.Project),
			logger.StringField("schedule_id", tc.ScheduleID),
		)
		return err
	}
	metrics.Alerts.WithLabelValues("sent").Inc()
	return nil
}
