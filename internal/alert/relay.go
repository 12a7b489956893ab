package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sailboat/pkg/logger"
	"sailboat/pkg/metrics"
	"sailboat/pkg/ratelimit"
	"sailboat/pkg/utils"

	"go.uber.org/zap/zapcore"
)

var _ logger.AlertHook = (*LogRelay)(nil)

// LogRelay forwards log entries tagged for alerting to a Dispatcher. The
// logger is built before the dispatcher exists, so the dispatcher is bound
// later with Bind. Entries seen before Bind are dropped.
type LogRelay struct {
	mu         sync.RWMutex
	dispatcher Dispatcher
	keyword    string
	timeout    time.Duration
	limiter    *ratelimit.LimiterStore
	errLog     *logger.Logger
}

func NewLogRelay(keyword string, timeout time.Duration, perMinute int) *LogRelay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LogRelay{
		keyword: keyword,
		timeout: timeout,
		limiter: ratelimit.PerMinute(perMinute),
	}
}

// Bind attaches the dispatcher. errLog receives delivery failures and must not
// itself carry the relay hook.
func (r *LogRelay) Bind(d Dispatcher, errLog *logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatcher = d
	r.errLog = errLog
}

func (r *LogRelay) FireLogAlert(entry zapcore.Entry, fields map[string]interface{}) {
	r.mu.RLock()
	d, errLog := r.dispatcher, r.errLog
	r.mu.RUnlock()
	if d == nil {
		return
	}
	if !r.limiter.Allow(entry.Message) {
		metrics.Alerts.WithLabelValues("dropped").Inc()
		return
	}

	msg := r.message(entry, fields)
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := d.Send(ctx, msg); err != nil {
		metrics.Alerts.WithLabelValues("failed").Inc()
		if errLog != nil {
			errLog.Warn("Failed to relay log alert", logger.ErrorField(err), logger.StringField("message", entry.Message))
		}
		return
	}
	metrics.Alerts.WithLabelValues("sent").Inc()
}

func (r *LogRelay) message(entry zapcore.Entry, fields map[string]interface{}) Message {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+1)
	lines = append(lines, entry.Message)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, fields[k]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#### %s \n", entry.Message)
	fmt.Fprintf(&b, "> %s \n\n", strings.Join(lines[1:], "\n\n > "))
	if entry.Caller.Defined {
		fmt.Fprintf(&b, "> Caller: %s \n\n", entry.Caller.TrimmedPath())
	}
	fmt.Fprintf(&b, "> Occurrence Time: %s \n\n", utils.FormatDateTime(entry.Time))
	fmt.Fprintf(&b, "> Message Type: %s", r.keyword)

	return Message{
		Title:      TitleError,
		Text:       b.String(),
		ErrorCount: 1,
		Lines:      lines,
		OccurredAt: entry.Time,
		SentAt:     utils.TimeNow(),
	}
}
