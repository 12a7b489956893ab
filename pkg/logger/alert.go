package logger

import (
	"sailboat/pkg/common"

	"go.uber.org/zap/zapcore"
)

// AlertHook receives log entries tagged for alerting. Fields are already
// flattened into a map. Implementations must not block for long; they are
// called from their own goroutine.
type AlertHook interface {
	FireLogAlert(entry zapcore.Entry, fields map[string]interface{})
}

type AlertCore struct {
	core     zapcore.Core
	minLevel zapcore.Level
	hook     AlertHook
}

func NewAlertCore(core zapcore.Core, minLevel zapcore.Level, hook AlertHook) *AlertCore {
	return &AlertCore{core: core, minLevel: minLevel, hook: hook}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		core:     a.core.With(fields),
		minLevel: a.minLevel,
		hook:     a.hook,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= a.minLevel && shouldSendAlert(fields) {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
				continue
			}
			f.AddTo(enc)
		}
		go a.hook.FireLogAlert(entry, enc.Fields)
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldSendAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}
