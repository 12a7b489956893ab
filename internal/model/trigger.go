package model

type TriggerMode string

const (
	TriggerModeDate     TriggerMode = "date"
	TriggerModeInterval TriggerMode = "interval"
	TriggerModeCron     TriggerMode = "cron"
)

func (m TriggerMode) Valid() bool {
	switch m {
	case TriggerModeDate, TriggerModeInterval, TriggerModeCron:
		return true
	}
	return false
}

// OneShot reports whether a trigger of this mode disarms after its first fire.
func (m TriggerMode) OneShot() bool {
	return m == TriggerModeDate
}
