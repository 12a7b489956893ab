package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// TriggerState is the scheduling engine's own bookkeeping for an armed
// trigger, kept apart from the schedule registry.
type TriggerState struct {
	ScheduleID  string         `gorm:"type:varchar(36);primaryKey"`
	TriggerMode TriggerMode    `gorm:"type:varchar(20);not null"`
	TriggerRule datatypes.JSON `gorm:"type:jsonb;not null"`
	Anchor      time.Time      `gorm:"not null"`
	NextFireAt  sql.NullTime
	LastFireAt  sql.NullTime
	FireCount   int64          `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (TriggerState) TableName() string {
	return "trigger_states"
}
