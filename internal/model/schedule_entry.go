package model

import (
	"time"

	"gorm.io/datatypes"
)

// ScheduleEntry binds a trigger to an artifact version and its owner.
// Entries are never updated in place.
type ScheduleEntry struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"schedule_id"`
	Project     string         `gorm:"type:varchar(255);not null;index" json:"project"`
	Version     string         `gorm:"type:varchar(255);not null" json:"version"`
	TriggerMode TriggerMode    `gorm:"type:varchar(20);not null" json:"trigger_mode"`
	TriggerRule datatypes.JSON `gorm:"type:jsonb;not null" json:"trigger_rule"`
	OwnerID     string         `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	OwnerName   string         `gorm:"type:varchar(255);not null" json:"owner_name"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	NextFireAt  *time.Time     `gorm:"-" json:"next_fire_at,omitempty"`
}

func (ScheduleEntry) TableName() string {
	return "schedule_entries"
}

// TriggerContext is the snapshot of the schedule handed to an execution.
func (e ScheduleEntry) TriggerContext() TriggerContext {
	return TriggerContext{
		ScheduleID:  e.ID,
		Project:     e.Project,
		Version:     e.Version,
		TriggerMode: e.TriggerMode,
		TriggerRule: e.TriggerRule,
		OwnerID:     e.OwnerID,
		OwnerName:   e.OwnerName,
	}
}

// TriggerContext describes why an execution happened. ScheduleID is empty for
// ad-hoc runs.
type TriggerContext struct {
	ScheduleID  string         `json:"schedule_id"`
	Project     string         `json:"project"`
	Version     string         `json:"version"`
	TriggerMode TriggerMode    `json:"trigger_mode"`
	TriggerRule datatypes.JSON `json:"trigger_rule"`
	OwnerID     string         `json:"owner_id"`
	OwnerName   string         `json:"owner_name"`
	FiredAt     time.Time      `json:"fired_at"`
}
