package model

import (
	"time"

	"gorm.io/datatypes"
)

type ExecutionResult string

const (
	ResultSuccess     ExecutionResult = "success"
	ResultStderr      ExecutionResult = "stderr"
	ResultLaunchError ExecutionResult = "launch_error"
)

// ExecutionRecord is the immutable log of one completed run.
type ExecutionRecord struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"execution_id"`
	ScheduleID     *string         `gorm:"type:varchar(36);index" json:"schedule_id,omitempty"`
	Project        string          `gorm:"type:varchar(255);not null;index" json:"project"`
	Version        string          `gorm:"type:varchar(255);not null" json:"version"`
	TriggerMode    TriggerMode     `gorm:"type:varchar(20)" json:"trigger_mode"`
	TriggerRule    datatypes.JSON  `gorm:"type:jsonb" json:"trigger_rule"`
	StartTime      time.Time       `gorm:"not null" json:"start_time"`
	EndTime        time.Time       `gorm:"not null" json:"end_time"`
	Duration       string          `gorm:"type:varchar(32);not null" json:"duration"`
	DurationMillis int64           `gorm:"not null" json:"duration_ms"`
	ExitCode       int             `gorm:"not null" json:"exit_code"`
	Result         ExecutionResult `gorm:"type:varchar(20);not null" json:"result"`
	OwnerID        string          `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	OwnerName      string          `gorm:"type:varchar(255);not null" json:"owner_name"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (ExecutionRecord) TableName() string {
	return "execution_records"
}
