package model

import "encoding/json"

// OwnerScope is the caller identity used to scope registry and record access.
type OwnerScope struct {
	OwnerID   string
	OwnerName string
	SuperUser bool
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type RegisterScheduleParam struct {
	Project     string          `json:"project" validate:"required"`
	Version     string          `json:"version" validate:"required"`
	TriggerMode TriggerMode     `json:"trigger_mode" validate:"required,oneof=date interval cron"`
	TriggerRule json.RawMessage `json:"trigger_rule" validate:"required"`
}

type RunParam struct {
	Project string `json:"project" validate:"required"`
	Version string `json:"version" validate:"required"`
}

type DeleteLogsParam struct {
	Project      string   `json:"project" validate:"required"`
	ExecutionIDs []string `json:"execution_ids" validate:"required,min=1,dive,required"`
}

type ListScheduleParam struct {
	Project     string      `json:"project" query:"project"`
	Version     string      `json:"version" query:"version"`
	OwnerID     string      `json:"owner_id" query:"owner_id"`
	OwnerName   string      `json:"owner_name" query:"owner_name"`
	TriggerMode TriggerMode `json:"trigger_mode" query:"trigger_mode" validate:"omitempty,oneof=date interval cron"`
	Limit       int         `json:"limit" query:"limit" validate:"gte=0"`
	Skip        int         `json:"skip" query:"skip" validate:"gte=0"`
	SortBy      string      `json:"sort_by" query:"sort_by" validate:"omitempty,oneof=created_at project version trigger_mode"`
	Order       SortOrder   `json:"order" query:"order" validate:"omitempty,oneof=asc desc"`
}

type ListExecutionParam struct {
	Project     string      `json:"project" query:"project"`
	Version     string      `json:"version" query:"version"`
	ScheduleID  string      `json:"schedule_id" query:"schedule_id"`
	OwnerID     string      `json:"owner_id" query:"owner_id"`
	OwnerName   string      `json:"owner_name" query:"owner_name"`
	TriggerMode TriggerMode `json:"trigger_mode" query:"trigger_mode" validate:"omitempty,oneof=date interval cron"`
	Limit       int         `json:"limit" query:"limit" validate:"gte=0"`
	Skip        int         `json:"skip" query:"skip" validate:"gte=0"`
	SortBy      string      `json:"sort_by" query:"sort_by" validate:"omitempty,oneof=created_at start_time project version"`
	Order       SortOrder   `json:"order" query:"order" validate:"omitempty,oneof=asc desc"`
}

// ApplyScope narrows a filter to the caller's own rows unless the caller is a superuser.
func (p *ListScheduleParam) ApplyScope(scope OwnerScope) {
	if scope.SuperUser {
		return
	}
	p.OwnerID = scope.OwnerID
	p.OwnerName = scope.OwnerName
}

func (p *ListExecutionParam) ApplyScope(scope OwnerScope) {
	if scope.SuperUser {
		return
	}
	p.OwnerID = scope.OwnerID
	p.OwnerName = scope.OwnerName
}
