package dto

import "net/http"

type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewStatusResponse(status StatusCode, data interface{}) *BaseResponse {
	return NewBaseResponse(status.Code, status.Message, data)
}

func NewBadRequestResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusBadRequest, message, nil)
}

func NewSuccessResponse(data interface{}) *BaseResponse {
	return NewStatusResponse(StatusSuccess, data)
}

type LogResponse struct {
	Project     string `json:"project"`
	ExecutionID string `json:"execution_id"`
	Content     string `json:"content"`
	Size        string `json:"size"`
}

type DeleteLogsResponse struct {
	Project string   `json:"project"`
	Deleted []string `json:"deleted"`
}

type RemoveScheduleRequest struct {
	ScheduleID string `json:"schedule_id" query:"schedule_id" validate:"required"`
}

type ReadLogRequest struct {
	Project     string `query:"project" validate:"required"`
	ExecutionID string `query:"execution_id" validate:"required"`
}
