package http

import (
	"net/http"

	"sailboat/internal/dto"
	"sailboat/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupLogs(base *echo.Group) {
	logs := base.Group("/logs")
	logs.GET("", h.scoped(h.readLog))
	logs.DELETE("", h.scoped(h.deleteLogs))
}

func (h *HttpAPIHandler) readLog(c echo.Context, scope model.OwnerScope) error {
	req := new(dto.ReadLogRequest)
	if !h.bind(c, req) {
		return nil
	}

	log, err := h.service.RecordService.ReadLog(c.Request().Context(), req.Project, req.ExecutionID, scope)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.LogResponse{
		Project:     req.Project,
		ExecutionID: req.ExecutionID,
		Content:     log.Content,
		Size:        log.Size,
	}))
}

func (h *HttpAPIHandler) deleteLogs(c echo.Context, scope model.OwnerScope) error {
	req := new(model.DeleteLogsParam)
	if !h.bind(c, req) {
		return nil
	}

	deleted, err := h.service.RecordService.DeleteLogs(c.Request().Context(), *req, scope)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.DeleteLogsResponse{Project: req.Project, Deleted: deleted}))
}
