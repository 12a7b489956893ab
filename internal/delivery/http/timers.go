package http

import (
	"net/http"

	"sailboat/internal/dto"
	"sailboat/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTimers(base *echo.Group) {
	timers := base.Group("/timers")
	timers.POST("", h.scoped(h.registerTimer))
	timers.GET("", h.scoped(h.listTimers))
	timers.DELETE("", h.scoped(h.removeTimer))
}

func (h *HttpAPIHandler) registerTimer(c echo.Context, scope model.OwnerScope) error {
	req := new(model.RegisterScheduleParam)
	if !h.bind(c, req) {
		return nil
	}

	entry, err := h.service.SchedulerService.Register(c.Request().Context(), *req, scope)
	if err != nil {
		return h.fail(c, err)
	}
	return created(c, entry)
}

func (h *HttpAPIHandler) listTimers(c echo.Context, scope model.OwnerScope) error {
	req := new(model.ListScheduleParam)
	if !h.bind(c, req) {
		return nil
	}

	entries, err := h.service.SchedulerService.List(c.Request().Context(), *req, scope)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(entries))
}

func (h *HttpAPIHandler) removeTimer(c echo.Context, scope model.OwnerScope) error {
	req := new(dto.RemoveScheduleRequest)
	if !h.bind(c, req) {
		return nil
	}

	if err := h.service.SchedulerService.Remove(c.Request().Context(), req.ScheduleID, scope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"schedule_id": req.ScheduleID}))
}
