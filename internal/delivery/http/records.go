package http

import (
	"net/http"

	"sailboat/internal/dto"
	"sailboat/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupRecords(base *echo.Group) {
	records := base.Group("/records")
	records.GET("", h.scoped(h.listRecords))
	records.POST("/run", h.scoped(h.runAdHoc))
}

func (h *HttpAPIHandler) listRecords(c echo.Context, scope model.OwnerScope) error {
	req := new(model.ListExecutionParam)
	if !h.bind(c, req) {
		return nil
	}

	records, err := h.service.RecordService.List(c.Request().Context(), *req, scope)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(records))
}

func (h *HttpAPIHandler) runAdHoc(c echo.Context, scope model.OwnerScope) error {
	req := new(model.RunParam)
	if !h.bind(c, req) {
		return nil
	}

	if err := h.service.RecordService.RunAdHoc(c.Request().Context(), *req, scope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.NewSuccessResponse(req))
}
