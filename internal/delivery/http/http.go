package http

import (
	"context"
	"errors"
	"net/http"

	"sailboat/internal/dto"
	"sailboat/internal/model"
	"sailboat/internal/repository"
	"sailboat/internal/scheduler"
	"sailboat/internal/service"
	"sailboat/pkg/common"
	"sailboat/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
	log       *logger.Logger
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, validator *goValidator.Validate, service *service.Service, log *logger.Logger) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		validator: validator,
		service:   service,
		log:       log,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := h.echo.Group("/api/v1")
	h.SetupTimers(v1)
	h.SetupRecords(v1)
	h.SetupLogs(v1)
}

// ownerScope reads the caller identity set by the authentication proxy.
func ownerScope(c echo.Context) (model.OwnerScope, bool) {
	scope := model.OwnerScope{
		OwnerID:   c.Request().Header.Get(common.HEADER_OWNER_ID),
		OwnerName: c.Request().Header.Get(common.HEADER_OWNER_NAME),
		SuperUser: c.Request().Header.Get(common.HEADER_OWNER_ROLE) == common.ROLE_SUPERUSER,
	}
	if scope.OwnerID == "" || scope.OwnerName == "" {
		return scope, false
	}
	return scope, true
}

// bind decodes and validates the request into req, answering the client itself on failure.
func (h *HttpAPIHandler) bind(c echo.Context, req interface{}) bool {
	if err := c.Bind(req); err != nil {
		_ = h.respond(c, dto.StatusJsonDecodeError, err.Error())
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		status := dto.StatusParameterError
		var verrs goValidator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "required" {
					status = dto.StatusMissingParameter
					break
				}
			}
		}
		_ = h.respond(c, status, err.Error())
		return false
	}
	return true
}

func (h *HttpAPIHandler) respond(c echo.Context, status dto.StatusCode, data interface{}) error {
	return c.JSON(status.HTTPStatus(), dto.NewStatusResponse(status, data))
}

func (h *HttpAPIHandler) fail(c echo.Context, err error) error {
	var status dto.StatusCode
	switch {
	case errors.Is(err, service.ErrNotOwner):
		status = dto.StatusIsNotYours
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrArtifactNotFound),
		errors.Is(err, repository.ErrLogNotFound):
		status = dto.StatusNotFound
	case errors.Is(err, service.ErrNoAuth):
		status = dto.StatusNoAuth
	case errors.Is(err, repository.ErrInvalidPath):
		status = dto.StatusPathError
	case errors.Is(err, scheduler.ErrInvalidTrigger):
		status = dto.StatusParameterError
	default:
		h.log.ErrorContext(c.Request().Context(), "Request failed",
			logger.ErrorField(err),
			logger.StringField("path", c.Path()),
		)
		return h.respond(c, dto.StatusInternalError, nil)
	}
	return h.respond(c, status, map[string]string{"reason": err.Error()})
}

// scoped resolves the caller and runs next with it.
func (h *HttpAPIHandler) scoped(next func(c echo.Context, scope model.OwnerScope) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		scope, ok := ownerScope(c)
		if !ok {
			return h.respond(c, dto.StatusNoAuth, nil)
		}
		return next(c, scope)
	}
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}
