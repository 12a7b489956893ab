package middleware

import (
	"net/http"

	"sailboat/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewRequestLogger writes one entry per request. 5xx responses log at error
// level, the rest at debug.
func NewRequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				logger.StringField("method", v.Method),
				logger.StringField("uri", v.URI),
				logger.IntField("status", v.Status),
				logger.DurationField("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.ErrorField(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				log.ErrorContext(c.Request().Context(), "HTTP request failed", fields...)
				return nil
			}
			log.DebugContext(c.Request().Context(), "HTTP request", fields...)
			return nil
		},
	})
}
