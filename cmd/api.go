package cmd

import (
	"context"
	"fmt"
	"time"

	"sailboat/internal/delivery/http"
	"sailboat/pkg/logger"
	"sailboat/pkg/middleware"

	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

const httpShutdownTimeout = 10 * time.Second

// HTTPServer serves the timers, records and logs API of one process.
type HTTPServer struct {
	ctx     context.Context
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(ctx context.Context, appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		ctx:     ctx,
		appDep:  appDep,
		handler: handler,
	}
}

// Start blocks until the server stops. After Stop it returns http.ErrServerClosed.
func (s *HTTPServer) Start() error {
	api := s.appDep.cfg.API
	s.appDep.log.Info("Starting HTTP server",
		logger.IntField("port", api.Port),
		logger.IntField("rate_per_second", api.RatePerSecond),
		logger.IntField("max_list_results", api.MaxListResults),
	)

	e := s.appDep.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.NewRequestLogger(s.appDep.log))
	e.Use(middleware.NewRateLimiterMiddleware(api.RatePerSecond, api.RateBurst))
	s.handler.SetupRoutes()

	return e.Start(fmt.Sprintf(":%d", api.Port))
}

// Stop drains in-flight requests. It ignores cancellation of the server
// context, which is usually what triggered the stop.
func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), httpShutdownTimeout)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Error("Error When Stop HTTP server", logger.ErrorField(err))
		return err
	}
	s.appDep.log.Info("HTTP server stopped successfully")
	return nil
}
