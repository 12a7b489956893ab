package cmd

import (
	"context"
	"errors"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sailboat/internal/delivery/http"
	"sailboat/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the sailboat scheduler and API",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	// the engine must be populated from the registry before it starts firing
	armed, err := appDep.services.SchedulerService.Rehydrate(ctx)
	if err != nil {
		log.Fatalf("Failed to rehydrate schedules: %v", err)
	}
	appDep.log.Info("Schedules restored", logger.IntField("armed", armed))
	appDep.core.Start()

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, appDep.services, appDep.log)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down gracefully...")
		return apiServer.Stop()
	})

	if err := g.Wait(); err != nil {
		appDep.log.Error("Server stopped with error", logger.ErrorField(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	appDep.core.Stop(shutdownCtx)
	appDep.services.RecordService.Wait(shutdownCtx)

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
