package cmd

import (
	"context"

	"sailboat/config"
	"sailboat/internal/alert"
	"sailboat/internal/repository"
	"sailboat/internal/scheduler"
	"sailboat/internal/service"
	"sailboat/internal/strategy"
	"sailboat/pkg/cache"
	"sailboat/pkg/logger"
	"sailboat/pkg/postgres"
	"sailboat/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AppDependency struct {
	db        *postgres.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	echo      *echo.Echo
	cache     cache.Cache
	repo      *repository.Repository
	core      *scheduler.Core
	services  *service.Service
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc := utils.SetLocation(cfg.Scheduler.Timezone)

	// delivery failures of the relay are logged without the relay hook
	plainLog, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}
	relay := alert.NewLogRelay(cfg.Alert.Keyword, cfg.Alert.Timeout, cfg.Alert.RatePerMinute)
	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding, relay)
	if err != nil {
		return nil, err
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alert, plainLog)
	if err != nil {
		log.Error("Failed to create alert dispatcher", zap.Error(err))
		return nil, err
	}
	relay.Bind(dispatcher, plainLog)

	launcher, err := strategy.New(cfg.Executor)
	if err != nil {
		log.Error("Failed to create launch strategy", zap.Error(err))
		return nil, err
	}

	db, err := postgres.NewDB(ctx, cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	c := cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval)
	repo := repository.NewRepository(cfg, db.DB, c, log)
	core := scheduler.New(scheduler.Config{
		Location:         loc,
		MaxConcurrency:   cfg.Scheduler.MaxConcurrency,
		MisfireGraceTime: cfg.Scheduler.MisfireGraceTime,
	}, repo.TriggerStateRepo, log)

	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: goValidator.New(),
		db:        db,
		echo:      echo.New(),
		cache:     c,
		repo:      repo,
		core:      core,
		services:  service.NewService(cfg, log, repo, core, launcher, dispatcher),
	}, nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	defer func() { _ = d.log.Sync() }()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
