package service

import (
	"sailboat/config"
	"sailboat/internal/alert"
	"sailboat/internal/repository"
	"sailboat/internal/scheduler"
	"sailboat/internal/strategy"
	"sailboat/pkg/logger"
	"sailboat/pkg/ratelimit"
)

type Service struct {
	SchedulerService SchedulerService
	RecordService    RecordService
	Executor         Executor
	Alerter          Alerter
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	core *scheduler.Core,
	launcher strategy.LaunchStrategy,
	dispatcher alert.Dispatcher,
) *Service {
	alerter := NewAlerter(
		log,
		alert.NewFormatter(cfg.Alert),
		dispatcher,
		ratelimit.PerMinute(cfg.Alert.ProjectPerMin),
		cfg.Alert.Timeout,
	)
	executor := NewExecutor(cfg.Executor, log, repo.ArtifactRepo, repo.ExecutionRepo, repo.LogRepo, launcher, alerter)

	return &Service{
		SchedulerService: NewSchedulerService(log, core, repo.ScheduleRepo, repo.ArtifactRepo, repo.UnitOfWork, executor),
		RecordService:    NewRecordService(log, repo.ExecutionRepo, repo.ArtifactRepo, repo.LogRepo, executor),
		Executor:         executor,
		Alerter:          alerter,
	}
}
