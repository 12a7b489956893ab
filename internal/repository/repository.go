package repository

import (
	"sailboat/config"
	"sailboat/pkg/cache"
	"sailboat/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	ScheduleRepo     ScheduleRepository
	TriggerStateRepo TriggerStateRepository
	ExecutionRepo    ExecutionRepository
	ArtifactRepo     ArtifactRepository
	LogRepo          LogRepository
	UnitOfWork       UnitOfWork
}

func NewRepository(cfg *config.Config, db *gorm.DB, c cache.Cache, log *logger.Logger) *Repository {
	return &Repository{
		ScheduleRepo:     NewScheduleRepository(db, cfg.API.MaxListResults),
		TriggerStateRepo: NewTriggerStateRepository(db),
		ExecutionRepo:    NewExecutionRepository(db, cfg.API.MaxListResults),
		ArtifactRepo: NewArtifactRepository(
			cfg.Storage.ArtifactRoot,
			cfg.Storage.ArtifactExt,
			cfg.Storage.StagingRoot,
			c,
			cfg.Cache.ArtifactTTL,
			log,
		),
		LogRepo:    NewLogRepository(cfg.Storage.LogRoot, log),
		UnitOfWork: NewUnitOfWork(db),
	}
}
