package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sailboat/internal/model"
	"sailboat/internal/repository"
	"sailboat/pkg/logger"
	"sailboat/pkg/utils"

	"gorm.io/gorm"
)

// RecordService exposes execution history, log artifacts and ad-hoc runs.
type RecordService interface {
	List(ctx context.Context, param model.ListExecutionParam, scope model.OwnerScope) ([]model.ExecutionRecord, error)
	// RunAdHoc checks the artifact and starts a run in the background. The
	// resulting record has no schedule id.
	RunAdHoc(ctx context.Context, param model.RunParam, scope model.OwnerScope) error
	ReadLog(ctx context.Context, project, executionID string, scope model.OwnerScope) (*repository.ExecutionLog, error)
	DeleteLogs(ctx context.Context, param model.DeleteLogsParam, scope model.OwnerScope) ([]string, error)
	// Wait blocks until background runs finish or ctx is done.
	Wait(ctx context.Context)
}

type recordService struct {
	log           *logger.Logger
	executionRepo repository.ExecutionRepository
	artifactRepo  repository.ArtifactRepository
	logRepo       repository.LogRepository
	executor      Executor
	wg            sync.WaitGroup
}

func NewRecordService(
	log *logger.Logger,
	executionRepo repository.ExecutionRepository,
	artifactRepo repository.ArtifactRepository,
	logRepo repository.LogRepository,
	executor Executor,
) RecordService {
	return &recordService{
		log:           log,
		executionRepo: executionRepo,
		artifactRepo:  artifactRepo,
		logRepo:       logRepo,
		executor:      executor,
	}
}

func (s *recordService) List(ctx context.Context, param model.ListExecutionParam, scope model.OwnerScope) ([]model.ExecutionRecord, error) {
	param.ApplyScope(scope)
	records, err := s.executionRepo.List(ctx, &param)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", err)
	}
	return records, nil
}

func (s *recordService) RunAdHoc(ctx context.Context, param model.RunParam, scope model.OwnerScope) error {
	if _, err := s.artifactRepo.Locate(ctx, param.Project, param.Version); err != nil {
		return err
	}

	tc := model.TriggerContext{
		Project:   param.Project,
		Version:   param.Version,
		OwnerID:   scope.OwnerID,
		OwnerName: scope.OwnerName,
		FiredAt:   utils.TimeNow(),
	}
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	utils.GoSafe(func() {
		defer s.wg.Done()
		if _, err := s.executor.Run(runCtx, param.Project, param.Version, tc); err != nil {
			s.log.ErrorContextWithAlert(runCtx, "Ad-hoc run failed",
				logger.ErrorField(err),
				logger.StringField("project", param.Project),
				logger.StringField("version", param.Version),
			)
		}
	})
	s.log.InfoContext(ctx, "Ad-hoc run started", logger.StringField("project", param.Project), logger.StringField("version", param.Version))
	return nil
}

func (s *recordService) ReadLog(ctx context.Context, project, executionID string, scope model.OwnerScope) (*repository.ExecutionLog, error) {
	if !scope.SuperUser {
		record, err := s.executionRepo.FindByID(ctx, executionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: execution %s", ErrNotFound, executionID)
			}
			return nil, fmt.Errorf("failed to find execution record: %w", err)
		}
		if record.OwnerID != scope.OwnerID || record.OwnerName != scope.OwnerName || record.Project != project {
			return nil, fmt.Errorf("%w: %w: execution %s", ErrNotFound, ErrNotOwner, executionID)
		}
	}
	return s.logRepo.Read(ctx, project, executionID)
}

func (s *recordService) DeleteLogs(ctx context.Context, param model.DeleteLogsParam, scope model.OwnerScope) ([]string, error) {
	if !scope.SuperUser {
		return nil, ErrNoAuth
	}
	deleted, err := s.logRepo.Delete(ctx, param.Project, param.ExecutionIDs)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "Execution logs deleted",
		logger.StringField("project", param.Project),
		logger.IntField("requested", len(param.ExecutionIDs)),
		logger.IntField("deleted", len(deleted)),
	)
	return deleted, nil
}

func (s *recordService) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Timeout while waiting for ad-hoc runs")
	}
}
