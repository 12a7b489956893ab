package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"sailboat/config"
	"sailboat/internal/model"
	"sailboat/internal/repository"
	"sailboat/internal/strategy"
	"sailboat/pkg/logger"
	"sailboat/pkg/metrics"
	"sailboat/pkg/utils"

	"github.com/google/uuid"
)

// Executor runs one artifact version in a worker process and records the run.
type Executor interface {
	Run(ctx context.Context, project, version string, tc model.TriggerContext) (*model.ExecutionRecord, error)
}

type executor struct {
	cfg           config.Executor
	log           *logger.Logger
	artifactRepo  repository.ArtifactRepository
	executionRepo repository.ExecutionRepository
	logRepo       repository.LogRepository
	launcher      strategy.LaunchStrategy
	alerter       Alerter
}

func NewExecutor(
	cfg config.Executor,
	log *logger.Logger,
	artifactRepo repository.ArtifactRepository,
	executionRepo repository.ExecutionRepository,
	logRepo repository.LogRepository,
	launcher strategy.LaunchStrategy,
	alerter Alerter,
) Executor {
	return &executor{
		cfg:           cfg,
		log:           log,
		artifactRepo:  artifactRepo,
		executionRepo: executionRepo,
		logRepo:       logRepo,
		launcher:      launcher,
		alerter:       alerter,
	}
}

// Run returns repository.ErrArtifactNotFound without writing a record when
// the artifact cannot be resolved. Once a launch was attempted the record is
// always written, whatever the exit code or stderr content.
func (e *executor) Run(ctx context.Context, project, version string, tc model.TriggerContext) (*model.ExecutionRecord, error) {
	path, err := e.artifactRepo.Locate(ctx, project, version)
	if err != nil {
		return nil, err
	}

	staged, cleanup, err := e.artifactRepo.Stage(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	executionID := uuid.NewString()
	log := e.log.With(
		logger.StringField("execution_id", executionID),
		logger.StringField("project", project),
		logger.StringField("version", version),
		logger.StringField("schedule_id", tc.ScheduleID),
	)
	log.InfoContext(ctx, "Executing artifact", logger.StringField("launch_type", string(e.launcher.GetType())))

	runCtx := ctx
	if e.cfg.WorkerTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.WorkerTimeout)
		defer cancel()
	}

	result, launchErr := strategy.Run(runCtx, e.launcher, strategy.Target{
		ExecutionID: executionID,
		Project:     project,
		Version:     version,
		Artifact:    staged,
		WorkDir:     filepath.Dir(staged),
	})
	if launchErr != nil {
		log.ErrorContextWithAlert(ctx, "Failed to launch worker", logger.ErrorField(fmt.Errorf("%w: %v", ErrWorkerLaunch, launchErr)))
	}

	stdout := e.decode(ctx, log, "stdout", result.Stdout)
	stderr := e.decode(ctx, log, "stderr", result.Stderr)

	outcome := model.ResultSuccess
	switch {
	case launchErr != nil:
		outcome = model.ResultLaunchError
	case stderr != "":
		outcome = model.ResultStderr
	}

	duration := result.Duration()
	record := &model.ExecutionRecord{
		ID:             executionID,
		Project:        project,
		Version:        version,
		TriggerMode:    tc.TriggerMode,
		TriggerRule:    tc.TriggerRule,
		StartTime:      result.StartTime,
		EndTime:        result.EndTime,
		Duration:       utils.FormatDuration(duration),
		DurationMillis: duration.Milliseconds(),
		ExitCode:       result.ExitCode,
		Result:         outcome,
		OwnerID:        tc.OwnerID,
		OwnerName:      tc.OwnerName,
		CreatedAt:      utils.TimeNow(),
	}
	if tc.ScheduleID != "" {
		record.ScheduleID = utils.ToPointer(tc.ScheduleID)
	}

	// the run happened, so persistence must not be cut short by shutdown
	persistCtx := context.WithoutCancel(ctx)
	var persistErr error
	if err := e.executionRepo.Create(persistCtx, record); err != nil {
		persistErr = fmt.Errorf("failed to persist execution record: %w", err)
		log.ErrorContextWithAlert(ctx, "Failed to persist execution record", logger.ErrorField(err))
	}
	if _, err := e.logRepo.Write(persistCtx, project, executionID, []byte(stdout), []byte(stderr)); err != nil {
		log.ErrorContext(ctx, "Failed to write execution log", logger.ErrorField(err))
	}

	metrics.Executions.WithLabelValues(string(outcome)).Inc()
	metrics.ExecutionDuration.Observe(duration.Seconds())

	if stderr != "" && e.alerter != nil {
		occurredAt := result.EndTime
		alertCtx := logger.NewContext(context.Background(), log)
		utils.GoSafe(func() {
			_ = e.alerter.Alert(alertCtx, stderr, occurredAt, tc)
		})
	}

	log.InfoContext(ctx, "Execution finished",
		logger.StringField("result", string(outcome)),
		logger.IntField("exit_code", result.ExitCode),
		logger.StringField("duration", record.Duration),
	)
	return record, persistErr
}

// decode substitutes invalid UTF-8 with the valid remainder instead of failing.
func (e *executor) decode(ctx context.Context, log *logger.Logger, stream string, data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	log.WarnContext(ctx, "Captured output is not valid UTF-8",
		logger.StringField("stream", stream),
		logger.IntField("bytes", len(data)),
	)
	return utils.CleanToValidUTF8(string(data))
}

// IsRunSkipped reports whether err means the run never happened.
func IsRunSkipped(err error) bool {
	return errors.Is(err, repository.ErrArtifactNotFound) || errors.Is(err, repository.ErrInvalidPath)
}
