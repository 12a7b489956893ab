package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sailboat/internal/model"
	"sailboat/internal/repository"
	"sailboat/internal/scheduler"
	"sailboat/pkg/logger"
	"sailboat/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SchedulerService keeps the schedule registry and the trigger engine in step.
type SchedulerService interface {
	Register(ctx context.Context, param model.RegisterScheduleParam, scope model.OwnerScope) (*model.ScheduleEntry, error)
	Remove(ctx context.Context, scheduleID string, scope model.OwnerScope) error
	List(ctx context.Context, param model.ListScheduleParam, scope model.OwnerScope) ([]model.ScheduleEntry, error)
	// Rehydrate arms every registry entry and drops engine state that has no
	// entry. It must run before the engine is started.
	Rehydrate(ctx context.Context) (int, error)
}

type schedulerService struct {
	log          *logger.Logger
	core         *scheduler.Core
	scheduleRepo repository.ScheduleRepository
	artifactRepo repository.ArtifactRepository
	uow          repository.UnitOfWork
	executor     Executor
}

func NewSchedulerService(
	log *logger.Logger,
	core *scheduler.Core,
	scheduleRepo repository.ScheduleRepository,
	artifactRepo repository.ArtifactRepository,
	uow repository.UnitOfWork,
	executor Executor,
) SchedulerService {
	return &schedulerService{
		log:          log,
		core:         core,
		scheduleRepo: scheduleRepo,
		artifactRepo: artifactRepo,
		uow:          uow,
		executor:     executor,
	}
}

func (s *schedulerService) Register(ctx context.Context, param model.RegisterScheduleParam, scope model.OwnerScope) (*model.ScheduleEntry, error) {
	if !param.TriggerMode.Valid() {
		return nil, fmt.Errorf("%w: unknown trigger mode %q", scheduler.ErrInvalidTrigger, param.TriggerMode)
	}
	if err := s.core.Validate(param.TriggerMode, param.TriggerRule); err != nil {
		return nil, err
	}
	if _, err := s.artifactRepo.Locate(ctx, param.Project, param.Version); err != nil {
		return nil, err
	}

	entry := &model.ScheduleEntry{
		ID:          uuid.NewString(),
		Project:     param.Project,
		Version:     param.Version,
		TriggerMode: param.TriggerMode,
		TriggerRule: datatypes.JSON(param.TriggerRule),
		OwnerID:     scope.OwnerID,
		OwnerName:   scope.OwnerName,
		CreatedAt:   utils.TimeNow(),
	}

	armed := false
	err := s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		if err := s.scheduleRepo.Create(ctx, entry, opts...); err != nil {
			return fmt.Errorf("failed to create schedule entry: %w", err)
		}
		if err := s.core.Arm(ctx, s.definition(*entry, nil, nil), s.fire); err != nil {
			return err
		}
		armed = true
		return nil
	})
	if err != nil {
		if armed {
			if derr := s.core.Disarm(ctx, entry.ID); derr != nil {
				s.log.ErrorContextWithAlert(ctx, "Failed to disarm trigger after rollback", logger.ErrorField(derr), logger.StringField("schedule_id", entry.ID))
			}
		}
		return nil, err
	}

	if next, err := s.core.NextFireTime(entry.ID); err == nil && !next.IsZero() {
		entry.NextFireAt = &next
	}
	s.log.InfoContext(ctx, "Schedule registered",
		logger.StringField("schedule_id", entry.ID),
		logger.StringField("project", entry.Project),
		logger.StringField("version", entry.Version),
		logger.StringField("trigger_mode", string(entry.TriggerMode)),
		logger.StringField("owner_id", entry.OwnerID),
	)
	return entry, nil
}

func (s *schedulerService) Remove(ctx context.Context, scheduleID string, scope model.OwnerScope) error {
	var removed *model.ScheduleEntry
	disarmed := false
	err := s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		entry, err := s.scheduleRepo.FindByID(ctx, scheduleID, opts...)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: schedule %s", ErrNotFound, scheduleID)
			}
			return fmt.Errorf("failed to find schedule entry: %w", err)
		}
		if !scope.SuperUser && (entry.OwnerID != scope.OwnerID || entry.OwnerName != scope.OwnerName) {
			return fmt.Errorf("%w: %w: schedule %s", ErrNotFound, ErrNotOwner, scheduleID)
		}
		if _, err := s.scheduleRepo.Delete(ctx, scheduleID, opts...); err != nil {
			return fmt.Errorf("failed to delete schedule entry: %w", err)
		}
		if err := s.core.Disarm(ctx, scheduleID); err != nil {
			if !errors.Is(err, scheduler.ErrJobNotFound) {
				return err
			}
			s.log.WarnContext(ctx, "Registry entry had no armed trigger", logger.StringField("schedule_id", scheduleID))
		} else {
			disarmed = true
		}
		removed = entry
		return nil
	})
	if err != nil {
		if disarmed && removed != nil {
			if aerr := s.core.Arm(ctx, s.definition(*removed, nil, nil), s.fire); aerr != nil {
				s.log.ErrorContextWithAlert(ctx, "Failed to re-arm trigger after rollback", logger.ErrorField(aerr), logger.StringField("schedule_id", scheduleID))
			}
		}
		return err
	}

	s.log.InfoContext(ctx, "Schedule removed", logger.StringField("schedule_id", scheduleID), logger.StringField("owner_id", scope.OwnerID))
	return nil
}

func (s *schedulerService) List(ctx context.Context, param model.ListScheduleParam, scope model.OwnerScope) ([]model.ScheduleEntry, error) {
	param.ApplyScope(scope)
	entries, err := s.scheduleRepo.List(ctx, &param)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule entries: %w", err)
	}
	for i := range entries {
		if next, err := s.core.NextFireTime(entries[i].ID); err == nil && !next.IsZero() {
			entries[i].NextFireAt = utils.ToPointer(next)
		}
	}
	return entries, nil
}

func (s *schedulerService) Rehydrate(ctx context.Context) (int, error) {
	entries, err := s.scheduleRepo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load schedule entries: %w", err)
	}
	states, err := s.core.StoredStates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load trigger states: %w", err)
	}
	stateByID := make(map[string]model.TriggerState, len(states))
	for _, st := range states {
		stateByID[st.ScheduleID] = st
	}

	armed := 0
	for _, entry := range entries {
		if !utils.ShouldContinue(ctx, s.log) {
			return armed, ctx.Err()
		}
		var anchor *time.Time
		var lastFire *time.Time
		if st, ok := stateByID[entry.ID]; ok {
			anchor = utils.ToPointer(st.Anchor)
			if st.LastFireAt.Valid {
				lastFire = utils.ToPointer(st.LastFireAt.Time)
			}
		}
		delete(stateByID, entry.ID)

		err := s.core.Restore(ctx, s.definition(entry, anchor, lastFire), s.fire)
		switch {
		case err == nil:
			armed++
		case errors.Is(err, scheduler.ErrExhausted):
			s.log.InfoContext(ctx, "Dropping exhausted one-shot schedule", logger.StringField("schedule_id", entry.ID), logger.ErrorField(err))
			s.cleanup(ctx, entry.ID)
		default:
			s.log.ErrorContextWithAlert(ctx, "Failed to restore schedule", logger.ErrorField(err), logger.StringField("schedule_id", entry.ID))
		}
	}

	for id := range stateByID {
		if err := s.core.DropState(ctx, id); err != nil {
			s.log.WarnContext(ctx, "Failed to drop orphaned trigger state", logger.ErrorField(err), logger.StringField("schedule_id", id))
		}
	}

	s.log.InfoContext(ctx, "Scheduler rehydrated", logger.IntField("entries", len(entries)), logger.IntField("armed", armed))
	return armed, nil
}

func (s *schedulerService) definition(entry model.ScheduleEntry, anchor, lastFire *time.Time) scheduler.Definition {
	def := scheduler.Definition{
		ScheduleID: entry.ID,
		Mode:       entry.TriggerMode,
		Rule:       entry.TriggerRule,
		Anchor:     entry.CreatedAt,
		LastFireAt: lastFire,
		Args:       entry,
	}
	if anchor != nil {
		def.Anchor = *anchor
	}
	return def
}

// cleanup removes a finished one-shot schedule from the registry and the engine's store.
func (s *schedulerService) cleanup(ctx context.Context, scheduleID string) {
	if _, err := s.scheduleRepo.Delete(ctx, scheduleID); err != nil {
		s.log.ErrorContext(ctx, "Failed to delete finished schedule entry", logger.ErrorField(err), logger.StringField("schedule_id", scheduleID))
	}
	if err := s.core.DropState(ctx, scheduleID); err != nil {
		s.log.WarnContext(ctx, "Failed to drop trigger state", logger.ErrorField(err), logger.StringField("schedule_id", scheduleID))
	}
}

func (s *schedulerService) fire(ctx context.Context, f scheduler.Fire) {
	entry, ok := f.Args.(model.ScheduleEntry)
	if !ok {
		s.log.ErrorContext(ctx, "Fire without schedule entry", logger.StringField("schedule_id", f.ScheduleID))
		return
	}
	if f.Final {
		s.cleanup(ctx, entry.ID)
	}

	tc := entry.TriggerContext()
	tc.FiredAt = f.FiredAt
	if _, err := s.executor.Run(ctx, entry.Project, entry.Version, tc); err != nil {
		if IsRunSkipped(err) {
			s.log.ErrorContextWithAlert(ctx, "Scheduled run skipped",
				logger.ErrorField(err),
				logger.StringField("schedule_id", entry.ID),
				logger.StringField("project", entry.Project),
				logger.StringField("version", entry.Version),
			)
			return
		}
		s.log.ErrorContext(ctx, "Scheduled run failed", logger.ErrorField(err), logger.StringField("schedule_id", entry.ID))
	}
}
