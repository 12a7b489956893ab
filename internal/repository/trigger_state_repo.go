package repository

import (
	"context"
	"time"

	"sailboat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TriggerStateRepository stores the scheduler engine's bookkeeping. It
// satisfies scheduler.Store.
type TriggerStateRepository interface {
	Save(ctx context.Context, state *model.TriggerState) error
	MarkFired(ctx context.Context, scheduleID string, firedAt time.Time, next *time.Time) error
	Delete(ctx context.Context, scheduleID string) error
	List(ctx context.Context) ([]model.TriggerState, error)
}

type triggerStateRepository struct {
	db *gorm.DB
}

func NewTriggerStateRepository(db *gorm.DB) TriggerStateRepository {
	return &triggerStateRepository{db: db}
}

func (r *triggerStateRepository) Save(ctx context.Context, state *model.TriggerState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "schedule_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"trigger_mode", "trigger_rule", "anchor", "next_fire_at", "updated_at"}),
		}).
		Create(state).Error
}

func (r *triggerStateRepository) MarkFired(ctx context.Context, scheduleID string, firedAt time.Time, next *time.Time) error {
	updates := map[string]interface{}{
		"last_fire_at": firedAt,
		"next_fire_at": next,
		"fire_count":   gorm.Expr("fire_count + ?", 1),
	}
	return r.db.WithContext(ctx).
		Model(&model.TriggerState{}).
		Where("schedule_id = ?", scheduleID).
		Updates(updates).Error
}

func (r *triggerStateRepository) Delete(ctx context.Context, scheduleID string) error {
	return r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Delete(&model.TriggerState{}).Error
}

func (r *triggerStateRepository) List(ctx context.Context) ([]model.TriggerState, error) {
	var states []model.TriggerState
	if err := r.db.WithContext(ctx).Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}
