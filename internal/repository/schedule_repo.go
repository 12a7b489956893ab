package repository

import (
	"context"

	"sailboat/internal/model"
	"sailboat/pkg/utils"

	"gorm.io/gorm"
)

var scheduleSortColumns = []string{"created_at", "project", "version", "trigger_mode"}

type ScheduleRepository interface {
	Create(ctx context.Context, entry *model.ScheduleEntry, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id string, opts ...utils.DBOption) (*model.ScheduleEntry, error)
	Delete(ctx context.Context, id string, opts ...utils.DBOption) (int64, error)
	List(ctx context.Context, param *model.ListScheduleParam, opts ...utils.DBOption) ([]model.ScheduleEntry, error)
	FindAll(ctx context.Context, opts ...utils.DBOption) ([]model.ScheduleEntry, error)
}

type scheduleRepository struct {
	db         *gorm.DB
	maxResults int
}

func NewScheduleRepository(db *gorm.DB, maxResults int) ScheduleRepository {
	return &scheduleRepository{db: db, maxResults: maxResults}
}

func (r *scheduleRepository) Create(ctx context.Context, entry *model.ScheduleEntry, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(entry).Error
}

// FindByID returns gorm.ErrRecordNotFound when no entry matches. Scope the
// lookup to an owner with utils.WithWhere.
func (r *scheduleRepository) FindByID(ctx context.Context, id string, opts ...utils.DBOption) (*model.ScheduleEntry, error) {
	var entry model.ScheduleEntry
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id string, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("id = ?", id).
		Delete(&model.ScheduleEntry{})
	return result.RowsAffected, result.Error
}

func (r *scheduleRepository) List(ctx context.Context, param *model.ListScheduleParam, opts ...utils.DBOption) ([]model.ScheduleEntry, error) {
	var entries []model.ScheduleEntry
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Model(&model.ScheduleEntry{})
	if param.Project != "" {
		db = db.Where("project = ?", param.Project)
	}
	if param.Version != "" {
		db = db.Where("version = ?", param.Version)
	}
	if param.OwnerID != "" {
		db = db.Where("owner_id = ?", param.OwnerID)
	}
	if param.OwnerName != "" {
		db = db.Where("owner_name = ?", param.OwnerName)
	}
	if param.TriggerMode != "" {
		db = db.Where("trigger_mode = ?", param.TriggerMode)
	}
	db = utils.ApplyOptions(db,
		utils.WithOrder(param.SortBy, param.Order == model.SortDesc, scheduleSortColumns, "created_at"),
		utils.WithPage(param.Skip, param.Limit, r.maxResults),
	)
	if err := db.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *scheduleRepository) FindAll(ctx context.Context, opts ...utils.DBOption) ([]model.ScheduleEntry, error) {
	var entries []model.ScheduleEntry
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
