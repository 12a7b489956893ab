package repository

import (
	"context"

	"sailboat/internal/model"
	"sailboat/pkg/utils"

	"gorm.io/gorm"
)

var executionSortColumns = []string{"created_at", "start_time", "project", "version"}

// ExecutionRepository is append-only: records are never updated or deleted.
type ExecutionRepository interface {
	Create(ctx context.Context, record *model.ExecutionRecord, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id string, opts ...utils.DBOption) (*model.ExecutionRecord, error)
	List(ctx context.Context, param *model.ListExecutionParam, opts ...utils.DBOption) ([]model.ExecutionRecord, error)
}

type executionRepository struct {
	db         *gorm.DB
	maxResults int
}

func NewExecutionRepository(db *gorm.DB, maxResults int) ExecutionRepository {
	return &executionRepository{db: db, maxResults: maxResults}
}

func (r *executionRepository) Create(ctx context.Context, record *model.ExecutionRecord, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(record).Error
}

func (r *executionRepository) FindByID(ctx context.Context, id string, opts ...utils.DBOption) (*model.ExecutionRecord, error) {
	var record model.ExecutionRecord
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *executionRepository) List(ctx context.Context, param *model.ListExecutionParam, opts ...utils.DBOption) ([]model.ExecutionRecord, error) {
	var records []model.ExecutionRecord
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Model(&model.ExecutionRecord{})
	if param.Project != "" {
		db = db.Where("project = ?", param.Project)
	}
	if param.Version != "" {
		db = db.Where("version = ?", param.Version)
	}
	if param.ScheduleID != "" {
		db = db.Where("schedule_id = ?", param.ScheduleID)
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
		utils.WithOrder(param.SortBy, param.Order != model.SortAsc, executionSortColumns, "created_at"),
		utils.WithPage(param.Skip, param.Limit, r.maxResults),
	)
	if err := db.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
