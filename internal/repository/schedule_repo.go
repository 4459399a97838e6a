package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

// ScheduleRepository 排班表数据访问接口
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Schedule, error)
	List(ctx context.Context, status string) ([]model.Schedule, error)
	Update(ctx context.Context, schedule *model.Schedule) error
	// UpdateStatus 写入状态流转结果，schedule.Version 为流转后的版本号
	UpdateStatus(ctx context.Context, schedule *model.Schedule, expectedVersion int) error
	// BumpVersion 分配变更后递增版本号
	BumpVersion(ctx context.Context, id string, expectedVersion int, operatorID *string) (int, error)
	Delete(ctx context.Context, id string) error
}

// ── Schedule Repository 实现 ──

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if len(ids) == 0 {
		return schedules, nil
	}
	err := r.db.WithContext(ctx).
		Where("schedule_id IN ?", ids).
		Order("start_date ASC, schedule_id ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepo) List(ctx context.Context, status string) ([]model.Schedule, error) {
	var schedules []model.Schedule
	query := r.db.WithContext(ctx).Model(&model.Schedule{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("start_date DESC, schedule_id ASC").Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepo) Update(ctx context.Context, schedule *model.Schedule) error {
	oldVersion := schedule.Version
	result := r.db.WithContext(ctx).
		Model(schedule).
		Where("schedule_id = ? AND version = ?", schedule.ScheduleID, oldVersion).
		Updates(map[string]interface{}{
			"name":                schedule.Name,
			"description":         schedule.Description,
			"start_date":          schedule.StartDate,
			"end_date":            schedule.EndDate,
			"auto_assign_enabled": schedule.AutoAssignEnabled,
			"updated_by":          schedule.UpdatedBy,
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	schedule.Version = oldVersion + 1
	return nil
}

func (r *scheduleRepo) UpdateStatus(ctx context.Context, schedule *model.Schedule, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("schedule_id = ? AND version = ?", schedule.ScheduleID, expectedVersion).
		Updates(map[string]interface{}{
			"status":       schedule.Status,
			"submitted_at": schedule.SubmittedAt,
			"approved_at":  schedule.ApprovedAt,
			"activated_at": schedule.ActivatedAt,
			"completed_at": schedule.CompletedAt,
			"cancelled_at": schedule.CancelledAt,
			"updated_by":   schedule.UpdatedBy,
			"version":      schedule.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *scheduleRepo) BumpVersion(ctx context.Context, id string, expectedVersion int, operatorID *string) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("schedule_id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"updated_by": operatorID,
			"version":    expectedVersion + 1,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, pkgerrors.ErrOptimisticLock
	}
	return expectedVersion + 1, nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id string) error {
	// 硬删除：分配与冲突由外键 ON DELETE CASCADE 一并清理
	return r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		Delete(&model.Schedule{}).Error
}
