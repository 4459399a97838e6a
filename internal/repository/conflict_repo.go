package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// ConflictFilter 冲突列表过滤条件，空值表示不限
type ConflictFilter struct {
	Type     string
	Severity string
	Status   string
}

// ConflictRepository 排班冲突数据访问接口
type ConflictRepository interface {
	GetByID(ctx context.Context, id string) (*model.ScheduleConflict, error)
	ListBySchedule(ctx context.Context, scheduleID string, filter ConflictFilter) ([]model.ScheduleConflict, error)
	// LockBySchedule 在事务内锁定并读取排班当前的冲突集合
	LockBySchedule(ctx context.Context, scheduleID string) ([]model.ScheduleConflict, error)
	// ReplaceForSchedule 删除排班全部冲突并写入新集合，须在事务内调用
	ReplaceForSchedule(ctx context.Context, scheduleID string, conflicts []model.ScheduleConflict) error
	UpdateStatus(ctx context.Context, conflict *model.ScheduleConflict) error
}

// ── Conflict Repository 实现 ──

type conflictRepo struct {
	db *gorm.DB
}

func NewConflictRepo(db *gorm.DB) ConflictRepository {
	return &conflictRepo{db: db}
}

func (r *conflictRepo) GetByID(ctx context.Context, id string) (*model.ScheduleConflict, error) {
	var conflict model.ScheduleConflict
	err := r.db.WithContext(ctx).
		Where("conflict_id = ?", id).
		First(&conflict).Error
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

func (r *conflictRepo) ListBySchedule(ctx context.Context, scheduleID string, filter ConflictFilter) ([]model.ScheduleConflict, error) {
	var conflicts []model.ScheduleConflict
	query := r.db.WithContext(ctx).Where("schedule_id = ?", scheduleID)
	if filter.Type != "" {
		query = query.Where("conflict_type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	err := query.Order("detected_at DESC, conflict_id ASC").Find(&conflicts).Error
	return conflicts, err
}

func (r *conflictRepo) LockBySchedule(ctx context.Context, scheduleID string) ([]model.ScheduleConflict, error) {
	var conflicts []model.ScheduleConflict
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("schedule_id = ?", scheduleID).
		Find(&conflicts).Error
	return conflicts, err
}

func (r *conflictRepo) ReplaceForSchedule(ctx context.Context, scheduleID string, conflicts []model.ScheduleConflict) error {
	if err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Delete(&model.ScheduleConflict{}).Error; err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&conflicts, 200).Error
}

func (r *conflictRepo) UpdateStatus(ctx context.Context, conflict *model.ScheduleConflict) error {
	result := r.db.WithContext(ctx).
		Model(&model.ScheduleConflict{}).
		Where("conflict_id = ?", conflict.ConflictID).
		Updates(map[string]interface{}{
			"status":           conflict.Status,
			"resolution_notes": conflict.ResolutionNotes,
			"resolved_by":      conflict.ResolvedBy,
			"resolved_at":      conflict.ResolvedAt,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
