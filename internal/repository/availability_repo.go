package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// AvailabilityRepository 资源可用性数据访问接口
type AvailabilityRepository interface {
	Create(ctx context.Context, record *model.ResourceAvailability) error
	GetByID(ctx context.Context, id string) (*model.ResourceAvailability, error)
	Delete(ctx context.Context, id string) error
	// ListByResources 资源在 [start,end) 内有重叠的记录；start/end 为零值时不限
	ListByResources(ctx context.Context, resourceIDs []string, start, end time.Time) ([]model.ResourceAvailability, error)
	// ReplaceImported 替换资源在窗口内由日历导入的记录
	ReplaceImported(ctx context.Context, resourceID string, start, end time.Time, records []model.ResourceAvailability) error
}

// ── Availability Repository 实现 ──

type availabilityRepo struct {
	db *gorm.DB
}

func NewAvailabilityRepo(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

func (r *availabilityRepo) Create(ctx context.Context, record *model.ResourceAvailability) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *availabilityRepo) GetByID(ctx context.Context, id string) (*model.ResourceAvailability, error) {
	var record model.ResourceAvailability
	err := r.db.WithContext(ctx).
		Where("availability_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *availabilityRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("availability_id = ?", id).
		Delete(&model.ResourceAvailability{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *availabilityRepo) ListByResources(ctx context.Context, resourceIDs []string, start, end time.Time) ([]model.ResourceAvailability, error) {
	var records []model.ResourceAvailability
	if len(resourceIDs) == 0 {
		return records, nil
	}
	query := r.db.WithContext(ctx).Where("resource_id IN ?", resourceIDs)
	if !end.IsZero() {
		query = query.Where("start_datetime < ?", end)
	}
	if !start.IsZero() {
		query = query.Where("end_datetime > ?", start)
	}
	err := query.Order("resource_id ASC, start_datetime ASC, availability_id ASC").Find(&records).Error
	return records, err
}

func (r *availabilityRepo) ReplaceImported(ctx context.Context, resourceID string, start, end time.Time, records []model.ResourceAvailability) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 只替换日历导入的记录，手工维护的记录保留
		if err := tx.Where("resource_id = ? AND source = ? AND start_datetime < ? AND end_datetime > ?",
			resourceID, model.AvailabilitySourceICS, end, start).
			Delete(&model.ResourceAvailability{}).Error; err != nil {
			return err
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(&records, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
