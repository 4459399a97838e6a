package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// WorkloadHistoryFilter 工作量历史查询条件
// From/To 过滤统计时段，零值表示不限；Limit <= 0 时返回全部
type WorkloadHistoryFilter struct {
	ScheduleID string
	From       time.Time
	To         time.Time
	Limit      int
}

// WorkloadRepository 工作量快照数据访问接口（只追加）
type WorkloadRepository interface {
	Create(ctx context.Context, analysis *model.WorkloadAnalysis) error
	ListHistory(ctx context.Context, resourceID string, filter WorkloadHistoryFilter) ([]model.WorkloadAnalysis, error)
}

// ── Workload Repository 实现 ──

type workloadRepo struct {
	db *gorm.DB
}

func NewWorkloadRepo(db *gorm.DB) WorkloadRepository {
	return &workloadRepo{db: db}
}

func (r *workloadRepo) Create(ctx context.Context, analysis *model.WorkloadAnalysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *workloadRepo) ListHistory(ctx context.Context, resourceID string, filter WorkloadHistoryFilter) ([]model.WorkloadAnalysis, error) {
	var analyses []model.WorkloadAnalysis
	query := r.db.WithContext(ctx).Where("resource_id = ?", resourceID)
	if filter.ScheduleID != "" {
		query = query.Where("schedule_id = ?", filter.ScheduleID)
	}
	if !filter.From.IsZero() {
		query = query.Where("period_end > ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("period_start < ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	// 按时间正序，便于趋势展示
	err := query.Order("analyzed_at ASC, analysis_id ASC").Find(&analyses).Error
	return analyses, err
}
