package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/internal/repository"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
	"github.com/hgj313/hr2-sub000/pkg/interval"
	"github.com/hgj313/hr2-sub000/pkg/metrics"
	"github.com/hgj313/hr2-sub000/pkg/mqtt"
)

// WorkloadService 工作量分析业务接口
type WorkloadService interface {
	// 分析单个资源并记录快照
	Analyze(ctx context.Context, req *dto.AnalyzeWorkloadRequest) (*dto.WorkloadResponse, error)
	// 以排班窗口为统计时段，为排班涉及的每个资源记录快照
	AnalyzeSchedule(ctx context.Context, scheduleID string) (*dto.ScheduleWorkloadResponse, error)
	ListHistory(ctx context.Context, resourceID string, req *dto.WorkloadHistoryRequest) ([]dto.WorkloadResponse, error)
}

type workloadService struct {
	rt *core
}

// NewWorkloadService 创建 WorkloadService 实例
func NewWorkloadService(rt *core) WorkloadService {
	return &workloadService{rt: rt}
}

// WorkloadAnalyzedEvent 工作量快照事件
type WorkloadAnalyzedEvent struct {
	AnalysisID      string    `json:"analysis_id"`
	ResourceID      string    `json:"resource_id"`
	ScheduleID      *string   `json:"schedule_id,omitempty"`
	UtilizationRate float64   `json:"utilization_rate"`
	WorkloadStatus  string    `json:"workload_status"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// ════════════════════════════════════════════════════════════
// Analyze
// ════════════════════════════════════════════════════════════

func (s *workloadService) Analyze(ctx context.Context, req *dto.AnalyzeWorkloadRequest) (*dto.WorkloadResponse, error) {
	if err := interval.Validate(req.PeriodStart, req.PeriodEnd); err != nil {
		return nil, err
	}
	if req.ScheduleID != nil {
		if _, err := s.rt.repo.Schedule.GetByID(ctx, *req.ScheduleID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrScheduleNotFound
			}
			return nil, err
		}
	}

	var std float64
	if req.StandardHoursPerDay != nil {
		std = *req.StandardHoursPerDay
	}

	analysis, err := s.analyzeResource(ctx, req.ResourceID, req.PeriodStart.UTC(), req.PeriodEnd.UTC(), std, req.ScheduleID, s.rt.opts())
	if err != nil {
		return nil, err
	}
	resp := toWorkloadResponse(*analysis)
	return &resp, nil
}

// analyzeResource 在资源级锁内计算并写入一条快照
func (s *workloadService) analyzeResource(ctx context.Context, resourceID string, start, end time.Time, std float64, scheduleID *string, opts scheduling.Options) (*model.WorkloadAnalysis, error) {
	exists, err := s.rt.directory.Exists(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, pkgerrors.ErrResourceNotFound
	}

	var analysis model.WorkloadAnalysis
	err = s.rt.withLock(ctx, workloadLockKey(resourceID), func() error {
		snap, err := loadResourceSnapshot(ctx, s.rt.repo, resourceID, start, end)
		if err != nil {
			return err
		}
		analysis, err = scheduling.NewWorkloadAnalyzer(snap.store, snap.ledger, opts).Analyze(resourceID, start, end, std)
		if err != nil {
			return err
		}

		now := s.rt.now()
		analysis.AnalysisID = uuid.NewString()
		analysis.ScheduleID = scheduleID
		analysis.AnalyzedAt = now
		analysis.CreatedAt = now
		return s.rt.repo.Workload.Create(ctx, &analysis)
	})
	if err != nil {
		s.rt.logger.Warn("工作量分析失败", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, err
	}

	metrics.WorkloadAnalyses.WithLabelValues(analysis.WorkloadStatus).Inc()
	s.rt.publish(mqtt.ResourceWorkloadTopic(resourceID), WorkloadAnalyzedEvent{
		AnalysisID:      analysis.AnalysisID,
		ResourceID:      resourceID,
		ScheduleID:      scheduleID,
		UtilizationRate: analysis.UtilizationRate,
		WorkloadStatus:  analysis.WorkloadStatus,
		AnalyzedAt:      analysis.AnalyzedAt,
	})
	return &analysis, nil
}

// ════════════════════════════════════════════════════════════
// AnalyzeSchedule — 资源并行，单个资源失败记入 Errors
// ════════════════════════════════════════════════════════════

func (s *workloadService) AnalyzeSchedule(ctx context.Context, scheduleID string) (*dto.ScheduleWorkloadResponse, error) {
	schedule, err := s.rt.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.rt.logger.Error("查询排班失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}

	assignments, err := s.rt.repo.Assignment.ListBySchedule(ctx, scheduleID)
	if err != nil {
		s.rt.logger.Error("查询排班分配失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}
	resources := activeResources(assignments)
	opts := s.rt.opts()

	var (
		mu       sync.Mutex
		analyses []model.WorkloadAnalysis
		failures []*pkgerrors.ResourceError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.MaxParallel, 1))
	for _, resourceID := range resources {
		resourceID := resourceID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := s.analyzeResource(gctx, resourceID, schedule.StartDate, schedule.EndDate, opts.StandardHoursPerDay, &schedule.ScheduleID, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures = append(failures, pkgerrors.NewResourceError(resourceID, err))
				return nil
			}
			analyses = append(analyses, *a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(analyses, func(i, j int) bool { return analyses[i].ResourceID < analyses[j].ResourceID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].ResourceID < failures[j].ResourceID })
	if len(failures) > 0 {
		metrics.ResourceErrors.WithLabelValues("workload").Add(float64(len(failures)))
	}

	s.rt.logger.Info("排班工作量分析完成",
		zap.String("schedule_id", scheduleID),
		zap.Int("analyses", len(analyses)),
		zap.Int("resource_errors", len(failures)),
	)

	resp := &dto.ScheduleWorkloadResponse{
		ScheduleID: scheduleID,
		Analyses:   make([]dto.WorkloadResponse, 0, len(analyses)),
	}
	for _, a := range analyses {
		resp.Analyses = append(resp.Analyses, toWorkloadResponse(a))
	}
	for _, f := range failures {
		resp.Errors = append(resp.Errors, dto.ResourceErrorResponse{ResourceID: f.ResourceID, Error: f.Err.Error()})
	}
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// ListHistory
// ════════════════════════════════════════════════════════════

func (s *workloadService) ListHistory(ctx context.Context, resourceID string, req *dto.WorkloadHistoryRequest) ([]dto.WorkloadResponse, error) {
	filter := repository.WorkloadHistoryFilter{}
	if req != nil {
		filter = repository.WorkloadHistoryFilter{ScheduleID: req.ScheduleID, From: req.From, To: req.To, Limit: req.Limit}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() {
		if err := interval.Validate(filter.From, filter.To); err != nil {
			return nil, err
		}
	}

	list, err := s.rt.repo.Workload.ListHistory(ctx, resourceID, filter)
	if err != nil {
		s.rt.logger.Error("查询工作量历史失败", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.WorkloadResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toWorkloadResponse(a))
	}
	return out, nil
}

// ── 转换 ──

func toWorkloadResponse(a model.WorkloadAnalysis) dto.WorkloadResponse {
	return dto.WorkloadResponse{
		ID:                  a.AnalysisID,
		ResourceID:          a.ResourceID,
		ScheduleID:          a.ScheduleID,
		PeriodStart:         dto.FormatTime(a.PeriodStart),
		PeriodEnd:           dto.FormatTime(a.PeriodEnd),
		TotalAssignedHours:  dto.Round2(a.TotalAssignedHours),
		TotalAvailableHours: dto.Round2(a.TotalAvailableHours),
		UtilizationRate:     dto.Round2(a.UtilizationRate),
		WorkloadStatus:      a.WorkloadStatus,
		EfficiencyScore:     dto.Round2(a.EfficiencyScore),
		AssignmentCount:     a.AssignmentCount,
		StandardHoursPerDay: a.StandardHoursPerDay,
		AnalyzedAt:          dto.FormatTime(a.AnalyzedAt),
	}
}
