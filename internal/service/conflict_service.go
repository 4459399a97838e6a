package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/internal/repository"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
	"github.com/hgj313/hr2-sub000/pkg/metrics"
	"github.com/hgj313/hr2-sub000/pkg/mqtt"
)

// ── 冲突模块业务错误 ──

var (
	ErrConflictNotFound = errors.New("冲突不存在")
)

// ConflictService 冲突检测与处理业务接口
type ConflictService interface {
	// 检测排班冲突并整体替换已存储的冲突集合
	Detect(ctx context.Context, scheduleID string) (*dto.DetectionResponse, error)
	// 批量检测，单个排班失败不影响其他排班
	DetectBatch(ctx context.Context, req *dto.BatchDetectRequest) (*dto.BatchDetectResponse, error)
	List(ctx context.Context, scheduleID string, req *dto.ConflictListRequest) ([]dto.ConflictResponse, error)
	// 人工处理：只修改状态与处理说明
	UpdateStatus(ctx context.Context, conflictID string, req *dto.UpdateConflictStatusRequest, callerID string) (*dto.ConflictResponse, error)
	Summary(ctx context.Context, scheduleID string) (*dto.ConflictSummaryResponse, error)
}

type conflictService struct {
	rt *core
}

// NewConflictService 创建 ConflictService 实例
func NewConflictService(rt *core) ConflictService {
	return &conflictService{rt: rt}
}

// ConflictsDetectedEvent 检测完成事件
type ConflictsDetectedEvent struct {
	ScheduleID     string         `json:"schedule_id"`
	Total          int            `json:"total"`
	BySeverity     map[string]int `json:"by_severity"`
	ResourceErrors int            `json:"resource_errors"`
	DetectedAt     time.Time      `json:"detected_at"`
}

// ════════════════════════════════════════════════════════════
// Detect
// ════════════════════════════════════════════════════════════

func (s *conflictService) Detect(ctx context.Context, scheduleID string) (*dto.DetectionResponse, error) {
	schedule, err := s.rt.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.rt.logger.Error("查询排班失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}

	var resp *dto.DetectionResponse
	err = s.rt.withLock(ctx, scheduleLockKey(scheduleID), func() error {
		var err error
		resp, err = s.detectLocked(ctx, schedule)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// detectLocked 在持有排班锁的情况下完成：快照 → 检测 → 沿用处理状态 → 事务替换
func (s *conflictService) detectLocked(ctx context.Context, schedule *model.Schedule) (*dto.DetectionResponse, error) {
	started := time.Now()
	logger := s.rt.logger.With(zap.String("schedule_id", schedule.ScheduleID))

	snap, err := loadScheduleSnapshot(ctx, s.rt.repo, schedule)
	if err != nil {
		logger.Error("加载检测快照失败", zap.Error(err))
		return nil, err
	}

	detector := scheduling.NewConflictDetector(snap.store, snap.ledger, s.rt.directory, s.rt.opts())
	result, err := detector.Detect(ctx, schedule.ScheduleID)
	if err != nil {
		logger.Warn("冲突检测中止", zap.Error(err))
		return nil, err
	}

	now := s.rt.now()
	conflicts := result.Conflicts
	for i := range conflicts {
		conflicts[i].ConflictID = uuid.NewString()
		conflicts[i].DetectedAt = now
		conflicts[i].CreatedAt = now
		conflicts[i].UpdatedAt = now
	}

	// 取消的检测不落库
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err = s.rt.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.Conflict.LockBySchedule(ctx, schedule.ScheduleID)
		if err != nil {
			return err
		}
		carryOverTriage(existing, conflicts)
		return tx.Conflict.ReplaceForSchedule(ctx, schedule.ScheduleID, conflicts)
	})
	if err != nil {
		logger.Error("保存冲突失败", zap.Error(err))
		return nil, err
	}

	// ── 指标与事件 ──
	metrics.DetectionDuration.Observe(time.Since(started).Seconds())
	bySeverity := make(map[string]int)
	for _, c := range conflicts {
		metrics.ConflictsDetected.WithLabelValues(c.ConflictType, c.Severity).Inc()
		bySeverity[c.Severity]++
	}
	if n := len(result.Errors); n > 0 {
		metrics.ResourceErrors.WithLabelValues("detect").Add(float64(n))
	}
	s.rt.publish(mqtt.ScheduleConflictsTopic(schedule.ScheduleID), ConflictsDetectedEvent{
		ScheduleID:     schedule.ScheduleID,
		Total:          len(conflicts),
		BySeverity:     bySeverity,
		ResourceErrors: len(result.Errors),
		DetectedAt:     now,
	})

	logger.Info("冲突检测完成",
		zap.Int("resources", len(snap.resources)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("resource_errors", len(result.Errors)),
		zap.Duration("duration", time.Since(started)),
	)

	resp := &dto.DetectionResponse{
		ScheduleID: schedule.ScheduleID,
		Conflicts:  toConflictResponses(conflicts),
		DetectedAt: dto.FormatTime(now),
	}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, dto.ResourceErrorResponse{ResourceID: e.ResourceID, Error: e.Err.Error()})
	}
	return resp, nil
}

// carryOverTriage 指纹相同的冲突沿用上一轮的人工处理结果
func carryOverTriage(existing, fresh []model.ScheduleConflict) {
	previous := make(map[string]model.ScheduleConflict, len(existing))
	for _, c := range existing {
		if c.Status == model.ConflictStatusOpen && c.ResolutionNotes == "" {
			continue
		}
		previous[c.Fingerprint] = c
	}
	for i := range fresh {
		old, ok := previous[fresh[i].Fingerprint]
		if !ok {
			continue
		}
		fresh[i].Status = old.Status
		fresh[i].ResolutionNotes = old.ResolutionNotes
		fresh[i].ResolvedBy = old.ResolvedBy
		fresh[i].ResolvedAt = old.ResolvedAt
	}
}

// ════════════════════════════════════════════════════════════
// DetectBatch
// ════════════════════════════════════════════════════════════

func (s *conflictService) DetectBatch(ctx context.Context, req *dto.BatchDetectRequest) (*dto.BatchDetectResponse, error) {
	resp := &dto.BatchDetectResponse{Results: make([]dto.DetectionResponse, 0, len(req.ScheduleIDs))}

	seen := make(map[string]bool, len(req.ScheduleIDs))
	for _, id := range req.ScheduleIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		// 已提交的排班保持提交状态，剩余排班不再处理
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.Detect(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			resp.Errors = append(resp.Errors, dto.ScheduleErrorResponse{ScheduleID: id, Error: err.Error()})
			continue
		}
		resp.Results = append(resp.Results, *result)
	}

	s.rt.logger.Info("批量冲突检测完成",
		zap.Int("schedules", len(seen)),
		zap.Int("failed", len(resp.Errors)),
	)
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// 查询与处理
// ════════════════════════════════════════════════════════════

func (s *conflictService) List(ctx context.Context, scheduleID string, req *dto.ConflictListRequest) ([]dto.ConflictResponse, error) {
	if err := s.ensureSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}

	filter := repository.ConflictFilter{}
	if req != nil {
		filter = repository.ConflictFilter{Type: req.Type, Severity: req.Severity, Status: req.Status}
	}
	conflicts, err := s.rt.repo.Conflict.ListBySchedule(ctx, scheduleID, filter)
	if err != nil {
		s.rt.logger.Error("查询冲突列表失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}
	return toConflictResponses(conflicts), nil
}

func (s *conflictService) UpdateStatus(ctx context.Context, conflictID string, req *dto.UpdateConflictStatusRequest, callerID string) (*dto.ConflictResponse, error) {
	conflict, err := s.rt.repo.Conflict.GetByID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConflictNotFound
		}
		s.rt.logger.Error("查询冲突失败", zap.String("conflict_id", conflictID), zap.Error(err))
		return nil, err
	}

	now := s.rt.now()
	conflict.Status = req.Status
	conflict.ResolutionNotes = req.ResolutionNotes
	conflict.UpdatedAt = now
	switch req.Status {
	case model.ConflictStatusResolved, model.ConflictStatusIgnored:
		conflict.ResolvedBy = model.StringPtr(callerID)
		conflict.ResolvedAt = &now
	default:
		conflict.ResolvedBy = nil
		conflict.ResolvedAt = nil
	}

	if err := s.rt.repo.Conflict.UpdateStatus(ctx, conflict); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 处理期间冲突被重新检测替换
			return nil, ErrConflictNotFound
		}
		s.rt.logger.Error("更新冲突状态失败", zap.String("conflict_id", conflictID), zap.Error(err))
		return nil, err
	}

	s.rt.logger.Info("冲突状态已更新",
		zap.String("conflict_id", conflictID),
		zap.String("status", req.Status),
		zap.String("operator", callerID),
	)
	resp := toConflictResponse(*conflict)
	return &resp, nil
}

func (s *conflictService) Summary(ctx context.Context, scheduleID string) (*dto.ConflictSummaryResponse, error) {
	if err := s.ensureSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	conflicts, err := s.rt.repo.Conflict.ListBySchedule(ctx, scheduleID, repository.ConflictFilter{})
	if err != nil {
		s.rt.logger.Error("查询冲突列表失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}

	resp := &dto.ConflictSummaryResponse{
		ScheduleID: scheduleID,
		Total:      len(conflicts),
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
		ByStatus:   make(map[string]int),
	}
	for _, c := range conflicts {
		resp.ByType[c.ConflictType]++
		resp.BySeverity[c.Severity]++
		resp.ByStatus[c.Status]++
	}
	return resp, nil
}

func (s *conflictService) ensureSchedule(ctx context.Context, scheduleID string) error {
	if _, err := s.rt.repo.Schedule.GetByID(ctx, scheduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		s.rt.logger.Error("查询排班失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return err
	}
	return nil
}

// ── 转换 ──

func toConflictResponses(list []model.ScheduleConflict) []dto.ConflictResponse {
	out := make([]dto.ConflictResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toConflictResponse(c))
	}
	return out
}

func toConflictResponse(c model.ScheduleConflict) dto.ConflictResponse {
	return dto.ConflictResponse{
		ID:              c.ConflictID,
		ScheduleID:      c.ScheduleID,
		ConflictType:    c.ConflictType,
		Severity:        c.Severity,
		Description:     c.Description,
		AssignmentIDs:   append([]string{}, c.AssignmentIDs...),
		ResourceIDs:     append([]string{}, c.ResourceIDs...),
		PeriodStart:     dto.FormatTime(c.PeriodStart),
		PeriodEnd:       dto.FormatTime(c.PeriodEnd),
		Status:          c.Status,
		ResolutionNotes: c.ResolutionNotes,
		ResolvedBy:      c.ResolvedBy,
		ResolvedAt:      dto.FormatTimePtr(c.ResolvedAt),
		DetectedAt:      dto.FormatTime(c.DetectedAt),
	}
}
