package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
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

// ── 排班模块业务错误 ──

var (
	ErrScheduleNotFound     = errors.New("排班不存在")
	ErrAssignmentNotFound   = errors.New("分配不存在")
	ErrAssignmentCancelled  = errors.New("分配已取消，不可修改")
	ErrAssignmentNotInScope = errors.New("分配不属于该排班")
)

// ScheduleService 排班与分配业务接口
type ScheduleService interface {
	Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
	// 获取排班（含分配）
	Get(ctx context.Context, id string) (*dto.ScheduleResponse, error)
	List(ctx context.Context, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
	Delete(ctx context.Context, id string) error
	// 状态流转，进入 active 时执行一次检测与工作量分析
	Transition(ctx context.Context, id string, req *dto.TransitionRequest, callerID string) (*dto.TransitionResponse, error)

	AddAssignment(ctx context.Context, scheduleID string, req *dto.CreateAssignmentRequest, callerID string) (*dto.AssignmentResponse, error)
	UpdateAssignment(ctx context.Context, scheduleID, assignmentID string, req *dto.UpdateAssignmentRequest, callerID string) (*dto.AssignmentResponse, error)
	CancelAssignment(ctx context.Context, scheduleID, assignmentID string, req *dto.CancelAssignmentRequest, callerID string) (*dto.AssignmentResponse, error)
}

type scheduleService struct {
	rt        *core
	conflicts ConflictService
	workload  WorkloadService
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(rt *core, conflicts ConflictService, workload WorkloadService) ScheduleService {
	return &scheduleService{rt: rt, conflicts: conflicts, workload: workload}
}

// ScheduleStatusEvent 排班状态变更事件
type ScheduleStatusEvent struct {
	ScheduleID string    `json:"schedule_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Version    int       `json:"version"`
	OperatorID string    `json:"operator_id,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// ════════════════════════════════════════════════════════════
// 排班 CRUD
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Create(ctx context.Context, req *dto.CreateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	if err := interval.Validate(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	schedule := &model.Schedule{
		Name:              req.Name,
		Description:       req.Description,
		StartDate:         req.StartDate.UTC(),
		EndDate:           req.EndDate.UTC(),
		Status:            model.ScheduleStatusDraft,
		AutoAssignEnabled: req.AutoAssignEnabled,
	}
	schedule.Version = 1
	schedule.CreatedBy = model.StringPtr(callerID)
	schedule.UpdatedBy = model.StringPtr(callerID)

	if err := s.rt.repo.Schedule.Create(ctx, schedule); err != nil {
		s.rt.logger.Error("创建排班失败", zap.Error(err))
		return nil, err
	}

	s.rt.logger.Info("排班已创建", zap.String("schedule_id", schedule.ScheduleID), zap.String("operator", callerID))
	resp := toScheduleResponse(schedule, nil)
	return &resp, nil
}

func (s *scheduleService) Get(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments, err := s.rt.repo.Assignment.ListBySchedule(ctx, id)
	if err != nil {
		s.rt.logger.Error("查询排班分配失败", zap.String("schedule_id", id), zap.Error(err))
		return nil, err
	}
	resp := toScheduleResponse(schedule, assignments)
	return &resp, nil
}

func (s *scheduleService) List(ctx context.Context, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error) {
	status := ""
	if req != nil {
		status = req.Status
	}
	schedules, err := s.rt.repo.Schedule.List(ctx, status)
	if err != nil {
		s.rt.logger.Error("查询排班列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		out = append(out, toScheduleResponse(&schedules[i], nil))
	}
	return out, nil
}

func (s *scheduleService) Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}
	if err := scheduling.CheckMutable(schedule); err != nil {
		return nil, err
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.Description != nil {
		schedule.Description = *req.Description
	}
	if req.StartDate != nil {
		schedule.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		schedule.EndDate = req.EndDate.UTC()
	}
	if req.AutoAssignEnabled != nil {
		schedule.AutoAssignEnabled = *req.AutoAssignEnabled
	}
	if err := interval.Validate(schedule.StartDate, schedule.EndDate); err != nil {
		return nil, err
	}
	schedule.UpdatedBy = model.StringPtr(callerID)

	if err := s.rt.repo.Schedule.Update(ctx, schedule); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.rt.logger.Error("更新排班失败", zap.String("schedule_id", id), zap.Error(err))
		}
		return nil, err
	}
	resp := toScheduleResponse(schedule, nil)
	return &resp, nil
}

func (s *scheduleService) Delete(ctx context.Context, id string) error {
	if _, err := s.getSchedule(ctx, id); err != nil {
		return err
	}
	if err := s.rt.repo.Schedule.Delete(ctx, id); err != nil {
		s.rt.logger.Error("删除排班失败", zap.String("schedule_id", id), zap.Error(err))
		return err
	}
	s.rt.logger.Info("排班已删除", zap.String("schedule_id", id))
	return nil
}

// ════════════════════════════════════════════════════════════
// Transition — 生命周期
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Transition(ctx context.Context, id string, req *dto.TransitionRequest, callerID string) (*dto.TransitionResponse, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	from := schedule.Status
	oldVersion := schedule.Version
	if err := scheduling.ApplyTransition(schedule, req.To, s.rt.now()); err != nil {
		return nil, err
	}
	schedule.UpdatedBy = model.StringPtr(callerID)

	if err := s.rt.repo.Schedule.UpdateStatus(ctx, schedule, oldVersion); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.rt.logger.Error("保存排班状态失败", zap.String("schedule_id", id), zap.Error(err))
		}
		return nil, err
	}

	metrics.LifecycleTransitions.WithLabelValues(req.To).Inc()
	s.rt.publish(mqtt.ScheduleStatusTopic(id), ScheduleStatusEvent{
		ScheduleID: id,
		From:       from,
		To:         req.To,
		Version:    schedule.Version,
		OperatorID: callerID,
		ChangedAt:  s.rt.now(),
	})
	s.rt.logger.Info("排班状态已变更",
		zap.String("schedule_id", id),
		zap.String("from", from),
		zap.String("to", req.To),
		zap.Int("version", schedule.Version),
	)

	resp := &dto.TransitionResponse{Schedule: toScheduleResponse(schedule, nil)}
	if !scheduling.TriggersAnalysis(req.To) {
		return resp, nil
	}

	// 状态已提交；检测或分析失败只作为告警返回，不回滚流转
	detection, err := s.conflicts.Detect(ctx, id)
	if err != nil {
		s.rt.logger.Warn("激活后冲突检测失败", zap.String("schedule_id", id), zap.Error(err))
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("冲突检测失败: %v", err))
	} else {
		resp.Detection = detection
	}

	workload, err := s.workload.AnalyzeSchedule(ctx, id)
	if err != nil {
		s.rt.logger.Warn("激活后工作量分析失败", zap.String("schedule_id", id), zap.Error(err))
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("工作量分析失败: %v", err))
	} else {
		resp.Workload = workload
	}
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// 分配变更 — 每次变更使排班版本号加一
// ════════════════════════════════════════════════════════════

func (s *scheduleService) AddAssignment(ctx context.Context, scheduleID string, req *dto.CreateAssignmentRequest, callerID string) (*dto.AssignmentResponse, error) {
	schedule, err := s.mutableSchedule(ctx, scheduleID, req.Version)
	if err != nil {
		return nil, err
	}

	assignment := &model.ScheduleAssignment{
		ScheduleID:           scheduleID,
		ResourceID:           req.ResourceID,
		ProjectID:            req.ProjectID,
		TaskID:               req.TaskID,
		StartDatetime:        req.StartDatetime.UTC(),
		EndDatetime:          req.EndDatetime.UTC(),
		AllocationPercentage: *req.AllocationPercentage,
		AllocatedHours:       req.AllocatedHours,
		RequiredSkills:       toSkillRequirements(req.RequiredSkills),
		Status:               model.AssignmentStatusAssigned,
		Notes:                req.Notes,
	}
	assignment.CreatedBy = model.StringPtr(callerID)
	assignment.UpdatedBy = model.StringPtr(callerID)

	if err := validateAssignment(assignment); err != nil {
		return nil, err
	}
	if err := s.ensureResource(ctx, assignment.ResourceID); err != nil {
		return nil, err
	}

	version, err := s.commitAssignment(ctx, schedule, callerID, func(tx *repository.Repository) error {
		return tx.Assignment.Create(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}

	resp := toAssignmentResponse(*assignment)
	resp.ScheduleVersion = version
	return &resp, nil
}

func (s *scheduleService) UpdateAssignment(ctx context.Context, scheduleID, assignmentID string, req *dto.UpdateAssignmentRequest, callerID string) (*dto.AssignmentResponse, error) {
	schedule, err := s.mutableSchedule(ctx, scheduleID, req.Version)
	if err != nil {
		return nil, err
	}
	assignment, err := s.getAssignment(ctx, scheduleID, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.IsCancelled() {
		return nil, ErrAssignmentCancelled
	}

	resourceChanged := false
	if req.ResourceID != nil && *req.ResourceID != assignment.ResourceID {
		assignment.ResourceID = *req.ResourceID
		resourceChanged = true
	}
	if req.StartDatetime != nil {
		assignment.StartDatetime = req.StartDatetime.UTC()
	}
	if req.EndDatetime != nil {
		assignment.EndDatetime = req.EndDatetime.UTC()
	}
	if req.AllocationPercentage != nil {
		assignment.AllocationPercentage = *req.AllocationPercentage
	}
	if req.AllocatedHours != nil {
		assignment.AllocatedHours = req.AllocatedHours
	}
	if req.RequiredSkills != nil {
		assignment.RequiredSkills = toSkillRequirements(*req.RequiredSkills)
	}
	if req.Status != nil {
		assignment.Status = *req.Status
	}
	if req.Notes != nil {
		assignment.Notes = *req.Notes
	}
	assignment.UpdatedBy = model.StringPtr(callerID)

	if err := validateAssignment(assignment); err != nil {
		return nil, err
	}
	if resourceChanged {
		if err := s.ensureResource(ctx, assignment.ResourceID); err != nil {
			return nil, err
		}
	}

	version, err := s.commitAssignment(ctx, schedule, callerID, func(tx *repository.Repository) error {
		return tx.Assignment.Update(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}

	resp := toAssignmentResponse(*assignment)
	resp.ScheduleVersion = version
	return &resp, nil
}

func (s *scheduleService) CancelAssignment(ctx context.Context, scheduleID, assignmentID string, req *dto.CancelAssignmentRequest, callerID string) (*dto.AssignmentResponse, error) {
	schedule, err := s.mutableSchedule(ctx, scheduleID, req.Version)
	if err != nil {
		return nil, err
	}
	assignment, err := s.getAssignment(ctx, scheduleID, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.IsCancelled() {
		return nil, ErrAssignmentCancelled
	}

	assignment.Status = model.AssignmentStatusCancelled
	assignment.UpdatedBy = model.StringPtr(callerID)

	version, err := s.commitAssignment(ctx, schedule, callerID, func(tx *repository.Repository) error {
		return tx.Assignment.Update(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}

	resp := toAssignmentResponse(*assignment)
	resp.ScheduleVersion = version
	return &resp, nil
}

// commitAssignment 在同一事务内写入分配并递增排班版本号
func (s *scheduleService) commitAssignment(ctx context.Context, schedule *model.Schedule, callerID string, write func(tx *repository.Repository) error) (int, error) {
	var version int
	err := s.rt.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := write(tx); err != nil {
			return err
		}
		var err error
		version, err = tx.Schedule.BumpVersion(ctx, schedule.ScheduleID, schedule.Version, model.StringPtr(callerID))
		return err
	})
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.rt.logger.Error("保存分配失败", zap.String("schedule_id", schedule.ScheduleID), zap.Error(err))
		}
		return 0, err
	}
	return version, nil
}

// ── 辅助函数 ──

func (s *scheduleService) getSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	schedule, err := s.rt.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.rt.logger.Error("查询排班失败", zap.String("schedule_id", id), zap.Error(err))
		return nil, err
	}
	return schedule, nil
}

// mutableSchedule 校验版本号与冻结状态
func (s *scheduleService) mutableSchedule(ctx context.Context, id string, version int) (*model.Schedule, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scheduling.CheckMutable(schedule); err != nil {
		return nil, err
	}
	if schedule.Version != version {
		return nil, pkgerrors.ErrOptimisticLock
	}
	return schedule, nil
}

func (s *scheduleService) getAssignment(ctx context.Context, scheduleID, assignmentID string) (*model.ScheduleAssignment, error) {
	assignment, err := s.rt.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		s.rt.logger.Error("查询分配失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, err
	}
	if assignment.ScheduleID != scheduleID {
		return nil, ErrAssignmentNotInScope
	}
	return assignment, nil
}

func (s *scheduleService) ensureResource(ctx context.Context, resourceID string) error {
	exists, err := s.rt.directory.Exists(ctx, resourceID)
	if err != nil {
		s.rt.logger.Warn("查询人员目录失败", zap.String("resource_id", resourceID), zap.Error(err))
		return err
	}
	if !exists {
		return pkgerrors.ErrResourceNotFound
	}
	return nil
}

// validateAssignment 区间合法且分配比例在 [0,100]
func validateAssignment(a *model.ScheduleAssignment) error {
	if err := interval.Validate(a.StartDatetime, a.EndDatetime); err != nil {
		return err
	}
	if a.AllocationPercentage < 0 || a.AllocationPercentage > 100 {
		return fmt.Errorf("%w: %.2f", pkgerrors.ErrInconsistentAllocation, a.AllocationPercentage)
	}
	if a.AllocatedHours != nil && *a.AllocatedHours < 0 {
		return fmt.Errorf("%w: allocated_hours %.2f", pkgerrors.ErrInconsistentAllocation, *a.AllocatedHours)
	}
	return nil
}

// ── 转换 ──

func toSkillRequirements(list []dto.SkillRequirementDTO) datatypes.JSONSlice[model.SkillRequirement] {
	out := make(datatypes.JSONSlice[model.SkillRequirement], 0, len(list))
	for _, s := range list {
		out = append(out, model.SkillRequirement{Name: s.Name, Level: s.Level, Critical: s.Critical})
	}
	return out
}

func toScheduleResponse(s *model.Schedule, assignments []model.ScheduleAssignment) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		ID:                s.ScheduleID,
		Name:              s.Name,
		Description:       s.Description,
		StartDate:         dto.FormatTime(s.StartDate),
		EndDate:           dto.FormatTime(s.EndDate),
		Status:            s.Status,
		NextStates:        scheduling.NextStates(s.Status),
		AutoAssignEnabled: s.AutoAssignEnabled,
		Version:           s.Version,
		SubmittedAt:       dto.FormatTimePtr(s.SubmittedAt),
		ApprovedAt:        dto.FormatTimePtr(s.ApprovedAt),
		ActivatedAt:       dto.FormatTimePtr(s.ActivatedAt),
		CompletedAt:       dto.FormatTimePtr(s.CompletedAt),
		CancelledAt:       dto.FormatTimePtr(s.CancelledAt),
		CreatedAt:         dto.FormatTime(s.CreatedAt),
		UpdatedAt:         dto.FormatTime(s.UpdatedAt),
	}
	for _, a := range assignments {
		resp.Assignments = append(resp.Assignments, toAssignmentResponse(a))
	}
	return resp
}

func toAssignmentResponse(a model.ScheduleAssignment) dto.AssignmentResponse {
	skills := make([]dto.SkillRequirementDTO, 0, len(a.RequiredSkills))
	for _, s := range a.RequiredSkills {
		skills = append(skills, dto.SkillRequirementDTO{Name: s.Name, Level: s.Level, Critical: s.Critical})
	}
	return dto.AssignmentResponse{
		ID:                   a.AssignmentID,
		ScheduleID:           a.ScheduleID,
		ResourceID:           a.ResourceID,
		ProjectID:            a.ProjectID,
		TaskID:               a.TaskID,
		StartDatetime:        dto.FormatTime(a.StartDatetime),
		EndDatetime:          dto.FormatTime(a.EndDatetime),
		AllocationPercentage: a.AllocationPercentage,
		AllocatedHours:       a.AllocatedHours,
		RequiredSkills:       skills,
		Status:               a.Status,
		Notes:                a.Notes,
	}
}
