package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// AssignmentRepository 排班分配数据访问接口
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *model.ScheduleAssignment) error
	GetByID(ctx context.Context, id string) (*model.ScheduleAssignment, error)
	Update(ctx context.Context, assignment *model.ScheduleAssignment) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]model.ScheduleAssignment, error)
	// ListActiveByResources 资源在所有未取消排班中的有效分配，用于构造检测快照
	ListActiveByResources(ctx context.Context, resourceIDs []string) ([]model.ScheduleAssignment, error)
	// ListByResourceWindow 资源在 [start,end) 内有重叠的有效分配
	ListByResourceWindow(ctx context.Context, resourceID string, start, end time.Time) ([]model.ScheduleAssignment, error)
}

// ── Assignment Repository 实现 ──

type assignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) Create(ctx context.Context, assignment *model.ScheduleAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.ScheduleAssignment, error) {
	var assignment model.ScheduleAssignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) Update(ctx context.Context, assignment *model.ScheduleAssignment) error {
	return r.db.WithContext(ctx).
		Model(assignment).
		Where("assignment_id = ?", assignment.AssignmentID).
		Updates(map[string]interface{}{
			"resource_id":           assignment.ResourceID,
			"project_id":            assignment.ProjectID,
			"task_id":               assignment.TaskID,
			"start_datetime":        assignment.StartDatetime,
			"end_datetime":          assignment.EndDatetime,
			"allocation_percentage": assignment.AllocationPercentage,
			"allocated_hours":       assignment.AllocatedHours,
			"required_skills":       assignment.RequiredSkills,
			"status":                assignment.Status,
			"notes":                 assignment.Notes,
			"updated_by":            assignment.UpdatedBy,
		}).Error
}

func (r *assignmentRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]model.ScheduleAssignment, error) {
	var assignments []model.ScheduleAssignment
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("start_datetime ASC, assignment_id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) ListActiveByResources(ctx context.Context, resourceIDs []string) ([]model.ScheduleAssignment, error) {
	var assignments []model.ScheduleAssignment
	if len(resourceIDs) == 0 {
		return assignments, nil
	}
	err := r.db.WithContext(ctx).
		Joins("JOIN schedules ON schedules.schedule_id = schedule_assignments.schedule_id").
		Where("schedule_assignments.resource_id IN ?", resourceIDs).
		Where("schedule_assignments.status <> ?", model.AssignmentStatusCancelled).
		Where("schedules.status <> ?", model.ScheduleStatusCancelled).
		Order("schedule_assignments.start_datetime ASC, schedule_assignments.assignment_id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) ListByResourceWindow(ctx context.Context, resourceID string, start, end time.Time) ([]model.ScheduleAssignment, error) {
	var assignments []model.ScheduleAssignment
	err := r.db.WithContext(ctx).
		Joins("JOIN schedules ON schedules.schedule_id = schedule_assignments.schedule_id").
		Where("schedule_assignments.resource_id = ?", resourceID).
		Where("schedule_assignments.status <> ?", model.AssignmentStatusCancelled).
		Where("schedules.status <> ?", model.ScheduleStatusCancelled).
		// 半开区间重叠：start < 查询 end 且 查询 start < end
		Where("schedule_assignments.start_datetime < ? AND ? < schedule_assignments.end_datetime", end, start).
		Order("schedule_assignments.start_datetime ASC, schedule_assignments.assignment_id ASC").
		Find(&assignments).Error
	return assignments, err
}
