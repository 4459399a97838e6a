package dto

import "time"

// ── 排班模块 DTO ──

// CreateScheduleRequest 创建排班请求，新排班总是 draft
type CreateScheduleRequest struct {
	Name              string    `json:"name"                binding:"required,min=1,max=200"`
	Description       string    `json:"description"         binding:"max=2000"`
	StartDate         time.Time `json:"start_date"          binding:"required"`
	EndDate           time.Time `json:"end_date"            binding:"required"`
	AutoAssignEnabled bool      `json:"auto_assign_enabled"`
}

// UpdateScheduleRequest 修改排班基本信息，Version 为客户端持有的版本号
type UpdateScheduleRequest struct {
	Name              *string    `json:"name"                binding:"omitempty,min=1,max=200"`
	Description       *string    `json:"description"         binding:"omitempty,max=2000"`
	StartDate         *time.Time `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
	AutoAssignEnabled *bool      `json:"auto_assign_enabled"`
	Version           int        `json:"version"             binding:"required,min=1"`
}

// ScheduleListRequest 排班列表查询参数
type ScheduleListRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=draft pending approved active completed cancelled"`
}

// TransitionRequest 状态流转请求
type TransitionRequest struct {
	To      string `json:"to"      binding:"required,oneof=draft pending approved active completed cancelled"`
	Version int    `json:"version" binding:"required,min=1"`
}

// SkillRequirementDTO 分配所需技能
type SkillRequirementDTO struct {
	Name     string `json:"name"     binding:"required,max=100"`
	Level    int    `json:"level"    binding:"min=0,max=10"`
	Critical bool   `json:"critical"`
}

// CreateAssignmentRequest 新增分配请求
// 分配比例不在 binding 层限制范围，由业务层统一返回 InconsistentAllocation
type CreateAssignmentRequest struct {
	ResourceID           string                `json:"resource_id"           binding:"required,max=64"`
	ProjectID            *string               `json:"project_id"            binding:"omitempty,max=64"`
	TaskID               *string               `json:"task_id"               binding:"omitempty,max=64"`
	StartDatetime        time.Time             `json:"start_datetime"        binding:"required"`
	EndDatetime          time.Time             `json:"end_datetime"          binding:"required"`
	AllocationPercentage *float64              `json:"allocation_percentage" binding:"required"`
	AllocatedHours       *float64              `json:"allocated_hours"       binding:"omitempty,min=0"`
	RequiredSkills       []SkillRequirementDTO `json:"required_skills"       binding:"omitempty,dive"`
	Notes                string                `json:"notes"                 binding:"max=2000"`
	Version              int                   `json:"version"               binding:"required,min=1"`
}

// UpdateAssignmentRequest 修改分配请求，未传字段保持不变
type UpdateAssignmentRequest struct {
	ResourceID           *string                `json:"resource_id"           binding:"omitempty,max=64"`
	StartDatetime        *time.Time             `json:"start_datetime"`
	EndDatetime          *time.Time             `json:"end_datetime"`
	AllocationPercentage *float64               `json:"allocation_percentage"`
	AllocatedHours       *float64               `json:"allocated_hours"       binding:"omitempty,min=0"`
	RequiredSkills       *[]SkillRequirementDTO `json:"required_skills"`
	Status               *string                `json:"status"                binding:"omitempty,oneof=assigned confirmed in_progress completed"`
	Notes                *string                `json:"notes"                 binding:"omitempty,max=2000"`
	Version              int                    `json:"version"               binding:"required,min=1"`
}

// CancelAssignmentRequest 取消分配请求
type CancelAssignmentRequest struct {
	Version int `json:"version" binding:"required,min=1"`
}

// ── 响应 ──

// ScheduleResponse 排班响应
type ScheduleResponse struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description,omitempty"`
	StartDate         string               `json:"start_date"`
	EndDate           string               `json:"end_date"`
	Status            string               `json:"status"`
	NextStates        []string             `json:"next_states"`
	AutoAssignEnabled bool                 `json:"auto_assign_enabled"`
	Version           int                  `json:"version"`
	SubmittedAt       *string              `json:"submitted_at,omitempty"`
	ApprovedAt        *string              `json:"approved_at,omitempty"`
	ActivatedAt       *string              `json:"activated_at,omitempty"`
	CompletedAt       *string              `json:"completed_at,omitempty"`
	CancelledAt       *string              `json:"cancelled_at,omitempty"`
	Assignments       []AssignmentResponse `json:"assignments,omitempty"`
	CreatedAt         string               `json:"created_at"`
	UpdatedAt         string               `json:"updated_at"`
}

// AssignmentResponse 分配响应
type AssignmentResponse struct {
	ID                   string                `json:"id"`
	ScheduleID           string                `json:"schedule_id"`
	ResourceID           string                `json:"resource_id"`
	ProjectID            *string               `json:"project_id,omitempty"`
	TaskID               *string               `json:"task_id,omitempty"`
	StartDatetime        string                `json:"start_datetime"`
	EndDatetime          string                `json:"end_datetime"`
	AllocationPercentage float64               `json:"allocation_percentage"`
	AllocatedHours       *float64              `json:"allocated_hours,omitempty"`
	RequiredSkills       []SkillRequirementDTO `json:"required_skills"`
	Status               string                `json:"status"`
	Notes                string                `json:"notes,omitempty"`
	ScheduleVersion      int                   `json:"schedule_version,omitempty"`
}

// TransitionResponse 状态流转结果
// 进入 active 时附带自动执行的检测与工作量分析结果
type TransitionResponse struct {
	Schedule  ScheduleResponse          `json:"schedule"`
	Detection *DetectionResponse        `json:"detection,omitempty"`
	Workload  *ScheduleWorkloadResponse `json:"workload,omitempty"`
	Warnings  []string                  `json:"warnings,omitempty"`
}
