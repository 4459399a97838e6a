package dto

import "time"

// ── 工作量模块 DTO ──

// AnalyzeWorkloadRequest 单资源工作量分析请求
// StandardHoursPerDay 不传时使用配置值
type AnalyzeWorkloadRequest struct {
	ResourceID          string    `json:"resource_id"            binding:"required,max=64"`
	ScheduleID          *string   `json:"schedule_id"            binding:"omitempty,uuid"`
	PeriodStart         time.Time `json:"period_start"           binding:"required"`
	PeriodEnd           time.Time `json:"period_end"             binding:"required"`
	StandardHoursPerDay *float64  `json:"standard_hours_per_day" binding:"omitempty,gt=0,lte=24"`
}

// WorkloadHistoryRequest 工作量历史查询参数
type WorkloadHistoryRequest struct {
	ScheduleID string    `form:"schedule_id" binding:"omitempty,uuid"`
	From       time.Time `form:"from"        time_format:"2006-01-02T15:04:05Z07:00"`
	To         time.Time `form:"to"          time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int       `form:"limit"       binding:"omitempty,min=1,max=1000"`
}

// ── 响应 ──

// WorkloadResponse 工作量快照响应，数值保留两位小数
type WorkloadResponse struct {
	ID                  string  `json:"id"`
	ResourceID          string  `json:"resource_id"`
	ScheduleID          *string `json:"schedule_id,omitempty"`
	PeriodStart         string  `json:"period_start"`
	PeriodEnd           string  `json:"period_end"`
	TotalAssignedHours  float64 `json:"total_assigned_hours"`
	TotalAvailableHours float64 `json:"total_available_hours"`
	UtilizationRate     float64 `json:"utilization_rate"`
	WorkloadStatus      string  `json:"workload_status"`
	EfficiencyScore     float64 `json:"efficiency_score"`
	AssignmentCount     int     `json:"assignment_count"`
	StandardHoursPerDay float64 `json:"standard_hours_per_day"`
	AnalyzedAt          string  `json:"analyzed_at"`
}

// ScheduleWorkloadResponse 排班内所有资源的工作量快照
type ScheduleWorkloadResponse struct {
	ScheduleID string                  `json:"schedule_id"`
	Analyses   []WorkloadResponse      `json:"analyses"`
	Errors     []ResourceErrorResponse `json:"errors,omitempty"`
}
