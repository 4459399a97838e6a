package dto

import "time"

// ── 可用性模块 DTO ──

// CreateAvailabilityRequest 新增可用性记录
// unavailable 类型忽略 CapacityPercentage，按 0 处理
type CreateAvailabilityRequest struct {
	ResourceID           string    `json:"resource_id"             binding:"required,max=64"`
	StartDatetime        time.Time `json:"start_datetime"          binding:"required"`
	EndDatetime          time.Time `json:"end_datetime"            binding:"required"`
	AvailabilityType     string    `json:"availability_type"       binding:"required,oneof=available unavailable limited"`
	CapacityPercentage   *float64  `json:"capacity_percentage"     binding:"omitempty,min=0,max=100"`
	AvailableHoursPerDay *float64  `json:"available_hours_per_day" binding:"omitempty,min=0,max=24"`
	Reason               string    `json:"reason"                  binding:"max=500"`
}

// AvailabilityQuery 按资源与时间窗口查询
type AvailabilityQuery struct {
	ResourceID string    `form:"resource_id" binding:"required,max=64"`
	Start      time.Time `form:"start"       time_format:"2006-01-02T15:04:05Z07:00"`
	End        time.Time `form:"end"         time_format:"2006-01-02T15:04:05Z07:00"`
}

// AvailabilityCheckQuery 可用性判定查询，窗口必填
type AvailabilityCheckQuery struct {
	ResourceID string    `form:"resource_id" binding:"required,max=64"`
	Start      time.Time `form:"start"       binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End        time.Time `form:"end"         binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ImportICSRequest 从 iCalendar 导入忙碌时段
// Content 与 URL 二选一；导入只作用于 [WindowStart, WindowEnd)
type ImportICSRequest struct {
	ResourceID  string    `json:"resource_id"  binding:"required,max=64"`
	Content     string    `json:"content"`
	URL         string    `json:"url"          binding:"omitempty,url"`
	WindowStart time.Time `json:"window_start" binding:"required"`
	WindowEnd   time.Time `json:"window_end"   binding:"required"`
}

// ── 响应 ──

// AvailabilityResponse 可用性记录响应
type AvailabilityResponse struct {
	ID                   string   `json:"id"`
	ResourceID           string   `json:"resource_id"`
	StartDatetime        string   `json:"start_datetime"`
	EndDatetime          string   `json:"end_datetime"`
	AvailabilityType     string   `json:"availability_type"`
	CapacityPercentage   float64  `json:"capacity_percentage"`
	AvailableHoursPerDay *float64 `json:"available_hours_per_day,omitempty"`
	Reason               string   `json:"reason,omitempty"`
	Source               string   `json:"source"`
	CreatedAt            string   `json:"created_at"`
}

// SegmentResponse 账本分段：区间内生效的容量及其来源记录
type SegmentResponse struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Capacity       float64 `json:"capacity_percentage"`
	AvailabilityID *string `json:"availability_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

// AvailabilityCheckResponse 可用性判定结果
type AvailabilityCheckResponse struct {
	ResourceID         string            `json:"resource_id"`
	Start              string            `json:"start"`
	End                string            `json:"end"`
	CapacityPercentage float64           `json:"capacity_percentage"`
	Reason             string            `json:"reason,omitempty"`
	LimitingStart      *string           `json:"limiting_start,omitempty"`
	LimitingEnd        *string           `json:"limiting_end,omitempty"`
	Segments           []SegmentResponse `json:"segments"`
}

// ImportICSResponse 导入结果
type ImportICSResponse struct {
	ResourceID string `json:"resource_id"`
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
}
