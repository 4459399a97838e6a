package dto

// ── 冲突模块 DTO ──

// ConflictListRequest 冲突列表过滤参数
type ConflictListRequest struct {
	Type     string `form:"type"     binding:"omitempty,oneof=time_overlap resource_overallocation skill_mismatch availability_conflict workload_exceeded"`
	Severity string `form:"severity" binding:"omitempty,oneof=low medium high critical"`
	Status   string `form:"status"   binding:"omitempty,oneof=open in_progress resolved ignored"`
}

// BatchDetectRequest 批量检测请求
type BatchDetectRequest struct {
	ScheduleIDs []string `json:"schedule_ids" binding:"required,min=1,max=100,dive,uuid"`
}

// UpdateConflictStatusRequest 冲突处理请求，只修改状态与处理说明
type UpdateConflictStatusRequest struct {
	Status          string `json:"status"           binding:"required,oneof=open in_progress resolved ignored"`
	ResolutionNotes string `json:"resolution_notes" binding:"max=2000"`
}

// ── 响应 ──

// ConflictResponse 冲突响应
type ConflictResponse struct {
	ID              string   `json:"id"`
	ScheduleID      string   `json:"schedule_id"`
	ConflictType    string   `json:"conflict_type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	AssignmentIDs   []string `json:"assignment_ids"`
	ResourceIDs     []string `json:"resource_ids"`
	PeriodStart     string   `json:"period_start"`
	PeriodEnd       string   `json:"period_end"`
	Status          string   `json:"status"`
	ResolutionNotes string   `json:"resolution_notes,omitempty"`
	ResolvedBy      *string  `json:"resolved_by,omitempty"`
	ResolvedAt      *string  `json:"resolved_at,omitempty"`
	DetectedAt      string   `json:"detected_at"`
}

// DetectionResponse 单个排班的检测结果
type DetectionResponse struct {
	ScheduleID string                  `json:"schedule_id"`
	Conflicts  []ConflictResponse      `json:"conflicts"`
	Errors     []ResourceErrorResponse `json:"errors,omitempty"`
	DetectedAt string                  `json:"detected_at"`
}

// ScheduleErrorResponse 批量检测中失败的排班
type ScheduleErrorResponse struct {
	ScheduleID string `json:"schedule_id"`
	Error      string `json:"error"`
}

// BatchDetectResponse 批量检测结果，已提交的排班不受后续失败影响
type BatchDetectResponse struct {
	Results []DetectionResponse     `json:"results"`
	Errors  []ScheduleErrorResponse `json:"errors,omitempty"`
}

// ConflictSummaryResponse 冲突统计
type ConflictSummaryResponse struct {
	ScheduleID string         `json:"schedule_id"`
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
	ByStatus   map[string]int `json:"by_status"`
}
