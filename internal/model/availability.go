package model

import "time"

// 可用性类型
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
	AvailabilityLimited     = "limited"
)

// 可用性记录来源
const (
	AvailabilitySourceManual = "manual"
	AvailabilitySourceICS    = "ics"
)

// ResourceAvailability 人员可用性窗口 — 对应 resource_availabilities
// 多条记录重叠时以区间最窄者为准，等宽时以最新创建者为准
type ResourceAvailability struct {
	AvailabilityID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"availability_id"`
	ResourceID           string    `gorm:"type:varchar(64);not null"                      json:"resource_id"`
	StartDatetime        time.Time `gorm:"not null"                                       json:"start_datetime"`
	EndDatetime          time.Time `gorm:"not null"                                       json:"end_datetime"`
	AvailabilityType     string    `gorm:"type:varchar(20);not null;default:'available'"  json:"availability_type"` // available | unavailable | limited
	CapacityPercentage   float64   `gorm:"type:numeric(6,2);not null"                     json:"capacity_percentage"`
	AvailableHoursPerDay *float64  `gorm:"type:numeric(5,2)"                              json:"available_hours_per_day,omitempty"`
	Reason               string    `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	Source               string    `gorm:"type:varchar(20);not null;default:'manual'"     json:"source"`
	ExternalUID          *string   `gorm:"type:varchar(255)"                              json:"external_uid,omitempty"`
	BaseModel
}

func (ResourceAvailability) TableName() string { return "resource_availabilities" }

// [自证通过] internal/model/availability.go
