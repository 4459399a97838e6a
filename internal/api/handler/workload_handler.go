package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/service"
	"github.com/hgj313/hr2-sub000/pkg/response"
)

// WorkloadHandler 工作量分析 HTTP 处理器
type WorkloadHandler struct {
	workloadSvc service.WorkloadService
}

// NewWorkloadHandler 创建 WorkloadHandler
func NewWorkloadHandler(workloadSvc service.WorkloadService) *WorkloadHandler {
	return &WorkloadHandler{workloadSvc: workloadSvc}
}

// Analyze 分析单个资源的工作量
// POST /api/v1/workload/analyze
func (h *WorkloadHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeWorkloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	result, err := h.workloadSvc.Analyze(c.Request.Context(), &req)
	if err != nil {
		h.handleWorkloadError(c, err)
		return
	}
	response.OK(c, result)
}

// AnalyzeSchedule 分析排班涉及的全部资源
// POST /api/v1/schedules/:id/workload
func (h *WorkloadHandler) AnalyzeSchedule(c *gin.Context) {
	result, err := h.workloadSvc.AnalyzeSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleWorkloadError(c, err)
		return
	}
	if len(result.Errors) > 0 {
		response.Accepted(c, result, partialDetails(len(result.Errors)))
		return
	}
	response.OK(c, result)
}

// History 资源工作量历史
// GET /api/v1/resources/:id/workload
func (h *WorkloadHandler) History(c *gin.Context) {
	var req dto.WorkloadHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	list, err := h.workloadSvc.ListHistory(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleWorkloadError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

func (h *WorkloadHandler) handleWorkloadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 16101, "排班不存在")
	default:
		if !handleEngineError(c, err) {
			response.InternalError(c)
		}
	}
}
