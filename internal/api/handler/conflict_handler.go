package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/service"
	"github.com/hgj313/hr2-sub000/pkg/response"
)

// ConflictHandler 冲突检测 HTTP 处理器
type ConflictHandler struct {
	conflictSvc service.ConflictService
}

// NewConflictHandler 创建 ConflictHandler
func NewConflictHandler(conflictSvc service.ConflictService) *ConflictHandler {
	return &ConflictHandler{conflictSvc: conflictSvc}
}

// Detect 检测排班冲突
// POST /api/v1/schedules/:id/conflicts/detect
// 存在资源级失败时返回 202，已检测到的冲突仍然有效
func (h *ConflictHandler) Detect(c *gin.Context) {
	result, err := h.conflictSvc.Detect(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleConflictError(c, err)
		return
	}
	if len(result.Errors) > 0 {
		response.Accepted(c, result, partialDetails(len(result.Errors)))
		return
	}
	response.OK(c, result)
}

// DetectBatch 批量检测
// POST /api/v1/conflicts/detect-batch
func (h *ConflictHandler) DetectBatch(c *gin.Context) {
	var req dto.BatchDetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.conflictSvc.DetectBatch(c.Request.Context(), &req)
	if err != nil {
		h.handleConflictError(c, err)
		return
	}
	if len(result.Errors) > 0 {
		response.Accepted(c, result, partialDetails(len(result.Errors)))
		return
	}
	response.OK(c, result)
}

// List 排班冲突列表
// GET /api/v1/schedules/:id/conflicts
func (h *ConflictHandler) List(c *gin.Context) {
	var req dto.ConflictListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	list, err := h.conflictSvc.List(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleConflictError(c, err)
		return
	}
	response.OK(c, gin.H{"list": list})
}

// Summary 冲突统计
// GET /api/v1/schedules/:id/conflicts/summary
func (h *ConflictHandler) Summary(c *gin.Context) {
	result, err := h.conflictSvc.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleConflictError(c, err)
		return
	}
	response.OK(c, result)
}

// UpdateStatus 人工处理冲突
// PUT /api/v1/conflicts/:id/status
func (h *ConflictHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateConflictStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}
	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	result, err := h.conflictSvc.UpdateStatus(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleConflictError(c, err)
		return
	}
	response.OK(c, result)
}

// handleConflictError 冲突模块错误映射
func (h *ConflictHandler) handleConflictError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 15101, "排班不存在")
	case errors.Is(err, service.ErrConflictNotFound):
		response.NotFound(c, 15102, "冲突不存在")
	default:
		if !handleEngineError(c, err) {
			response.InternalError(c)
		}
	}
}
