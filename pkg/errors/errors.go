package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ── 排班引擎错误分类 ──

var (
	// ErrInvalidInterval 区间非法（end <= start），在任何计算之前拒绝
	ErrInvalidInterval = errors.New("无效的时间区间：结束时间必须晚于开始时间")
	// ErrInvalidTransition 非法的排班状态流转，状态保持不变
	ErrInvalidTransition = errors.New("非法的排班状态流转")
	// ErrResourceNotFound 人员目录中不存在该资源
	ErrResourceNotFound = errors.New("资源不存在")
	// ErrInconsistentAllocation 分配比例超出 [0,100]
	ErrInconsistentAllocation = errors.New("分配比例必须在 0-100 之间")
	// ErrScheduleFrozen 排班已完成或已取消，分配不可再修改
	ErrScheduleFrozen = errors.New("排班已冻结，不可修改分配")
)

// ResourceError 批处理中单个资源的失败记录，不中断整批
type ResourceError struct {
	ResourceID string
	Err        error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("资源 %s: %v", e.ResourceID, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError 构造资源级错误
func NewResourceError(resourceID string, err error) *ResourceError {
	return &ResourceError{ResourceID: resourceID, Err: err}
}
