package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round2 对外输出时保留两位小数，内部计算始终使用全精度
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatTime 统一使用 RFC3339 UTC 输出
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatTimePtr 空指针返回 nil
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

// ResourceErrorResponse 批处理中被跳过的资源
type ResourceErrorResponse struct {
	ResourceID string `json:"resource_id"`
	Error      string `json:"error"`
}
