// Package interval 半开区间 [start, end) 工具函数。
//
// 所有函数无副作用；相邻区间（end1 == start2）不视为重叠。
package interval

import (
	"fmt"
	"time"

	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

// Validate 校验区间合法性，end <= start 时返回 ErrInvalidInterval
func Validate(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: [%s, %s)", pkgerrors.ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

// Overlaps 判断 [a1,a2) 与 [b1,b2) 是否重叠
func Overlaps(a1, a2, b1, b2 time.Time) bool {
	return a1.Before(b2) && b1.Before(a2)
}

// Intersect 返回两个区间的交集，无交集时 ok=false
func Intersect(a1, a2, b1, b2 time.Time) (start, end time.Time, ok bool) {
	if !Overlaps(a1, a2, b1, b2) {
		return time.Time{}, time.Time{}, false
	}
	start = a1
	if b1.After(start) {
		start = b1
	}
	end = a2
	if b2.Before(end) {
		end = b2
	}
	return start, end, true
}

// OverlapDuration 返回重叠时长，无重叠返回 0
func OverlapDuration(a1, a2, b1, b2 time.Time) time.Duration {
	start, end, ok := Intersect(a1, a2, b1, b2)
	if !ok {
		return 0
	}
	return end.Sub(start)
}

// DurationHours 区间时长（小时，含小数）
func DurationHours(start, end time.Time) (float64, error) {
	if err := Validate(start, end); err != nil {
		return 0, err
	}
	return end.Sub(start).Hours(), nil
}

// Days 区间时长折算为天数（24 小时为 1 天，含小数）
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}
