package scheduling

import (
	"fmt"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

// 排班状态机：只允许逐级前进，cancelled 可由任意非终态进入
var transitions = map[string][]string{
	model.ScheduleStatusDraft:    {model.ScheduleStatusPending, model.ScheduleStatusCancelled},
	model.ScheduleStatusPending:  {model.ScheduleStatusApproved, model.ScheduleStatusCancelled},
	model.ScheduleStatusApproved: {model.ScheduleStatusActive, model.ScheduleStatusCancelled},
	model.ScheduleStatusActive:   {model.ScheduleStatusCompleted, model.ScheduleStatusCancelled},
}

// IsTerminal completed 与 cancelled 为终态
func IsTerminal(status string) bool {
	return status == model.ScheduleStatusCompleted || status == model.ScheduleStatusCancelled
}

// NextStates 当前状态允许流转到的状态
func NextStates(status string) []string {
	return append([]string(nil), transitions[status]...)
}

// ValidateTransition 校验状态流转，非法时返回 ErrInvalidTransition
func ValidateTransition(from, to string) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", pkgerrors.ErrInvalidTransition, from, to)
}

// ApplyTransition 校验并执行流转：更新状态与对应时间戳，版本号加一
// 校验失败时 schedule 保持不变
func ApplyTransition(s *model.Schedule, to string, now time.Time) error {
	if err := ValidateTransition(s.Status, to); err != nil {
		return err
	}

	s.Status = to
	s.Version++

	ts := now
	switch to {
	case model.ScheduleStatusPending:
		s.SubmittedAt = &ts
	case model.ScheduleStatusApproved:
		s.ApprovedAt = &ts
	case model.ScheduleStatusActive:
		s.ActivatedAt = &ts
	case model.ScheduleStatusCompleted:
		s.CompletedAt = &ts
	case model.ScheduleStatusCancelled:
		s.CancelledAt = &ts
	}
	return nil
}

// TriggersAnalysis 进入 active 时需要执行一次冲突检测与工作量分析
func TriggersAnalysis(to string) bool {
	return to == model.ScheduleStatusActive
}

// CheckMutable 已冻结的排班拒绝分配变更
func CheckMutable(s *model.Schedule) error {
	if s.IsFrozen() {
		return fmt.Errorf("%w: %s", pkgerrors.ErrScheduleFrozen, s.Status)
	}
	return nil
}
