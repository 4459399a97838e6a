package scheduling

import (
	"sort"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/pkg/interval"
)

// AssignmentStore 排班与分配的只读快照索引
// 由 service 从数据库加载后构造，检测与分析期间不会被修改
type AssignmentStore struct {
	schedules  map[string]model.Schedule
	byID       map[string]model.ScheduleAssignment
	byResource map[string][]model.ScheduleAssignment
}

// NewAssignmentStore 构造快照；已取消的分配保留在 Get 中，但不出现在任何区间查询里
func NewAssignmentStore(schedules []model.Schedule, assignments []model.ScheduleAssignment) *AssignmentStore {
	s := &AssignmentStore{
		schedules:  make(map[string]model.Schedule, len(schedules)),
		byID:       make(map[string]model.ScheduleAssignment, len(assignments)),
		byResource: make(map[string][]model.ScheduleAssignment),
	}
	for _, sch := range schedules {
		s.schedules[sch.ScheduleID] = sch
	}
	for _, a := range assignments {
		s.byID[a.AssignmentID] = a
		if a.IsCancelled() {
			continue
		}
		s.byResource[a.ResourceID] = append(s.byResource[a.ResourceID], a)
	}
	for id := range s.byResource {
		sortAssignments(s.byResource[id])
	}
	return s
}

// Schedule 按 ID 查询排班
func (s *AssignmentStore) Schedule(scheduleID string) (model.Schedule, bool) {
	sch, ok := s.schedules[scheduleID]
	return sch, ok
}

// Get 按 ID 查询分配
func (s *AssignmentStore) Get(assignmentID string) (model.ScheduleAssignment, bool) {
	a, ok := s.byID[assignmentID]
	return a, ok
}

// ByResource 资源的全部有效分配，按开始时间、ID 排序
func (s *AssignmentStore) ByResource(resourceID string) []model.ScheduleAssignment {
	return s.byResource[resourceID]
}

// BySchedule 某排班的全部有效分配，按开始时间、ID 排序
func (s *AssignmentStore) BySchedule(scheduleID string) []model.ScheduleAssignment {
	var out []model.ScheduleAssignment
	for _, list := range s.byResource {
		for _, a := range list {
			if a.ScheduleID == scheduleID {
				out = append(out, a)
			}
		}
	}
	sortAssignments(out)
	return out
}

// Overlapping 资源在 [start,end) 内有重叠的有效分配
func (s *AssignmentStore) Overlapping(resourceID string, start, end time.Time) ([]model.ScheduleAssignment, error) {
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}
	var out []model.ScheduleAssignment
	for _, a := range s.byResource[resourceID] {
		if !a.StartDatetime.Before(end) {
			break // 已按开始时间排序
		}
		if interval.Overlaps(a.StartDatetime, a.EndDatetime, start, end) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ResourcesInSchedule 某排班涉及的资源 ID，升序
func (s *AssignmentStore) ResourcesInSchedule(scheduleID string) []string {
	var ids []string
	for id, list := range s.byResource {
		for _, a := range list {
			if a.ScheduleID == scheduleID {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func sortAssignments(list []model.ScheduleAssignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartDatetime.Equal(list[j].StartDatetime) {
			return list[i].StartDatetime.Before(list[j].StartDatetime)
		}
		return list[i].AssignmentID < list[j].AssignmentID
	})
}
