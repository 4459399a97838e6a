package scheduling

import (
	"context"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// jan 2024 年 1 月某日 0 点（UTC）
func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func hour(d, h int) time.Time {
	return time.Date(2024, time.January, d, h, 0, 0, 0, time.UTC)
}

func assignment(id, scheduleID, resourceID string, start, end time.Time, alloc float64) model.ScheduleAssignment {
	return model.ScheduleAssignment{
		AssignmentID:         id,
		ScheduleID:           scheduleID,
		ResourceID:           resourceID,
		StartDatetime:        start,
		EndDatetime:          end,
		AllocationPercentage: alloc,
		Status:               model.AssignmentStatusAssigned,
	}
}

func availability(id, resourceID, typ string, start, end time.Time, capacity float64) model.ResourceAvailability {
	return model.ResourceAvailability{
		AvailabilityID:     id,
		ResourceID:         resourceID,
		StartDatetime:      start,
		EndDatetime:        end,
		AvailabilityType:   typ,
		CapacityPercentage: capacity,
	}
}

func schedule(id string, start, end time.Time) model.Schedule {
	return model.Schedule{ScheduleID: id, Name: id, StartDate: start, EndDate: end, Status: model.ScheduleStatusDraft}
}

// fakeDirectory 内存人员目录
type fakeDirectory struct {
	skills  map[string][]model.Skill
	missing map[string]bool
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{skills: map[string][]model.Skill{}, missing: map[string]bool{}}
}

func (f *fakeDirectory) Exists(_ context.Context, resourceID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.missing[resourceID], nil
}

func (f *fakeDirectory) GetSkills(_ context.Context, resourceID string) ([]model.Skill, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.skills[resourceID], nil
}
