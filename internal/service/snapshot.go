package service

import (
	"context"
	"sort"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/internal/repository"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
)

// snapshot 一次检测或分析使用的只读数据
type snapshot struct {
	store     *scheduling.AssignmentStore
	ledger    *scheduling.Ledger
	resources []string
}

// loadScheduleSnapshot 加载排班涉及的资源，以及这些资源在所有未取消排班中的分配与可用性
func loadScheduleSnapshot(ctx context.Context, repo *repository.Repository, schedule *model.Schedule) (*snapshot, error) {
	own, err := repo.Assignment.ListBySchedule(ctx, schedule.ScheduleID)
	if err != nil {
		return nil, err
	}
	resources := activeResources(own)

	related, err := repo.Assignment.ListActiveByResources(ctx, resources)
	if err != nil {
		return nil, err
	}
	assignments := mergeAssignments(own, related)

	schedules, err := repo.Schedule.ListByIDs(ctx, scheduleIDs(assignments, schedule.ScheduleID))
	if err != nil {
		return nil, err
	}
	schedules = ensureSchedule(schedules, schedule)

	start, end := span(assignments, schedule.StartDate, schedule.EndDate)
	records, err := repo.Availability.ListByResources(ctx, resources, start, end)
	if err != nil {
		return nil, err
	}

	return &snapshot{
		store:     scheduling.NewAssignmentStore(schedules, assignments),
		ledger:    scheduling.NewLedger(records),
		resources: resources,
	}, nil
}

// loadResourceSnapshot 加载单个资源在 [start,end) 内的分配与可用性
func loadResourceSnapshot(ctx context.Context, repo *repository.Repository, resourceID string, start, end time.Time) (*snapshot, error) {
	assignments, err := repo.Assignment.ListByResourceWindow(ctx, resourceID, start, end)
	if err != nil {
		return nil, err
	}
	schedules, err := repo.Schedule.ListByIDs(ctx, scheduleIDs(assignments, ""))
	if err != nil {
		return nil, err
	}
	records, err := repo.Availability.ListByResources(ctx, []string{resourceID}, start, end)
	if err != nil {
		return nil, err
	}
	return &snapshot{
		store:     scheduling.NewAssignmentStore(schedules, assignments),
		ledger:    scheduling.NewLedger(records),
		resources: []string{resourceID},
	}, nil
}

// ── 辅助函数 ──

// activeResources 未取消分配涉及的资源 ID，升序去重
func activeResources(list []model.ScheduleAssignment) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range list {
		if a.IsCancelled() || seen[a.ResourceID] {
			continue
		}
		seen[a.ResourceID] = true
		ids = append(ids, a.ResourceID)
	}
	sort.Strings(ids)
	return ids
}

func mergeAssignments(lists ...[]model.ScheduleAssignment) []model.ScheduleAssignment {
	seen := make(map[string]bool)
	var out []model.ScheduleAssignment
	for _, list := range lists {
		for _, a := range list {
			if seen[a.AssignmentID] {
				continue
			}
			seen[a.AssignmentID] = true
			out = append(out, a)
		}
	}
	return out
}

func scheduleIDs(list []model.ScheduleAssignment, extra string) []string {
	seen := make(map[string]bool)
	var ids []string
	if extra != "" {
		seen[extra] = true
		ids = append(ids, extra)
	}
	for _, a := range list {
		if !seen[a.ScheduleID] {
			seen[a.ScheduleID] = true
			ids = append(ids, a.ScheduleID)
		}
	}
	return ids
}

func ensureSchedule(list []model.Schedule, schedule *model.Schedule) []model.Schedule {
	for _, s := range list {
		if s.ScheduleID == schedule.ScheduleID {
			return list
		}
	}
	return append(list, *schedule)
}

// span 分配与排班窗口的并集范围，用于限定可用性记录的加载
func span(list []model.ScheduleAssignment, start, end time.Time) (time.Time, time.Time) {
	for _, a := range list {
		if a.StartDatetime.Before(start) {
			start = a.StartDatetime
		}
		if a.EndDatetime.After(end) {
			end = a.EndDatetime
		}
	}
	return start, end
}
