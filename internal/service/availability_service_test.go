package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

// ── Create 测试 ──

func TestAvailabilityService_Create_CapacityRules(t *testing.T) {
	cases := map[string]struct {
		typ      string
		capacity *float64
		want     float64
		wantErr  error
	}{
		"unavailable ignores capacity": {model.AvailabilityUnavailable, floatPtr(80), 0, nil},
		"available defaults to full":   {model.AvailabilityAvailable, nil, 100, nil},
		"available with capacity":      {model.AvailabilityAvailable, floatPtr(90), 90, nil},
		"limited":                      {model.AvailabilityLimited, floatPtr(50), 50, nil},
		"limited without capacity":     {model.AvailabilityLimited, nil, 0, ErrCapacityRequired},
		"capacity out of range":        {model.AvailabilityLimited, floatPtr(140), 0, ErrInvalidCapacity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			resp, err := env.svc.Availability.Create(context.Background(), &dto.CreateAvailabilityRequest{
				ResourceID:         "R1",
				StartDatetime:      jan(2),
				EndDatetime:        jan(4),
				AvailabilityType:   tc.typ,
				CapacityPercentage: tc.capacity,
			}, "op-1")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("期望 %v，实际: %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create 应成功: %v", err)
			}
			if resp.CapacityPercentage != tc.want {
				t.Errorf("期望容量 %.0f，实际=%.0f", tc.want, resp.CapacityPercentage)
			}
			if resp.Source != model.AvailabilitySourceManual {
				t.Errorf("手工录入来源应为 manual，实际=%s", resp.Source)
			}
		})
	}
}

func TestAvailabilityService_Create_InvalidInterval(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Availability.Create(context.Background(), &dto.CreateAvailabilityRequest{
		ResourceID: "R1", StartDatetime: jan(4), EndDatetime: jan(4), AvailabilityType: model.AvailabilityUnavailable,
	}, "op-1")
	if !errors.Is(err, pkgerrors.ErrInvalidInterval) {
		t.Errorf("期望 ErrInvalidInterval，实际: %v", err)
	}
}

// ── List / Delete 测试 ──

func TestAvailabilityService_ListAndDelete(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	first, _ := env.svc.Availability.Create(ctx, &dto.CreateAvailabilityRequest{
		ResourceID: "R1", StartDatetime: jan(2), EndDatetime: jan(4), AvailabilityType: model.AvailabilityUnavailable,
	}, "op-1")
	_, _ = env.svc.Availability.Create(ctx, &dto.CreateAvailabilityRequest{
		ResourceID: "R1", StartDatetime: jan(10), EndDatetime: jan(12), AvailabilityType: model.AvailabilityUnavailable,
	}, "op-1")

	list, err := env.svc.Availability.List(ctx, &dto.AvailabilityQuery{ResourceID: "R1", Start: jan(1), End: jan(5)})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(list) != 1 || list[0].ID != first.ID {
		t.Errorf("窗口内只应有第一条记录，实际=%+v", list)
	}

	all, _ := env.svc.Availability.List(ctx, &dto.AvailabilityQuery{ResourceID: "R1"})
	if len(all) != 2 {
		t.Errorf("不限窗口应返回 2 条，实际=%d", len(all))
	}

	if err := env.svc.Availability.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if err := env.svc.Availability.Delete(ctx, first.ID); !errors.Is(err, ErrAvailabilityNotFound) {
		t.Errorf("重复删除期望 ErrAvailabilityNotFound，实际: %v", err)
	}
}

// ── Check 测试 ──

func TestAvailabilityService_Check(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, _ = env.svc.Availability.Create(ctx, &dto.CreateAvailabilityRequest{
		ResourceID: "R1", StartDatetime: jan(2), EndDatetime: jan(4),
		AvailabilityType: model.AvailabilityLimited, CapacityPercentage: floatPtr(50), Reason: "兼职",
	}, "op-1")

	resp, err := env.svc.Availability.Check(ctx, &dto.AvailabilityCheckQuery{ResourceID: "R1", Start: jan(1), End: jan(5)})
	if err != nil {
		t.Fatalf("Check 应成功: %v", err)
	}
	if resp.CapacityPercentage != 50 || resp.Reason != "兼职" {
		t.Errorf("期望 50%% 兼职，实际 %.2f %s", resp.CapacityPercentage, resp.Reason)
	}
	if resp.LimitingStart == nil || *resp.LimitingStart != "2024-01-02T00:00:00Z" {
		t.Errorf("限制区间开始应为 1/2，实际=%v", resp.LimitingStart)
	}
	if len(resp.Segments) != 3 {
		t.Fatalf("期望 3 段，实际=%d", len(resp.Segments))
	}
	if resp.Segments[0].Capacity != 100 || resp.Segments[0].AvailabilityID != nil {
		t.Errorf("无记录覆盖的段应为 100%% 且无来源: %+v", resp.Segments[0])
	}
}

func TestAvailabilityService_Check_NoRecords(t *testing.T) {
	env := newTestEnv()
	resp, err := env.svc.Availability.Check(context.Background(), &dto.AvailabilityCheckQuery{ResourceID: "R1", Start: jan(1), End: jan(2)})
	if err != nil {
		t.Fatalf("Check 应成功: %v", err)
	}
	if resp.CapacityPercentage != 100 {
		t.Errorf("无记录时应为 100%%，实际=%.2f", resp.CapacityPercentage)
	}
}

// ── ImportICS 测试 ──

const weeklyStandupICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:standup
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;COUNT=4
SUMMARY:周会
END:VEVENT
END:VCALENDAR
`

func TestAvailabilityService_ImportICS_Content(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	manual, _ := env.svc.Availability.Create(ctx, &dto.CreateAvailabilityRequest{
		ResourceID: "R1", StartDatetime: jan(3), EndDatetime: jan(4), AvailabilityType: model.AvailabilityUnavailable,
	}, "op-1")

	req := &dto.ImportICSRequest{ResourceID: "R1", Content: weeklyStandupICS, WindowStart: jan(1), WindowEnd: jan(31)}
	resp, err := env.svc.Availability.ImportICS(ctx, req, "op-1")
	if err != nil {
		t.Fatalf("ImportICS 应成功: %v", err)
	}
	if resp.Imported != 4 {
		t.Errorf("期望导入 4 次发生，实际=%d", resp.Imported)
	}

	// 重复导入替换上次结果，手工记录保留
	if _, err := env.svc.Availability.ImportICS(ctx, req, "op-1"); err != nil {
		t.Fatalf("再次 ImportICS 应成功: %v", err)
	}
	all, _ := env.svc.Availability.List(ctx, &dto.AvailabilityQuery{ResourceID: "R1"})
	if len(all) != 5 {
		t.Errorf("期望 4 条导入 + 1 条手工记录，实际=%d", len(all))
	}
	found := false
	for _, r := range all {
		if r.ID == manual.ID {
			found = true
		}
	}
	if !found {
		t.Error("手工记录不应被导入替换")
	}
}

func TestAvailabilityService_ImportICS_URL(t *testing.T) {
	env := newTestEnv()
	var fetched string
	env.svc.Availability.(*availabilityService).fetch = func(_ context.Context, url string) (io.ReadCloser, error) {
		fetched = url
		return io.NopCloser(strings.NewReader(weeklyStandupICS)), nil
	}

	resp, err := env.svc.Availability.ImportICS(context.Background(), &dto.ImportICSRequest{
		ResourceID: "R1", URL: "https://calendar.example.com/r1.ics", WindowStart: jan(1), WindowEnd: jan(10),
	}, "op-1")
	if err != nil {
		t.Fatalf("ImportICS 应成功: %v", err)
	}
	if fetched != "https://calendar.example.com/r1.ics" {
		t.Errorf("应获取订阅地址，实际=%s", fetched)
	}
	if resp.Imported != 2 {
		t.Errorf("窗口内只有 2 次发生，实际=%d", resp.Imported)
	}
}

func TestAvailabilityService_ImportICS_Errors(t *testing.T) {
	env := newTestEnv()
	env.directory.missing["ghost"] = true
	ctx := context.Background()

	_, err := env.svc.Availability.ImportICS(ctx, &dto.ImportICSRequest{ResourceID: "R1", WindowStart: jan(1), WindowEnd: jan(2)}, "op-1")
	if !errors.Is(err, ErrICSSourceRequired) {
		t.Errorf("期望 ErrICSSourceRequired，实际: %v", err)
	}

	_, err = env.svc.Availability.ImportICS(ctx, &dto.ImportICSRequest{ResourceID: "ghost", Content: weeklyStandupICS, WindowStart: jan(1), WindowEnd: jan(2)}, "op-1")
	if !errors.Is(err, pkgerrors.ErrResourceNotFound) {
		t.Errorf("期望 ErrResourceNotFound，实际: %v", err)
	}

	_, err = env.svc.Availability.ImportICS(ctx, &dto.ImportICSRequest{ResourceID: "R1", Content: weeklyStandupICS, WindowStart: jan(2), WindowEnd: jan(1)}, "op-1")
	if !errors.Is(err, pkgerrors.ErrInvalidInterval) {
		t.Errorf("期望 ErrInvalidInterval，实际: %v", err)
	}

	env.svc.Availability.(*availabilityService).fetch = func(context.Context, string) (io.ReadCloser, error) {
		return nil, errors.New("timeout")
	}
	_, err = env.svc.Availability.ImportICS(ctx, &dto.ImportICSRequest{ResourceID: "R1", URL: "https://x.example.com/a.ics", WindowStart: jan(1), WindowEnd: jan(2)}, "op-1")
	if !errors.Is(err, ErrICSFetchFailed) {
		t.Errorf("期望 ErrICSFetchFailed，实际: %v", err)
	}
}

func TestAvailabilityService_ImportICS_FeedsDetection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedSchedule("S1", model.ScheduleStatusActive, jan(1), jan(8))
	env.seedAssignment("a1", "S1", "R1", jan(1), jan(2), 50)

	if _, err := env.svc.Availability.ImportICS(ctx, &dto.ImportICSRequest{
		ResourceID: "R1", Content: weeklyStandupICS, WindowStart: jan(1), WindowEnd: jan(8),
	}, "op-1"); err != nil {
		t.Fatalf("ImportICS 应成功: %v", err)
	}

	resp, err := env.svc.Conflict.Detect(ctx, "S1")
	if err != nil {
		t.Fatalf("Detect 应成功: %v", err)
	}
	c := findConflict(resp.Conflicts, model.ConflictAvailability)
	if c == nil {
		t.Fatal("导入的忙碌时段应产生可用性冲突")
	}
	if c.PeriodStart != time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC).Format(time.RFC3339) {
		t.Errorf("冲突应从 09:00 开始，实际=%s", c.PeriodStart)
	}
}
