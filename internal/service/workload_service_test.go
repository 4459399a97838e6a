package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
	"github.com/hgj313/hr2-sub000/pkg/mqtt"
)

// ── Analyze 测试 ──

func TestWorkloadService_Analyze_ScenarioA(t *testing.T) {
	env := newTestEnv()
	seedScenarioA(env)

	resp, err := env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID:  "R1",
		PeriodStart: jan(1),
		PeriodEnd:   jan(8),
	})
	if err != nil {
		t.Fatalf("Analyze 应成功: %v", err)
	}
	if resp.TotalAssignedHours != 28.8 {
		t.Errorf("期望分配工时 28.8，实际=%.4f", resp.TotalAssignedHours)
	}
	if resp.TotalAvailableHours != 56 {
		t.Errorf("期望可用工时 56，实际=%.4f", resp.TotalAvailableHours)
	}
	if resp.UtilizationRate != 51.43 {
		t.Errorf("期望利用率 51.43，实际=%.4f", resp.UtilizationRate)
	}
	if resp.WorkloadStatus != model.WorkloadUnderutilized {
		t.Errorf("期望 underutilized，实际=%s", resp.WorkloadStatus)
	}
	if resp.AssignmentCount != 2 || resp.StandardHoursPerDay != 8 {
		t.Errorf("期望 2 条分配/每日 8 小时，实际 %d/%.1f", resp.AssignmentCount, resp.StandardHoursPerDay)
	}
	if resp.ScheduleID != nil {
		t.Error("未指定排班时 schedule_id 应为空")
	}

	if env.workload.len() != 1 {
		t.Errorf("快照应已写入，实际=%d", env.workload.len())
	}
	topics := env.publisher.topics()
	if len(topics) != 1 || topics[0] != mqtt.ResourceWorkloadTopic("R1") {
		t.Errorf("期望发布一条工作量事件，实际=%v", topics)
	}
}

func TestWorkloadService_Analyze_CustomStandardHours(t *testing.T) {
	env := newTestEnv()
	seedScenarioA(env)

	resp, err := env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID:          "R1",
		PeriodStart:         jan(1),
		PeriodEnd:           jan(8),
		StandardHoursPerDay: floatPtr(4),
	})
	if err != nil {
		t.Fatalf("Analyze 应成功: %v", err)
	}
	if resp.TotalAssignedHours != 14.4 || resp.TotalAvailableHours != 28 {
		t.Errorf("每日 4 小时期望 14.4/28，实际 %.2f/%.2f", resp.TotalAssignedHours, resp.TotalAvailableHours)
	}
	if resp.UtilizationRate != 51.43 {
		t.Errorf("利用率不随标准工时变化，实际=%.2f", resp.UtilizationRate)
	}
}

func TestWorkloadService_Analyze_UnavailableReducesCapacity(t *testing.T) {
	env := newTestEnv()
	seedScenarioA(env)
	_ = env.availability.Create(context.Background(), &model.ResourceAvailability{
		ResourceID:       "R1",
		StartDatetime:    jan(6),
		EndDatetime:      jan(8),
		AvailabilityType: model.AvailabilityUnavailable,
		Source:           model.AvailabilitySourceManual,
	})

	resp, err := env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID: "R1", PeriodStart: jan(1), PeriodEnd: jan(8),
	})
	if err != nil {
		t.Fatalf("Analyze 应成功: %v", err)
	}
	if resp.TotalAvailableHours != 40 {
		t.Errorf("两天不可用后期望可用工时 40，实际=%.2f", resp.TotalAvailableHours)
	}
	if resp.UtilizationRate != 72 {
		t.Errorf("期望利用率 72，实际=%.2f", resp.UtilizationRate)
	}
	if resp.WorkloadStatus != model.WorkloadOptimal {
		t.Errorf("期望 optimal，实际=%s", resp.WorkloadStatus)
	}
}

func TestWorkloadService_Analyze_Errors(t *testing.T) {
	env := newTestEnv()
	env.directory.missing["ghost"] = true

	_, err := env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID: "R1", PeriodStart: jan(8), PeriodEnd: jan(1),
	})
	if !errors.Is(err, pkgerrors.ErrInvalidInterval) {
		t.Errorf("期望 ErrInvalidInterval，实际: %v", err)
	}

	_, err = env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID: "ghost", PeriodStart: jan(1), PeriodEnd: jan(8),
	})
	if !errors.Is(err, pkgerrors.ErrResourceNotFound) {
		t.Errorf("期望 ErrResourceNotFound，实际: %v", err)
	}

	_, err = env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID: "R1", ScheduleID: strPtr("missing"), PeriodStart: jan(1), PeriodEnd: jan(8),
	})
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
	if env.workload.len() != 0 {
		t.Errorf("失败的分析不应写入快照，实际=%d", env.workload.len())
	}
}

func TestWorkloadService_Analyze_IgnoresCancelledSchedules(t *testing.T) {
	env := newTestEnv()
	seedScenarioA(env)
	env.seedSchedule("S9", model.ScheduleStatusCancelled, jan(1), jan(8))
	env.seedAssignment("x1", "S9", "R1", jan(1), jan(8), 100)

	resp, err := env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
		ResourceID: "R1", PeriodStart: jan(1), PeriodEnd: jan(8),
	})
	if err != nil {
		t.Fatalf("Analyze 应成功: %v", err)
	}
	if resp.AssignmentCount != 2 {
		t.Errorf("已取消排班的分配不应计入，实际=%d", resp.AssignmentCount)
	}
}

// ── AnalyzeSchedule 测试 ──

func TestWorkloadService_AnalyzeSchedule(t *testing.T) {
	env := newTestEnv()
	seedScenarioA(env)
	env.seedAssignment("b1", "S1", "R2", jan(1), jan(8), 100)
	env.seedAssignment("c1", "S1", "ghost", jan(1), jan(2), 50)
	env.directory.missing["ghost"] = true

	resp, err := env.svc.Workload.AnalyzeSchedule(context.Background(), "S1")
	if err != nil {
		t.Fatalf("AnalyzeSchedule 应成功: %v", err)
	}
	if len(resp.Analyses) != 2 {
		t.Fatalf("期望 2 条快照，实际=%d", len(resp.Analyses))
	}
	if resp.Analyses[0].ResourceID != "R1" || resp.Analyses[1].ResourceID != "R2" {
		t.Errorf("快照应按资源排序，实际 %s, %s", resp.Analyses[0].ResourceID, resp.Analyses[1].ResourceID)
	}
	if resp.Analyses[1].UtilizationRate != 100 || resp.Analyses[1].WorkloadStatus != model.WorkloadOptimal {
		t.Errorf("R2 满负荷应为 optimal，实际 %.2f %s", resp.Analyses[1].UtilizationRate, resp.Analyses[1].WorkloadStatus)
	}
	for _, a := range resp.Analyses {
		if a.ScheduleID == nil || *a.ScheduleID != "S1" {
			t.Errorf("快照应关联排班 S1，实际=%v", a.ScheduleID)
		}
	}
	if len(resp.Errors) != 1 || resp.Errors[0].ResourceID != "ghost" {
		t.Errorf("ghost 应记入 Errors，实际=%+v", resp.Errors)
	}
}

func TestWorkloadService_AnalyzeSchedule_NotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Workload.AnalyzeSchedule(context.Background(), "missing")
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("期望 ErrScheduleNotFound，实际: %v", err)
	}
}

// ── ListHistory 测试 ──

func TestWorkloadService_ListHistory(t *testing.T) {
	env := newTestEnv()
	seedScenarioA(env)

	var mu sync.Mutex
	tick := jan(20)
	env.svc.rt.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Hour)
		return tick
	}

	for i := 0; i < 3; i++ {
		if _, err := env.svc.Workload.Analyze(context.Background(), &dto.AnalyzeWorkloadRequest{
			ResourceID: "R1", PeriodStart: jan(1), PeriodEnd: jan(8),
		}); err != nil {
			t.Fatalf("Analyze 应成功: %v", err)
		}
	}
	if _, err := env.svc.Workload.AnalyzeSchedule(context.Background(), "S1"); err != nil {
		t.Fatalf("AnalyzeSchedule 应成功: %v", err)
	}

	all, err := env.svc.Workload.ListHistory(context.Background(), "R1", nil)
	if err != nil {
		t.Fatalf("ListHistory 应成功: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("期望 4 条历史，实际=%d", len(all))
	}
	if all[0].AnalyzedAt >= all[3].AnalyzedAt {
		t.Errorf("历史应按分析时间升序，实际 %s ... %s", all[0].AnalyzedAt, all[3].AnalyzedAt)
	}

	bySchedule, _ := env.svc.Workload.ListHistory(context.Background(), "R1", &dto.WorkloadHistoryRequest{ScheduleID: "S1"})
	if len(bySchedule) != 1 {
		t.Errorf("按排班过滤期望 1 条，实际=%d", len(bySchedule))
	}

	limited, _ := env.svc.Workload.ListHistory(context.Background(), "R1", &dto.WorkloadHistoryRequest{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit=2 期望 2 条，实际=%d", len(limited))
	}

	_, err = env.svc.Workload.ListHistory(context.Background(), "R1", &dto.WorkloadHistoryRequest{From: jan(8), To: jan(1)})
	if !errors.Is(err, pkgerrors.ErrInvalidInterval) {
		t.Errorf("倒序时间范围期望 ErrInvalidInterval，实际: %v", err)
	}
}
