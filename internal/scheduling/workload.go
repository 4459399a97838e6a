package scheduling

import (
	"math"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/pkg/interval"
)

const day = 24 * time.Hour

// WorkloadAnalyzer 工作量分析器
// 基于分配快照与可用性账本计算资源在某时段的分配工时、可用工时与利用率
type WorkloadAnalyzer struct {
	store  *AssignmentStore
	ledger *Ledger
	opts   Options
}

// NewWorkloadAnalyzer 创建分析器
func NewWorkloadAnalyzer(store *AssignmentStore, ledger *Ledger, opts Options) *WorkloadAnalyzer {
	return &WorkloadAnalyzer{store: store, ledger: ledger, opts: opts}
}

// Analyze 计算资源在 [periodStart, periodEnd) 内的工作量快照
// 返回值不含 AnalysisID 与 AnalyzedAt，由调用方在落库前填充
func (w *WorkloadAnalyzer) Analyze(resourceID string, periodStart, periodEnd time.Time, standardHoursPerDay float64) (model.WorkloadAnalysis, error) {
	if err := interval.Validate(periodStart, periodEnd); err != nil {
		return model.WorkloadAnalysis{}, err
	}
	if standardHoursPerDay <= 0 {
		standardHoursPerDay = w.opts.StandardHoursPerDay
	}

	assignments, err := w.store.Overlapping(resourceID, periodStart, periodEnd)
	if err != nil {
		return model.WorkloadAnalysis{}, err
	}

	// ── 1-2. 分配工时：按与统计时段的重叠部分裁剪 ──
	var assigned float64
	for i := range assignments {
		assigned += AssignedHours(&assignments[i], periodStart, periodEnd, standardHoursPerDay)
	}

	// ── 3. 可用工时：逐日取账本最低容量 ──
	available, err := w.availableHours(resourceID, periodStart, periodEnd, standardHoursPerDay)
	if err != nil {
		return model.WorkloadAnalysis{}, err
	}

	// ── 4-6. 利用率、分类、效率分 ──
	utilization := UtilizationRate(assigned, available)

	return model.WorkloadAnalysis{
		ResourceID:          resourceID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		TotalAssignedHours:  assigned,
		TotalAvailableHours: available,
		UtilizationRate:     utilization,
		WorkloadStatus:      Classify(utilization, w.opts),
		EfficiencyScore:     EfficiencyScore(utilization, w.opts.OptimalLower, w.opts.OptimalUpper),
		AssignmentCount:     len(assignments),
		StandardHoursPerDay: standardHoursPerDay,
	}, nil
}

// AssignedHours 分配在 [periodStart, periodEnd) 内贡献的工时
// 显式 AllocatedHours 按裁剪比例折算；否则为 重叠天数 × 每日标准工时 × 分配比例
func AssignedHours(a *model.ScheduleAssignment, periodStart, periodEnd time.Time, standardHoursPerDay float64) float64 {
	clipped := interval.OverlapDuration(a.StartDatetime, a.EndDatetime, periodStart, periodEnd)
	if clipped <= 0 {
		return 0
	}
	if a.AllocatedHours != nil {
		full := a.EndDatetime.Sub(a.StartDatetime)
		return *a.AllocatedHours * float64(clipped) / float64(full)
	}
	return interval.Days(clipped) * standardHoursPerDay * a.AllocationPercentage / 100
}

func (w *WorkloadAnalyzer) availableHours(resourceID string, periodStart, periodEnd time.Time, standardHoursPerDay float64) (float64, error) {
	var total float64
	for bucketStart := periodStart; bucketStart.Before(periodEnd); bucketStart = bucketStart.Add(day) {
		bucketEnd := bucketStart.Add(day)
		if bucketEnd.After(periodEnd) {
			bucketEnd = periodEnd
		}

		segments, err := w.ledger.Segments(resourceID, bucketStart, bucketEnd)
		if err != nil {
			return 0, err
		}
		total += bucketHours(segments, interval.Days(bucketEnd.Sub(bucketStart)), standardHoursPerDay)
	}
	return total, nil
}

// bucketHours 一个日桶的可用工时
// 最低容量段的生效记录若设置了 available_hours_per_day，则直接采用该工时
func bucketHours(segments []Segment, days, standardHoursPerDay float64) float64 {
	lowest := lowestSegment(segments)
	if lowest == nil {
		return days * standardHoursPerDay
	}
	if r := lowest.Record; r != nil && r.AvailableHoursPerDay != nil && r.AvailabilityType != model.AvailabilityUnavailable {
		return days * math.Min(math.Max(*r.AvailableHoursPerDay, 0), 24)
	}
	return days * standardHoursPerDay * lowest.Capacity / 100
}

func lowestSegment(segments []Segment) *Segment {
	var lowest *Segment
	for i := range segments {
		if lowest == nil || segments[i].Capacity < lowest.Capacity {
			lowest = &segments[i]
		}
	}
	return lowest
}

// UtilizationRate assigned/available×100，可用工时为 0 时返回 0，结果不为负且非 NaN/Inf
func UtilizationRate(assigned, available float64) float64 {
	if available <= 0 {
		return 0
	}
	u := assigned / available * 100
	if math.IsNaN(u) || math.IsInf(u, 0) || u < 0 {
		return 0
	}
	return u
}

// Classify 按阈值划分负载状态
func Classify(utilization float64, opts Options) string {
	switch {
	case utilization > opts.OverloadThreshold:
		return model.WorkloadOverloaded
	case utilization < opts.UnderutilizedThreshold:
		return model.WorkloadUnderutilized
	default:
		return model.WorkloadOptimal
	}
}

// EfficiencyScore 效率分
//
//	[lower, upper] 内为 100
//	低于 lower 时从 100 线性降至利用率 0 处的 0
//	高于 upper 时扣除 min((u-upper)*2, 100)，最低为 0
func EfficiencyScore(utilization, lower, upper float64) float64 {
	switch {
	case utilization >= lower && utilization <= upper:
		return 100
	case utilization < lower:
		if utilization <= 0 || lower <= 0 {
			return 0
		}
		return utilization / lower * 100
	default:
		penalty := math.Min((utilization-upper)*2, 100)
		return math.Max(100-penalty, 0)
	}
}
