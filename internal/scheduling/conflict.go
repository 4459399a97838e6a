package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
	"github.com/hgj313/hr2-sub000/pkg/interval"
)

// allocationEpsilon 分配比例累加的浮点容差
const allocationEpsilon = 1e-9

// ErrUnknownSchedule 快照中不存在该排班
var ErrUnknownSchedule = errors.New("快照中不存在该排班")

// Directory 人员目录，提供资源存在性与技能查询
type Directory interface {
	Exists(ctx context.Context, resourceID string) (bool, error)
	GetSkills(ctx context.Context, resourceID string) ([]model.Skill, error)
}

// DetectionResult 一次检测的结果
// Conflicts 为该排班完整的冲突集合；Errors 为被跳过的资源
type DetectionResult struct {
	ScheduleID string
	Conflicts  []model.ScheduleConflict
	Errors     []*pkgerrors.ResourceError
}

// ConflictDetector 冲突检测器
//
// 对排班涉及的每个资源独立执行五类检测并合并：
// 时间重叠、超额分配（扫描线）、技能不匹配、可用性冲突、工作量超标。
// 资源之间并行，结果按资源 ID 顺序合并后统一排序。
type ConflictDetector struct {
	store     *AssignmentStore
	ledger    *Ledger
	directory Directory
	analyzer  *WorkloadAnalyzer
	opts      Options
}

// NewConflictDetector 创建检测器
func NewConflictDetector(store *AssignmentStore, ledger *Ledger, directory Directory, opts Options) *ConflictDetector {
	return &ConflictDetector{
		store:     store,
		ledger:    ledger,
		directory: directory,
		analyzer:  NewWorkloadAnalyzer(store, ledger, opts),
		opts:      opts,
	}
}

// finding 检测过程中的冲突，附带排序用的最早开始时间
type finding struct {
	conflict model.ScheduleConflict
	earliest time.Time
	key      string
}

type resourceOutcome struct {
	findings []finding
	err      *pkgerrors.ResourceError
}

// Detect 计算排班的完整冲突集合
// 单个资源失败只记入 Errors；ctx 取消时返回 ctx.Err() 且不返回部分结果
func (d *ConflictDetector) Detect(ctx context.Context, scheduleID string) (*DetectionResult, error) {
	schedule, ok := d.store.Schedule(scheduleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchedule, scheduleID)
	}

	resources := d.store.ResourcesInSchedule(scheduleID)
	outcomes := make([]resourceOutcome, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.opts.MaxParallel, 1))
	for i, resourceID := range resources {
		i, resourceID := i, resourceID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = d.detectResource(gctx, &schedule, resourceID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &DetectionResult{ScheduleID: scheduleID}
	var all []finding
	for _, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, o.err)
			continue
		}
		all = append(all, o.findings...)
	}

	sortFindings(all)
	result.Conflicts = make([]model.ScheduleConflict, 0, len(all))
	for _, f := range all {
		result.Conflicts = append(result.Conflicts, f.conflict)
	}
	return result, nil
}

func (d *ConflictDetector) detectResource(ctx context.Context, schedule *model.Schedule, resourceID string) resourceOutcome {
	exists, err := d.directory.Exists(ctx, resourceID)
	if err != nil {
		return resourceOutcome{err: pkgerrors.NewResourceError(resourceID, err)}
	}
	if !exists {
		return resourceOutcome{err: pkgerrors.NewResourceError(resourceID, pkgerrors.ErrResourceNotFound)}
	}

	all := d.store.ByResource(resourceID)
	own := filterSchedule(all, schedule.ScheduleID)
	scope := own
	if d.opts.CrossSchedule {
		scope = all
	}

	var skills []model.Skill
	if needsSkills(own) {
		skills, err = d.directory.GetSkills(ctx, resourceID)
		if err != nil {
			return resourceOutcome{err: pkgerrors.NewResourceError(resourceID, err)}
		}
	}

	var findings []finding
	findings = append(findings, d.detectTimeOverlap(schedule, resourceID, scope)...)
	findings = append(findings, d.detectOverallocation(schedule, resourceID, scope)...)
	findings = append(findings, d.detectSkillMismatch(schedule, resourceID, own, skills)...)

	availability, err := d.detectAvailability(schedule, resourceID, own)
	if err != nil {
		return resourceOutcome{err: pkgerrors.NewResourceError(resourceID, err)}
	}
	findings = append(findings, availability...)

	workload, err := d.detectWorkload(schedule, resourceID)
	if err != nil {
		return resourceOutcome{err: pkgerrors.NewResourceError(resourceID, err)}
	}
	findings = append(findings, workload...)

	return resourceOutcome{findings: findings}
}

// ════════════════════════════════════════════════════════════
// 1. 时间重叠：两两比较，重叠且合计分配超过 100
// ════════════════════════════════════════════════════════════

func (d *ConflictDetector) detectTimeOverlap(schedule *model.Schedule, resourceID string, scope []model.ScheduleAssignment) []finding {
	var out []finding
	for i := 0; i < len(scope); i++ {
		a := scope[i]
		for j := i + 1; j < len(scope); j++ {
			b := scope[j]
			if !b.StartDatetime.Before(a.EndDatetime) {
				break // scope 按开始时间排序，之后的分配不会再与 a 重叠
			}
			if a.ScheduleID != schedule.ScheduleID && b.ScheduleID != schedule.ScheduleID {
				continue
			}
			start, end, ok := interval.Intersect(a.StartDatetime, a.EndDatetime, b.StartDatetime, b.EndDatetime)
			if !ok {
				continue
			}
			combined := a.AllocationPercentage + b.AllocationPercentage
			if combined <= 100+allocationEpsilon {
				continue
			}

			out = append(out, newFinding(schedule.ScheduleID, model.ConflictTimeOverlap,
				overlapSeverity(combined-100), resourceID, []model.ScheduleAssignment{a, b}, start, end,
				fmt.Sprintf("资源 %s 的分配 %s 与 %s 在重叠时段内合计分配 %.2f%%", resourceID, a.AssignmentID, b.AssignmentID, combined)))
		}
	}
	return out
}

func overlapSeverity(excess float64) string {
	switch {
	case excess > 50:
		return model.SeverityHigh
	case excess > 20:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// ════════════════════════════════════════════════════════════
// 2. 超额分配：扫描线，每个超阈值的极大区间产生一条冲突
// ════════════════════════════════════════════════════════════

type sweepEvent struct {
	at    time.Time
	start bool
	a     *model.ScheduleAssignment
}

// OverallocatedRegion 运行分配总和超过 100 的极大连续区间
type OverallocatedRegion struct {
	Start       time.Time
	End         time.Time
	Peak        float64
	Assignments []model.ScheduleAssignment
}

// SweepOverallocation 扫描线求出所有超额分配区间
// 事件按 (时间, 结束先于开始, 分配 ID) 排序，同一时刻的事件全部处理后再判断阈值
func SweepOverallocation(assignments []model.ScheduleAssignment) []OverallocatedRegion {
	events := make([]sweepEvent, 0, len(assignments)*2)
	for i := range assignments {
		a := &assignments[i]
		events = append(events,
			sweepEvent{at: a.StartDatetime, start: true, a: a},
			sweepEvent{at: a.EndDatetime, start: false, a: a},
		)
	}
	sort.Slice(events, func(i, j int) bool {
		ei, ej := events[i], events[j]
		if !ei.at.Equal(ej.at) {
			return ei.at.Before(ej.at)
		}
		if ei.start != ej.start {
			return !ei.start
		}
		return ei.a.AssignmentID < ej.a.AssignmentID
	})

	var (
		regions []OverallocatedRegion
		current *OverallocatedRegion
		members map[string]bool
		running float64
		active  = make(map[string]*model.ScheduleAssignment)
	)

	for i := 0; i < len(events); {
		at := events[i].at
		for ; i < len(events) && events[i].at.Equal(at); i++ {
			e := events[i]
			if e.start {
				running += e.a.AllocationPercentage
				active[e.a.AssignmentID] = e.a
			} else {
				running -= e.a.AllocationPercentage
				delete(active, e.a.AssignmentID)
			}
		}

		over := running > 100+allocationEpsilon
		switch {
		case over && current == nil:
			current = &OverallocatedRegion{Start: at, Peak: running}
			members = make(map[string]bool)
			fallthrough
		case over:
			if running > current.Peak {
				current.Peak = running
			}
			for id, a := range active {
				if !members[id] {
					members[id] = true
					current.Assignments = append(current.Assignments, *a)
				}
			}
		case current != nil:
			current.End = at
			sortAssignments(current.Assignments)
			regions = append(regions, *current)
			current = nil
		}
	}
	return regions
}

func (d *ConflictDetector) detectOverallocation(schedule *model.Schedule, resourceID string, scope []model.ScheduleAssignment) []finding {
	var out []finding
	for _, region := range SweepOverallocation(scope) {
		if !involvesSchedule(region.Assignments, schedule.ScheduleID) {
			continue
		}
		out = append(out, newFinding(schedule.ScheduleID, model.ConflictResourceOverallocation,
			peakSeverity(region.Peak), resourceID, region.Assignments, region.Start, region.End,
			fmt.Sprintf("资源 %s 在 %s 至 %s 期间同时承担 %d 项分配，峰值分配 %.2f%%",
				resourceID, region.Start.Format(time.RFC3339), region.End.Format(time.RFC3339), len(region.Assignments), region.Peak)))
	}
	return out
}

// peakSeverity 超额分配与工作量超标共用：>150 critical，>120 high，否则 medium
func peakSeverity(percent float64) string {
	switch {
	case percent > 150:
		return model.SeverityCritical
	case percent > 120:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// ════════════════════════════════════════════════════════════
// 3. 技能不匹配
// ════════════════════════════════════════════════════════════

// MissingSkills 返回未声明或等级不足的技能要求
func MissingSkills(required []model.SkillRequirement, declared []model.Skill) []model.SkillRequirement {
	levels := make(map[string]int, len(declared))
	for _, s := range declared {
		name := normalizeSkill(s.Name)
		if lv, ok := levels[name]; !ok || s.Level > lv {
			levels[name] = s.Level
		}
	}

	var missing []model.SkillRequirement
	for _, req := range required {
		lv, ok := levels[normalizeSkill(req.Name)]
		if !ok || lv < req.Level {
			missing = append(missing, req)
		}
	}
	return missing
}

// SkillSeverity 关键技能缺失：1 项 high，2 项及以上 critical；
// 仅非关键技能缺失：1 项 low，2 项及以上 medium
func SkillSeverity(missing []model.SkillRequirement) string {
	var critical int
	for _, m := range missing {
		if m.Critical {
			critical++
		}
	}
	switch {
	case critical >= 2:
		return model.SeverityCritical
	case critical == 1:
		return model.SeverityHigh
	case len(missing) >= 2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func (d *ConflictDetector) detectSkillMismatch(schedule *model.Schedule, resourceID string, own []model.ScheduleAssignment, skills []model.Skill) []finding {
	var out []finding
	for _, a := range own {
		if len(a.RequiredSkills) == 0 {
			continue
		}
		missing := MissingSkills(a.RequiredSkills, skills)
		if len(missing) == 0 {
			continue
		}
		out = append(out, newFinding(schedule.ScheduleID, model.ConflictSkillMismatch,
			SkillSeverity(missing), resourceID, []model.ScheduleAssignment{a}, a.StartDatetime, a.EndDatetime,
			fmt.Sprintf("资源 %s 不满足分配 %s 的技能要求: %s", resourceID, a.AssignmentID, describeSkills(missing))))
	}
	return out
}

func describeSkills(missing []model.SkillRequirement) string {
	parts := make([]string, 0, len(missing))
	for _, m := range missing {
		s := fmt.Sprintf("%s>=%d", m.Name, m.Level)
		if m.Critical {
			s += "(关键)"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func normalizeSkill(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func needsSkills(list []model.ScheduleAssignment) bool {
	for _, a := range list {
		if len(a.RequiredSkills) > 0 {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════
// 4. 可用性冲突：分配比例超过账本给出的最低容量
// ════════════════════════════════════════════════════════════

func (d *ConflictDetector) detectAvailability(schedule *model.Schedule, resourceID string, own []model.ScheduleAssignment) ([]finding, error) {
	var out []finding
	for _, a := range own {
		capacity, err := d.ledger.IsAvailable(resourceID, a.StartDatetime, a.EndDatetime)
		if err != nil {
			return nil, err
		}
		if capacity.Percentage >= FullCapacity || a.AllocationPercentage <= capacity.Percentage+allocationEpsilon {
			continue
		}

		desc := fmt.Sprintf("资源 %s 在 %s 至 %s 期间可用容量 %.2f%%，低于分配 %s 要求的 %.2f%%",
			resourceID, capacity.Start.Format(time.RFC3339), capacity.End.Format(time.RFC3339),
			capacity.Percentage, a.AssignmentID, a.AllocationPercentage)
		if capacity.Reason != "" {
			desc += "（" + capacity.Reason + "）"
		}
		out = append(out, newFinding(schedule.ScheduleID, model.ConflictAvailability,
			availabilitySeverity(capacity.Percentage, a.AllocationPercentage-capacity.Percentage),
			resourceID, []model.ScheduleAssignment{a}, capacity.Start, capacity.End, desc))
	}
	return out, nil
}

func availabilitySeverity(capacity, shortfall float64) string {
	switch {
	case capacity <= 0 || shortfall > 50:
		return model.SeverityHigh
	case shortfall > 20:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// ════════════════════════════════════════════════════════════
// 5. 工作量超标：排班窗口内利用率超过过载阈值
// ════════════════════════════════════════════════════════════

func (d *ConflictDetector) detectWorkload(schedule *model.Schedule, resourceID string) ([]finding, error) {
	analysis, err := d.analyzer.Analyze(resourceID, schedule.StartDate, schedule.EndDate, d.opts.StandardHoursPerDay)
	if err != nil {
		return nil, err
	}
	if analysis.WorkloadStatus != model.WorkloadOverloaded {
		return nil, nil
	}

	involved, err := d.store.Overlapping(resourceID, schedule.StartDate, schedule.EndDate)
	if err != nil {
		return nil, err
	}
	return []finding{newFinding(schedule.ScheduleID, model.ConflictWorkloadExceeded,
		peakSeverity(analysis.UtilizationRate), resourceID, involved, schedule.StartDate, schedule.EndDate,
		fmt.Sprintf("资源 %s 在排班窗口内利用率 %.2f%%（分配 %.2f 小时 / 可用 %.2f 小时）",
			resourceID, analysis.UtilizationRate, analysis.TotalAssignedHours, analysis.TotalAvailableHours))}, nil
}

// ════════════════════════════════════════════════════════════
// 排序与指纹
// ════════════════════════════════════════════════════════════

func newFinding(scheduleID, conflictType, severity, resourceID string, involved []model.ScheduleAssignment, start, end time.Time, description string) finding {
	ids := make([]string, 0, len(involved))
	var earliest time.Time
	for i, a := range involved {
		ids = append(ids, a.AssignmentID)
		if i == 0 || a.StartDatetime.Before(earliest) {
			earliest = a.StartDatetime
		}
	}
	sort.Strings(ids)

	c := model.ScheduleConflict{
		ScheduleID:    scheduleID,
		ConflictType:  conflictType,
		Severity:      severity,
		Description:   description,
		AssignmentIDs: ids,
		ResourceIDs:   []string{resourceID},
		PeriodStart:   start,
		PeriodEnd:     end,
		Status:        model.ConflictStatusOpen,
	}
	c.Fingerprint = Fingerprint(&c)
	return finding{conflict: c, earliest: earliest, key: strings.Join(ids, ",")}
}

// Fingerprint 冲突的稳定标识：类型 + 参与分配 + 区间
// 重新检测时用于沿用人工处理状态
func Fingerprint(c *model.ScheduleConflict) string {
	ids := append([]string(nil), c.AssignmentIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("%s|%s|%s|%s", c.ConflictType, strings.Join(ids, ","),
		c.PeriodStart.UTC().Format(time.RFC3339), c.PeriodEnd.UTC().Format(time.RFC3339))
}

// sortFindings (严重度降序, 类型, 最早开始时间, 参与分配) 排序
func sortFindings(list []finding) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if ra, rb := model.SeverityRank(a.conflict.Severity), model.SeverityRank(b.conflict.Severity); ra != rb {
			return ra > rb
		}
		if a.conflict.ConflictType != b.conflict.ConflictType {
			return a.conflict.ConflictType < b.conflict.ConflictType
		}
		if !a.earliest.Equal(b.earliest) {
			return a.earliest.Before(b.earliest)
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return a.conflict.PeriodStart.Before(b.conflict.PeriodStart)
	})
}

func filterSchedule(list []model.ScheduleAssignment, scheduleID string) []model.ScheduleAssignment {
	var out []model.ScheduleAssignment
	for _, a := range list {
		if a.ScheduleID == scheduleID {
			out = append(out, a)
		}
	}
	return out
}

func involvesSchedule(list []model.ScheduleAssignment, scheduleID string) bool {
	for _, a := range list {
		if a.ScheduleID == scheduleID {
			return true
		}
	}
	return false
}
