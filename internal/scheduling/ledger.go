package scheduling

import (
	"sort"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/pkg/interval"
)

// FullCapacity 无可用性记录覆盖时的默认容量
const FullCapacity = 100.0

// Ledger 可用性账本：按资源组织的可用性记录快照
//
// 同一时刻被多条记录覆盖时，取自身区间最窄的记录；
// 等宽时取最新创建的记录，再相同则取 ID 较大者，保证结果确定。
type Ledger struct {
	byResource map[string][]model.ResourceAvailability
}

// Segment 账本解析后的基本时间段，段内生效记录唯一
type Segment struct {
	Start    time.Time
	End      time.Time
	Capacity float64
	// Record 段内生效的记录，未被任何记录覆盖时为 nil
	Record *model.ResourceAvailability
}

// Capacity IsAvailable 的结果
type Capacity struct {
	Percentage float64
	Reason     string
	RecordID   string
	// Start/End 最低容量所在的第一段连续区间
	Start time.Time
	End   time.Time
}

// NewLedger 构造账本快照
func NewLedger(records []model.ResourceAvailability) *Ledger {
	l := &Ledger{byResource: make(map[string][]model.ResourceAvailability)}
	for _, r := range records {
		if !r.EndDatetime.After(r.StartDatetime) {
			continue // 非法记录不参与解析
		}
		l.byResource[r.ResourceID] = append(l.byResource[r.ResourceID], r)
	}
	for id := range l.byResource {
		list := l.byResource[id]
		sort.Slice(list, func(i, j int) bool {
			if !list[i].StartDatetime.Equal(list[j].StartDatetime) {
				return list[i].StartDatetime.Before(list[j].StartDatetime)
			}
			return list[i].AvailabilityID < list[j].AvailabilityID
		})
	}
	return l
}

// RecordsOverlapping 资源在 [start,end) 内有重叠的记录，按开始时间排序
func (l *Ledger) RecordsOverlapping(resourceID string, start, end time.Time) ([]model.ResourceAvailability, error) {
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}
	var out []model.ResourceAvailability
	for _, r := range l.byResource[resourceID] {
		if interval.Overlaps(r.StartDatetime, r.EndDatetime, start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Segments 在每个记录边界处切分 [start,end)，逐段解析生效记录与容量
// 相邻且生效记录相同的段会被合并
func (l *Ledger) Segments(resourceID string, start, end time.Time) ([]Segment, error) {
	records, err := l.RecordsOverlapping(resourceID, start, end)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Segment{{Start: start, End: end, Capacity: FullCapacity}}, nil
	}

	bounds := []time.Time{start, end}
	for _, r := range records {
		if r.StartDatetime.After(start) && r.StartDatetime.Before(end) {
			bounds = append(bounds, r.StartDatetime)
		}
		if r.EndDatetime.After(start) && r.EndDatetime.Before(end) {
			bounds = append(bounds, r.EndDatetime)
		}
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Before(bounds[j]) })

	var segments []Segment
	for i := 0; i+1 < len(bounds); i++ {
		segStart, segEnd := bounds[i], bounds[i+1]
		if !segEnd.After(segStart) {
			continue // 重复边界
		}

		winner := pickWinner(records, segStart, segEnd)
		seg := Segment{Start: segStart, End: segEnd, Capacity: FullCapacity}
		if winner != nil {
			seg.Record = winner
			seg.Capacity = EffectiveCapacity(winner)
		}

		if n := len(segments); n > 0 && sameRecord(segments[n-1].Record, seg.Record) {
			segments[n-1].End = segEnd
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// IsAvailable 返回 [start,end) 内的最低容量及产生该容量的记录原因
// 无记录覆盖的资源视为 100% 可用
func (l *Ledger) IsAvailable(resourceID string, start, end time.Time) (Capacity, error) {
	segments, err := l.Segments(resourceID, start, end)
	if err != nil {
		return Capacity{}, err
	}
	return MinimumCapacity(segments), nil
}

// MinimumCapacity 从已解析的段中取最低容量及其首段连续区间
func MinimumCapacity(segments []Segment) Capacity {
	if len(segments) == 0 {
		return Capacity{Percentage: FullCapacity}
	}

	minIdx := 0
	for i := range segments {
		if segments[i].Capacity < segments[minIdx].Capacity {
			minIdx = i
		}
	}

	lowest := segments[minIdx]
	c := Capacity{Percentage: lowest.Capacity, Start: lowest.Start, End: lowest.End}
	if lowest.Record != nil {
		c.Reason = lowest.Record.Reason
		c.RecordID = lowest.Record.AvailabilityID
	}
	// 向后延伸容量相同的连续段
	for i := minIdx + 1; i < len(segments); i++ {
		if segments[i].Capacity != lowest.Capacity || !segments[i].Start.Equal(c.End) {
			break
		}
		c.End = segments[i].End
	}
	return c
}

// EffectiveCapacity unavailable 记录容量为 0，其余取 capacity_percentage 并限制在 [0,100]
func EffectiveCapacity(r *model.ResourceAvailability) float64 {
	if r.AvailabilityType == model.AvailabilityUnavailable {
		return 0
	}
	switch {
	case r.CapacityPercentage < 0:
		return 0
	case r.CapacityPercentage > FullCapacity:
		return FullCapacity
	default:
		return r.CapacityPercentage
	}
}

func pickWinner(records []model.ResourceAvailability, segStart, segEnd time.Time) *model.ResourceAvailability {
	var winner *model.ResourceAvailability
	for i := range records {
		r := &records[i]
		if r.StartDatetime.After(segStart) || r.EndDatetime.Before(segEnd) {
			continue // 未完整覆盖该段
		}
		if winner == nil || narrower(r, winner) {
			winner = r
		}
	}
	return winner
}

// narrower 判断 a 是否优先于 b：区间更窄 > 创建更晚 > ID 更大
func narrower(a, b *model.ResourceAvailability) bool {
	wa := a.EndDatetime.Sub(a.StartDatetime)
	wb := b.EndDatetime.Sub(b.StartDatetime)
	if wa != wb {
		return wa < wb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.AvailabilityID > b.AvailabilityID
}

// sameRecord 指针比较：同一次解析中的记录来自同一切片
func sameRecord(a, b *model.ResourceAvailability) bool {
	return a == b
}
