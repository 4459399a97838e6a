package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/go-resty/resty/v2"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 中的忙碌事件转换为 unavailable 可用性记录。
//
//   - TRANSP:TRANSPARENT 与 STATUS:CANCELLED 的事件跳过
//   - 无 DTEND 时使用 DURATION，全天事件默认一天
//   - RRULE 支持 DAILY / WEEKLY，识别 COUNT、UNTIL、INTERVAL 与 EXDATE
//   - 每次发生单独生成一条记录，并裁剪到导入窗口内
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize    = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout   = 30 * time.Second
	icsMaxOccurrences = 2000
)

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	resp, err := resty.New().
		SetTimeout(icsFetchTimeout).
		R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode())
	}
	// 限制响应体大小
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(body, icsMaxFileSize),
		Closer: body,
	}, nil
}

// ParseAvailabilityICS 解析 ICS 内容，返回窗口 [windowStart, windowEnd) 内的不可用记录及跳过的事件数
func ParseAvailabilityICS(reader io.Reader, resourceID string, windowStart, windowEnd time.Time) ([]model.ResourceAvailability, int, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var (
		records []model.ResourceAvailability
		skipped int
	)
	for _, evt := range cal.Events() {
		busy, ok := parseBusyEvent(evt)
		if !ok {
			skipped++
			continue
		}

		for _, start := range expandOccurrences(evt, busy, windowStart, windowEnd) {
			end := start.Add(busy.duration)
			// 裁剪到导入窗口
			if start.Before(windowStart) {
				start = windowStart
			}
			if end.After(windowEnd) {
				end = windowEnd
			}
			if !end.After(start) {
				continue
			}
			records = append(records, model.ResourceAvailability{
				ResourceID:       resourceID,
				StartDatetime:    start,
				EndDatetime:      end,
				AvailabilityType: model.AvailabilityUnavailable,
				Reason:           busy.summary,
				Source:           model.AvailabilitySourceICS,
				ExternalUID:      model.StringPtr(busy.uid + "@" + start.Format("20060102T150405Z")),
			})
		}
	}
	return records, skipped, nil
}

// busyEvent 忙碌事件解析结果
type busyEvent struct {
	uid      string
	summary  string
	start    time.Time
	duration time.Duration
}

// parseBusyEvent 解析单个 VEVENT，透明或已取消的事件返回 false
func parseBusyEvent(evt *ics.VEvent) (busyEvent, bool) {
	if p := evt.GetProperty(ics.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return busyEvent{}, false
	}
	if p := evt.GetProperty(ics.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return busyEvent{}, false
	}

	dtStart, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart)
	if err != nil {
		return busyEvent{}, false
	}

	var duration time.Duration
	if dtEnd, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd); err == nil {
		duration = dtEnd.Sub(dtStart)
	} else if p := evt.GetProperty(ics.ComponentPropertyDuration); p != nil {
		duration, err = parseICSDuration(p.Value)
		if err != nil {
			return busyEvent{}, false
		}
	} else if allDay {
		duration = 24 * time.Hour
	}
	if duration <= 0 {
		return busyEvent{}, false
	}

	summary := "日历忙碌"
	if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
		summary = strings.TrimSpace(p.Value)
	}
	uid := evt.Id()
	if uid == "" {
		uid = dtStart.Format("20060102T150405Z")
	}

	return busyEvent{uid: uid, summary: summary, start: dtStart, duration: duration}, true
}

// expandOccurrences 根据 RRULE / EXDATE 展开发生时刻，只返回与 [windowStart, windowEnd) 可能相交的部分
// 发生次数上限从窗口起点开始计，早于窗口的发生直接跳过
func expandOccurrences(evt *ics.VEvent, busy busyEvent, windowStart, windowEnd time.Time) []time.Time {
	dtStart := busy.start
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []time.Time{dtStart}
	}

	rule := parseRRule(rruleProp.Value)
	var days int
	switch rule.freq {
	case "WEEKLY":
		days = 7 * rule.interval
	case "DAILY":
		days = rule.interval
	default:
		// 其他频率只取首次发生
		return []time.Time{dtStart}
	}

	// 时间均为 UTC，步长固定；跳到首个可能与窗口相交的发生
	current, count := dtStart, 0
	period := time.Duration(days) * 24 * time.Hour
	if lead := windowStart.Add(-busy.duration).Sub(dtStart); lead > 0 {
		count = int(lead / period)
		current = dtStart.AddDate(0, 0, count*days)
	}

	exDates := parseExDates(evt)
	var out []time.Time
	for emitted := 0; emitted < icsMaxOccurrences; emitted++ {
		// COUNT 从 DTSTART 起计，包含被跳过与被 EXDATE 排除的发生
		if rule.count > 0 && count >= rule.count {
			break
		}
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if !current.Before(windowEnd) {
			break
		}
		if !exDates[current.Format("20060102")] {
			out = append(out, current)
		}
		current = current.AddDate(0, 0, days)
		count++
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(kv[1]); err == nil {
				r.count = n
			}
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				// 仅日期的 UNTIL 包含当天
				if d, err := time.Parse("20060102", kv[1]); err == nil {
					t = d.Add(24*time.Hour - time.Second)
				}
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE（可能一行多个值）
func parseExDates(evt *ics.VEvent) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		loc := propLocation(prop.ICalParameters)
		for _, v := range strings.Split(prop.Value, ",") {
			if t, _, err := parseICSValue(strings.TrimSpace(v), loc); err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，统一转换为 UTC
// 第二个返回值表示是否为仅日期（全天）格式
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	return parseICSValue(prop.Value, propLocation(prop.ICalParameters))
}

func parseICSValue(val string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.ParseInLocation("20060102T150405", val, loc); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.ParseInLocation("20060102", val, loc); err == nil {
		return t.UTC(), true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

// propLocation TZID 参数对应的时区，缺省或无法识别时为 UTC
func propLocation(params map[string][]string) *time.Location {
	for k, v := range params {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			if loc, err := time.LoadLocation(v[0]); err == nil {
				return loc
			}
		}
	}
	return time.UTC
}

// parseICSDuration 解析 RFC 5545 DURATION（如 PT1H30M、P1D、P2W）
func parseICSDuration(value string) (time.Duration, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	negative := strings.HasPrefix(v, "-")
	v = strings.TrimLeft(v, "+-")
	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("无法解析时长: %s", value)
	}
	v = v[1:]

	var (
		total  time.Duration
		num    strings.Builder
		inTime bool
	)
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return 0, fmt.Errorf("无法解析时长: %s", value)
		}
		num.Reset()
		unit := time.Duration(n)
		switch {
		case r == 'W' && !inTime:
			total += unit * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += unit * 24 * time.Hour
		case r == 'H' && inTime:
			total += unit * time.Hour
		case r == 'M' && inTime:
			total += unit * time.Minute
		case r == 'S' && inTime:
			total += unit * time.Second
		default:
			return 0, fmt.Errorf("无法解析时长: %s", value)
		}
	}
	if num.Len() > 0 {
		return 0, fmt.Errorf("无法解析时长: %s", value)
	}
	if negative {
		total = -total
	}
	return total, nil
}
