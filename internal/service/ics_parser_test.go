package service

import (
	"strings"
	"testing"
	"time"

	"github.com/hgj313/hr2-sub000/internal/model"
)

// ════════════════════════════════════════════════════════════
// ICS 解析器测试
// ════════════════════════════════════════════════════════════

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func parseTestICS(t *testing.T, content string, windowStart, windowEnd time.Time) ([]model.ResourceAvailability, int) {
	t.Helper()
	records, skipped, err := ParseAvailabilityICS(strings.NewReader(content), "R1", windowStart, windowEnd)
	if err != nil {
		t.Fatalf("ParseAvailabilityICS 失败: %v", err)
	}
	return records, skipped
}

// 本地时区的周重复会议 + 一次性全天请假
const testBusyICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:weekly-review
SUMMARY:项目评审
DTSTART;TZID=Asia/Shanghai:20250224T090000
DTEND;TZID=Asia/Shanghai:20250224T110000
RRULE:FREQ=WEEKLY;COUNT=3
END:VEVENT
BEGIN:VEVENT
UID:leave
SUMMARY:年假
DTSTART;VALUE=DATE:20250226
END:VEVENT
END:VCALENDAR`

func TestParseAvailabilityICS_Basic(t *testing.T) {
	records, skipped := parseTestICS(t, testBusyICS, utc(2025, 2, 1, 0, 0), utc(2025, 4, 1, 0, 0))
	if skipped != 0 {
		t.Errorf("期望跳过 0 个事件，实际 %d", skipped)
	}
	if len(records) != 4 {
		t.Fatalf("期望 3 次会议 + 1 天请假，实际 %d 条", len(records))
	}

	first := records[0]
	if !first.StartDatetime.Equal(utc(2025, 2, 24, 1, 0)) || !first.EndDatetime.Equal(utc(2025, 2, 24, 3, 0)) {
		t.Errorf("首次会议应换算为 UTC 01:00-03:00，实际 %s - %s", first.StartDatetime, first.EndDatetime)
	}
	if first.AvailabilityType != model.AvailabilityUnavailable || first.Source != model.AvailabilitySourceICS {
		t.Errorf("导入记录应为 ics 来源的 unavailable，实际 %s/%s", first.AvailabilityType, first.Source)
	}
	if first.Reason != "项目评审" {
		t.Errorf("Reason 期望 项目评审，实际 %s", first.Reason)
	}
	if first.ExternalUID == nil || *first.ExternalUID != "weekly-review@20250224T010000Z" {
		t.Errorf("ExternalUID 应为 uid@发生时刻，实际 %v", first.ExternalUID)
	}
	if !records[2].StartDatetime.Equal(utc(2025, 3, 10, 1, 0)) {
		t.Errorf("第三次会议应在 3/10，实际 %s", records[2].StartDatetime)
	}

	leave := records[3]
	if leave.EndDatetime.Sub(leave.StartDatetime) != 24*time.Hour {
		t.Errorf("无 DTEND 的全天事件应持续一天，实际 %s", leave.EndDatetime.Sub(leave.StartDatetime))
	}
}

func TestParseAvailabilityICS_ClipsToWindow(t *testing.T) {
	records, _ := parseTestICS(t, testBusyICS, utc(2025, 2, 24, 2, 0), utc(2025, 3, 4, 0, 0))

	// 2/24 的会议被裁剪为 02:00-03:00；3/10 超出窗口
	if len(records) != 3 {
		t.Fatalf("期望 3 条记录，实际 %d", len(records))
	}
	if !records[0].StartDatetime.Equal(utc(2025, 2, 24, 2, 0)) {
		t.Errorf("首条记录应裁剪到窗口开始，实际 %s", records[0].StartDatetime)
	}
	for _, r := range records {
		if r.StartDatetime.Before(utc(2025, 2, 24, 2, 0)) || r.EndDatetime.After(utc(2025, 3, 4, 0, 0)) {
			t.Errorf("记录超出窗口: %s - %s", r.StartDatetime, r.EndDatetime)
		}
	}
}

func TestParseAvailabilityICS_SkipsTransparentAndCancelled(t *testing.T) {
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:free
SUMMARY:可选讲座
DTSTART:20250301T010000Z
DTEND:20250301T020000Z
TRANSP:TRANSPARENT
END:VEVENT
BEGIN:VEVENT
UID:cancelled
SUMMARY:取消的会议
DTSTART:20250302T010000Z
DTEND:20250302T020000Z
STATUS:CANCELLED
END:VEVENT
BEGIN:VEVENT
UID:busy
DTSTART:20250303T010000Z
DTEND:20250303T020000Z
END:VEVENT
END:VCALENDAR`

	records, skipped := parseTestICS(t, content, utc(2025, 3, 1, 0, 0), utc(2025, 3, 31, 0, 0))
	if skipped != 2 {
		t.Errorf("期望跳过 2 个事件，实际 %d", skipped)
	}
	if len(records) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d", len(records))
	}
	if records[0].Reason != "日历忙碌" {
		t.Errorf("无 SUMMARY 时应使用默认原因，实际 %s", records[0].Reason)
	}
}

func TestParseAvailabilityICS_RRuleUntilAndExDate(t *testing.T) {
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:daily
SUMMARY:值守
DTSTART:20250301T080000Z
DURATION:PT1H30M
RRULE:FREQ=DAILY;UNTIL=20250305
EXDATE:20250302T080000Z,20250304T080000Z
END:VEVENT
END:VCALENDAR`

	records, _ := parseTestICS(t, content, utc(2025, 3, 1, 0, 0), utc(2025, 3, 31, 0, 0))
	if len(records) != 3 {
		t.Fatalf("期望 3/1、3/3、3/5 三次发生，实际 %d", len(records))
	}
	wantDays := []int{1, 3, 5}
	for i, r := range records {
		if r.StartDatetime.Day() != wantDays[i] {
			t.Errorf("第 %d 次发生期望 3/%d，实际 %s", i+1, wantDays[i], r.StartDatetime)
		}
		if r.EndDatetime.Sub(r.StartDatetime) != 90*time.Minute {
			t.Errorf("DURATION 应为 90 分钟，实际 %s", r.EndDatetime.Sub(r.StartDatetime))
		}
	}
}

func TestParseAvailabilityICS_Interval(t *testing.T) {
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:biweekly
DTSTART:20250303T010000Z
DTEND:20250303T020000Z
RRULE:FREQ=WEEKLY;INTERVAL=2;COUNT=3
END:VEVENT
END:VCALENDAR`

	records, _ := parseTestICS(t, content, utc(2025, 3, 1, 0, 0), utc(2025, 6, 1, 0, 0))
	if len(records) != 3 {
		t.Fatalf("期望 3 次发生，实际 %d", len(records))
	}
	if !records[1].StartDatetime.Equal(utc(2025, 3, 17, 1, 0)) {
		t.Errorf("双周重复第二次应在 3/17，实际 %s", records[1].StartDatetime)
	}
}

func TestParseAvailabilityICS_EmptyCalendar(t *testing.T) {
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
END:VCALENDAR`

	records, skipped := parseTestICS(t, content, utc(2025, 3, 1, 0, 0), utc(2025, 3, 31, 0, 0))
	if len(records) != 0 || skipped != 0 {
		t.Errorf("空日历期望无记录，实际 %d 条 / 跳过 %d", len(records), skipped)
	}
}

func TestParseICSDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"PT1H30M", 90 * time.Minute, false},
		{"P1D", 24 * time.Hour, false},
		{"P2W", 14 * 24 * time.Hour, false},
		{"P1DT2H", 26 * time.Hour, false},
		{"PT45S", 45 * time.Second, false},
		{"-PT15M", -15 * time.Minute, false},
		{"1H", 0, true},
		{"PT1H5", 0, true},
		{"P1H", 0, true},
	}
	for _, tc := range cases {
		got, err := parseICSDuration(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s 期望解析失败", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s 解析失败: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s 期望 %s，实际 %s", tc.in, tc.want, got)
		}
	}
}

func TestParseAvailabilityICS_LongRunningSeries(t *testing.T) {
	// 多年前开始、无 COUNT 的每日重复，窗口内仍应完整展开
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:daily-since-2015
SUMMARY:早班
DTSTART:20150101T090000Z
DTEND:20150101T100000Z
RRULE:FREQ=DAILY
END:VEVENT
END:VCALENDAR`

	records, skipped := parseTestICS(t, content, utc(2024, 1, 1, 0, 0), utc(2024, 1, 8, 0, 0))
	if skipped != 0 {
		t.Errorf("期望跳过 0 个事件，实际 %d", skipped)
	}
	if len(records) != 7 {
		t.Fatalf("期望窗口内 7 次发生，实际 %d", len(records))
	}
	for i, r := range records {
		want := utc(2024, 1, 1+i, 9, 0)
		if !r.StartDatetime.Equal(want) || r.EndDatetime.Sub(r.StartDatetime) != time.Hour {
			t.Errorf("第 %d 次发生期望 %s 起 1 小时，实际 %s - %s", i+1, want, r.StartDatetime, r.EndDatetime)
		}
	}
}

func TestParseAvailabilityICS_CountBeforeWindow(t *testing.T) {
	// COUNT 从 DTSTART 起计，窗口前的发生也计入
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:ten-days
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=DAILY;COUNT=10
END:VEVENT
END:VCALENDAR`

	records, _ := parseTestICS(t, content, utc(2024, 1, 8, 0, 0), utc(2024, 1, 31, 0, 0))
	if len(records) != 3 {
		t.Fatalf("期望 1/8、1/9、1/10 三次发生，实际 %d", len(records))
	}
	if !records[2].StartDatetime.Equal(utc(2024, 1, 10, 9, 0)) {
		t.Errorf("最后一次发生应在 1/10，实际 %s", records[2].StartDatetime)
	}

	none, _ := parseTestICS(t, content, utc(2024, 2, 1, 0, 0), utc(2024, 3, 1, 0, 0))
	if len(none) != 0 {
		t.Errorf("COUNT 用尽后窗口内不应有记录，实际 %d", len(none))
	}
}

func TestParseAvailabilityICS_OccurrenceSpanningWindowStart(t *testing.T) {
	content := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:night-shift
DTSTART:20240101T230000Z
DURATION:PT2H
RRULE:FREQ=DAILY
END:VEVENT
END:VCALENDAR`

	records, _ := parseTestICS(t, content, utc(2024, 1, 5, 0, 0), utc(2024, 1, 6, 0, 0))
	if len(records) != 2 {
		t.Fatalf("期望跨窗口起点的一次 + 窗口内一次，实际 %d", len(records))
	}
	if !records[0].StartDatetime.Equal(utc(2024, 1, 5, 0, 0)) || !records[0].EndDatetime.Equal(utc(2024, 1, 5, 1, 0)) {
		t.Errorf("1/4 夜班应裁剪为 00:00-01:00，实际 %s - %s", records[0].StartDatetime, records[0].EndDatetime)
	}
	if !records[1].StartDatetime.Equal(utc(2024, 1, 5, 23, 0)) {
		t.Errorf("第二条记录应从 23:00 开始，实际 %s", records[1].StartDatetime)
	}
}
