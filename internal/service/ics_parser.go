package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"schologic-practicum/backend/internal/practicum"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将标准 iCalendar (RFC 5545) 内容解析为时间线事件。
//
//   - 只取 VEVENT 的 SUMMARY / DTSTART / DESCRIPTION / CATEGORIES
//   - 事件日期按业务时区截断到当天
//   - CATEGORIES 命中事件类型时沿用，否则记为 milestone
//   - 缺少标题或日期的事件计入 skipped，不中断导入
// ─────────────────────────────────────────────────────────────

const icsMaxFileSize = 2 * 1024 * 1024 // 2MB

// importedEvent 日历中解析出的单个事件
type importedEvent struct {
	Title       string
	Date        time.Time
	Type        practicum.EventType
	Description string
}

// parseTimelineICS 解析 ICS 内容，返回可导入的事件与被跳过的数量
func parseTimelineICS(reader io.Reader, loc *time.Location) ([]importedEvent, int, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, 0, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var (
		events  []importedEvent
		skipped int
	)
	for _, evt := range cal.Events() {
		ev, ok := parseVEvent(evt, loc)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	return events, skipped, nil
}

// parseVEvent 解析单个 VEVENT 组件
func parseVEvent(evt *ics.VEvent, loc *time.Location) (importedEvent, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(summary.Value) == "" {
		return importedEvent{}, false
	}

	start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return importedEvent{}, false
	}

	ev := importedEvent{
		Title: strings.TrimSpace(summary.Value),
		Date:  practicum.StartOfDay(start),
		Type:  practicum.EventMilestone,
	}
	if desc := evt.GetProperty(ics.ComponentPropertyDescription); desc != nil {
		ev.Description = strings.TrimSpace(desc.Value)
	}
	if cat := evt.GetProperty(ics.ComponentPropertyCategories); cat != nil {
		for _, c := range strings.Split(cat.Value, ",") {
			if t := practicum.EventType(strings.ToLower(strings.TrimSpace(c))); t.Valid() {
				ev.Type = t
				break
			}
		}
	}
	return ev, true
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// 尝试多种 ICS 日期格式
	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range formats {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
