package practicum

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// EventType 时间线事件类型
type EventType string

const (
	EventMilestone EventType = "milestone"
	EventDeadline  EventType = "deadline"
	EventMeeting   EventType = "meeting"
	EventReport    EventType = "report"
	EventLog       EventType = "log"
)

// Valid 是否为可识别的事件类型
func (t EventType) Valid() bool {
	switch t {
	case EventMilestone, EventDeadline, EventMeeting, EventReport, EventLog:
		return true
	}
	return false
}

// 默认时间线设置
const (
	DefaultLogDeadlineDay       = 5 // 周五
	DefaultReportOffsetDays     = 30
	DefaultSupervisorOffsetDays = 7

	// 最后一周的缓冲天数：周起始日早于 end+3 天时仍生成该周
	weekBufferDays = 3
)

// TimelineWeek 时间线中的一周（周一对齐，7 天）
type TimelineWeek struct {
	WeekNumber int       `json:"week_number"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Label      string    `json:"label"`
	IsBreak    bool      `json:"is_break,omitempty"`
}

// Contains 时间点是否落在该周内（含首尾）
func (w TimelineWeek) Contains(t time.Time) bool {
	return !t.Before(w.StartDate) && !t.After(w.EndDate)
}

// TimelineEvent 时间线事件；IsSystem=false 表示教师手动添加
type TimelineEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Type        EventType `json:"type"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
}

// TimelineSettings 时间线默认设置
type TimelineSettings struct {
	LogDeadlineDay       int `json:"log_deadline_day"`
	ReportOffsetDays     int `json:"report_offset_days"`
	SupervisorOffsetDays int `json:"supervisor_offset_days"`
}

// TimelineConfig 由起止日期与提交周期推导出的完整时间线
type TimelineConfig struct {
	Weeks    []TimelineWeek   `json:"weeks"`
	Events   []TimelineEvent  `json:"events"`
	Settings TimelineSettings `json:"settings"`
}

// WeekFor 返回包含 t 的周次，不在任何周内时返回 0
func (c TimelineConfig) WeekFor(t time.Time) int {
	for _, w := range c.Weeks {
		if w.Contains(t) {
			return w.WeekNumber
		}
	}
	return 0
}

// Validate 校验周列表连续、7 天、周一对齐、从 1 开始编号
func (c TimelineConfig) Validate() error {
	for i, w := range c.Weeks {
		if w.WeekNumber != i+1 {
			return configErr("timeline", "第 %d 项周次编号为 %d", i+1, w.WeekNumber)
		}
		if w.StartDate.Weekday() != time.Monday || !w.StartDate.Equal(StartOfDay(w.StartDate)) {
			return configErr("timeline", "第 %d 周未对齐到周一", w.WeekNumber)
		}
		if !w.EndDate.Equal(EndOfDay(w.StartDate.AddDate(0, 0, 6))) {
			return configErr("timeline", "第 %d 周长度不是 7 天", w.WeekNumber)
		}
		if i > 0 && !w.StartDate.Equal(c.Weeks[i-1].StartDate.AddDate(0, 0, 7)) {
			return configErr("timeline", "第 %d 周与上一周不连续", w.WeekNumber)
		}
	}
	return nil
}

// SystemEvents 返回自动生成的事件
func (c TimelineConfig) SystemEvents() []TimelineEvent {
	return c.filterEvents(true)
}

// CustomEvents 返回教师添加的事件
func (c TimelineConfig) CustomEvents() []TimelineEvent {
	return c.filterEvents(false)
}

func (c TimelineConfig) filterEvents(system bool) []TimelineEvent {
	var out []TimelineEvent
	for _, e := range c.Events {
		if e.IsSystem == system {
			out = append(out, e)
		}
	}
	return out
}

// ── 生成器 ──

// Generator 时间线生成器；NewID 可替换以获得确定的事件 ID
type Generator struct {
	NewID func() string
}

// NewGenerator 使用 UUID 作为事件 ID 的生成器
func NewGenerator() *Generator {
	return &Generator{NewID: uuid.NewString}
}

var defaultGenerator = NewGenerator()

// GenerateTimeline 使用默认生成器生成时间线
func GenerateTimeline(start, end time.Time, interval LogInterval, title string) TimelineConfig {
	return defaultGenerator.Generate(start, end, interval, title)
}

// RegenerateTimeline 使用默认生成器整体重建时间线
func RegenerateTimeline(old TimelineConfig, start, end time.Time, interval LogInterval, title string) TimelineConfig {
	return defaultGenerator.Regenerate(old, start, end, interval, title)
}

// Generate 根据起止日期与提交周期生成时间线
//
// 周与事件日期都按位置推导，任何起止日期或周期的修改都必须整体重建。
func (g *Generator) Generate(start, end time.Time, interval LogInterval, title string) TimelineConfig {
	cfg := TimelineConfig{
		Weeks: g.buildWeeks(start, end),
		Settings: TimelineSettings{
			LogDeadlineDay:       DefaultLogDeadlineDay,
			ReportOffsetDays:     DefaultReportOffsetDays,
			SupervisorOffsetDays: DefaultSupervisorOffsetDays,
		},
	}

	cfg.Events = append(cfg.Events,
		g.systemEvent("Reporting Date", SnapToWeekday(start), EventMilestone,
			describe("First day of practicum placement", title)),
		g.systemEvent("Practicum Ends", SnapToWeekday(end), EventMilestone,
			describe("Last day of practicum placement", title)),
	)

	midpoint := StartOfDay(start.Add(end.Sub(start) / 2))
	cfg.Events = append(cfg.Events, g.systemEvent("Field Visit", SnapToWeekday(midpoint), EventMeeting,
		describe("Supervisor field assessment visit", title)))

	// 按日提交不生成逐日事件，到期时间由 NextLogDate/IsLogDue 按需计算
	if interval == IntervalWeekly {
		for _, w := range cfg.Weeks {
			if w.EndDate.After(end) {
				continue
			}
			cfg.Events = append(cfg.Events, g.systemEvent(
				fmt.Sprintf("Week %d Log Due", w.WeekNumber),
				SnapToWeekday(w.EndDate),
				EventLog,
				describe(fmt.Sprintf("Log submission for Week %d", w.WeekNumber), title),
			))
		}
	}

	cfg.Events = append(cfg.Events,
		g.systemEvent("Supervisor Report Due", SnapToWeekday(end.AddDate(0, 0, DefaultSupervisorOffsetDays)), EventReport,
			describe("Deadline for supervisor verification and assessment", title)),
		g.systemEvent("Final Student Report Due", SnapToWeekday(end.AddDate(0, 0, DefaultReportOffsetDays)), EventReport,
			describe("Deadline for final academic report submission", title)),
	)

	sortEvents(cfg.Events)
	return cfg
}

// Regenerate 丢弃旧的周与系统事件后整体重建，教师添加的事件原样保留
func (g *Generator) Regenerate(old TimelineConfig, start, end time.Time, interval LogInterval, title string) TimelineConfig {
	cfg := g.Generate(start, end, interval, title)
	cfg.Events = append(cfg.Events, old.CustomEvents()...)
	sortEvents(cfg.Events)
	return cfg
}

// AddEvent 追加教师自定义事件
func (g *Generator) AddEvent(cfg *TimelineConfig, title string, date time.Time, typ EventType, description string) (TimelineEvent, error) {
	verr := NewValidationError()
	if title == "" {
		verr.Add("title", "Title is required")
	}
	if !typ.Valid() {
		verr.Add("type", "Type must be one of the valid options")
	}
	if date.IsZero() {
		verr.Add("date", "Date is required")
	}
	if err := verr.OrNil(); err != nil {
		return TimelineEvent{}, err
	}

	ev := TimelineEvent{
		ID:          g.NewID(),
		Title:       title,
		Date:        date,
		Type:        typ,
		Description: description,
		IsSystem:    false,
	}
	cfg.Events = append(cfg.Events, ev)
	sortEvents(cfg.Events)
	return ev, nil
}

// AddTimelineEvent 使用默认生成器追加事件
func AddTimelineEvent(cfg *TimelineConfig, title string, date time.Time, typ EventType, description string) (TimelineEvent, error) {
	return defaultGenerator.AddEvent(cfg, title, date, typ, description)
}

func (g *Generator) buildWeeks(start, end time.Time) []TimelineWeek {
	var weeks []TimelineWeek
	limit := end.AddDate(0, 0, weekBufferDays)
	weekStart := MondayOnOrBefore(start)
	for n := 1; weekStart.Before(limit); n++ {
		weeks = append(weeks, TimelineWeek{
			WeekNumber: n,
			StartDate:  weekStart,
			EndDate:    EndOfDay(weekStart.AddDate(0, 0, 6)),
			Label:      fmt.Sprintf("Week %d", n),
		})
		weekStart = weekStart.AddDate(0, 0, 7)
	}
	return weeks
}

func (g *Generator) systemEvent(title string, date time.Time, typ EventType, description string) TimelineEvent {
	return TimelineEvent{
		ID:          g.NewID(),
		Title:       title,
		Date:        date,
		Type:        typ,
		Description: description,
		IsSystem:    true,
	}
}

func describe(text, title string) string {
	if title == "" {
		return text
	}
	return text + " (" + title + ")"
}

func sortEvents(events []TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
}
