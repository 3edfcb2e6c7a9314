package practicum

import (
	"math"
	"time"
)

// LogInterval 日志提交周期
type LogInterval string

const (
	IntervalDaily  LogInterval = "daily"
	IntervalWeekly LogInterval = "weekly"
	// IntervalBiweekly 仅用于时间线生成，不作为实践项目的持久化取值
	IntervalBiweekly LogInterval = "biweekly"
)

// Valid 是否为可识别的周期
func (i LogInterval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalBiweekly:
		return true
	}
	return false
}

// Persistable 是否可写入 practicums.log_interval
func (i LogInterval) Persistable() bool {
	return i == IntervalDaily || i == IntervalWeekly
}

// StartOfDay 截断到当天 00:00:00（保留时区）
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay 当天 23:59:59.999
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// MondayOnOrBefore 返回 t 所在 ISO 周的周一 00:00
func MondayOnOrBefore(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DaysBetweenCeil 两个时间点相差的天数，向上取整
func DaysBetweenCeil(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

// NextLogDate 下一次应提交日志的日期
// 不跳过周末：周末顺延只作用于时间线里生成的里程碑
func NextLogDate(interval LogInterval, last time.Time) time.Time {
	switch interval {
	case IntervalDaily:
		return last.AddDate(0, 0, 1)
	case IntervalBiweekly:
		return last.AddDate(0, 0, 14)
	default:
		return last.AddDate(0, 0, 7)
	}
}

// IsLogDue 参考日期（按天）是否已到达下一次提交日期
func IsLogDue(interval LogInterval, last, ref time.Time) bool {
	next := StartOfDay(NextLogDate(interval, last))
	today := StartOfDay(ref.In(last.Location()))
	return !today.Before(next)
}

// SnapToWeekday 周六提前到周五，周日顺延到周一，其余不变；保留时分秒
func SnapToWeekday(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}
