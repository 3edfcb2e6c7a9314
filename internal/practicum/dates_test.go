package practicum

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextLogDate(t *testing.T) {
	last := day(2024, 1, 5) // 周五
	tests := []struct {
		name     string
		interval LogInterval
		want     time.Time
	}{
		{"按日", IntervalDaily, day(2024, 1, 6)},
		{"按周", IntervalWeekly, day(2024, 1, 12)},
		{"双周", IntervalBiweekly, day(2024, 1, 19)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextLogDate(tt.interval, last); !got.Equal(tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

func TestIsLogDue_WeeklyBoundary(t *testing.T) {
	last := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)

	if IsLogDue(IntervalWeekly, last, last.AddDate(0, 0, 6)) {
		t.Error("上次提交后第 6 天不应到期")
	}
	if !IsLogDue(IntervalWeekly, last, last.AddDate(0, 0, 7)) {
		t.Error("上次提交后第 7 天应到期")
	}
	// 只比较日期，当天早于上次提交的时刻也算到期
	early := time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC)
	if !IsLogDue(IntervalWeekly, last, early) {
		t.Error("到期当天 00:05 应视为到期")
	}
}

func TestIsLogDue_Daily(t *testing.T) {
	last := day(2024, 3, 4)
	if IsLogDue(IntervalDaily, last, last.Add(23*time.Hour)) {
		t.Error("同一天不应到期")
	}
	if !IsLogDue(IntervalDaily, last, last.AddDate(0, 0, 1)) {
		t.Error("次日应到期")
	}
}

// 到期计算不做周末顺延，而时间线里生成的截止日期会顺延，这里固定这种不对称行为
func TestNextLogDate_DoesNotSkipWeekend(t *testing.T) {
	friday := day(2024, 1, 5)
	next := NextLogDate(IntervalDaily, friday)
	if next.Weekday() != time.Saturday {
		t.Fatalf("按日提交的下一日期应为周六，实际 %v", next.Weekday())
	}
	if !IsLogDue(IntervalDaily, friday, next) {
		t.Error("周六当天应视为到期")
	}

	cfg := NewGenerator().Generate(day(2024, 1, 1), day(2024, 1, 31), IntervalWeekly, "")
	for _, e := range cfg.Events {
		if wd := e.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("生成的事件 %q 落在周末: %v", e.Title, e.Date)
		}
	}
}

func TestSnapToWeekday(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"周六提前到周五", day(2024, 1, 6), day(2024, 1, 5)},
		{"周日顺延到周一", day(2024, 1, 7), day(2024, 1, 8)},
		{"周三不变", day(2024, 1, 3), day(2024, 1, 3)},
		{"保留时分秒", time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC), time.Date(2024, 1, 8, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapToWeekday(tt.in); !got.Equal(tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

func TestSnapToWeekday_NeverWeekendAndIdempotent(t *testing.T) {
	start := day(2023, 12, 1)
	for i := 0; i < 120; i++ {
		d := start.AddDate(0, 0, i)
		snapped := SnapToWeekday(d)
		if wd := snapped.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("%v 顺延后仍为周末: %v", d, snapped)
		}
		if again := SnapToWeekday(snapped); !again.Equal(snapped) {
			t.Fatalf("对工作日再次顺延应不变: %v → %v", snapped, again)
		}
	}
}

func TestMondayOnOrBefore(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{day(2024, 1, 1), day(2024, 1, 1)},
		{time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), day(2024, 1, 1)},
		{day(2024, 1, 7), day(2024, 1, 1)},
	}
	for _, tt := range tests {
		if got := MondayOnOrBefore(tt.in); !got.Equal(tt.want) {
			t.Errorf("MondayOnOrBefore(%v) 期望 %v，实际 %v", tt.in, tt.want, got)
		}
	}
}
