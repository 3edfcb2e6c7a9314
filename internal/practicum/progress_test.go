package practicum

import (
	"reflect"
	"testing"
	"time"
)

func snapshot(t *testing.T, date time.Time, week int, submitted *time.Time, verdict SupervisorStatus) LogSnapshot {
	t.Helper()
	state := NewDraftLog(KindLog)
	if submitted != nil {
		var err error
		if state, err = state.Submit(); err != nil {
			t.Fatal(err)
		}
		switch verdict {
		case SupervisorVerified:
			state, err = state.Verify()
		case SupervisorRejected:
			state, err = state.Reject()
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	s := LogSnapshot{LogDate: date, SubmittedAt: submitted, State: state}
	if week > 0 {
		s.WeekNumber = &week
	}
	return s
}

func weeklyInput(now time.Time, logs ...LogSnapshot) ProgressInput {
	start, end := day(2024, 1, 1), day(2024, 1, 28)
	tl := GenerateTimeline(start, end, IntervalWeekly, "")
	return ProgressInput{
		Start:    start,
		End:      end,
		Interval: IntervalWeekly,
		Timeline: &tl,
		Logs:     logs,
		Now:      now,
	}
}

func TestCalculateProgress_NoLogs(t *testing.T) {
	p := CalculateProgress(weeklyInput(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	if p.TotalDays != 27 || p.TotalExpectedLogs != 4 {
		t.Errorf("期望 27 天 / 4 份日志，实际 %d / %d", p.TotalDays, p.TotalExpectedLogs)
	}
	if p.Percent != 0 || p.LogsSubmitted != 0 {
		t.Errorf("无日志时进度应为 0，实际 %d", p.Percent)
	}
	if p.Health != HealthGood {
		t.Errorf("期望 good，实际 %s", p.Health)
	}
	if p.NextDueDate == nil || !p.NextDueDate.Equal(day(2024, 1, 1)) || !p.IsDue {
		t.Errorf("尚未提交时应从开始日期起到期: %+v", p.NextDueDate)
	}
	if !reflect.DeepEqual(p.OverdueWeeks, []int{1, 2}) {
		t.Errorf("期望逾期周 [1 2]，实际 %v", p.OverdueWeeks)
	}
}

func TestCalculateProgress_Weekly(t *testing.T) {
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	submittedAt := time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)
	in := weeklyInput(now,
		snapshot(t, day(2024, 1, 5), 1, &submittedAt, SupervisorVerified),
		snapshot(t, day(2024, 1, 12), 2, nil, ""),
	)
	lastViewed := day(2024, 1, 6)
	in.LastViewedAt = &lastViewed

	p := CalculateProgress(in)

	if p.LogsSubmitted != 1 || p.Percent != 25 {
		t.Errorf("草稿不计入提交数: submitted=%d percent=%d", p.LogsSubmitted, p.Percent)
	}
	if p.Verified != 1 || p.Pending != 0 || p.Rejected != 0 {
		t.Errorf("审核计数错误: %+v", p)
	}
	if p.UnreadCount != 2 {
		t.Errorf("期望 2 条未读，实际 %d", p.UnreadCount)
	}
	if p.NewSinceLastView != 0 {
		t.Errorf("上次查看后没有新提交，实际 %d", p.NewSinceLastView)
	}
	if p.NextDueDate == nil || !p.NextDueDate.Equal(day(2024, 1, 12)) {
		t.Errorf("下次截止应为 2024-01-12，实际 %v", p.NextDueDate)
	}
	if !p.IsDue {
		t.Error("已过下次截止日期，应为到期")
	}
	if p.DaysRemaining != 8 || p.IsCompleted {
		t.Errorf("剩余天数期望 8，实际 %d", p.DaysRemaining)
	}
	if !reflect.DeepEqual(p.OverdueWeeks, []int{2}) {
		t.Errorf("期望逾期周 [2]，实际 %v", p.OverdueWeeks)
	}
}

func TestCalculateProgress_NewSinceLastView(t *testing.T) {
	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	a := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)
	in := weeklyInput(now,
		snapshot(t, day(2024, 1, 5), 1, &a, SupervisorPending),
		snapshot(t, day(2024, 1, 12), 2, &b, SupervisorPending),
	)

	if p := CalculateProgress(in); p.NewSinceLastView != 2 {
		t.Errorf("从未查看时全部算新提交，实际 %d", p.NewSinceLastView)
	}

	viewed := day(2024, 1, 10)
	in.LastViewedAt = &viewed
	if p := CalculateProgress(in); p.NewSinceLastView != 1 {
		t.Errorf("期望 1 条新提交，实际 %d", p.NewSinceLastView)
	}
}

func TestCalculateProgress_ClampsPercent(t *testing.T) {
	at := day(2024, 1, 2)
	in := ProgressInput{
		Start:    day(2024, 1, 1),
		End:      day(2024, 1, 3),
		Interval: IntervalDaily,
		Now:      day(2024, 1, 2),
		Logs: []LogSnapshot{
			snapshot(t, day(2024, 1, 1), 0, &at, SupervisorVerified),
			snapshot(t, day(2024, 1, 2), 0, &at, SupervisorVerified),
			snapshot(t, day(2024, 1, 3), 0, &at, SupervisorVerified),
		},
	}
	if p := CalculateProgress(in); p.Percent != 100 {
		t.Errorf("进度应截断为 100，实际 %d", p.Percent)
	}
}

func TestCalculateProgress_Health(t *testing.T) {
	now := time.Date(2024, 1, 27, 0, 0, 0, 0, time.UTC)
	at := day(2024, 1, 2)

	var pending []LogSnapshot
	for i := 0; i < 6; i++ {
		pending = append(pending, snapshot(t, day(2024, 1, 1+i), 0, &at, SupervisorPending))
	}
	if p := CalculateProgress(weeklyInput(now, pending...)); p.Health != HealthDelayed {
		t.Errorf("待审核超过 5 条应为 delayed，实际 %s", p.Health)
	}
	if p := CalculateProgress(weeklyInput(now, pending[:5]...)); p.Health != HealthGood {
		t.Errorf("待审核 5 条仍为 good，实际 %s", p.Health)
	}

	withRejected := append([]LogSnapshot{snapshot(t, day(2024, 1, 8), 0, &at, SupervisorRejected)}, pending...)
	if p := CalculateProgress(weeklyInput(now, withRejected...)); p.Health != HealthActionNeeded {
		t.Errorf("存在驳回应为 action_needed，实际 %s", p.Health)
	}
}

func TestCalculateProgress_Completed(t *testing.T) {
	p := CalculateProgress(weeklyInput(day(2024, 2, 1)))
	if !p.IsCompleted {
		t.Fatal("结束日之后应为已完成")
	}
	if p.NextDueDate != nil || p.IsDue || p.DaysRemaining != 0 {
		t.Errorf("已完成时不应再有截止日期: %+v", p)
	}
	if !reflect.DeepEqual(p.OverdueWeeks, []int{1, 2, 3}) {
		t.Errorf("期望逾期周 [1 2 3]，实际 %v", p.OverdueWeeks)
	}
}

func TestCalculateProgress_ReportRowsExcludedFromCount(t *testing.T) {
	at := day(2024, 1, 20)
	report, _ := NewDraftLog(KindReport).Submit()
	in := weeklyInput(day(2024, 1, 21), LogSnapshot{LogDate: at, SubmittedAt: &at, State: report})

	p := CalculateProgress(in)
	if p.LogsSubmitted != 0 {
		t.Errorf("报告不计入日志提交数，实际 %d", p.LogsSubmitted)
	}
	if p.UnreadCount != 1 {
		t.Errorf("未读数包含报告，实际 %d", p.UnreadCount)
	}
}
