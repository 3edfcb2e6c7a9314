package practicum

import (
	"math"
	"time"
)

// VerificationHealth 审核进度健康度
type VerificationHealth string

const (
	HealthGood         VerificationHealth = "good"
	HealthDelayed      VerificationHealth = "delayed"
	HealthActionNeeded VerificationHealth = "action_needed"

	// 待审核数量超过该值视为审核滞后
	delayedPendingThreshold = 5
)

// LogSnapshot 进度计算所需的单条日志信息
type LogSnapshot struct {
	LogDate     time.Time
	WeekNumber  *int
	SubmittedAt *time.Time
	State       LogState
}

// ProgressInput 进度计算输入
//
// LastViewedAt 由调用方传入（各查看者自己的"上次查看"时间），引擎不保存任何全局状态。
type ProgressInput struct {
	Start        time.Time
	End          time.Time
	Interval     LogInterval
	Timeline     *TimelineConfig
	Logs         []LogSnapshot
	LastViewedAt *time.Time
	Now          time.Time
}

// Progress 派生的进度数据，每次读取时重算，不落库
type Progress struct {
	TotalDays         int                `json:"total_days"`
	TotalExpectedLogs int                `json:"total_expected_logs"`
	LogsSubmitted     int                `json:"logs_submitted"`
	Percent           int                `json:"percent"`
	UnreadCount       int                `json:"unread_count"`
	NewSinceLastView  int                `json:"new_since_last_view"`
	Verified          int                `json:"verified"`
	Pending           int                `json:"pending"`
	Rejected          int                `json:"rejected"`
	Health            VerificationHealth `json:"health"`
	DaysRemaining     int                `json:"days_remaining"`
	IsCompleted       bool               `json:"is_completed"`
	IsDue             bool               `json:"is_due"`
	NextDueDate       *time.Time         `json:"next_due_date,omitempty"`
	OverdueWeeks      []int              `json:"overdue_weeks"`
}

// CalculateProgress 计算学生的提交进度
func CalculateProgress(in ProgressInput) Progress {
	p := Progress{OverdueWeeks: []int{}}

	p.TotalDays = DaysBetweenCeil(in.Start, in.End)
	if p.TotalDays < 1 {
		p.TotalDays = 1
	}
	if in.Interval == IntervalWeekly {
		p.TotalExpectedLogs = int(math.Ceil(float64(p.TotalDays) / 7))
	} else {
		p.TotalExpectedLogs = p.TotalDays
	}

	var lastSubmitted *time.Time
	submittedWeeks := make(map[int]bool)
	for _, l := range in.Logs {
		if l.State.Instructor() == InstructorUnread {
			p.UnreadCount++
		}
		if l.State.Kind() != KindLog || l.State.Submission() == SubmissionDraft {
			continue
		}

		p.LogsSubmitted++
		switch l.State.Supervisor() {
		case SupervisorVerified:
			p.Verified++
		case SupervisorRejected:
			p.Rejected++
		default:
			p.Pending++
		}

		if in.LastViewedAt == nil || (l.SubmittedAt != nil && l.SubmittedAt.After(*in.LastViewedAt)) {
			p.NewSinceLastView++
		}
		if lastSubmitted == nil || l.LogDate.After(*lastSubmitted) {
			d := l.LogDate
			lastSubmitted = &d
		}
		if l.WeekNumber != nil {
			submittedWeeks[*l.WeekNumber] = true
		} else if in.Timeline != nil {
			if n := in.Timeline.WeekFor(l.LogDate); n > 0 {
				submittedWeeks[n] = true
			}
		}
	}

	p.Percent = int(math.Min(100, math.Round(float64(p.LogsSubmitted)/float64(p.TotalExpectedLogs)*100)))

	switch {
	case p.Rejected > 0:
		p.Health = HealthActionNeeded
	case p.Pending > delayedPendingThreshold:
		p.Health = HealthDelayed
	default:
		p.Health = HealthGood
	}

	endOfPlacement := EndOfDay(in.End)
	p.IsCompleted = in.Now.After(endOfPlacement)
	if !p.IsCompleted {
		p.DaysRemaining = DaysBetweenCeil(in.Now, in.End)
		if p.DaysRemaining < 0 {
			p.DaysRemaining = 0
		}
	}

	if !p.IsCompleted {
		var next time.Time
		if lastSubmitted == nil {
			next = StartOfDay(in.Start)
			p.IsDue = !StartOfDay(in.Now.In(next.Location())).Before(next)
		} else {
			next = NextLogDate(in.Interval, *lastSubmitted)
			p.IsDue = IsLogDue(in.Interval, *lastSubmitted, in.Now)
		}
		if !next.After(endOfPlacement) {
			p.NextDueDate = &next
		}
	}

	if in.Interval == IntervalWeekly && in.Timeline != nil {
		for _, w := range in.Timeline.Weeks {
			if w.EndDate.After(in.End) || !w.EndDate.Before(in.Now) {
				continue
			}
			if !submittedWeeks[w.WeekNumber] {
				p.OverdueWeeks = append(p.OverdueWeeks, w.WeekNumber)
			}
		}
	}

	return p
}
