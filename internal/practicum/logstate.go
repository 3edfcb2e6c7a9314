package practicum

import (
	"errors"
	"fmt"
)

// LogKind 日志记录类型：周期日志或最终报告
type LogKind string

const (
	KindLog    LogKind = "log"
	KindReport LogKind = "report"
)

// SubmissionStatus 提交轴：draft → submitted（单向）
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// SupervisorStatus 审核轴：pending → verified | rejected
type SupervisorStatus string

const (
	SupervisorPending  SupervisorStatus = "pending"
	SupervisorVerified SupervisorStatus = "verified"
	SupervisorRejected SupervisorStatus = "rejected"
)

// InstructorStatus 阅读轴：unread → read
type InstructorStatus string

const (
	InstructorUnread InstructorStatus = "unread"
	InstructorRead   InstructorStatus = "read"
)

// ErrIllegalLogState 持久化的三轴状态组合不合法（例如已审核的草稿）
var ErrIllegalLogState = errors.New("日志状态组合非法")

const logMachine = "log"

// LogState 一条日志记录上相互独立的三个状态轴
type LogState struct {
	kind       LogKind
	submission SubmissionStatus
	supervisor SupervisorStatus
	instructor InstructorStatus
}

// NewDraftLog 新建草稿的初始状态
func NewDraftLog(kind LogKind) LogState {
	if kind != KindReport {
		kind = KindLog
	}
	return LogState{
		kind:       kind,
		submission: SubmissionDraft,
		supervisor: SupervisorPending,
		instructor: InstructorUnread,
	}
}

// ParseLogState 由持久化字段还原状态，拒绝未知取值与非法组合
func ParseLogState(kind, submission, supervisor, instructor string) (LogState, error) {
	s := LogState{
		kind:       LogKind(kind),
		submission: SubmissionStatus(submission),
		supervisor: SupervisorStatus(supervisor),
		instructor: InstructorStatus(instructor),
	}
	switch s.kind {
	case KindLog, KindReport:
	default:
		return LogState{}, fmt.Errorf("%w: log_type=%q", ErrIllegalLogState, kind)
	}
	switch s.submission {
	case SubmissionDraft, SubmissionSubmitted:
	default:
		return LogState{}, fmt.Errorf("%w: submission_status=%q", ErrIllegalLogState, submission)
	}
	switch s.supervisor {
	case SupervisorPending, SupervisorVerified, SupervisorRejected:
	default:
		return LogState{}, fmt.Errorf("%w: supervisor_status=%q", ErrIllegalLogState, supervisor)
	}
	switch s.instructor {
	case InstructorUnread, InstructorRead:
	default:
		return LogState{}, fmt.Errorf("%w: instructor_status=%q", ErrIllegalLogState, instructor)
	}
	if s.submission == SubmissionDraft && s.supervisor != SupervisorPending {
		return LogState{}, fmt.Errorf("%w: 草稿不能处于 %s", ErrIllegalLogState, s.supervisor)
	}
	return s, nil
}

func (s LogState) Kind() LogKind                { return s.kind }
func (s LogState) Submission() SubmissionStatus { return s.submission }
func (s LogState) Supervisor() SupervisorStatus { return s.supervisor }
func (s LogState) Instructor() InstructorStatus { return s.instructor }

// Editable 只有草稿可以修改内容
func (s LogState) Editable() bool {
	return s.submission == SubmissionDraft
}

// Deletable 已审核通过的记录不可删除
func (s LogState) Deletable() bool {
	return s.supervisor != SupervisorVerified
}

// Submit draft → submitted
func (s LogState) Submit() (LogState, error) {
	if s.submission != SubmissionDraft {
		return s, &TransitionError{Machine: logMachine, Action: "submit", Current: string(s.submission)}
	}
	s.submission = SubmissionSubmitted
	return s, nil
}

// Verify pending → verified
func (s LogState) Verify() (LogState, error) {
	return s.decide("verify", SupervisorVerified)
}

// Reject pending → rejected
func (s LogState) Reject() (LogState, error) {
	return s.decide("reject", SupervisorRejected)
}

func (s LogState) decide(action string, to SupervisorStatus) (LogState, error) {
	if s.kind == KindReport {
		return s, &TransitionError{Machine: logMachine, Action: action, Current: string(s.submission), Reason: "报告类记录暂不支持审核"}
	}
	if s.submission != SubmissionSubmitted {
		return s, &TransitionError{Machine: logMachine, Action: action, Current: string(s.submission)}
	}
	if s.supervisor != SupervisorPending {
		return s, &TransitionError{Machine: logMachine, Action: action, Current: string(s.supervisor)}
	}
	s.supervisor = to
	return s, nil
}

// MarkRead unread → read；重复调用不产生变化，changed=false
func (s LogState) MarkRead() (next LogState, changed bool) {
	if s.instructor == InstructorRead {
		return s, false
	}
	s.instructor = InstructorRead
	return s, true
}
