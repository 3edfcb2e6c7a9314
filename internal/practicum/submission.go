package practicum

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SubmissionKind 提交记录的判别字段
type SubmissionKind string

const (
	SubmissionKindLog              SubmissionKind = "log"
	SubmissionKindStudentReport    SubmissionKind = "student_report"
	SubmissionKindSupervisorReport SubmissionKind = "supervisor_report"
)

// SubmissionItem 列表展示用的提交记录（封闭联合类型）
type SubmissionItem interface {
	Kind() SubmissionKind
	OccurredAt() time.Time
	isSubmissionItem()
}

// LogItem 周期日志
type LogItem struct {
	ID               string           `json:"id"`
	StudentID        string           `json:"student_id"`
	LogDate          time.Time        `json:"log_date"`
	WeekNumber       *int             `json:"week_number,omitempty"`
	SubmissionStatus SubmissionStatus `json:"submission_status"`
	SupervisorStatus SupervisorStatus `json:"supervisor_status"`
	InstructorStatus InstructorStatus `json:"instructor_status"`
}

// StudentReportItem 学生最终报告
type StudentReportItem struct {
	ID               string           `json:"id"`
	StudentID        string           `json:"student_id"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	SubmissionStatus SubmissionStatus `json:"submission_status"`
	InstructorStatus InstructorStatus `json:"instructor_status"`
	FileURLs         []string         `json:"file_urls,omitempty"`
	Grade            *float64         `json:"grade,omitempty"`
}

// SupervisorReportItem 单位指导老师评价
type SupervisorReportItem struct {
	EnrollmentID   string    `json:"enrollment_id"`
	StudentID      string    `json:"student_id"`
	SupervisorName string    `json:"supervisor_name"`
	Score          float64   `json:"score"`
	MaxScore       float64   `json:"max_score"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func (LogItem) Kind() SubmissionKind              { return SubmissionKindLog }
func (StudentReportItem) Kind() SubmissionKind    { return SubmissionKindStudentReport }
func (SupervisorReportItem) Kind() SubmissionKind { return SubmissionKindSupervisorReport }

func (i LogItem) OccurredAt() time.Time { return i.LogDate }
func (i StudentReportItem) OccurredAt() time.Time {
	if i.SubmittedAt != nil {
		return *i.SubmittedAt
	}
	return i.CreatedAt
}
func (i SupervisorReportItem) OccurredAt() time.Time { return i.RecordedAt }

func (LogItem) isSubmissionItem()              {}
func (StudentReportItem) isSubmissionItem()    {}
func (SupervisorReportItem) isSubmissionItem() {}

// ── JSON：序列化时附带 kind 判别字段 ──

func (i LogItem) MarshalJSON() ([]byte, error) {
	type alias LogItem
	return json.Marshal(struct {
		Kind SubmissionKind `json:"kind"`
		alias
	}{i.Kind(), alias(i)})
}

func (i StudentReportItem) MarshalJSON() ([]byte, error) {
	type alias StudentReportItem
	return json.Marshal(struct {
		Kind SubmissionKind `json:"kind"`
		alias
	}{i.Kind(), alias(i)})
}

func (i SupervisorReportItem) MarshalJSON() ([]byte, error) {
	type alias SupervisorReportItem
	return json.Marshal(struct {
		Kind SubmissionKind `json:"kind"`
		alias
	}{i.Kind(), alias(i)})
}

// DecodeSubmissionItem 按 kind 还原具体类型
func DecodeSubmissionItem(data []byte) (SubmissionItem, error) {
	var head struct {
		Kind SubmissionKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Kind {
	case SubmissionKindLog:
		var item LogItem
		err := json.Unmarshal(data, &item)
		return item, err
	case SubmissionKindStudentReport:
		var item StudentReportItem
		err := json.Unmarshal(data, &item)
		return item, err
	case SubmissionKindSupervisorReport:
		var item SupervisorReportItem
		err := json.Unmarshal(data, &item)
		return item, err
	}
	return nil, fmt.Errorf("未知的提交记录类型 %q", head.Kind)
}

// SortSubmissions 按发生时间倒序
func SortSubmissions(items []SubmissionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OccurredAt().After(items[j].OccurredAt())
	})
}
