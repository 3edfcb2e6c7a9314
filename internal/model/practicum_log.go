package model

import (
	"time"

	"gorm.io/datatypes"

	"schologic-practicum/backend/internal/practicum"
)

// PracticumLog 日志与最终报告表，对应 practicum_logs
type PracticumLog struct {
	LogID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	PracticumID string    `gorm:"type:uuid;not null"                             json:"practicum_id"`
	StudentID   string    `gorm:"type:uuid;not null"                             json:"student_id"`
	LogType     string    `gorm:"type:varchar(10);not null;default:'log'"        json:"log_type"` // log | report
	LogDate     time.Time `gorm:"type:date;not null"                             json:"log_date"`
	WeekNumber  *int      `gorm:"type:smallint"                                  json:"week_number,omitempty"`

	Entries  datatypes.JSONMap           `gorm:"type:jsonb;not null" json:"entries"`
	FileURLs datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"file_urls"`

	SubmissionStatus      string     `gorm:"type:varchar(20);not null;default:'draft'"   json:"submission_status"`
	SubmittedAt           *time.Time `json:"submitted_at,omitempty"`
	SupervisorStatus      string     `gorm:"type:varchar(20);not null;default:'pending'" json:"supervisor_status"`
	SupervisorComment     string     `gorm:"type:text;not null;default:''"               json:"supervisor_comment"`
	SupervisorVerifiedAt  *time.Time `json:"supervisor_verified_at,omitempty"`
	VerifiedBy            string     `gorm:"type:varchar(100);not null;default:''"       json:"verified_by,omitempty"`
	VerificationTokenHash string     `gorm:"type:varchar(100);not null;default:''"       json:"-"`
	InstructorStatus      string     `gorm:"type:varchar(20);not null;default:'unread'"  json:"instructor_status"`
	ReadAt                *time.Time `json:"read_at,omitempty"`
	Grade                 *float64   `gorm:"type:numeric(6,2)"                           json:"grade,omitempty"`
	Feedback              string     `gorm:"type:text;not null;default:''"               json:"feedback,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (PracticumLog) TableName() string { return "practicum_logs" }

// State 由持久化的三个状态列还原状态机
func (l *PracticumLog) State() (practicum.LogState, error) {
	return practicum.ParseLogState(l.LogType, l.SubmissionStatus, l.SupervisorStatus, l.InstructorStatus)
}

// ApplyState 把状态机结果写回状态列
func (l *PracticumLog) ApplyState(s practicum.LogState) {
	l.LogType = string(s.Kind())
	l.SubmissionStatus = string(s.Submission())
	l.SupervisorStatus = string(s.Supervisor())
	l.InstructorStatus = string(s.Instructor())
}

// Snapshot 进度计算所需的信息；状态列非法时返回错误
func (l *PracticumLog) Snapshot() (practicum.LogSnapshot, error) {
	s, err := l.State()
	if err != nil {
		return practicum.LogSnapshot{}, err
	}
	return practicum.LogSnapshot{
		LogDate:     l.LogDate,
		WeekNumber:  l.WeekNumber,
		SubmittedAt: l.SubmittedAt,
		State:       s,
	}, nil
}

// LogItem 转换为提交列表项
func (l *PracticumLog) LogItem() practicum.LogItem {
	return practicum.LogItem{
		ID:               l.LogID,
		StudentID:        l.StudentID,
		LogDate:          l.LogDate,
		WeekNumber:       l.WeekNumber,
		SubmissionStatus: practicum.SubmissionStatus(l.SubmissionStatus),
		SupervisorStatus: practicum.SupervisorStatus(l.SupervisorStatus),
		InstructorStatus: practicum.InstructorStatus(l.InstructorStatus),
	}
}

// StudentReportItem 转换为最终报告列表项
func (l *PracticumLog) StudentReportItem() practicum.StudentReportItem {
	return practicum.StudentReportItem{
		ID:               l.LogID,
		StudentID:        l.StudentID,
		SubmittedAt:      l.SubmittedAt,
		CreatedAt:        l.CreatedAt,
		SubmissionStatus: practicum.SubmissionStatus(l.SubmissionStatus),
		InstructorStatus: practicum.InstructorStatus(l.InstructorStatus),
		FileURLs:         l.FileURLs,
		Grade:            l.Grade,
	}
}
