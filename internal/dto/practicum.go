package dto

import "schologic-practicum/backend/internal/practicum"

// ── 实践项目模块 DTO ──

// CreatePracticumRequest 创建实践项目请求
type CreatePracticumRequest struct {
	Title               string                   `json:"title"                 binding:"required,min=3,max=200"`
	StartDate           string                   `json:"start_date"            binding:"required"` // "2024-01-08"
	EndDate             string                   `json:"end_date"              binding:"required"`
	LogInterval         string                   `json:"log_interval"          binding:"required,oneof=daily weekly"`
	LogTemplate         string                   `json:"log_template"          binding:"required,oneof=teaching_practice industrial_attachment custom"`
	CustomTemplate      *practicum.LogTemplate   `json:"custom_template"`
	AutoApprove         bool                     `json:"auto_approve"`
	GeolocationRequired bool                     `json:"geolocation_required"`
	FinalReportRequired *bool                    `json:"final_report_required"`
	GradingConfig       *practicum.GradingConfig `json:"grading_config"`
}

// UpdatePracticumRequest 更新实践项目请求（字段为 nil 表示不修改）
type UpdatePracticumRequest struct {
	Title               *string                  `json:"title"        binding:"omitempty,min=3,max=200"`
	StartDate           *string                  `json:"start_date"`
	EndDate             *string                  `json:"end_date"`
	LogInterval         *string                  `json:"log_interval" binding:"omitempty,oneof=daily weekly"`
	AutoApprove         *bool                    `json:"auto_approve"`
	GeolocationRequired *bool                    `json:"geolocation_required"`
	FinalReportRequired *bool                    `json:"final_report_required"`
	GradingConfig       *practicum.GradingConfig `json:"grading_config"`
	Version             int                      `json:"version"      binding:"required,min=1"`
}

// UpdateRubricRequest 替换评分表
type UpdateRubricRequest struct {
	Rubric practicum.RubricConfig `json:"rubric" binding:"required"`
}

// AddTimelineEventRequest 添加时间线事件
type AddTimelineEventRequest struct {
	Title       string `json:"title"       binding:"required,max=200"`
	Date        string `json:"date"        binding:"required"`
	Type        string `json:"type"        binding:"required"`
	Description string `json:"description" binding:"max=1000"`
}

// PracticumResponse 实践项目详情
type PracticumResponse struct {
	ID                       string                   `json:"id"`
	InstructorID             string                   `json:"instructor_id"`
	Title                    string                   `json:"title"`
	InviteCode               string                   `json:"invite_code,omitempty"`
	StartDate                string                   `json:"start_date"`
	EndDate                  string                   `json:"end_date"`
	LogInterval              string                   `json:"log_interval"`
	LogTemplate              string                   `json:"log_template"`
	Template                 *practicum.LogTemplate   `json:"template,omitempty"`
	AutoApprove              bool                     `json:"auto_approve"`
	GeolocationRequired      bool                     `json:"geolocation_required"`
	FinalReportRequired      bool                     `json:"final_report_required"`
	GradingConfig            practicum.GradingConfig  `json:"grading_config"`
	LogsRubric               practicum.RubricConfig   `json:"logs_rubric"`
	StudentReportTemplate    practicum.RubricConfig   `json:"student_report_template"`
	SupervisorReportTemplate practicum.RubricConfig   `json:"supervisor_report_template"`
	Timeline                 practicum.TimelineConfig `json:"timeline"`
	DatesLocked              bool                     `json:"dates_locked"`
	Version                  int                      `json:"version"`
	CreatedAt                string                   `json:"created_at"`
	UpdatedAt                string                   `json:"updated_at"`
}

// ImportTimelineResponse 日历导入结果
type ImportTimelineResponse struct {
	Imported int                       `json:"imported"`
	Skipped  int                       `json:"skipped"`
	Events   []practicum.TimelineEvent `json:"events"`
}

// StudentOverview 教师总览中的单个学生
type StudentOverview struct {
	EnrollmentID              string   `json:"enrollment_id"`
	StudentID                 string   `json:"student_id"`
	StudentRegistrationNumber string   `json:"student_registration_number"`
	StudentEmail              string   `json:"student_email"`
	Status                    string   `json:"status"`
	LogsSubmitted             int64    `json:"logs_submitted"`
	Unread                    int64    `json:"unread"`
	Verified                  int64    `json:"verified"`
	Rejected                  int64    `json:"rejected"`
	FinalGrade                *float64 `json:"final_grade"`
}

// PracticumOverviewResponse 教师总览
type PracticumOverviewResponse struct {
	Practicum     PracticumResponse `json:"practicum"`
	Students      []StudentOverview `json:"students"`
	PendingCount  int               `json:"pending_count"`
	ApprovedCount int               `json:"approved_count"`
	TotalUnread   int64             `json:"total_unread"`
}
