package dto

import "schologic-practicum/backend/internal/practicum"

// ── 成绩模块 DTO ──

// SetGradeRequest 直接录入某组成部分的加权得分
type SetGradeRequest struct {
	Value *float64 `json:"value" binding:"omitempty,min=0,max=100"` // nil 表示清除
}

// ScoreRequest 按评分表打分
type ScoreRequest struct {
	Scores   map[string]float64 `json:"scores"   binding:"required"`
	LogID    string             `json:"log_id"`   // 报告评分时指定被评的最终报告
	Feedback string             `json:"feedback" binding:"max=2000"`
}

// SupervisorReportRequest 录入单位指导老师评价
type SupervisorReportRequest struct {
	SupervisorName string             `json:"supervisor_name" binding:"required,max=100"`
	Scores         map[string]float64 `json:"scores"          binding:"required"`
	Comment        string             `json:"comment"         binding:"max=2000"`
}

// GradeRow 成绩表中的一行
type GradeRow struct {
	EnrollmentID              string   `json:"enrollment_id"`
	StudentID                 string   `json:"student_id"`
	StudentRegistrationNumber string   `json:"student_registration_number"`
	StudentEmail              string   `json:"student_email"`
	LogsGrade                 *float64 `json:"logs_grade"`
	ReportGrade               *float64 `json:"report_grade"`
	SupervisorGrade           *float64 `json:"supervisor_grade"`
	FinalGrade                *float64 `json:"final_grade"`
}

// GradesResponse 成绩表
type GradesResponse struct {
	PracticumID string                  `json:"practicum_id"`
	Title       string                  `json:"title"`
	Weights     practicum.GradingConfig `json:"weights"`
	Rows        []GradeRow              `json:"rows"`
}

// ScoreResponse 打分结果
type ScoreResponse struct {
	Component  string                `json:"component"`
	Score      practicum.RubricScore `json:"score"`
	Weighted   float64               `json:"weighted"`
	FinalGrade *float64              `json:"final_grade"`
}

// SyncGradesResponse 批量同步结果
type SyncGradesResponse struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ── 进度 ──

// ProgressResponse 学生进度
type ProgressResponse struct {
	EnrollmentID string `json:"enrollment_id"`
	PracticumID  string `json:"practicum_id"`
	StudentID    string `json:"student_id"`
	practicum.Progress
}

// UnreadCountsResponse 教师未读计数
type UnreadCountsResponse struct {
	Total     int64            `json:"total"`
	ByStudent map[string]int64 `json:"by_student"`
}
