package dto

import "schologic-practicum/backend/internal/practicum"

// ── 日志模块 DTO ──

// SaveLogRequest 创建或保存草稿（同一日期同一类型的草稿会被覆盖）
type SaveLogRequest struct {
	LogType  string                 `json:"log_type" binding:"omitempty,oneof=log report"`
	LogDate  string                 `json:"log_date" binding:"required"`
	Entries  map[string]interface{} `json:"entries"`
	FileURLs []string               `json:"file_urls" binding:"omitempty,max=20,dive,url"`
}

// UpdateLogRequest 更新草稿
type UpdateLogRequest struct {
	LogDate  *string                `json:"log_date"`
	Entries  map[string]interface{} `json:"entries"`
	FileURLs []string               `json:"file_urls" binding:"omitempty,max=20,dive,url"`
	Version  int                    `json:"version"   binding:"required,min=1"`
}

// ReviewLogRequest 教师审核意见
type ReviewLogRequest struct {
	Comment string `json:"comment" binding:"max=2000"`
}

// VerifyByTokenRequest 单位指导老师通过审核链接提交结论
type VerifyByTokenRequest struct {
	Token          string `json:"token"           binding:"required"`
	Decision       string `json:"decision"        binding:"required,oneof=verified rejected"`
	Comment        string `json:"comment"         binding:"max=2000"`
	SupervisorName string `json:"supervisor_name" binding:"required,max=100"`
}

// ListLogsRequest 日志列表筛选
type ListLogsRequest struct {
	PaginationRequest
	StudentID string `form:"student_id"`
	LogType   string `form:"log_type"   binding:"omitempty,oneof=log report"`
	Status    string `form:"status"     binding:"omitempty,oneof=draft submitted"`
	Unread    bool   `form:"unread"`
}

// LogResponse 日志详情
type LogResponse struct {
	ID                   string                 `json:"id"`
	PracticumID          string                 `json:"practicum_id"`
	StudentID            string                 `json:"student_id"`
	LogType              string                 `json:"log_type"`
	LogDate              string                 `json:"log_date"`
	WeekNumber           *int                   `json:"week_number"`
	Entries              map[string]interface{} `json:"entries"`
	FileURLs             []string               `json:"file_urls"`
	SubmissionStatus     string                 `json:"submission_status"`
	SubmittedAt          *string                `json:"submitted_at"`
	SupervisorStatus     string                 `json:"supervisor_status"`
	SupervisorComment    string                 `json:"supervisor_comment,omitempty"`
	SupervisorVerifiedAt *string                `json:"supervisor_verified_at"`
	VerifiedBy           string                 `json:"verified_by,omitempty"`
	InstructorStatus     string                 `json:"instructor_status"`
	ReadAt               *string                `json:"read_at"`
	Grade                *float64               `json:"grade"`
	Feedback             string                 `json:"feedback,omitempty"`
	Editable             bool                   `json:"editable"`
	Version              int                    `json:"version"`
}

// SubmitLogResponse 提交结果；审核链接只在此时返回一次
type SubmitLogResponse struct {
	Log             LogResponse `json:"log"`
	VerificationURL string      `json:"verification_url,omitempty"`
}

// SubmissionListResponse 日志、最终报告与指导老师评价的合并列表（按时间倒序）
type SubmissionListResponse struct {
	Items []practicum.SubmissionItem `json:"items"`
}
