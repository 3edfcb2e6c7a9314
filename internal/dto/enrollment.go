package dto

import "schologic-practicum/backend/internal/practicum"

// ── 报名模块 DTO ──

// JoinPracticumRequest 凭邀请码加入实践项目
type JoinPracticumRequest struct {
	InviteCode string `json:"invite_code" binding:"required,max=20"`
}

// SaveRegistrationRequest 保存报名资料（草稿允许不完整，提交时整体校验）
type SaveRegistrationRequest struct {
	Profile    practicum.ProfileSection  `json:"profile"`
	Academic   practicum.AcademicData    `json:"academic_data"`
	Workplace  practicum.WorkplaceData   `json:"workplace_data"`
	Supervisor practicum.SupervisorData  `json:"supervisor_data"`
	Schedule   practicum.WorkSchedule    `json:"schedule"`
	Location   *practicum.LocationCoords `json:"location_coords"`
	Version    int                       `json:"version" binding:"required,min=1"`
}

// Registration 转换为引擎的报名资料
func (r *SaveRegistrationRequest) Registration() practicum.Registration {
	return practicum.Registration{
		Profile:    r.Profile,
		Academic:   r.Academic,
		Workplace:  r.Workplace,
		Supervisor: r.Supervisor,
		Schedule:   r.Schedule,
		Location:   r.Location,
	}
}

// RejectEnrollmentRequest 驳回报名
type RejectEnrollmentRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// ListEnrollmentsRequest 报名列表筛选
type ListEnrollmentsRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=draft pending approved rejected"`
}

// EnrollmentResponse 报名详情
type EnrollmentResponse struct {
	ID                 string                 `json:"id"`
	PracticumID        string                 `json:"practicum_id"`
	PracticumTitle     string                 `json:"practicum_title,omitempty"`
	StudentID          string                 `json:"student_id"`
	Status             string                 `json:"status"`
	Registration       practicum.Registration `json:"registration"`
	SubmittedAt        *string                `json:"submitted_at"`
	ApprovedAt         *string                `json:"approved_at"`
	RejectedAt         *string                `json:"rejected_at"`
	InstructorNotes    string                 `json:"instructor_notes"`
	InstructorViewedAt *string                `json:"instructor_viewed_at,omitempty"`
	Grades             practicum.Components   `json:"grades"`
	FinalGrade         *float64               `json:"final_grade"`
	Version            int                    `json:"version"`
	CreatedAt          string                 `json:"created_at"`
}
