package model

import (
	"time"

	"gorm.io/datatypes"

	"schologic-practicum/backend/internal/practicum"
)

// SupervisorReport 单位指导老师评价（按观察评价表打分）
type SupervisorReport struct {
	SupervisorName string             `json:"supervisor_name"`
	Scores         map[string]float64 `json:"scores"`
	Raw            float64            `json:"raw"`
	Possible       float64            `json:"possible"`
	Comment        string             `json:"comment,omitempty"`
	RecordedAt     time.Time          `json:"recorded_at"`
	RecordedBy     string             `json:"recorded_by"`
}

// PracticumEnrollment 学生报名表，对应 practicum_enrollments
type PracticumEnrollment struct {
	EnrollmentID              string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"enrollment_id"`
	PracticumID               string `gorm:"type:uuid;not null"                             json:"practicum_id"`
	StudentID                 string `gorm:"type:uuid;not null"                             json:"student_id"`
	StudentEmail              string `gorm:"type:varchar(255);not null;default:''"          json:"student_email"`
	StudentPhone              string `gorm:"type:varchar(20);not null;default:''"           json:"student_phone"`
	StudentRegistrationNumber string `gorm:"type:varchar(50);not null;default:''"           json:"student_registration_number"`
	CourseCode                string `gorm:"type:varchar(50);not null;default:''"           json:"course_code"`
	ProgramLevel              string `gorm:"type:varchar(50);not null;default:''"           json:"program_level"`

	AcademicData   datatypes.JSONType[practicum.AcademicData]    `gorm:"type:jsonb;not null" json:"academic_data"`
	WorkplaceData  datatypes.JSONType[practicum.WorkplaceData]   `gorm:"type:jsonb;not null" json:"workplace_data"`
	SupervisorData datatypes.JSONType[practicum.SupervisorData]  `gorm:"type:jsonb;not null" json:"supervisor_data"`
	Schedule       datatypes.JSONType[practicum.WorkSchedule]    `gorm:"type:jsonb;not null" json:"schedule"`
	LocationCoords datatypes.JSONType[*practicum.LocationCoords] `gorm:"type:jsonb;not null" json:"location_coords"`

	Status             string     `gorm:"type:varchar(20);not null;default:'draft'" json:"status"` // draft | pending | approved | rejected
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	InstructorNotes    string     `gorm:"type:text;not null;default:''"             json:"instructor_notes"`
	InstructorViewedAt *time.Time `json:"instructor_viewed_at,omitempty"`

	LogsGrade        *float64                              `gorm:"type:numeric(6,2)"   json:"logs_grade"`
	ReportGrade      *float64                              `gorm:"type:numeric(6,2)"   json:"report_grade"`
	SupervisorGrade  *float64                              `gorm:"type:numeric(6,2)"   json:"supervisor_grade"`
	FinalGrade       *float64                              `gorm:"type:numeric(6,2)"   json:"final_grade"`
	SupervisorReport datatypes.JSONType[*SupervisorReport] `gorm:"type:jsonb;not null" json:"supervisor_report"`
	VersionedModel

	// 关联
	Practicum *Practicum `gorm:"foreignKey:PracticumID;references:PracticumID" json:"practicum,omitempty"`
}

// TableName 指定表名
func (PracticumEnrollment) TableName() string { return "practicum_enrollments" }

// Registration 由各列组装完整报名资料
func (e *PracticumEnrollment) Registration() practicum.Registration {
	return practicum.Registration{
		Profile: practicum.ProfileSection{
			StudentEmail:              e.StudentEmail,
			StudentPhone:              e.StudentPhone,
			StudentRegistrationNumber: e.StudentRegistrationNumber,
		},
		Academic:   e.AcademicData.Data(),
		Workplace:  e.WorkplaceData.Data(),
		Supervisor: e.SupervisorData.Data(),
		Schedule:   e.Schedule.Data(),
		Location:   e.LocationCoords.Data(),
	}
}

// ApplyRegistration 把报名资料写回各列；course_code / program_level 冗余一份便于筛选
func (e *PracticumEnrollment) ApplyRegistration(r practicum.Registration) {
	e.StudentEmail = r.Profile.StudentEmail
	e.StudentPhone = r.Profile.StudentPhone
	e.StudentRegistrationNumber = r.Profile.StudentRegistrationNumber
	e.CourseCode = r.Academic.CourseCode
	e.ProgramLevel = r.Academic.ProgramLevel
	e.AcademicData = datatypes.NewJSONType(r.Academic)
	e.WorkplaceData = datatypes.NewJSONType(r.Workplace)
	e.SupervisorData = datatypes.NewJSONType(r.Supervisor)
	e.Schedule = datatypes.NewJSONType(r.Schedule)
	e.LocationCoords = datatypes.NewJSONType(r.Location)
}

// State 报名状态机快照
func (e *PracticumEnrollment) State() practicum.EnrollmentState {
	return practicum.EnrollmentState{
		Status:          practicum.EnrollmentStatus(e.Status),
		SubmittedAt:     e.SubmittedAt,
		ApprovedAt:      e.ApprovedAt,
		RejectedAt:      e.RejectedAt,
		InstructorNotes: e.InstructorNotes,
	}
}

// ApplyState 把状态机结果写回状态列
func (e *PracticumEnrollment) ApplyState(s practicum.EnrollmentState) {
	e.Status = string(s.Status)
	e.SubmittedAt = s.SubmittedAt
	e.ApprovedAt = s.ApprovedAt
	e.RejectedAt = s.RejectedAt
	e.InstructorNotes = s.InstructorNotes
}

// Components 已录入的成绩组成
func (e *PracticumEnrollment) Components() practicum.Components {
	return practicum.Components{
		Logs:       e.LogsGrade,
		Report:     e.ReportGrade,
		Supervisor: e.SupervisorGrade,
	}
}

// GradeColumn 成绩组成对应的列名
func GradeColumn(comp practicum.GradeComponent) string {
	switch comp {
	case practicum.ComponentReport:
		return "report_grade"
	case practicum.ComponentSupervisor:
		return "supervisor_grade"
	default:
		return "logs_grade"
	}
}
