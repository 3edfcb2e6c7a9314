package model

import (
	"time"

	"gorm.io/datatypes"

	"schologic-practicum/backend/internal/practicum"
)

// Practicum 实践项目表，对应 practicums
type Practicum struct {
	PracticumID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"practicum_id"`
	InstructorID        string    `gorm:"type:uuid;not null;index"                       json:"instructor_id"`
	Title               string    `gorm:"type:varchar(200);not null"                     json:"title"`
	InviteCode          string    `gorm:"type:varchar(20);not null"                      json:"invite_code"`
	StartDate           time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate             time.Time `gorm:"type:date;not null"                             json:"end_date"`
	LogInterval         string    `gorm:"type:varchar(10);not null;default:'weekly'"     json:"log_interval"` // daily | weekly
	LogTemplate         string    `gorm:"type:varchar(30);not null"                      json:"log_template"` // teaching_practice | industrial_attachment | custom
	AutoApprove         bool      `gorm:"not null;default:false"                         json:"auto_approve"`
	GeolocationRequired bool      `gorm:"not null;default:false"                         json:"geolocation_required"`
	FinalReportRequired bool      `gorm:"not null;default:true"                          json:"final_report_required"`

	CustomTemplate           datatypes.JSONType[*practicum.LogTemplate]   `gorm:"type:jsonb;not null" json:"custom_template"`
	GradingConfig            datatypes.JSONType[practicum.GradingConfig]  `gorm:"type:jsonb;not null" json:"grading_config"`
	LogsRubric               datatypes.JSONType[practicum.RubricConfig]   `gorm:"type:jsonb;not null" json:"logs_rubric"`
	StudentReportTemplate    datatypes.JSONType[practicum.RubricConfig]   `gorm:"type:jsonb;not null" json:"student_report_template"`
	SupervisorReportTemplate datatypes.JSONType[practicum.RubricConfig]   `gorm:"type:jsonb;not null" json:"supervisor_report_template"`
	Timeline                 datatypes.JSONType[practicum.TimelineConfig] `gorm:"type:jsonb;not null" json:"timeline"`
	VersionedModel
}

// TableName 指定表名
func (Practicum) TableName() string { return "practicums" }

// Interval 提交周期
func (p *Practicum) Interval() practicum.LogInterval {
	return practicum.LogInterval(p.LogInterval)
}

// Template 解析生效的日志模板
func (p *Practicum) Template() (practicum.LogTemplate, error) {
	return practicum.ResolveTemplate(practicum.TemplateKind(p.LogTemplate), p.CustomTemplate.Data())
}

// Rubric 按成绩组成取对应评分表
func (p *Practicum) Rubric(comp practicum.GradeComponent) practicum.RubricConfig {
	switch comp {
	case practicum.ComponentReport:
		return p.StudentReportTemplate.Data()
	case practicum.ComponentSupervisor:
		return p.SupervisorReportTemplate.Data()
	default:
		return p.LogsRubric.Data()
	}
}

// SetRubric 替换对应成绩组成的评分表
func (p *Practicum) SetRubric(comp practicum.GradeComponent, r practicum.RubricConfig) {
	switch comp {
	case practicum.ComponentReport:
		p.StudentReportTemplate = datatypes.NewJSONType(r)
	case practicum.ComponentSupervisor:
		p.SupervisorReportTemplate = datatypes.NewJSONType(r)
	default:
		p.LogsRubric = datatypes.NewJSONType(r)
	}
}

// RubricColumn 评分表对应的列名
func RubricColumn(comp practicum.GradeComponent) string {
	switch comp {
	case practicum.ComponentReport:
		return "student_report_template"
	case practicum.ComponentSupervisor:
		return "supervisor_report_template"
	default:
		return "logs_rubric"
	}
}

// Dates 业务时区下的起止日期（date 列按 UTC 读出）
func (p *Practicum) Dates(loc *time.Location) (start, end time.Time) {
	y, m, d := p.StartDate.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	y, m, d = p.EndDate.Date()
	end = time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, end
}
