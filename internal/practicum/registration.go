package practicum

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ── 报名表各分节 ──
//
// 每个分节是独立的强类型记录，校验规则写在 validate 标签上，
// label 标签用于生成面向用户的错误信息。

// ProfileSection 学生基本信息
type ProfileSection struct {
	StudentEmail              string `json:"student_email"               validate:"omitempty,email"  label:"Email"`
	StudentPhone              string `json:"student_phone"               validate:"required,phone9"  label:"Phone number"`
	StudentRegistrationNumber string `json:"student_registration_number" validate:"required"         label:"Registration number"`
}

// AcademicData 学业信息
type AcademicData struct {
	ProgramLevel string `json:"program_level" validate:"required" label:"Program level"`
	CourseCode   string `json:"course_code"   validate:"required" label:"Course code"`
	Institution  string `json:"institution"   validate:"required" label:"Institution"`
	Course       string `json:"course"        validate:"required" label:"Course"`
	YearOfStudy  string `json:"year_of_study" validate:"required" label:"Year of study"`
}

// WorkplaceData 实习单位信息
type WorkplaceData struct {
	CompanyName  string `json:"company_name"            validate:"required" label:"Company / School name"`
	Department   string `json:"department"              validate:"required" label:"Department"`
	Address      string `json:"address"                 validate:"required" label:"Address"`
	BuildingName string `json:"building_name,omitempty"`
}

// SupervisorData 单位指导老师信息
type SupervisorData struct {
	Name        string `json:"name"        validate:"required"       label:"Supervisor name"`
	Designation string `json:"designation" validate:"required"       label:"Designation"`
	Email       string `json:"email"       validate:"required,email" label:"Supervisor email"`
	Phone       string `json:"phone"       validate:"required,phone9" label:"Supervisor phone"`
}

// WorkSchedule 每周工作安排
type WorkSchedule struct {
	Days      []string `json:"days"       validate:"min=1,dive,oneof=monday tuesday wednesday thursday friday saturday sunday" label:"Work days"`
	StartTime string   `json:"start_time" validate:"required,hhmm" label:"Start time"`
	EndTime   string   `json:"end_time"   validate:"required,hhmm" label:"End time"`
}

// LocationCoords 实习地点坐标
type LocationCoords struct {
	Latitude  *float64 `json:"lat"                validate:"required,gte=-90,lte=90"   label:"Latitude"`
	Longitude *float64 `json:"lng"                validate:"required,gte=-180,lte=180" label:"Longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Registration 完整报名资料
type Registration struct {
	Profile    ProfileSection  `json:"profile"`
	Academic   AcademicData    `json:"academic_data"`
	Workplace  WorkplaceData   `json:"workplace_data"`
	Supervisor SupervisorData  `json:"supervisor_data"`
	Schedule   WorkSchedule    `json:"schedule"`
	Location   *LocationCoords `json:"location_coords,omitempty"`
}

// 错误键的分节前缀
const (
	SectionProfile    = "profile"
	SectionAcademic   = "academic_data"
	SectionWorkplace  = "workplace_data"
	SectionSupervisor = "supervisor_data"
	SectionSchedule   = "schedule"
	SectionLocation   = "location_coords"
)

var (
	digitsPattern = regexp.MustCompile(`^[0-9]{9}$`)
	hhmmPattern   = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

	registrationValidator = newRegistrationValidator()
)

func newRegistrationValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone9", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate 校验全部分节；位置坐标仅在 geolocationRequired 时必填
func (r Registration) Validate(geolocationRequired bool) error {
	verr := NewValidationError()
	verr.Merge(SectionProfile, ValidateSection(r.Profile))
	verr.Merge(SectionAcademic, ValidateSection(r.Academic))
	verr.Merge(SectionWorkplace, ValidateSection(r.Workplace))
	verr.Merge(SectionSupervisor, ValidateSection(r.Supervisor))
	verr.Merge(SectionSchedule, ValidateSection(r.Schedule))

	if geolocationRequired {
		if r.Location == nil {
			verr.Add(SectionLocation+".lat", "Location is required")
		} else {
			verr.Merge(SectionLocation, ValidateSection(*r.Location))
		}
	}
	return verr.OrNil()
}

// ValidateSection 校验单个分节，返回 字段 → 错误信息
func ValidateSection(section interface{}) map[string]string {
	out := make(map[string]string)
	err := registrationValidator.Struct(section)
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}

	typ := reflect.TypeOf(section)
	for _, fe := range verrs {
		key := fe.Field()
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = sectionMessage(fe, labelOf(typ, fe.StructField()))
	}
	return out
}

func labelOf(typ reflect.Type, structField string) string {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	// dive 产生的字段名形如 Days[0]
	if i := strings.IndexByte(structField, '['); i >= 0 {
		structField = structField[:i]
	}
	if f, ok := typ.FieldByName(structField); ok {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
	}
	return structField
}

func sectionMessage(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Enter a valid email address"
	case "phone9":
		return label + " must be exactly 9 digits"
	case "hhmm":
		return label + " must use the HH:MM format"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "Select at least one work day"
		}
		return label + " must be at least " + fe.Param()
	case "gte", "lte":
		return label + " is out of range"
	case "oneof":
		return label + " must be one of the valid options"
	}
	return label + " is invalid"
}
