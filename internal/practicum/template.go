package practicum

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldType 模板字段类型
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldScale    FieldType = "scale"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
)

// TemplateKind 实践项目使用的日志模板
type TemplateKind string

const (
	TemplateTeachingPractice     TemplateKind = "teaching_practice"
	TemplateIndustrialAttachment TemplateKind = "industrial_attachment"
	TemplateCustom               TemplateKind = "custom"
)

// Valid 是否为可识别的模板类型
func (k TemplateKind) Valid() bool {
	switch k {
	case TemplateTeachingPractice, TemplateIndustrialAttachment, TemplateCustom:
		return true
	}
	return false
}

// TemplateField 模板字段定义
type TemplateField struct {
	ID          string    `json:"id"                    yaml:"id"`
	Label       string    `json:"label"                 yaml:"label"`
	Type        FieldType `json:"type"                  yaml:"type"`
	Required    bool      `json:"required"              yaml:"required"`
	Options     []string  `json:"options,omitempty"     yaml:"options,omitempty"`
	Min         *float64  `json:"min,omitempty"         yaml:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"         yaml:"max,omitempty"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// LogTemplate 日志字段模板
type LogTemplate struct {
	ID          string          `json:"id"          yaml:"id"`
	Name        string          `json:"name"        yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Fields      []TemplateField `json:"fields"      yaml:"fields"`
}

// Validate 校验模板定义本身（部署期错误）
func (t LogTemplate) Validate() error {
	if len(t.Fields) == 0 {
		return configErr("template "+t.ID, "至少需要一个字段")
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.ID == "" {
			return configErr("template "+t.ID, "字段 ID 不能为空")
		}
		if seen[f.ID] {
			return configErr("template "+t.ID, "字段 ID %q 重复", f.ID)
		}
		seen[f.ID] = true

		switch f.Type {
		case FieldText, FieldTextarea, FieldDate:
		case FieldSelect:
			if len(f.Options) == 0 {
				return configErr("template "+t.ID, "select 字段 %q 缺少选项", f.ID)
			}
		case FieldScale:
			if f.Min == nil || f.Max == nil {
				return configErr("template "+t.ID, "scale 字段 %q 必须设置 min/max", f.ID)
			}
			if *f.Min > *f.Max {
				return configErr("template "+t.ID, "scale 字段 %q 的 min 大于 max", f.ID)
			}
		case FieldNumber:
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return configErr("template "+t.ID, "number 字段 %q 的 min 大于 max", f.ID)
			}
		default:
			return configErr("template "+t.ID, "字段 %q 类型 %q 未知", f.ID, f.Type)
		}
	}
	return nil
}

// ValidationResult 校验结果
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// Err 转为 error；校验通过时为 nil
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Fields: r.Errors}
}

// DaysKey 周报复合日志中按天填写的条目数组键
const DaysKey = "days"

// ValidateEntries 按模板完整校验日志条目（提交时使用）
func ValidateEntries(entries map[string]interface{}, tpl LogTemplate) ValidationResult {
	return validate(entries, tpl, true)
}

// ValidateDraftEntries 草稿保存时的校验：跳过必填检查，只校验已填写值的类型
func ValidateDraftEntries(entries map[string]interface{}, tpl LogTemplate) ValidationResult {
	return validate(entries, tpl, false)
}

func validate(entries map[string]interface{}, tpl LogTemplate, enforceRequired bool) ValidationResult {
	errs := make(map[string]string)

	// 复合周报：entries.days 为逐日条目数组，模板作用于每一天
	if raw, ok := entries[DaysKey]; ok {
		if days, isArray := raw.([]interface{}); isArray {
			if len(days) == 0 && enforceRequired {
				errs[DaysKey] = "At least one day entry is required"
			}
			for i, d := range days {
				day, _ := d.(map[string]interface{})
				validateFields(day, tpl, enforceRequired, fmt.Sprintf("%s.%d.", DaysKey, i), errs)
			}
			return ValidationResult{Valid: len(errs) == 0, Errors: errs}
		}
	}

	validateFields(entries, tpl, enforceRequired, "", errs)
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateFields(entries map[string]interface{}, tpl LogTemplate, enforceRequired bool, prefix string, errs map[string]string) {
	for _, field := range tpl.Fields {
		key := prefix + field.ID
		value := entries[field.ID]

		if isBlank(value) {
			if field.Required && enforceRequired {
				errs[key] = field.Label + " is required"
			}
			continue
		}

		switch field.Type {
		case FieldNumber, FieldScale:
			n, ok := toNumber(value)
			if !ok {
				errs[key] = field.Label + " must be a number"
				continue
			}
			if field.Type == FieldScale {
				if field.Min != nil && field.Max != nil && (n < *field.Min || n > *field.Max) {
					errs[key] = fmt.Sprintf("%s must be between %s and %s", field.Label, fmtNum(*field.Min), fmtNum(*field.Max))
				}
				continue
			}
			if field.Min != nil && n < *field.Min {
				errs[key] = fmt.Sprintf("%s must be at least %s", field.Label, fmtNum(*field.Min))
			}
			if field.Max != nil && n > *field.Max {
				errs[key] = fmt.Sprintf("%s must be at most %s", field.Label, fmtNum(*field.Max))
			}
		case FieldSelect:
			s, ok := value.(string)
			if !ok || !contains(field.Options, s) {
				errs[key] = field.Label + " must be one of the valid options"
			}
		}
	}
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// toNumber 只接受数值类型，数字字符串不算数字
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
