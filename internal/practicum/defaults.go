package practicum

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

var (
	builtinTemplates map[TemplateKind]LogTemplate
	builtinRubrics   map[string]RubricConfig
)

// 内置评分方案的键
const (
	RubricLogsAssessment        = "logs_assessment"
	RubricTeachingObservation   = "teaching_practice_observation"
	RubricIndustrialObservation = "industrial_attachment_observation"
	RubricReportScoreSheet      = "report_score_sheet"
)

func init() {
	builtinTemplates = mustLoadTemplates()
	builtinRubrics = mustLoadRubrics()
}

func mustLoadTemplates() map[TemplateKind]LogTemplate {
	var raw map[TemplateKind]LogTemplate
	mustDecode("defaults/templates.yaml", &raw)
	for kind, tpl := range raw {
		if err := tpl.Validate(); err != nil {
			panic(fmt.Sprintf("内置模板 %s 无效: %v", kind, err))
		}
	}
	return raw
}

func mustLoadRubrics() map[string]RubricConfig {
	var raw map[string]RubricConfig
	mustDecode("defaults/rubrics.yaml", &raw)
	for key, r := range raw {
		if err := r.Validate(); err != nil {
			panic(fmt.Sprintf("内置评分方案 %s 无效: %v", key, err))
		}
	}
	return raw
}

func mustDecode(path string, out interface{}) {
	data, err := defaultsFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("读取 %s 失败: %v", path, err))
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("解析 %s 失败: %v", path, err))
	}
}

// DefaultTemplate 返回内置模板的副本
func DefaultTemplate(kind TemplateKind) (LogTemplate, bool) {
	tpl, ok := builtinTemplates[kind]
	if !ok {
		return LogTemplate{}, false
	}
	tpl.Fields = append([]TemplateField(nil), tpl.Fields...)
	return tpl, true
}

// ResolveTemplate 按实践项目的模板类型取得生效模板
func ResolveTemplate(kind TemplateKind, custom *LogTemplate) (LogTemplate, error) {
	if kind == TemplateCustom {
		if custom == nil {
			return LogTemplate{}, configErr("template custom", "自定义模板为空")
		}
		if err := custom.Validate(); err != nil {
			return LogTemplate{}, err
		}
		return *custom, nil
	}
	tpl, ok := DefaultTemplate(kind)
	if !ok {
		return LogTemplate{}, configErr("template "+string(kind), "未知的模板类型")
	}
	return tpl, nil
}

// DefaultRubric 返回内置评分方案的副本
func DefaultRubric(key string) (RubricConfig, bool) {
	r, ok := builtinRubrics[key]
	if !ok {
		return RubricConfig{}, false
	}
	sections := make([]RubricSection, len(r.Sections))
	for i, s := range r.Sections {
		s.Criteria = append([]RubricCriterion(nil), s.Criteria...)
		sections[i] = s
	}
	r.Sections = sections
	return r, true
}

// DefaultLogsRubric 日志评分表
func DefaultLogsRubric() RubricConfig {
	r, _ := DefaultRubric(RubricLogsAssessment)
	return r
}

// DefaultStudentReportTemplate 学生报告评分表
func DefaultStudentReportTemplate() RubricConfig {
	r, _ := DefaultRubric(RubricReportScoreSheet)
	return r
}

// DefaultSupervisorTemplate 按模板类型选择单位指导老师观察评价表
func DefaultSupervisorTemplate(kind TemplateKind) RubricConfig {
	key := RubricTeachingObservation
	if kind == TemplateIndustrialAttachment {
		key = RubricIndustrialObservation
	}
	r, _ := DefaultRubric(key)
	return r
}
