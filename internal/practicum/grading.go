package practicum

import "math"

// GradeComponent 成绩组成部分
type GradeComponent string

const (
	ComponentLogs       GradeComponent = "logs"
	ComponentReport     GradeComponent = "report"
	ComponentSupervisor GradeComponent = "supervisor"
)

// Valid 是否为可识别的成绩组成
func (c GradeComponent) Valid() bool {
	switch c {
	case ComponentLogs, ComponentReport, ComponentSupervisor:
		return true
	}
	return false
}

// GradingConfig 各组成部分的权重（即该部分在最终成绩中的满分）
type GradingConfig struct {
	LogsWeight       float64 `json:"logs_weight"`
	ReportWeight     float64 `json:"report_weight"`
	SupervisorWeight float64 `json:"supervisor_weight"`
}

// DefaultGradingConfig 默认权重：日志 20、报告 30、指导老师评价 50
func DefaultGradingConfig() GradingConfig {
	return GradingConfig{LogsWeight: 20, ReportWeight: 30, SupervisorWeight: 50}
}

// Weight 返回指定组成部分的权重
func (g GradingConfig) Weight(c GradeComponent) float64 {
	switch c {
	case ComponentLogs:
		return g.LogsWeight
	case ComponentReport:
		return g.ReportWeight
	case ComponentSupervisor:
		return g.SupervisorWeight
	}
	return 0
}

// Total 权重之和
func (g GradingConfig) Total() float64 {
	return g.LogsWeight + g.ReportWeight + g.SupervisorWeight
}

// Validate 权重不能为负，且不能全部为 0
func (g GradingConfig) Validate() error {
	if g.LogsWeight < 0 || g.ReportWeight < 0 || g.SupervisorWeight < 0 {
		return configErr("grading_config", "权重不能为负数")
	}
	if g.Total() == 0 {
		return configErr("grading_config", "权重之和为 0")
	}
	return nil
}

// Components 已录入的各部分加权得分，nil 表示尚未录入
type Components struct {
	Logs       *float64 `json:"logs_grade"`
	Report     *float64 `json:"report_grade"`
	Supervisor *float64 `json:"supervisor_grade"`
}

// Get 返回指定组成部分
func (c Components) Get(comp GradeComponent) *float64 {
	switch comp {
	case ComponentLogs:
		return c.Logs
	case ComponentReport:
		return c.Report
	case ComponentSupervisor:
		return c.Supervisor
	}
	return nil
}

// With 返回替换了某一组成部分后的副本
func (c Components) With(comp GradeComponent, v *float64) Components {
	switch comp {
	case ComponentLogs:
		c.Logs = v
	case ComponentReport:
		c.Report = v
	case ComponentSupervisor:
		c.Supervisor = v
	}
	return c
}

// WeightedScore (raw/total)*weight，四舍五入保留两位小数；total 为 0 时返回 0
func WeightedScore(raw, total, weight float64) float64 {
	if total == 0 {
		return 0
	}
	return Round2(raw / total * weight)
}

// FinalGrade 汇总最终成绩
//
// 权重大于 0 的组成部分任一未录入时返回 nil；全部就绪后求和并限制在 [0, 100]。
// 每次任一组成部分变化都应重新计算，结果可由已存储的组成部分幂等重算。
func FinalGrade(c Components, w GradingConfig) (*float64, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	var sum float64
	for _, comp := range []GradeComponent{ComponentLogs, ComponentReport, ComponentSupervisor} {
		if w.Weight(comp) == 0 {
			continue
		}
		v := c.Get(comp)
		if v == nil {
			return nil, nil
		}
		sum += *v
	}

	final := Round2(math.Max(0, math.Min(100, sum)))
	return &final, nil
}

// Round2 四舍五入（half-up）保留两位小数
func Round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
