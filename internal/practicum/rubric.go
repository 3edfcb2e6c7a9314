package practicum

import (
	"fmt"
	"math"
)

// RubricCriterion 评分项
type RubricCriterion struct {
	ID          string  `json:"id"                    yaml:"id"`
	Label       string  `json:"label"                 yaml:"label"`
	MaxPoints   float64 `json:"max_points"            yaml:"max_points"`
	Optional    bool    `json:"optional,omitempty"    yaml:"optional,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// RubricSection 评分分节
type RubricSection struct {
	ID          string            `json:"id"                    yaml:"id"`
	Title       string            `json:"title"                 yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Criteria    []RubricCriterion `json:"criteria"              yaml:"criteria"`
}

// RubricConfig 评分方案
type RubricConfig struct {
	ID         string            `json:"id"                    yaml:"id"`
	Title      string            `json:"title"                 yaml:"title"`
	TotalMarks float64           `json:"total_marks"           yaml:"total_marks"`
	GradingKey map[string]string `json:"grading_key,omitempty" yaml:"grading_key,omitempty"`
	Sections   []RubricSection   `json:"sections"              yaml:"sections"`
}

// MaxPoints 所有评分项满分之和
func (c RubricConfig) MaxPoints() float64 {
	var sum float64
	for _, s := range c.Sections {
		for _, cr := range s.Criteria {
			sum += cr.MaxPoints
		}
	}
	return sum
}

// Criterion 按 ID 查找评分项
func (c RubricConfig) Criterion(id string) (RubricCriterion, bool) {
	for _, s := range c.Sections {
		for _, cr := range s.Criteria {
			if cr.ID == id {
				return cr, true
			}
		}
	}
	return RubricCriterion{}, false
}

// Validate 校验评分项 ID 唯一、满分为正、总分与各项之和一致
func (c RubricConfig) Validate() error {
	subject := "rubric " + c.ID
	if len(c.Sections) == 0 {
		return configErr(subject, "至少需要一个分节")
	}
	seen := make(map[string]bool)
	for _, s := range c.Sections {
		for _, cr := range s.Criteria {
			if cr.ID == "" {
				return configErr(subject, "分节 %q 存在空的评分项 ID", s.ID)
			}
			if seen[cr.ID] {
				return configErr(subject, "评分项 ID %q 重复", cr.ID)
			}
			seen[cr.ID] = true
			if cr.MaxPoints <= 0 {
				return configErr(subject, "评分项 %q 满分必须大于 0", cr.ID)
			}
		}
	}
	if len(seen) == 0 {
		return configErr(subject, "至少需要一个评分项")
	}
	if c.TotalMarks > 0 && math.Abs(c.TotalMarks-c.MaxPoints()) > 1e-9 {
		return configErr(subject, "总分 %s 与评分项之和 %s 不一致", fmtNum(c.TotalMarks), fmtNum(c.MaxPoints()))
	}
	return nil
}

// RubricScore 评分结果
type RubricScore struct {
	Raw      float64            `json:"raw"`
	Possible float64            `json:"possible"`
	Scores   map[string]float64 `json:"scores"`
}

// ScoreRubric 按评分方案汇总得分
//
// 未打分的可选项不计入可得总分；未知评分项、超出范围、缺少必评项一次性全部报告。
func ScoreRubric(cfg RubricConfig, scores map[string]float64) (RubricScore, error) {
	verr := NewValidationError()
	for id := range scores {
		if _, ok := cfg.Criterion(id); !ok {
			verr.Add(id, "Unknown criterion")
		}
	}

	result := RubricScore{Scores: make(map[string]float64, len(scores))}
	for _, s := range cfg.Sections {
		for _, cr := range s.Criteria {
			v, ok := scores[cr.ID]
			if !ok {
				if !cr.Optional {
					verr.Add(cr.ID, cr.Label+" is required")
				}
				continue
			}
			if v < 0 || v > cr.MaxPoints {
				verr.Add(cr.ID, fmt.Sprintf("%s must be between 0 and %s", cr.Label, fmtNum(cr.MaxPoints)))
				continue
			}
			result.Raw += v
			result.Possible += cr.MaxPoints
			result.Scores[cr.ID] = v
		}
	}
	if err := verr.OrNil(); err != nil {
		return RubricScore{}, err
	}
	return result, nil
}
