package practicum

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ── 引擎错误分类 ──
//
// 调用方通过 errors.Is 区分三类预期错误：
//   - ErrValidation:        字段级校验失败，可由调用方修正后重试
//   - ErrInvalidTransition: 当前状态不允许该动作，记录未被修改
//   - ErrConfiguration:     模板/评分表/权重配置本身有误，属于部署期问题

var (
	ErrValidation        = errors.New("数据校验失败")
	ErrInvalidTransition = errors.New("非法状态转换")
	ErrConfiguration     = errors.New("配置错误")
)

// ValidationError 字段级校验错误，一次性列出所有失败字段
type ValidationError struct {
	Fields map[string]string `json:"errors"`
}

// NewValidationError 创建空的 ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add 记录一个字段错误；同一字段保留首个错误
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Merge 合并另一组字段错误，键统一加上前缀
func (e *ValidationError) Merge(prefix string, fields map[string]string) {
	for k, v := range fields {
		if prefix != "" {
			k = prefix + "." + k
		}
		e.Add(k, v)
	}
}

// Empty 是否无任何字段错误
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil 无字段错误时返回 nil，便于直接作为 error 返回
func (e *ValidationError) OrNil() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is 支持 errors.Is(err, ErrValidation)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError 状态机拒绝的动作，携带尝试的动作与当前状态
type TransitionError struct {
	Machine string `json:"machine"`
	Action  string `json:"action"`
	Current string `json:"current"`
	Reason  string `json:"reason,omitempty"`
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s 状态下不允许执行 %s", e.Machine, e.Current, e.Action)
	if e.Reason != "" {
		msg += "（" + e.Reason + "）"
	}
	return msg
}

// Is 支持 errors.Is(err, ErrInvalidTransition)
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConfigurationError 模板或评分配置错误
type ConfigurationError struct {
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration.Error(), e.Subject, e.Reason)
}

// Is 支持 errors.Is(err, ErrConfiguration)
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(subject, format string, args ...interface{}) error {
	return &ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}
