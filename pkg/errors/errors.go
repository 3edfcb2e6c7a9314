package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrStatusChanged 状态守卫更新未命中：记录仍存在，但状态已被其他请求推进
// 上层重新读取记录后转换为状态机错误
var ErrStatusChanged = errors.New("记录状态已变化")
