package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/service"
	pkgerrors "schologic-practicum/backend/pkg/errors"
	"schologic-practicum/backend/pkg/response"
)

// ── 错误码 ──
//
//	100xx 通用 / 引擎
//	200xx 实践项目
//	210xx 报名
//	220xx 日志
//	230xx 评分
//	240xx 导出

// writeServiceError 写入跨模块共用的业务错误；各 handler 先处理本模块特有错误再回落到这里
func writeServiceError(c *gin.Context, err error) {
	var verr *practicum.ValidationError
	var terr *practicum.TransitionError

	switch {
	case errors.As(err, &verr):
		response.UnprocessableEntity(c, 10005, "数据校验失败", verr)
	case errors.As(err, &terr):
		response.Conflict(c, 10006, "当前状态不允许该操作", terr.Error())
	case errors.Is(err, practicum.ErrConfiguration):
		response.UnprocessableEntity(c, 10007, "模板或评分配置有误", gin.H{"reason": err.Error()})
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10008, "数据已被其他操作修改，请刷新后重试", "")

	case errors.Is(err, service.ErrPracticumNotFound):
		response.NotFound(c, 20001, "实践项目不存在")
	case errors.Is(err, service.ErrNotPracticumOwner):
		response.Forbidden(c, 20002, "无权操作该实践项目")
	case errors.Is(err, service.ErrNotEnrolled):
		response.Forbidden(c, 20003, "未加入该实践项目")
	case errors.Is(err, service.ErrInvalidComponent):
		response.BadRequest(c, 20004, "成绩组成无效，只支持 logs / report / supervisor")

	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 21001, "报名记录不存在")
	case errors.Is(err, service.ErrNotEnrollmentOwner):
		response.Forbidden(c, 21002, "无权操作该报名")

	case errors.Is(err, service.ErrLogNotFound):
		response.NotFound(c, 22001, "日志不存在")
	case errors.Is(err, service.ErrNotLogOwner):
		response.Forbidden(c, 22002, "无权操作该日志")

	default:
		// 交给日志中间件记录
		_ = c.Error(err)
		response.InternalError(c)
	}
}
