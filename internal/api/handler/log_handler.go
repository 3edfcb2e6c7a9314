package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/service"
	"schologic-practicum/backend/pkg/response"
)

// LogHandler 实践日志模块 HTTP 处理器
type LogHandler struct {
	logSvc service.LogService
}

// NewLogHandler 创建 LogHandler
func NewLogHandler(logSvc service.LogService) *LogHandler {
	return &LogHandler{logSvc: logSvc}
}

// SaveDraft 保存日志草稿；同一天已有草稿时覆盖
// POST /api/v1/practicums/:id/logs
func (h *LogHandler) SaveDraft(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}

	var req dto.SaveLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, created, err := h.logSvc.SaveDraft(c.Request.Context(), practicumID, &req, callerID)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	if created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// List 日志列表；学生只能看到自己的日志，教师看不到草稿
// GET /api/v1/practicums/:id/logs?student_id=&log_type=&unread=true
func (h *LogHandler) List(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}

	var req dto.ListLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, total, err := h.logSvc.List(c.Request.Context(), practicumID, &req, callerID, role)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Submissions 学生全部提交（日志、报告、指导老师评价）按时间倒序
// GET /api/v1/practicums/:id/submissions?student_id=xxx
func (h *LogHandler) Submissions(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.logSvc.Submissions(c.Request.Context(), practicumID, c.Query("student_id"), callerID, role)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// Get 获取日志详情；教师读取时同时标记已读
// GET /api/v1/logs/:id
func (h *LogHandler) Get(c *gin.Context) {
	id, ok := mustParam(c, "id", "日志ID")
	if !ok {
		return
	}
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.logSvc.Get(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateDraft 修改日志草稿
// PUT /api/v1/logs/:id
func (h *LogHandler) UpdateDraft(c *gin.Context) {
	id, ok := mustParam(c, "id", "日志ID")
	if !ok {
		return
	}

	var req dto.UpdateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.logSvc.UpdateDraft(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// Submit 提交日志；返回单位指导老师审核链接
// POST /api/v1/logs/:id/submit
func (h *LogHandler) Submit(c *gin.Context) {
	id, ok := mustParam(c, "id", "日志ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.logSvc.Submit(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// Verify 教师代为确认日志
// POST /api/v1/logs/:id/verify
func (h *LogHandler) Verify(c *gin.Context) {
	h.review(c, h.logSvc.Verify)
}

// Reject 教师代为驳回日志
// POST /api/v1/logs/:id/reject
func (h *LogHandler) Reject(c *gin.Context) {
	h.review(c, h.logSvc.Reject)
}

type reviewFunc func(ctx context.Context, id string, req *dto.ReviewLogRequest, instructorID string) (*dto.LogResponse, error)

func (h *LogHandler) review(c *gin.Context, fn reviewFunc) {
	id, ok := mustParam(c, "id", "日志ID")
	if !ok {
		return
	}

	var req dto.ReviewLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkRead 标记日志已读
// POST /api/v1/logs/:id/read
func (h *LogHandler) MarkRead(c *gin.Context) {
	id, ok := mustParam(c, "id", "日志ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.logSvc.MarkRead(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// Delete 删除日志（已确认的不可删除）
// DELETE /api/v1/logs/:id
func (h *LogHandler) Delete(c *gin.Context) {
	id, ok := mustParam(c, "id", "日志ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.logSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleLogError(c, err)
		return
	}

	response.OK(c, nil)
}

// VerifyByToken 单位指导老师凭链接审核日志，无需登录
// POST /api/v1/verify/:log_id
func (h *LogHandler) VerifyByToken(c *gin.Context) {
	id, ok := mustParam(c, "log_id", "日志ID")
	if !ok {
		return
	}

	var req dto.VerifyByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.logSvc.VerifyByToken(c.Request.Context(), id, &req)
	if err != nil {
		// 不区分日志不存在与令牌错误
		if errors.Is(err, service.ErrLogNotFound) {
			err = service.ErrInvalidVerificationToken
		}
		h.handleLogError(c, err)
		return
	}

	response.OK(c, result)
}

// handleLogError 统一处理日志模块业务错误
func (h *LogHandler) handleLogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEnrollmentNotApproved):
		response.Forbidden(c, 22003, "报名尚未通过审核，不能填写日志")
	case errors.Is(err, service.ErrLogDateInvalid):
		response.BadRequest(c, 22004, "日志日期无效")
	case errors.Is(err, service.ErrLogDateOutOfRange):
		response.UnprocessableEntity(c, 22005, "日志日期不在实践期内", nil)
	case errors.Is(err, service.ErrInvalidVerificationToken):
		response.Forbidden(c, 22006, "审核链接无效或已使用")
	default:
		writeServiceError(c, err)
	}
}
