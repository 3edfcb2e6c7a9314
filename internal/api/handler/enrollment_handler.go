package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/service"
	"schologic-practicum/backend/pkg/response"
)

// EnrollmentHandler 报名模块 HTTP 处理器
type EnrollmentHandler struct {
	enrollmentSvc service.EnrollmentService
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollmentSvc service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentSvc: enrollmentSvc}
}

// Join 学生凭邀请码加入实践项目；重复加入返回已有报名
// POST /api/v1/enrollments/join
func (h *EnrollmentHandler) Join(c *gin.Context) {
	var req dto.JoinPracticumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, created, err := h.enrollmentSvc.Join(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	if created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// ListMine 学生自己的报名
// GET /api/v1/enrollments/me
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.enrollmentSvc.ListMine(c.Request.Context(), callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListByPracticum 教师查看某实践项目的报名
// GET /api/v1/practicums/:id/enrollments?status=pending
func (h *EnrollmentHandler) ListByPracticum(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}

	var req dto.ListEnrollmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, total, err := h.enrollmentSvc.ListByPracticum(c.Request.Context(), practicumID, &req, callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 获取报名详情
// GET /api/v1/enrollments/:id
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.Get(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// SaveRegistration 保存报名信息（草稿或待审核状态）
// PUT /api/v1/enrollments/:id/registration
func (h *EnrollmentHandler) SaveRegistration(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}

	var req dto.SaveRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.SaveRegistration(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// Submit 提交报名
// POST /api/v1/enrollments/:id/submit
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.Submit(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// Approve 通过报名
// POST /api/v1/enrollments/:id/approve
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.Approve(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// Reject 驳回报名
// POST /api/v1/enrollments/:id/reject
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}

	var req dto.RejectEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.enrollmentSvc.Reject(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, result)
}

// Withdraw 学生撤回报名（已通过的不可撤回）
// DELETE /api/v1/enrollments/:id
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.enrollmentSvc.Withdraw(c.Request.Context(), id, callerID); err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleEnrollmentError 统一处理报名模块业务错误
func (h *EnrollmentHandler) handleEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInviteCodeInvalid):
		response.NotFound(c, 21003, "邀请码无效")
	default:
		writeServiceError(c, err)
	}
}
