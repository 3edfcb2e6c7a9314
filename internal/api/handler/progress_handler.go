package handler

import (
	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/service"
	"schologic-practicum/backend/pkg/response"
)

// ProgressHandler 进度统计 HTTP 处理器
type ProgressHandler struct {
	progressSvc service.ProgressService
}

// NewProgressHandler 创建 ProgressHandler
func NewProgressHandler(progressSvc service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressSvc: progressSvc}
}

// StudentProgress 学生查看自己在某实践项目中的进度
// GET /api/v1/practicums/:id/progress
func (h *ProgressHandler) StudentProgress(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.progressSvc.StudentProgress(c.Request.Context(), practicumID, callerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// EnrollmentProgress 教师查看某个学生的进度，并记录查看时间
// GET /api/v1/enrollments/:id/progress
func (h *ProgressHandler) EnrollmentProgress(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.progressSvc.EnrollmentProgress(c.Request.Context(), id, callerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// UnreadCounts 未读提交计数
// GET /api/v1/practicums/:id/unread
func (h *ProgressHandler) UnreadCounts(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.progressSvc.UnreadCounts(c.Request.Context(), practicumID, callerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, result)
}
