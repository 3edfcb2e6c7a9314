package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/service"
	"schologic-practicum/backend/pkg/response"
)

// GradingHandler 评分模块 HTTP 处理器
type GradingHandler struct {
	gradingSvc service.GradingService
}

// NewGradingHandler 创建 GradingHandler
func NewGradingHandler(gradingSvc service.GradingService) *GradingHandler {
	return &GradingHandler{gradingSvc: gradingSvc}
}

// SetComponent 直接录入某一成绩组成的加权分；value 为空表示清除
// PUT /api/v1/enrollments/:id/grades/:component
func (h *GradingHandler) SetComponent(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	component, ok := mustParam(c, "component", "成绩组成")
	if !ok {
		return
	}

	var req dto.SetGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingSvc.SetComponent(c.Request.Context(), id, component, &req, callerID)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// ScoreComponent 按评分表打分并换算为加权分
// POST /api/v1/enrollments/:id/grades/:component/score
func (h *GradingHandler) ScoreComponent(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}
	component, ok := mustParam(c, "component", "成绩组成")
	if !ok {
		return
	}

	var req dto.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingSvc.ScoreComponent(c.Request.Context(), id, component, &req, callerID)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// RecordSupervisorReport 录入单位指导老师评价
// POST /api/v1/enrollments/:id/supervisor-report
func (h *GradingHandler) RecordSupervisorReport(c *gin.Context) {
	id, ok := mustParam(c, "id", "报名ID")
	if !ok {
		return
	}

	var req dto.SupervisorReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingSvc.RecordSupervisorReport(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// SyncSupervisorGrades 按当前权重重新换算指导老师评价成绩
// POST /api/v1/practicums/:id/grades/sync
func (h *GradingHandler) SyncSupervisorGrades(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingSvc.SyncSupervisorGrades(c.Request.Context(), practicumID, callerID)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// Grades 成绩表
// GET /api/v1/practicums/:id/grades
func (h *GradingHandler) Grades(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingSvc.Grades(c.Request.Context(), practicumID, callerID)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *GradingHandler) handleGradingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReportLogInvalid):
		response.BadRequest(c, 23001, "指定的最终报告无效")
	default:
		writeServiceError(c, err)
	}
}
