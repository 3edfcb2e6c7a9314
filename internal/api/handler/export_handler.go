package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"schologic-practicum/backend/internal/service"
	"schologic-practicum/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportGrades 导出成绩表
// GET /api/v1/practicums/:id/grades/export
func (h *ExportHandler) ExportGrades(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportGrades(c.Request.Context(), practicumID, callerID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendAttachment(c, filename, contentTypeXLSX, buf)
}

// ExportTimeline 导出时间线日历
// GET /api/v1/practicums/:id/timeline/export
func (h *ExportHandler) ExportTimeline(c *gin.Context) {
	practicumID, ok := mustParam(c, "id", "实践项目ID")
	if !ok {
		return
	}
	callerID, role, ok := MustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportTimeline(c.Request.Context(), practicumID, callerID, role)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendAttachment(c, filename, contentTypeICS, buf)
}

// sendAttachment 设置下载响应头并写出文件
func sendAttachment(c *gin.Context, filename, contentType string, buf *bytes.Buffer) {
	encodedFilename := url.PathEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoStudents):
		response.NotFound(c, 24001, "该实践项目暂无已通过的学生")
	case errors.Is(err, service.ErrExportGenerateFail):
		_ = c.Error(err)
		response.InternalError(c)
	default:
		writeServiceError(c, err)
	}
}
