package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
	pkgjwt "schologic-practicum/backend/pkg/jwt"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoStudents   = errors.New("该实践项目暂无已通过的学生")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 成绩表导出为 Excel (.xlsx)，成绩由 GradingService 按读时重算的结果填充
//   - 时间线导出为 iCalendar (.ics)，供学生导入日历
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportGrades 导出成绩表与日志统计
	ExportGrades(ctx context.Context, practicumID, instructorID string) (*bytes.Buffer, string, error)
	// ExportTimeline 导出时间线事件为 .ics；教师与已加入的学生均可导出
	ExportTimeline(ctx context.Context, practicumID, callerID, role string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo    *repository.Repository
	store   *practicumStore
	grading GradingService
	loc     *time.Location
	logger  *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, store *practicumStore, grading GradingService, loc *time.Location, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, store: store, grading: grading, loc: loc, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportGrades 导出成绩表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "成绩表"：学号 | 邮箱 | 日志 | 报告 | 指导老师评价 | 最终成绩
//   - Sheet "日志统计"：学号 | 已提交 | 已审核 | 被驳回 | 未读
//   - 未录入的成绩显示为 "-"
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportGrades(ctx context.Context, practicumID, instructorID string) (*bytes.Buffer, string, error) {
	// 1. 成绩（含归属校验）
	grades, err := s.grading.Grades(ctx, practicumID, instructorID)
	if err != nil {
		return nil, "", err
	}
	if len(grades.Rows) == 0 {
		return nil, "", ErrExportNoStudents
	}

	// 2. 日志统计
	stats, err := s.repo.Log.StatsByPracticum(ctx, practicumID)
	if err != nil {
		s.logger.Error("统计日志失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, "", err
	}
	statIndex := make(map[string]repository.LogStats, len(stats))
	for _, st := range stats {
		statIndex[st.StudentID] = st
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── 成绩表 ──
	sheetName := "成绩表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 28)
	f.SetColWidth(sheetName, "C", "F", 16)

	w := grades.Weights
	headers := []string{
		"学号",
		"邮箱",
		fmt.Sprintf("日志 (%g)", w.LogsWeight),
		fmt.Sprintf("报告 (%g)", w.ReportWeight),
		fmt.Sprintf("指导老师评价 (%g)", w.SupervisorWeight),
		"最终成绩",
	}

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 成绩表", grades.Title))
	f.MergeCell(sheetName, "A1", fmt.Sprintf("%s1", colName(len(headers)-1)))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	row := 2
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	row = 3
	for _, r := range grades.Rows {
		f.SetCellValue(sheetName, cell("A", row), r.StudentRegistrationNumber)
		f.SetCellValue(sheetName, cell("B", row), r.StudentEmail)
		for i, v := range []*float64{r.LogsGrade, r.ReportGrade, r.SupervisorGrade, r.FinalGrade} {
			f.SetCellValue(sheetName, cell(colName(2+i), row), gradeCell(v))
		}
		row++
	}

	// ── 日志统计 ──
	statSheet := "日志统计"
	f.NewSheet(statSheet)
	f.SetColWidth(statSheet, "A", "A", 20)
	f.SetColWidth(statSheet, "B", "E", 12)

	statHeaders := []string{"学号", "已提交", "已审核", "被驳回", "未读"}
	for i, h := range statHeaders {
		f.SetCellValue(statSheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(statSheet, "A1", cell(colName(len(statHeaders)-1), 1), headerStyle)

	row = 2
	for _, r := range grades.Rows {
		st := statIndex[r.StudentID]
		f.SetCellValue(statSheet, cell("A", row), r.StudentRegistrationNumber)
		f.SetCellValue(statSheet, cell("B", row), st.Submitted)
		f.SetCellValue(statSheet, cell("C", row), st.Verified)
		f.SetCellValue(statSheet, cell("D", row), st.Rejected)
		f.SetCellValue(statSheet, cell("E", row), st.Unread)
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("成绩表_%s.xlsx", grades.Title)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportTimeline 导出时间线为 iCalendar
// ═══════════════════════════════════════════════════════════
//
// 每个时间线事件导出为一个全天 VEVENT，CATEGORIES 写入事件类型，
// 与导入时的解析规则对称。

func (s *exportService) ExportTimeline(ctx context.Context, practicumID, callerID, role string) (*bytes.Buffer, string, error) {
	p, err := s.store.get(ctx, practicumID)
	if err != nil {
		return nil, "", err
	}
	if err := s.canRead(ctx, p.InstructorID, practicumID, callerID, role); err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Schologic//Practicum Timeline//EN")
	cal.SetXWRCalName(p.Title)

	stamp := p.UpdatedAt.UTC()
	for _, ev := range p.Timeline.Data().Events {
		vevent := cal.AddEvent(fmt.Sprintf("%s-%s@practicum", p.PracticumID, ev.ID))
		vevent.SetDtStampTime(stamp)
		vevent.SetSummary(ev.Title)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		day := localDate(ev.Date.In(s.loc), s.loc)
		vevent.SetAllDayStartAt(day)
		vevent.SetAllDayEndAt(day.AddDate(0, 0, 1))
		vevent.SetProperty(ics.ComponentPropertyCategories, string(ev.Type))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("timeline_%s.ics", p.InviteCode)
	return buf, filename, nil
}

// canRead 教师须为创建者；学生须已加入
func (s *exportService) canRead(ctx context.Context, ownerID, practicumID, callerID, role string) error {
	if role == pkgjwt.RoleInstructor {
		if ownerID != callerID {
			return ErrNotPracticumOwner
		}
		return nil
	}
	if _, err := s.repo.Enrollment.GetByPracticumAndStudent(ctx, practicumID, callerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotEnrolled
		}
		s.logger.Error("查询报名失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return err
	}
	return nil
}

// ── 辅助函数 ──

func gradeCell(v *float64) interface{} {
	if v == nil {
		return "-"
	}
	return practicum.Round2(*v)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
