package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
	pkgerrors "schologic-practicum/backend/pkg/errors"
	pkgjwt "schologic-practicum/backend/pkg/jwt"
)

// ── 日志模块业务错误 ──

var (
	ErrLogNotFound              = errors.New("日志不存在")
	ErrNotLogOwner              = errors.New("无权操作该日志")
	ErrEnrollmentNotApproved    = errors.New("报名尚未通过审核，不能填写日志")
	ErrLogDateInvalid           = errors.New("日志日期无效")
	ErrLogDateOutOfRange        = errors.New("日志日期不在实践期内")
	ErrInvalidVerificationToken = errors.New("审核链接无效或已使用")
)

const logMachine = "log"

// LogService 日志与最终报告业务接口
type LogService interface {
	SaveDraft(ctx context.Context, practicumID string, req *dto.SaveLogRequest, studentID string) (*dto.LogResponse, bool, error)
	UpdateDraft(ctx context.Context, id string, req *dto.UpdateLogRequest, studentID string) (*dto.LogResponse, error)
	Submit(ctx context.Context, id, studentID string) (*dto.SubmitLogResponse, error)
	Verify(ctx context.Context, id string, req *dto.ReviewLogRequest, instructorID string) (*dto.LogResponse, error)
	Reject(ctx context.Context, id string, req *dto.ReviewLogRequest, instructorID string) (*dto.LogResponse, error)
	VerifyByToken(ctx context.Context, id string, req *dto.VerifyByTokenRequest) (*dto.LogResponse, error)
	Get(ctx context.Context, id, callerID, role string) (*dto.LogResponse, error)
	MarkRead(ctx context.Context, id, instructorID string) (*dto.LogResponse, error)
	List(ctx context.Context, practicumID string, req *dto.ListLogsRequest, callerID, role string) ([]dto.LogResponse, int64, error)
	Submissions(ctx context.Context, practicumID, studentID, callerID, role string) (*dto.SubmissionListResponse, error)
	Delete(ctx context.Context, id, studentID string) error
}

type logService struct {
	repo          *repository.Repository
	store         *practicumStore
	loc           *time.Location
	verifyBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

// NewLogService 创建 LogService 实例
func NewLogService(repo *repository.Repository, store *practicumStore, loc *time.Location, verifyBaseURL string, logger *zap.Logger) LogService {
	return &logService{
		repo:          repo,
		store:         store,
		loc:           loc,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

// ────────────────────── SaveDraft ──────────────────────

// SaveDraft 创建草稿；同一天同类型已有草稿时覆盖它（created=false）
func (s *logService) SaveDraft(ctx context.Context, practicumID string, req *dto.SaveLogRequest, studentID string) (*dto.LogResponse, bool, error) {
	p, err := s.approvedPracticum(ctx, practicumID, studentID)
	if err != nil {
		return nil, false, err
	}

	kind := practicum.KindLog
	if req.LogType == string(practicum.KindReport) {
		kind = practicum.KindReport
	}
	date, err := s.logDate(p, kind, req.LogDate)
	if err != nil {
		return nil, false, err
	}
	if err := s.validateDraft(p, kind, req.Entries); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.Log.GetDraft(ctx, practicumID, studentID, string(kind), utcDate(date))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询日志草稿失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, false, err
	}
	if existing != nil {
		s.fill(existing, p, date, req.Entries, req.FileURLs)
		if err := s.repo.Log.UpdateDraft(ctx, existing); err != nil {
			return nil, false, s.writeFailed(ctx, existing.LogID, "edit", err)
		}
		return toLogResponse(existing), false, nil
	}

	state := practicum.NewDraftLog(kind)
	l := &model.PracticumLog{
		PracticumID: practicumID,
		StudentID:   studentID,
	}
	l.ApplyState(state)
	s.fill(l, p, date, req.Entries, req.FileURLs)
	l.CreatedBy = &studentID
	l.UpdatedBy = &studentID

	if err := s.repo.Log.Create(ctx, l); err != nil {
		s.logger.Error("创建日志失败",
			zap.String("practicum_id", practicumID),
			zap.String("student_id", studentID),
			zap.Error(err),
		)
		return nil, false, err
	}

	s.logger.Info("日志草稿已创建",
		zap.String("log_id", l.LogID),
		zap.String("log_type", l.LogType),
	)
	return toLogResponse(l), true, nil
}

// ────────────────────── UpdateDraft ──────────────────────

func (s *logService) UpdateDraft(ctx context.Context, id string, req *dto.UpdateLogRequest, studentID string) (*dto.LogResponse, error) {
	l, state, err := s.ownLog(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if !state.Editable() {
		return nil, &practicum.TransitionError{Machine: logMachine, Action: "edit", Current: l.SubmissionStatus}
	}
	if req.Version != l.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	p, err := s.store.get(ctx, l.PracticumID)
	if err != nil {
		return nil, err
	}

	date := localDate(l.LogDate, s.loc)
	if req.LogDate != nil {
		if date, err = s.logDate(p, state.Kind(), *req.LogDate); err != nil {
			return nil, err
		}
	}
	if err := s.validateDraft(p, state.Kind(), req.Entries); err != nil {
		return nil, err
	}

	s.fill(l, p, date, req.Entries, req.FileURLs)
	if err := s.repo.Log.UpdateDraft(ctx, l); err != nil {
		return nil, s.writeFailed(ctx, id, "edit", err)
	}
	return toLogResponse(l), nil
}

// ────────────────────── Submit ──────────────────────

// Submit 完整校验后提交；周期日志同时签发单位指导老师审核令牌
//
// 令牌只以 bcrypt 哈希保存，明文链接只在本次响应中返回。
func (s *logService) Submit(ctx context.Context, id, studentID string) (*dto.SubmitLogResponse, error) {
	l, state, err := s.ownLog(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	p, err := s.approvedPracticum(ctx, l.PracticumID, studentID)
	if err != nil {
		return nil, err
	}

	next, err := state.Submit()
	if err != nil {
		return nil, err
	}
	if err := s.validateFinal(p, l); err != nil {
		return nil, err
	}

	var token string
	if next.Kind() == practicum.KindLog {
		token = uuid.NewString()
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("生成审核令牌失败", zap.String("log_id", id), zap.Error(err))
			return nil, err
		}
		l.VerificationTokenHash = string(hash)
	}

	now := s.now().UTC()
	l.ApplyState(next)
	l.SubmittedAt = &now

	if err := s.repo.Log.Submit(ctx, l); err != nil {
		return nil, s.writeFailed(ctx, id, "submit", err)
	}

	s.logger.Info("日志已提交",
		zap.String("log_id", id),
		zap.String("log_type", l.LogType),
		zap.String("student_id", studentID),
	)

	resp := &dto.SubmitLogResponse{Log: *toLogResponse(l)}
	if token != "" {
		resp.VerificationURL = fmt.Sprintf("%s/%s?token=%s", s.verifyBaseURL, id, url.QueryEscape(token))
	}
	return resp, nil
}

// ────────────────────── 审核 ──────────────────────

func (s *logService) Verify(ctx context.Context, id string, req *dto.ReviewLogRequest, instructorID string) (*dto.LogResponse, error) {
	l, state, err := s.instructorLog(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}
	next, err := state.Verify()
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, l, next, "verify", req.Comment, instructorID)
}

func (s *logService) Reject(ctx context.Context, id string, req *dto.ReviewLogRequest, instructorID string) (*dto.LogResponse, error) {
	l, state, err := s.instructorLog(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}
	next, err := state.Reject()
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, l, next, "reject", req.Comment, instructorID)
}

// VerifyByToken 单位指导老师凭链接中的令牌提交审核结论，无需登录
func (s *logService) VerifyByToken(ctx context.Context, id string, req *dto.VerifyByTokenRequest) (*dto.LogResponse, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLogNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}
	// 令牌在第一次给出结论后清空，重复使用同一链接也落到这里
	if l.VerificationTokenHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(l.VerificationTokenHash), []byte(req.Token)) != nil {
		s.logger.Warn("审核令牌校验失败", zap.String("log_id", id))
		return nil, ErrInvalidVerificationToken
	}

	state, err := s.state(l)
	if err != nil {
		return nil, err
	}

	var (
		next   practicum.LogState
		action string
	)
	if req.Decision == string(practicum.SupervisorVerified) {
		next, err = state.Verify()
		action = "verify"
	} else {
		next, err = state.Reject()
		action = "reject"
	}
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, l, next, action, req.Comment, strings.TrimSpace(req.SupervisorName))
}

func (s *logService) decide(ctx context.Context, l *model.PracticumLog, next practicum.LogState, action, comment, by string) (*dto.LogResponse, error) {
	now := s.now().UTC()
	l.ApplyState(next)
	l.SupervisorComment = comment
	l.SupervisorVerifiedAt = &now
	l.VerifiedBy = by

	if err := s.repo.Log.Decide(ctx, l); err != nil {
		return nil, s.writeFailed(ctx, l.LogID, action, err)
	}

	s.logger.Info("日志审核完成",
		zap.String("log_id", l.LogID),
		zap.String("supervisor_status", l.SupervisorStatus),
		zap.String("verified_by", by),
	)
	return toLogResponse(l), nil
}

// ────────────────────── Get / MarkRead ──────────────────────

// Get 教师首次打开时顺带标记已读
func (s *logService) Get(ctx context.Context, id, callerID, role string) (*dto.LogResponse, error) {
	if role == pkgjwt.RoleInstructor {
		return s.MarkRead(ctx, id, callerID)
	}
	l, _, err := s.ownLog(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	return toLogResponse(l), nil
}

func (s *logService) MarkRead(ctx context.Context, id, instructorID string) (*dto.LogResponse, error) {
	l, state, err := s.instructorLog(ctx, id, instructorID)
	if err != nil {
		return nil, err
	}

	next, changed := state.MarkRead()
	if !changed {
		return toLogResponse(l), nil
	}

	now := s.now().UTC()
	ok, err := s.repo.Log.MarkRead(ctx, id, now)
	if err != nil {
		s.logger.Error("标记日志已读失败", zap.String("log_id", id), zap.Error(err))
		return nil, err
	}
	// ok=false 说明并发请求已先一步标记，结果相同
	if ok {
		l.ApplyState(next)
		l.ReadAt = &now
		return toLogResponse(l), nil
	}

	fresh, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toLogResponse(fresh), nil
}

// ────────────────────── List / Submissions ──────────────────────

// List 学生只看自己的记录；教师只看已提交的记录
func (s *logService) List(ctx context.Context, practicumID string, req *dto.ListLogsRequest, callerID, role string) ([]dto.LogResponse, int64, error) {
	f := repository.LogFilter{
		PracticumID:      practicumID,
		StudentID:        req.StudentID,
		LogType:          req.LogType,
		SubmissionStatus: req.Status,
	}
	if req.Unread {
		f.InstructorStatus = string(practicum.InstructorUnread)
	}

	if role == pkgjwt.RoleInstructor {
		if _, err := s.store.owned(ctx, practicumID, callerID); err != nil {
			return nil, 0, err
		}
		f.SubmissionStatus = string(practicum.SubmissionSubmitted)
	} else {
		f.StudentID = callerID
	}

	page, pageSize := req.GetPage(), req.GetPageSize()
	list, total, err := s.repo.Log.List(ctx, f, (page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.Error("列出日志失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.LogResponse, 0, len(list))
	for i := range list {
		result = append(result, *toLogResponse(&list[i]))
	}
	return result, total, nil
}

// Submissions 日志、最终报告与指导老师评价合并为一个按时间倒序的列表
func (s *logService) Submissions(ctx context.Context, practicumID, studentID, callerID, role string) (*dto.SubmissionListResponse, error) {
	instructor := role == pkgjwt.RoleInstructor
	if instructor {
		if _, err := s.store.owned(ctx, practicumID, callerID); err != nil {
			return nil, err
		}
	} else {
		studentID = callerID
	}

	logs, err := s.repo.Log.ListAll(ctx, practicumID, studentID)
	if err != nil {
		s.logger.Error("读取提交记录失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, err
	}

	items := make([]practicum.SubmissionItem, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		if instructor && l.SubmissionStatus != string(practicum.SubmissionSubmitted) {
			continue
		}
		if l.LogType == string(practicum.KindReport) {
			items = append(items, l.StudentReportItem())
		} else {
			items = append(items, l.LogItem())
		}
	}

	enrollments, err := s.reportedEnrollments(ctx, practicumID, studentID)
	if err != nil {
		return nil, err
	}
	for i := range enrollments {
		if item, ok := supervisorReportItem(&enrollments[i]); ok {
			items = append(items, item)
		}
	}

	practicum.SortSubmissions(items)
	return &dto.SubmissionListResponse{Items: items}, nil
}

func (s *logService) reportedEnrollments(ctx context.Context, practicumID, studentID string) ([]model.PracticumEnrollment, error) {
	if studentID != "" {
		e, err := s.repo.Enrollment.GetByPracticumAndStudent(ctx, practicumID, studentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []model.PracticumEnrollment{*e}, nil
	}
	return s.repo.Enrollment.ListApproved(ctx, practicumID)
}

func supervisorReportItem(e *model.PracticumEnrollment) (practicum.SupervisorReportItem, bool) {
	r := e.SupervisorReport.Data()
	if r == nil {
		return practicum.SupervisorReportItem{}, false
	}
	return practicum.SupervisorReportItem{
		EnrollmentID:   e.EnrollmentID,
		StudentID:      e.StudentID,
		SupervisorName: r.SupervisorName,
		Score:          r.Raw,
		MaxScore:       r.Possible,
		RecordedAt:     r.RecordedAt,
	}, true
}

// ────────────────────── Delete ──────────────────────

func (s *logService) Delete(ctx context.Context, id, studentID string) error {
	l, state, err := s.ownLog(ctx, id, studentID)
	if err != nil {
		return err
	}
	if !state.Deletable() {
		return &practicum.TransitionError{Machine: logMachine, Action: "delete", Current: l.SupervisorStatus}
	}

	if err := s.repo.Log.Delete(ctx, id, studentID); err != nil {
		return s.writeFailed(ctx, id, "delete", err)
	}

	s.logger.Info("日志已删除", zap.String("log_id", id))
	return nil
}

// ── 辅助方法 ──

func (s *logService) load(ctx context.Context, id string) (*model.PracticumLog, error) {
	l, err := s.repo.Log.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		s.logger.Error("查询日志失败", zap.String("log_id", id), zap.Error(err))
		return nil, err
	}
	return l, nil
}

// state 还原状态机；状态列被写坏时记录错误日志
func (s *logService) state(l *model.PracticumLog) (practicum.LogState, error) {
	st, err := l.State()
	if err != nil {
		s.logger.Error("日志状态非法", zap.String("log_id", l.LogID), zap.Error(err))
	}
	return st, err
}

func (s *logService) ownLog(ctx context.Context, id, studentID string) (*model.PracticumLog, practicum.LogState, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, practicum.LogState{}, err
	}
	if l.StudentID != studentID {
		return nil, practicum.LogState{}, ErrNotLogOwner
	}
	st, err := s.state(l)
	if err != nil {
		return nil, practicum.LogState{}, err
	}
	return l, st, nil
}

func (s *logService) instructorLog(ctx context.Context, id, instructorID string) (*model.PracticumLog, practicum.LogState, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, practicum.LogState{}, err
	}
	if _, err := s.store.owned(ctx, l.PracticumID, instructorID); err != nil {
		if errors.Is(err, ErrNotPracticumOwner) {
			return nil, practicum.LogState{}, ErrNotLogOwner
		}
		return nil, practicum.LogState{}, err
	}
	// 教师看不到学生的草稿
	if l.SubmissionStatus != string(practicum.SubmissionSubmitted) {
		return nil, practicum.LogState{}, ErrLogNotFound
	}
	st, err := s.state(l)
	if err != nil {
		return nil, practicum.LogState{}, err
	}
	return l, st, nil
}

// approvedPracticum 学生必须已加入且报名已通过
func (s *logService) approvedPracticum(ctx context.Context, practicumID, studentID string) (*model.Practicum, error) {
	e, err := s.repo.Enrollment.GetByPracticumAndStudent(ctx, practicumID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		s.logger.Error("查询报名失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, err
	}
	if !practicum.CanCreateLogs(practicum.EnrollmentStatus(e.Status)) {
		return nil, ErrEnrollmentNotApproved
	}
	return s.store.get(ctx, practicumID)
}

// logDate 按业务时区解析日志日期；周期日志必须落在实践期内
func (s *logService) logDate(p *model.Practicum, kind practicum.LogKind, raw string) (time.Time, error) {
	date, err := time.ParseInLocation(dateLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, ErrLogDateInvalid
	}
	if kind == practicum.KindReport {
		return date, nil
	}
	start, end := p.Dates(s.loc)
	if date.Before(start) || date.After(end) {
		return time.Time{}, ErrLogDateOutOfRange
	}
	return date, nil
}

func (s *logService) validateDraft(p *model.Practicum, kind practicum.LogKind, entries map[string]interface{}) error {
	if kind == practicum.KindReport || len(entries) == 0 {
		return nil
	}
	tpl, err := p.Template()
	if err != nil {
		return err
	}
	return practicum.ValidateDraftEntries(entries, tpl).Err()
}

// validateFinal 提交前的完整校验：日志按模板，最终报告至少要有附件或正文
func (s *logService) validateFinal(p *model.Practicum, l *model.PracticumLog) error {
	if l.LogType == string(practicum.KindReport) {
		if len(l.FileURLs) == 0 && len(l.Entries) == 0 {
			verr := practicum.NewValidationError()
			verr.Add("file_urls", "最终报告需要上传附件或填写内容")
			return verr
		}
		return nil
	}
	tpl, err := p.Template()
	if err != nil {
		return err
	}
	return practicum.ValidateEntries(l.Entries, tpl).Err()
}

// fill 写入草稿内容与周次
func (s *logService) fill(l *model.PracticumLog, p *model.Practicum, date time.Time, entries map[string]interface{}, fileURLs []string) {
	if entries == nil {
		entries = map[string]interface{}{}
	}
	if fileURLs == nil {
		fileURLs = []string{}
	}
	l.LogDate = utcDate(date)
	l.Entries = datatypes.JSONMap(entries)
	l.FileURLs = datatypes.NewJSONSlice(fileURLs)
	l.WeekNumber = nil
	if week := p.Timeline.Data().WeekFor(date); week > 0 {
		l.WeekNumber = &week
	}
}

// writeFailed 状态守卫写入失败后的错误转换
func (s *logService) writeFailed(ctx context.Context, id, action string, err error) error {
	if !errors.Is(err, pkgerrors.ErrStatusChanged) {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("写入日志失败", zap.String("log_id", id), zap.String("action", action), zap.Error(err))
		}
		return err
	}

	fresh, rerr := s.repo.Log.GetByID(ctx, id)
	if rerr != nil {
		if errors.Is(rerr, gorm.ErrRecordNotFound) {
			return pkgerrors.ErrOptimisticLock
		}
		return rerr
	}
	current := fresh.SubmissionStatus
	switch action {
	case "verify", "reject", "delete":
		if fresh.SubmissionStatus == string(practicum.SubmissionSubmitted) {
			current = fresh.SupervisorStatus
		}
	case "edit":
		// 仍是草稿说明只是 version 过期
		if fresh.SubmissionStatus == string(practicum.SubmissionDraft) {
			return pkgerrors.ErrOptimisticLock
		}
	}
	return &practicum.TransitionError{Machine: logMachine, Action: action, Current: current}
}

func toLogResponse(l *model.PracticumLog) *dto.LogResponse {
	fileURLs := []string(l.FileURLs)
	if fileURLs == nil {
		fileURLs = []string{}
	}
	return &dto.LogResponse{
		ID:                   l.LogID,
		PracticumID:          l.PracticumID,
		StudentID:            l.StudentID,
		LogType:              l.LogType,
		LogDate:              l.LogDate.Format(dateLayout),
		WeekNumber:           l.WeekNumber,
		Entries:              l.Entries,
		FileURLs:             fileURLs,
		SubmissionStatus:     l.SubmissionStatus,
		SubmittedAt:          formatTime(l.SubmittedAt),
		SupervisorStatus:     l.SupervisorStatus,
		SupervisorComment:    l.SupervisorComment,
		SupervisorVerifiedAt: formatTime(l.SupervisorVerifiedAt),
		VerifiedBy:           l.VerifiedBy,
		InstructorStatus:     l.InstructorStatus,
		ReadAt:               formatTime(l.ReadAt),
		Grade:                l.Grade,
		Feedback:             l.Feedback,
		Editable:             l.SubmissionStatus == string(practicum.SubmissionDraft),
		Version:              l.Version,
	}
}

// [自证通过] internal/service/log_service.go
