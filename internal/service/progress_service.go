package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
)

// ProgressService 进度与未读计数，每次读取时由已存储的日志重算
type ProgressService interface {
	StudentProgress(ctx context.Context, practicumID, studentID string) (*dto.ProgressResponse, error)
	EnrollmentProgress(ctx context.Context, enrollmentID, instructorID string) (*dto.ProgressResponse, error)
	UnreadCounts(ctx context.Context, practicumID, instructorID string) (*dto.UnreadCountsResponse, error)
}

type progressService struct {
	repo   *repository.Repository
	store  *practicumStore
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewProgressService 创建 ProgressService 实例
func NewProgressService(repo *repository.Repository, store *practicumStore, loc *time.Location, logger *zap.Logger) ProgressService {
	return &progressService{repo: repo, store: store, loc: loc, logger: logger, now: time.Now}
}

// StudentProgress 学生查看自己的进度；"上次查看"以学生自己的视角为空
func (s *progressService) StudentProgress(ctx context.Context, practicumID, studentID string) (*dto.ProgressResponse, error) {
	e, err := s.repo.Enrollment.GetByPracticumAndStudent(ctx, practicumID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		s.logger.Error("查询报名失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, err
	}
	p, err := s.store.get(ctx, practicumID)
	if err != nil {
		return nil, err
	}
	return s.calculate(ctx, p, e, nil)
}

// EnrollmentProgress 教师查看某个学生的进度，随后记录本次查看时间
func (s *progressService) EnrollmentProgress(ctx context.Context, enrollmentID, instructorID string) (*dto.ProgressResponse, error) {
	e, err := s.repo.Enrollment.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		s.logger.Error("查询报名失败", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil, err
	}
	p, err := s.store.owned(ctx, e.PracticumID, instructorID)
	if err != nil {
		return nil, err
	}

	resp, err := s.calculate(ctx, p, e, e.InstructorViewedAt)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Enrollment.MarkViewed(ctx, enrollmentID, s.now().UTC()); err != nil {
		s.logger.Warn("记录查看时间失败", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
	return resp, nil
}

func (s *progressService) calculate(ctx context.Context, p *model.Practicum, e *model.PracticumEnrollment, lastViewed *time.Time) (*dto.ProgressResponse, error) {
	logs, err := s.repo.Log.ListAll(ctx, p.PracticumID, e.StudentID)
	if err != nil {
		s.logger.Error("读取日志失败", zap.String("enrollment_id", e.EnrollmentID), zap.Error(err))
		return nil, err
	}

	snapshots := make([]practicum.LogSnapshot, 0, len(logs))
	for i := range logs {
		// 草稿不计入进度与未读
		if logs[i].SubmissionStatus == string(practicum.SubmissionDraft) {
			continue
		}
		snap, err := logs[i].Snapshot()
		if err != nil {
			s.logger.Warn("跳过状态非法的日志", zap.String("log_id", logs[i].LogID), zap.Error(err))
			continue
		}
		snap.LogDate = localDate(snap.LogDate, s.loc)
		snapshots = append(snapshots, snap)
	}

	start, end := p.Dates(s.loc)
	timeline := p.Timeline.Data()
	progress := practicum.CalculateProgress(practicum.ProgressInput{
		Start:        start,
		End:          end,
		Interval:     p.Interval(),
		Timeline:     &timeline,
		Logs:         snapshots,
		LastViewedAt: lastViewed,
		Now:          s.now().In(s.loc),
	})

	return &dto.ProgressResponse{
		EnrollmentID: e.EnrollmentID,
		PracticumID:  p.PracticumID,
		StudentID:    e.StudentID,
		Progress:     progress,
	}, nil
}

// UnreadCounts 教师在某实践项目下的未读计数（只计已提交的记录）
func (s *progressService) UnreadCounts(ctx context.Context, practicumID, instructorID string) (*dto.UnreadCountsResponse, error) {
	if _, err := s.store.owned(ctx, practicumID, instructorID); err != nil {
		return nil, err
	}

	stats, err := s.repo.Log.StatsByPracticum(ctx, practicumID)
	if err != nil {
		s.logger.Error("统计未读失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, err
	}

	resp := &dto.UnreadCountsResponse{ByStudent: make(map[string]int64, len(stats))}
	for _, st := range stats {
		if st.Unread == 0 {
			continue
		}
		resp.ByStudent[st.StudentID] = st.Unread
		resp.Total += st.Unread
	}
	return resp, nil
}
