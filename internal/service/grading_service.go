package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
)

// ── 成绩模块业务错误 ──

var ErrReportLogInvalid = errors.New("指定的最终报告无效")

// GradingService 成绩业务接口
//
// 三个组成部分各写各的列，互不覆盖；最终成绩总是由已存储的组成部分重新计算。
type GradingService interface {
	SetComponent(ctx context.Context, enrollmentID, component string, req *dto.SetGradeRequest, instructorID string) (*dto.EnrollmentResponse, error)
	ScoreComponent(ctx context.Context, enrollmentID, component string, req *dto.ScoreRequest, instructorID string) (*dto.ScoreResponse, error)
	RecordSupervisorReport(ctx context.Context, enrollmentID string, req *dto.SupervisorReportRequest, instructorID string) (*dto.ScoreResponse, error)
	SyncSupervisorGrades(ctx context.Context, practicumID, instructorID string) (*dto.SyncGradesResponse, error)
	Grades(ctx context.Context, practicumID, instructorID string) (*dto.GradesResponse, error)
}

type gradingService struct {
	repo   *repository.Repository
	store  *practicumStore
	logger *zap.Logger
	now    func() time.Time
}

// NewGradingService 创建 GradingService 实例
func NewGradingService(repo *repository.Repository, store *practicumStore, logger *zap.Logger) GradingService {
	return &gradingService{repo: repo, store: store, logger: logger, now: time.Now}
}

// ────────────────────── SetComponent ──────────────────────

// SetComponent 直接录入某组成部分的加权得分；value 为 nil 时清除
func (s *gradingService) SetComponent(ctx context.Context, enrollmentID, component string, req *dto.SetGradeRequest, instructorID string) (*dto.EnrollmentResponse, error) {
	comp := practicum.GradeComponent(component)
	if !comp.Valid() {
		return nil, ErrInvalidComponent
	}
	e, p, err := s.gradable(ctx, enrollmentID, instructorID)
	if err != nil {
		return nil, err
	}

	weights := p.GradingConfig.Data()
	if req.Value != nil {
		if w := weights.Weight(comp); *req.Value > w {
			verr := practicum.NewValidationError()
			verr.Add("value", fmt.Sprintf("不能超过该部分权重 %g", w))
			return nil, verr
		}
		v := practicum.Round2(*req.Value)
		req.Value = &v
	}

	fresh, err := s.writeComponent(ctx, s.repo, e.EnrollmentID, comp, req.Value, weights)
	if err != nil {
		return nil, err
	}

	s.logger.Info("成绩已录入",
		zap.String("enrollment_id", enrollmentID),
		zap.String("component", component),
		zap.String("instructor_id", instructorID),
	)
	fresh.Practicum = p
	return toEnrollmentResponse(fresh), nil
}

// ────────────────────── ScoreComponent ──────────────────────

// ScoreComponent 按评分表打分，换算成加权得分后写入对应列
//
// 报告评分同时把得分与评语写到被评的最终报告上，两次写入在同一事务内。
func (s *gradingService) ScoreComponent(ctx context.Context, enrollmentID, component string, req *dto.ScoreRequest, instructorID string) (*dto.ScoreResponse, error) {
	comp := practicum.GradeComponent(component)
	if !comp.Valid() {
		return nil, ErrInvalidComponent
	}
	e, p, err := s.gradable(ctx, enrollmentID, instructorID)
	if err != nil {
		return nil, err
	}

	score, err := practicum.ScoreRubric(p.Rubric(comp), req.Scores)
	if err != nil {
		return nil, err
	}
	weights := p.GradingConfig.Data()
	weighted := practicum.WeightedScore(score.Raw, score.Possible, weights.Weight(comp))

	var reportLog *model.PracticumLog
	if comp == practicum.ComponentReport && req.LogID != "" {
		if reportLog, err = s.reportLog(ctx, e, req.LogID); err != nil {
			return nil, err
		}
	}

	var fresh *model.PracticumEnrollment
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if reportLog != nil {
			if err := txRepo.Log.SetGrade(ctx, reportLog.LogID, &weighted, req.Feedback); err != nil {
				return err
			}
		}
		var werr error
		fresh, werr = s.writeComponent(ctx, txRepo, e.EnrollmentID, comp, &weighted, weights)
		return werr
	})
	if err != nil {
		s.logger.Error("按评分表打分失败",
			zap.String("enrollment_id", enrollmentID),
			zap.String("component", component),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("评分表打分完成",
		zap.String("enrollment_id", enrollmentID),
		zap.String("component", component),
		zap.Float64("weighted", weighted),
	)
	return &dto.ScoreResponse{
		Component:  component,
		Score:      score,
		Weighted:   weighted,
		FinalGrade: fresh.FinalGrade,
	}, nil
}

// reportLog 被评的必须是该学生已提交的最终报告
func (s *gradingService) reportLog(ctx context.Context, e *model.PracticumEnrollment, logID string) (*model.PracticumLog, error) {
	l, err := s.repo.Log.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportLogInvalid
		}
		return nil, err
	}
	if l.PracticumID != e.PracticumID || l.StudentID != e.StudentID ||
		l.LogType != string(practicum.KindReport) ||
		l.SubmissionStatus != string(practicum.SubmissionSubmitted) {
		return nil, ErrReportLogInvalid
	}
	return l, nil
}

// ────────────────────── 单位指导老师评价 ──────────────────────

func (s *gradingService) RecordSupervisorReport(ctx context.Context, enrollmentID string, req *dto.SupervisorReportRequest, instructorID string) (*dto.ScoreResponse, error) {
	e, p, err := s.gradable(ctx, enrollmentID, instructorID)
	if err != nil {
		return nil, err
	}

	score, err := practicum.ScoreRubric(p.Rubric(practicum.ComponentSupervisor), req.Scores)
	if err != nil {
		return nil, err
	}
	weights := p.GradingConfig.Data()
	weighted := practicum.WeightedScore(score.Raw, score.Possible, weights.SupervisorWeight)

	report := &model.SupervisorReport{
		SupervisorName: req.SupervisorName,
		Scores:         score.Scores,
		Raw:            score.Raw,
		Possible:       score.Possible,
		Comment:        req.Comment,
		RecordedAt:     s.now().UTC(),
		RecordedBy:     instructorID,
	}

	var final *float64
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Enrollment.UpdateSupervisorReport(ctx, e.EnrollmentID, report, &weighted); err != nil {
			return err
		}
		fresh, err := txRepo.Enrollment.GetByID(ctx, e.EnrollmentID)
		if err != nil {
			return err
		}
		final, err = s.recompute(ctx, txRepo, fresh, weights)
		return err
	})
	if err != nil {
		s.logger.Error("录入指导老师评价失败", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("指导老师评价已录入",
		zap.String("enrollment_id", enrollmentID),
		zap.Float64("weighted", weighted),
	)
	return &dto.ScoreResponse{
		Component:  string(practicum.ComponentSupervisor),
		Score:      score,
		Weighted:   weighted,
		FinalGrade: final,
	}, nil
}

// SyncSupervisorGrades 按当前权重重新换算所有已录入的指导老师评价
//
// 权重调整后调用；未录入评价的学生计入 skipped。
func (s *gradingService) SyncSupervisorGrades(ctx context.Context, practicumID, instructorID string) (*dto.SyncGradesResponse, error) {
	p, err := s.store.owned(ctx, practicumID, instructorID)
	if err != nil {
		return nil, err
	}
	weights := p.GradingConfig.Data()

	list, err := s.repo.Enrollment.ListApproved(ctx, practicumID)
	if err != nil {
		s.logger.Error("列出已通过报名失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, err
	}

	resp := &dto.SyncGradesResponse{}
	for i := range list {
		e := &list[i]
		report := e.SupervisorReport.Data()
		if report == nil {
			resp.Skipped++
			continue
		}
		weighted := practicum.WeightedScore(report.Raw, report.Possible, weights.SupervisorWeight)
		if sameGrade(e.SupervisorGrade, &weighted) {
			continue
		}
		if _, err := s.writeComponent(ctx, s.repo, e.EnrollmentID, practicum.ComponentSupervisor, &weighted, weights); err != nil {
			return nil, err
		}
		resp.Updated++
	}

	s.logger.Info("指导老师成绩同步完成",
		zap.String("practicum_id", practicumID),
		zap.Int("updated", resp.Updated),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// ────────────────────── Grades ──────────────────────

// Grades 成绩表；读取时按已存储的组成部分重算最终成绩，与库中不一致时顺带修正
func (s *gradingService) Grades(ctx context.Context, practicumID, instructorID string) (*dto.GradesResponse, error) {
	p, err := s.store.owned(ctx, practicumID, instructorID)
	if err != nil {
		return nil, err
	}
	weights := p.GradingConfig.Data()

	list, err := s.repo.Enrollment.ListApproved(ctx, practicumID)
	if err != nil {
		s.logger.Error("列出已通过报名失败", zap.String("practicum_id", practicumID), zap.Error(err))
		return nil, err
	}

	rows := make([]dto.GradeRow, 0, len(list))
	for i := range list {
		e := &list[i]
		final, err := s.recompute(ctx, s.repo, e, weights)
		if err != nil {
			// 修正失败不影响读取，返回计算值
			s.logger.Warn("修正最终成绩失败", zap.String("enrollment_id", e.EnrollmentID), zap.Error(err))
		}
		rows = append(rows, dto.GradeRow{
			EnrollmentID:              e.EnrollmentID,
			StudentID:                 e.StudentID,
			StudentRegistrationNumber: e.StudentRegistrationNumber,
			StudentEmail:              e.StudentEmail,
			LogsGrade:                 e.LogsGrade,
			ReportGrade:               e.ReportGrade,
			SupervisorGrade:           e.SupervisorGrade,
			FinalGrade:                final,
		})
	}

	return &dto.GradesResponse{
		PracticumID: p.PracticumID,
		Title:       p.Title,
		Weights:     weights,
		Rows:        rows,
	}, nil
}

// ── 辅助方法 ──

// gradable 报名归属该教师且已通过审核
func (s *gradingService) gradable(ctx context.Context, enrollmentID, instructorID string) (*model.PracticumEnrollment, *model.Practicum, error) {
	e, err := s.repo.Enrollment.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrEnrollmentNotFound
		}
		s.logger.Error("查询报名失败", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil, nil, err
	}
	p, err := s.store.owned(ctx, e.PracticumID, instructorID)
	if err != nil {
		return nil, nil, err
	}
	if e.Status != string(practicum.EnrollmentApproved) {
		return nil, nil, &practicum.TransitionError{Machine: enrollmentMachine, Action: "grade", Current: e.Status}
	}
	return e, p, nil
}

// writeComponent 写入单列后重新读取，以最新的其余组成部分重算最终成绩
func (s *gradingService) writeComponent(ctx context.Context, repo *repository.Repository, id string, comp practicum.GradeComponent, value *float64, weights practicum.GradingConfig) (*model.PracticumEnrollment, error) {
	if err := repo.Enrollment.UpdateGradeComponent(ctx, id, model.GradeColumn(comp), value); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		s.logger.Error("写入成绩失败", zap.String("enrollment_id", id), zap.Error(err))
		return nil, err
	}

	fresh, err := repo.Enrollment.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.recompute(ctx, repo, fresh, weights); err != nil {
		return nil, err
	}
	return fresh, nil
}

// recompute 由已存储的组成部分重算最终成绩，结果变化时才写回
func (s *gradingService) recompute(ctx context.Context, repo *repository.Repository, e *model.PracticumEnrollment, weights practicum.GradingConfig) (*float64, error) {
	final, err := practicum.FinalGrade(e.Components(), weights)
	if err != nil {
		return nil, err
	}
	if sameGrade(final, e.FinalGrade) {
		return final, nil
	}
	if err := repo.Enrollment.UpdateFinalGrade(ctx, e.EnrollmentID, final); err != nil {
		return final, err
	}
	e.FinalGrade = final
	return final, nil
}

func sameGrade(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return practicum.Round2(*a) == practicum.Round2(*b)
}
