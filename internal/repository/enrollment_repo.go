package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/model"
	pkgerrors "schologic-practicum/backend/pkg/errors"
)

// EnrollmentRepository 学生报名数据访问接口
type EnrollmentRepository interface {
	Create(ctx context.Context, e *model.PracticumEnrollment) error
	GetByID(ctx context.Context, id string) (*model.PracticumEnrollment, error)
	GetByPracticumAndStudent(ctx context.Context, practicumID, studentID string) (*model.PracticumEnrollment, error)
	ListByPracticum(ctx context.Context, practicumID, status string, offset, limit int) ([]model.PracticumEnrollment, int64, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.PracticumEnrollment, error)
	ListApproved(ctx context.Context, practicumID string) ([]model.PracticumEnrollment, error)
	CountByPracticum(ctx context.Context, practicumID string) (int64, error)
	UpdateRegistration(ctx context.Context, e *model.PracticumEnrollment) error
	TransitionStatus(ctx context.Context, e *model.PracticumEnrollment, from string) error
	UpdateGradeComponent(ctx context.Context, id, column string, value *float64) error
	UpdateFinalGrade(ctx context.Context, id string, final *float64) error
	UpdateSupervisorReport(ctx context.Context, id string, report *model.SupervisorReport, grade *float64) error
	MarkViewed(ctx context.Context, id string, at time.Time) error
	Withdraw(ctx context.Context, id, deletedBy string) error
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, e *model.PracticumEnrollment) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *enrollmentRepo) GetByID(ctx context.Context, id string) (*model.PracticumEnrollment, error) {
	var e model.PracticumEnrollment
	err := r.db.WithContext(ctx).
		Preload("Practicum").
		Where("enrollment_id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepo) GetByPracticumAndStudent(ctx context.Context, practicumID, studentID string) (*model.PracticumEnrollment, error) {
	var e model.PracticumEnrollment
	err := r.db.WithContext(ctx).
		Where("practicum_id = ? AND student_id = ?", practicumID, studentID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByPracticum status 为空时返回全部状态
func (r *enrollmentRepo) ListByPracticum(ctx context.Context, practicumID, status string, offset, limit int) ([]model.PracticumEnrollment, int64, error) {
	var list []model.PracticumEnrollment
	var total int64

	db := r.db.WithContext(ctx).Model(&model.PracticumEnrollment{}).
		Where("practicum_id = ?", practicumID)
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("submitted_at DESC NULLS LAST, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *enrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]model.PracticumEnrollment, error) {
	var list []model.PracticumEnrollment
	err := r.db.WithContext(ctx).
		Preload("Practicum").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListApproved(ctx context.Context, practicumID string) ([]model.PracticumEnrollment, error) {
	var list []model.PracticumEnrollment
	err := r.db.WithContext(ctx).
		Where("practicum_id = ? AND status = ?", practicumID, "approved").
		Order("student_registration_number ASC").
		Find(&list).Error
	return list, err
}

// CountByPracticum 统计非草稿报名数量（草稿不锁定实践项目日期）
func (r *enrollmentRepo) CountByPracticum(ctx context.Context, practicumID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PracticumEnrollment{}).
		Where("practicum_id = ? AND status <> ?", practicumID, "draft").
		Count(&count).Error
	return count, err
}

// UpdateRegistration 乐观锁更新报名资料，仅 draft/pending 可写
func (r *enrollmentRepo) UpdateRegistration(ctx context.Context, e *model.PracticumEnrollment) error {
	oldVersion := e.Version
	result := r.db.WithContext(ctx).
		Model(e).
		Where("enrollment_id = ? AND version = ? AND status IN ?", e.EnrollmentID, oldVersion, []string{"draft", "pending"}).
		Updates(model.Touch(map[string]interface{}{
			"student_email":               e.StudentEmail,
			"student_phone":               e.StudentPhone,
			"student_registration_number": e.StudentRegistrationNumber,
			"course_code":                 e.CourseCode,
			"program_level":               e.ProgramLevel,
			"academic_data":               e.AcademicData,
			"workplace_data":              e.WorkplaceData,
			"supervisor_data":             e.SupervisorData,
			"schedule":                    e.Schedule,
			"location_coords":             e.LocationCoords,
			"version":                     oldVersion + 1,
		}, e.StudentID))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missReason(ctx, e.EnrollmentID)
	}
	e.Version = oldVersion + 1
	return nil
}

// TransitionStatus 状态守卫的比较并交换：仅当 status 仍为 from 时写入新状态
func (r *enrollmentRepo) TransitionStatus(ctx context.Context, e *model.PracticumEnrollment, from string) error {
	result := r.db.WithContext(ctx).
		Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ? AND status = ?", e.EnrollmentID, from).
		Updates(map[string]interface{}{
			"status":           e.Status,
			"submitted_at":     e.SubmittedAt,
			"approved_at":      e.ApprovedAt,
			"rejected_at":      e.RejectedAt,
			"instructor_notes": e.InstructorNotes,
			"updated_at":       time.Now().UTC(),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missReason(ctx, e.EnrollmentID)
	}
	e.Version++
	return nil
}

// UpdateGradeComponent 只写入单个成绩列，不同组成部分的并发写互不覆盖
func (r *enrollmentRepo) UpdateGradeComponent(ctx context.Context, id, column string, value *float64) error {
	result := r.db.WithContext(ctx).
		Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ?", id).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": time.Now().UTC(),
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *enrollmentRepo) UpdateFinalGrade(ctx context.Context, id string, final *float64) error {
	return r.db.WithContext(ctx).
		Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ?", id).
		Update("final_grade", final).Error
}

func (r *enrollmentRepo) UpdateSupervisorReport(ctx context.Context, id string, report *model.SupervisorReport, grade *float64) error {
	result := r.db.WithContext(ctx).
		Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ?", id).
		Updates(map[string]interface{}{
			"supervisor_report": datatypes.NewJSONType(report),
			"supervisor_grade":  grade,
			"updated_at":        time.Now().UTC(),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkViewed 记录教师最近一次查看该学生的时间
func (r *enrollmentRepo) MarkViewed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ?", id).
		Update("instructor_viewed_at", at).Error
}

// Withdraw 软删除报名；已通过的报名不可撤回
func (r *enrollmentRepo) Withdraw(ctx context.Context, id, deletedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ? AND status <> ?", id, "approved").
		Updates(map[string]interface{}{
			"deleted_at": time.Now().UTC(),
			"deleted_by": deletedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missReason(ctx, id)
	}
	return nil
}

// missReason 区分未命中的原因：记录仍在则是状态已变化，否则按乐观锁冲突处理
func (r *enrollmentRepo) missReason(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.PracticumEnrollment{}).
		Where("enrollment_id = ?", id).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return pkgerrors.ErrStatusChanged
	}
	return pkgerrors.ErrOptimisticLock
}
