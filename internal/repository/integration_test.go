//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
	"schologic-practicum/backend/pkg/database"
	pkgerrors "schologic-practicum/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=practicum password=practicum_password dbname=practicum_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := database.RollbackMigrations(sqlDB); err != nil {
		fmt.Fprintf(os.Stderr, "回滚迁移失败: %v\n", err)
	}
	os.Exit(code)
}

// setupPracticum 创建实践项目与一条报名，返回清理函数
func setupPracticum(t *testing.T, status string) (p *model.Practicum, e *model.PracticumEnrollment, cleanup func()) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewRepository(testDB)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	p = &model.Practicum{
		InstructorID:             uuid.NewString(),
		Title:                    "Teaching Practice 2024",
		InviteCode:               uuid.NewString()[:8],
		StartDate:                start,
		EndDate:                  end,
		LogInterval:              string(practicum.IntervalWeekly),
		LogTemplate:              string(practicum.TemplateTeachingPractice),
		GradingConfig:            datatypes.NewJSONType(practicum.DefaultGradingConfig()),
		LogsRubric:               datatypes.NewJSONType(practicum.DefaultLogsRubric()),
		StudentReportTemplate:    datatypes.NewJSONType(practicum.DefaultStudentReportTemplate()),
		SupervisorReportTemplate: datatypes.NewJSONType(practicum.DefaultSupervisorTemplate(practicum.TemplateTeachingPractice)),
		Timeline:                 datatypes.NewJSONType(practicum.GenerateTimeline(start, end, practicum.IntervalWeekly, "Teaching Practice 2024")),
	}
	if err := repo.Practicum.Create(ctx, p); err != nil {
		t.Fatalf("创建实践项目失败: %v", err)
	}

	e = &model.PracticumEnrollment{
		PracticumID: p.PracticumID,
		StudentID:   uuid.NewString(),
		Status:      status,
	}
	if err := repo.Enrollment.Create(ctx, e); err != nil {
		t.Fatalf("创建报名失败: %v", err)
	}

	cleanup = func() {
		testDB.Unscoped().Where("practicum_id = ?", p.PracticumID).Delete(&model.PracticumLog{})
		testDB.Unscoped().Where("practicum_id = ?", p.PracticumID).Delete(&model.PracticumEnrollment{})
		testDB.Unscoped().Where("practicum_id = ?", p.PracticumID).Delete(&model.Practicum{})
	}
	return p, e, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: JSON 列往返
// ═══════════════════════════════════════════════════════════

func TestPracticum_JSONColumnsRoundTrip(t *testing.T) {
	p, _, cleanup := setupPracticum(t, "draft")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	got, err := repo.Practicum.GetByInviteCode(context.Background(), p.InviteCode)
	if err != nil {
		t.Fatalf("按邀请码查询失败: %v", err)
	}
	if got.CustomTemplate.Data() != nil {
		t.Error("未设置自定义模板时应读出 nil")
	}
	if got.GradingConfig.Data().SupervisorWeight != 50 {
		t.Errorf("权重读出错误: %+v", got.GradingConfig.Data())
	}
	if len(got.Timeline.Data().Weeks) == 0 {
		t.Error("时间线周列表不应为空")
	}
	if got.LogsRubric.Data().TotalMarks != 40 {
		t.Errorf("日志评分表读出错误: %+v", got.LogsRubric.Data())
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_Practicum_ConflictDetected(t *testing.T) {
	p, _, cleanup := setupPracticum(t, "draft")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	copy1, _ := repo.Practicum.GetByID(ctx, p.PracticumID)
	copy2, _ := repo.Practicum.GetByID(ctx, p.PracticumID)

	copy1.Title = "Renamed"
	if err := repo.Practicum.Update(ctx, copy1); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}

	copy2.Title = "Renamed again"
	if err := repo.Practicum.Update(ctx, copy2); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}

	final, _ := repo.Practicum.GetByID(ctx, p.PracticumID)
	if final.Version != 2 || final.Title != "Renamed" {
		t.Errorf("期望 version=2 且标题为 Renamed，得到: %d %s", final.Version, final.Title)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 状态守卫的比较并交换
// ═══════════════════════════════════════════════════════════

func TestEnrollment_TransitionStatus_OnlyOneWins(t *testing.T) {
	_, e, cleanup := setupPracticum(t, "pending")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC()

	approve := *e
	approve.Status = "approved"
	approve.ApprovedAt = &now
	if err := repo.Enrollment.TransitionStatus(ctx, &approve, "pending"); err != nil {
		t.Fatalf("首次转换应成功: %v", err)
	}

	reject := *e
	reject.Status = "rejected"
	reject.RejectedAt = &now
	err := repo.Enrollment.TransitionStatus(ctx, &reject, "pending")
	if !errors.Is(err, pkgerrors.ErrStatusChanged) {
		t.Fatalf("期望 ErrStatusChanged，得到: %v", err)
	}

	got, _ := repo.Enrollment.GetByID(ctx, e.EnrollmentID)
	if got.Status != "approved" || got.RejectedAt != nil {
		t.Errorf("落库状态不应被第二次写入覆盖: %s", got.Status)
	}
	if got.Practicum == nil {
		t.Error("GetByID 应预加载实践项目")
	}
}

func TestEnrollment_GradeColumnsAreDisjoint(t *testing.T) {
	_, e, cleanup := setupPracticum(t, "approved")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	logs, report := 18.0, 25.5
	if err := repo.Enrollment.UpdateGradeComponent(ctx, e.EnrollmentID, "logs_grade", &logs); err != nil {
		t.Fatalf("写入日志成绩失败: %v", err)
	}
	if err := repo.Enrollment.UpdateGradeComponent(ctx, e.EnrollmentID, "report_grade", &report); err != nil {
		t.Fatalf("写入报告成绩失败: %v", err)
	}

	got, _ := repo.Enrollment.GetByID(ctx, e.EnrollmentID)
	if got.LogsGrade == nil || *got.LogsGrade != 18 || got.ReportGrade == nil || *got.ReportGrade != 25.5 {
		t.Errorf("两列应同时保留: %v %v", got.LogsGrade, got.ReportGrade)
	}
}

func TestEnrollment_WithdrawApprovedRefused(t *testing.T) {
	_, e, cleanup := setupPracticum(t, "approved")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	err := repo.Enrollment.Withdraw(context.Background(), e.EnrollmentID, e.StudentID)
	if !errors.Is(err, pkgerrors.ErrStatusChanged) {
		t.Errorf("已通过的报名撤回应报 ErrStatusChanged，得到: %v", err)
	}
}

func TestLog_SubmitDecideMarkRead(t *testing.T) {
	p, e, cleanup := setupPracticum(t, "approved")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	l := &model.PracticumLog{
		PracticumID:      p.PracticumID,
		StudentID:        e.StudentID,
		LogType:          "log",
		LogDate:          time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Entries:          datatypes.JSONMap{"activities": "Observed lessons"},
		FileURLs:         datatypes.NewJSONSlice([]string{}),
		SubmissionStatus: "draft",
		SupervisorStatus: "pending",
		InstructorStatus: "unread",
	}
	if err := repo.Log.Create(ctx, l); err != nil {
		t.Fatalf("创建日志失败: %v", err)
	}

	now := time.Now().UTC()
	l.SubmissionStatus = "submitted"
	l.SubmittedAt = &now
	l.VerificationTokenHash = "hash"
	if err := repo.Log.Submit(ctx, l); err != nil {
		t.Fatalf("提交应成功: %v", err)
	}
	if err := repo.Log.Submit(ctx, l); !errors.Is(err, pkgerrors.ErrStatusChanged) {
		t.Errorf("重复提交应报 ErrStatusChanged，得到: %v", err)
	}

	l.SupervisorStatus = "verified"
	l.SupervisorVerifiedAt = &now
	l.VerifiedBy = "Jane Supervisor"
	if err := repo.Log.Decide(ctx, l); err != nil {
		t.Fatalf("审核应成功: %v", err)
	}
	if err := repo.Log.Decide(ctx, l); !errors.Is(err, pkgerrors.ErrStatusChanged) {
		t.Errorf("重复审核应报 ErrStatusChanged，得到: %v", err)
	}

	changed, err := repo.Log.MarkRead(ctx, l.LogID, now)
	if err != nil || !changed {
		t.Fatalf("首次标记已读应产生变化: %v %v", changed, err)
	}
	changed, _ = repo.Log.MarkRead(ctx, l.LogID, now)
	if changed {
		t.Error("重复标记已读不应产生变化")
	}

	stats, err := repo.Log.StatsByPracticum(ctx, p.PracticumID)
	if err != nil || len(stats) != 1 {
		t.Fatalf("统计失败: %v %v", stats, err)
	}
	if stats[0].Submitted != 1 || stats[0].Verified != 1 || stats[0].Unread != 0 {
		t.Errorf("统计结果错误: %+v", stats[0])
	}

	if err := repo.Log.Delete(ctx, l.LogID, e.StudentID); !errors.Is(err, pkgerrors.ErrStatusChanged) {
		t.Errorf("已审核通过的日志删除应报 ErrStatusChanged，得到: %v", err)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	p, e, cleanup := setupPracticum(t, "approved")
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	grade := 42.0
	err := repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := txRepo.Enrollment.UpdateGradeComponent(ctx, e.EnrollmentID, "report_grade", &grade); err != nil {
			return err
		}
		return errors.New("回滚")
	})
	if err == nil {
		t.Fatal("期望事务返回错误")
	}

	got, _ := repo.Enrollment.GetByID(ctx, e.EnrollmentID)
	if got.ReportGrade != nil {
		t.Errorf("回滚后不应写入成绩，实际 %v", *got.ReportGrade)
	}
	_ = p
}
