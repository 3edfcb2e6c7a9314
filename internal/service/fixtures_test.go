package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/practicum"
	"schologic-practicum/backend/internal/repository"
)

// ── 测试辅助 ──

const (
	testInstructor = "inst-1"
	testStudent    = "stu-1"
)

// testEnv 内存仓储 + 共享缓存，各服务按需从中构造
type testEnv struct {
	repo        *repository.Repository
	practicums  *mockPracticumRepo
	enrollments *mockEnrollmentRepo
	logs        *mockLogRepo
	cache       *mockCache
	store       *practicumStore
	loc         *time.Location
	logger      *zap.Logger
}

func newTestEnv() *testEnv {
	pr := newMockPracticumRepo()
	er := newMockEnrollmentRepo(pr)
	lr := newMockLogRepo()
	repo := &repository.Repository{Practicum: pr, Enrollment: er, Log: lr}
	cache := newMockCache()
	logger := zap.NewNop()
	return &testEnv{
		repo:        repo,
		practicums:  pr,
		enrollments: er,
		logs:        lr,
		cache:       cache,
		store:       newPracticumStore(repo, cache, time.Minute, logger),
		loc:         time.UTC,
		logger:      logger,
	}
}

func (env *testEnv) practicumService() PracticumService {
	return NewPracticumService(env.repo, env.store, env.loc, env.logger)
}

func (env *testEnv) enrollmentService() EnrollmentService {
	return NewEnrollmentService(env.repo, env.store, env.logger)
}

func (env *testEnv) logService() LogService {
	return NewLogService(env.repo, env.store, env.loc, "https://app.example.com/verify/", env.logger)
}

func (env *testEnv) gradingService() GradingService {
	return NewGradingService(env.repo, env.store, env.logger)
}

func (env *testEnv) progressService() ProgressService {
	return NewProgressService(env.repo, env.store, env.loc, env.logger)
}

func (env *testEnv) exportService() ExportService {
	return NewExportService(env.repo, env.store, env.gradingService(), env.loc, env.logger)
}

func newCreateRequest() *dto.CreatePracticumRequest {
	return &dto.CreatePracticumRequest{
		Title:       "Teaching Practice 2024",
		StartDate:   "2024-01-08",
		EndDate:     "2024-03-29",
		LogInterval: "weekly",
		LogTemplate: string(practicum.TemplateTeachingPractice),
	}
}

// createPracticum 以默认配置创建实践项目
func (env *testEnv) createPracticum(t *testing.T) *dto.PracticumResponse {
	t.Helper()
	resp, err := env.practicumService().Create(context.Background(), newCreateRequest(), testInstructor)
	if err != nil {
		t.Fatalf("创建实践项目失败: %v", err)
	}
	return resp
}

// seedEnrollment 直接写入指定状态的报名
func (env *testEnv) seedEnrollment(t *testing.T, practicumID, studentID string, status practicum.EnrollmentStatus) *model.PracticumEnrollment {
	t.Helper()
	e := &model.PracticumEnrollment{
		PracticumID: practicumID,
		StudentID:   studentID,
		Status:      string(status),
	}
	e.ApplyRegistration(validRegistration())
	if err := env.enrollments.Create(context.Background(), e); err != nil {
		t.Fatalf("写入报名失败: %v", err)
	}
	return e
}

func validRegistration() practicum.Registration {
	return practicum.Registration{
		Profile: practicum.ProfileSection{
			StudentEmail:              "student@example.com",
			StudentPhone:              "712345678",
			StudentRegistrationNumber: "EDU/001/2021",
		},
		Academic: practicum.AcademicData{
			ProgramLevel: "degree",
			CourseCode:   "EDU 400",
			Institution:  "Main Campus",
			Course:       "B.Ed Arts",
			YearOfStudy:  "4",
		},
		Workplace: practicum.WorkplaceData{
			CompanyName: "Riverside High",
			Department:  "Mathematics",
			Address:     "P.O. Box 1",
		},
		Supervisor: practicum.SupervisorData{
			Name:        "Jane Doe",
			Designation: "HOD",
			Email:       "jane@example.com",
			Phone:       "798765432",
		},
		Schedule: practicum.WorkSchedule{
			Days:      []string{"monday", "wednesday"},
			StartTime: "08:00",
			EndTime:   "16:30",
		},
	}
}

func registrationRequest(r practicum.Registration, version int) *dto.SaveRegistrationRequest {
	return &dto.SaveRegistrationRequest{
		Profile:    r.Profile,
		Academic:   r.Academic,
		Workplace:  r.Workplace,
		Supervisor: r.Supervisor,
		Schedule:   r.Schedule,
		Location:   r.Location,
		Version:    version,
	}
}

// teachingEntries 满足教学实习模板全部必填字段
func teachingEntries() map[string]interface{} {
	return map[string]interface{}{
		"class_taught":   "Form 3",
		"subject_taught": "Mathematics",
		"lesson_topic":   "Quadratic equations",
		"observations":   "Students engaged well with worked examples.",
	}
}

// submittedLog 创建并提交一条周期日志，返回日志 ID 与审核链接
func (env *testEnv) submittedLog(t *testing.T, practicumID, studentID, date string) (string, string) {
	t.Helper()
	svc := env.logService()
	ctx := context.Background()
	draft, _, err := svc.SaveDraft(ctx, practicumID, &dto.SaveLogRequest{LogDate: date, Entries: teachingEntries()}, studentID)
	if err != nil {
		t.Fatalf("保存草稿失败: %v", err)
	}
	resp, err := svc.Submit(ctx, draft.ID, studentID)
	if err != nil {
		t.Fatalf("提交日志失败: %v", err)
	}
	return draft.ID, resp.VerificationURL
}

func ptrFloat(v float64) *float64 { return &v }
