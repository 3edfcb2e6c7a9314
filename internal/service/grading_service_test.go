package service

import (
	"context"
	"errors"
	"testing"

	"schologic-practicum/backend/internal/dto"
	"schologic-practicum/backend/internal/practicum"
)

// fullMarks 评分表每项取满分的一定比例
func fullMarks(r practicum.RubricConfig, ratio float64) map[string]float64 {
	scores := make(map[string]float64)
	for _, s := range r.Sections {
		for _, cr := range s.Criteria {
			scores[cr.ID] = cr.MaxPoints * ratio
		}
	}
	return scores
}

func floatEq(p *float64, want float64) bool {
	return p != nil && practicum.Round2(*p) == practicum.Round2(want)
}

// ── SetComponent 测试 ──

func TestGradingService_SetComponent(t *testing.T) {
	env, _, e := approvedEnv(t)
	svc := env.gradingService()
	ctx := context.Background()

	if _, err := svc.SetComponent(ctx, e.EnrollmentID, "attendance", &dto.SetGradeRequest{Value: ptrFloat(10)}, testInstructor); !errors.Is(err, ErrInvalidComponent) {
		t.Errorf("期望 ErrInvalidComponent，实际 %v", err)
	}
	if _, err := svc.SetComponent(ctx, e.EnrollmentID, "logs", &dto.SetGradeRequest{Value: ptrFloat(25)}, testInstructor); !errors.Is(err, practicum.ErrValidation) {
		t.Errorf("期望超过权重时校验失败，实际 %v", err)
	}
	if _, err := svc.SetComponent(ctx, e.EnrollmentID, "logs", &dto.SetGradeRequest{Value: ptrFloat(10)}, "other-inst"); !errors.Is(err, ErrNotPracticumOwner) {
		t.Errorf("期望 ErrNotPracticumOwner，实际 %v", err)
	}

	resp, err := svc.SetComponent(ctx, e.EnrollmentID, "logs", &dto.SetGradeRequest{Value: ptrFloat(15.456)}, testInstructor)
	if err != nil {
		t.Fatalf("录入失败: %v", err)
	}
	if !floatEq(resp.Grades.Logs, 15.46) {
		t.Errorf("期望四舍五入为 15.46，实际 %v", resp.Grades.Logs)
	}
	if resp.FinalGrade != nil {
		t.Errorf("组成部分不全时最终成绩应为空，实际 %v", *resp.FinalGrade)
	}

	_, _ = svc.SetComponent(ctx, e.EnrollmentID, "report", &dto.SetGradeRequest{Value: ptrFloat(25)}, testInstructor)
	resp, err = svc.SetComponent(ctx, e.EnrollmentID, "supervisor", &dto.SetGradeRequest{Value: ptrFloat(40)}, testInstructor)
	if err != nil {
		t.Fatalf("录入失败: %v", err)
	}
	if !floatEq(resp.FinalGrade, 80.46) {
		t.Errorf("期望最终成绩 80.46，实际 %v", resp.FinalGrade)
	}
	// 各部分互不覆盖
	if !floatEq(resp.Grades.Logs, 15.46) || !floatEq(resp.Grades.Report, 25) {
		t.Errorf("其他组成部分被覆盖: %+v", resp.Grades)
	}

	// 清除一项后最终成绩随之清空
	resp, err = svc.SetComponent(ctx, e.EnrollmentID, "logs", &dto.SetGradeRequest{}, testInstructor)
	if err != nil {
		t.Fatalf("清除失败: %v", err)
	}
	if resp.FinalGrade != nil || env.enrollments.enrollments[e.EnrollmentID].FinalGrade != nil {
		t.Error("期望清除后最终成绩为空")
	}
}

func TestGradingService_RequiresApproved(t *testing.T) {
	env := newTestEnv()
	p := env.createPracticum(t)
	e := env.seedEnrollment(t, p.ID, testStudent, practicum.EnrollmentPending)

	_, err := env.gradingService().SetComponent(context.Background(), e.EnrollmentID, "logs", &dto.SetGradeRequest{Value: ptrFloat(10)}, testInstructor)
	var terr *practicum.TransitionError
	if !errors.As(err, &terr) || terr.Action != "grade" {
		t.Errorf("期望未通过的报名不能评分，实际 %v", err)
	}
}

// ── ScoreComponent 测试 ──

func TestGradingService_ScoreLogs(t *testing.T) {
	env, p, e := approvedEnv(t)
	svc := env.gradingService()
	ctx := context.Background()

	scores := map[string]float64{"submission_adherence": 10, "insight": 10, "application": 10, "professionalism": 5}
	resp, err := svc.ScoreComponent(ctx, e.EnrollmentID, "logs", &dto.ScoreRequest{Scores: scores}, testInstructor)
	if err != nil {
		t.Fatalf("打分失败: %v", err)
	}
	// 未评的可选项不计入满分
	if resp.Score.Raw != 35 || resp.Score.Possible != 35 {
		t.Errorf("期望 35/35，实际 %g/%g", resp.Score.Raw, resp.Score.Possible)
	}
	if resp.Weighted != p.GradingConfig.LogsWeight {
		t.Errorf("期望加权得分 %g，实际 %g", p.GradingConfig.LogsWeight, resp.Weighted)
	}

	scores["unknown"] = 1
	if _, err := svc.ScoreComponent(ctx, e.EnrollmentID, "logs", &dto.ScoreRequest{Scores: scores}, testInstructor); !errors.Is(err, practicum.ErrValidation) {
		t.Errorf("期望未知评分项校验失败，实际 %v", err)
	}
}

func TestGradingService_ScoreReport(t *testing.T) {
	env, p, e := approvedEnv(t)
	svc := env.gradingService()
	logs := env.logService()
	ctx := context.Background()

	report, _, _ := logs.SaveDraft(ctx, p.ID, &dto.SaveLogRequest{
		LogType:  "report",
		LogDate:  "2024-03-29",
		FileURLs: []string{"https://files.example.com/report.pdf"},
	}, testStudent)
	if _, err := logs.Submit(ctx, report.ID, testStudent); err != nil {
		t.Fatalf("提交报告失败: %v", err)
	}
	periodic, _ := env.submittedLog(t, p.ID, testStudent, "2024-01-10")

	scores := fullMarks(p.StudentReportTemplate, 0.5)
	_, err := svc.ScoreComponent(ctx, e.EnrollmentID, "report", &dto.ScoreRequest{Scores: scores, LogID: periodic}, testInstructor)
	if !errors.Is(err, ErrReportLogInvalid) {
		t.Errorf("期望周期日志不能作为报告评分对象，实际 %v", err)
	}

	resp, err := svc.ScoreComponent(ctx, e.EnrollmentID, "report", &dto.ScoreRequest{
		Scores:   scores,
		LogID:    report.ID,
		Feedback: "结构完整",
	}, testInstructor)
	if err != nil {
		t.Fatalf("报告打分失败: %v", err)
	}
	want := p.GradingConfig.ReportWeight / 2
	if resp.Weighted != want {
		t.Errorf("期望加权得分 %g，实际 %g", want, resp.Weighted)
	}

	stored := env.logs.logs[report.ID]
	if !floatEq(stored.Grade, want) || stored.Feedback != "结构完整" {
		t.Errorf("期望报告记录同步写入得分与评语，实际 %v / %q", stored.Grade, stored.Feedback)
	}
	if !floatEq(env.enrollments.enrollments[e.EnrollmentID].ReportGrade, want) {
		t.Error("期望报名的报告成绩已写入")
	}
}

// ── 指导老师评价 ──

func TestGradingService_SupervisorReportAndSync(t *testing.T) {
	env, p, e := approvedEnv(t)
	svc := env.gradingService()
	ctx := context.Background()
	env.seedEnrollment(t, p.ID, "stu-2", practicum.EnrollmentApproved)

	resp, err := svc.RecordSupervisorReport(ctx, e.EnrollmentID, &dto.SupervisorReportRequest{
		SupervisorName: "Jane Doe",
		Scores:         fullMarks(p.SupervisorReportTemplate, 1),
		Comment:        "Excellent",
	}, testInstructor)
	if err != nil {
		t.Fatalf("录入评价失败: %v", err)
	}
	if resp.Weighted != p.GradingConfig.SupervisorWeight {
		t.Errorf("期望满分 %g，实际 %g", p.GradingConfig.SupervisorWeight, resp.Weighted)
	}

	stored := env.enrollments.enrollments[e.EnrollmentID].SupervisorReport.Data()
	if stored == nil || stored.SupervisorName != "Jane Doe" || stored.RecordedBy != testInstructor {
		t.Fatalf("期望评价已保存，实际 %+v", stored)
	}

	// 调整权重后同步
	weights := practicum.GradingConfig{LogsWeight: 30, ReportWeight: 45, SupervisorWeight: 25}
	if _, err := env.practicumService().Update(ctx, p.ID, &dto.UpdatePracticumRequest{GradingConfig: &weights, Version: p.Version}, testInstructor); err != nil {
		t.Fatalf("修改权重失败: %v", err)
	}

	sync, err := svc.SyncSupervisorGrades(ctx, p.ID, testInstructor)
	if err != nil {
		t.Fatalf("同步失败: %v", err)
	}
	if sync.Updated != 1 || sync.Skipped != 1 {
		t.Errorf("期望更新 1 跳过 1，实际 %+v", sync)
	}
	if !floatEq(env.enrollments.enrollments[e.EnrollmentID].SupervisorGrade, 25) {
		t.Errorf("期望按新权重换算为 25，实际 %v", env.enrollments.enrollments[e.EnrollmentID].SupervisorGrade)
	}

	// 再次同步无变化
	sync, _ = svc.SyncSupervisorGrades(ctx, p.ID, testInstructor)
	if sync.Updated != 0 {
		t.Errorf("期望无需更新，实际 %d", sync.Updated)
	}
}

// ── Grades 测试 ──

func TestGradingService_Grades_RepairsFinal(t *testing.T) {
	env, p, e := approvedEnv(t)
	ctx := context.Background()
	env.seedEnrollment(t, p.ID, "stu-pending", practicum.EnrollmentPending)

	cur := env.enrollments.enrollments[e.EnrollmentID]
	cur.LogsGrade, cur.ReportGrade, cur.SupervisorGrade = ptrFloat(18), ptrFloat(27), ptrFloat(45)
	cur.FinalGrade = ptrFloat(12) // 与组成部分不一致

	resp, err := env.gradingService().Grades(ctx, p.ID, testInstructor)
	if err != nil {
		t.Fatalf("读取成绩失败: %v", err)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("期望只列出已通过的学生，实际 %d 行", len(resp.Rows))
	}
	if !floatEq(resp.Rows[0].FinalGrade, 90) {
		t.Errorf("期望重算为 90，实际 %v", resp.Rows[0].FinalGrade)
	}
	if !floatEq(cur.FinalGrade, 90) {
		t.Errorf("期望库中最终成绩被修正，实际 %v", cur.FinalGrade)
	}
	if resp.Rows[0].StudentRegistrationNumber != "EDU/001/2021" {
		t.Errorf("期望带出学号，实际 %q", resp.Rows[0].StudentRegistrationNumber)
	}

	if _, err := env.gradingService().Grades(ctx, p.ID, "other-inst"); !errors.Is(err, ErrNotPracticumOwner) {
		t.Errorf("期望 ErrNotPracticumOwner，实际 %v", err)
	}
}
