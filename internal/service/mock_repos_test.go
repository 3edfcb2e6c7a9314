package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/repository"
	pkgerrors "schologic-practicum/backend/pkg/errors"
	pkgredis "schologic-practicum/backend/pkg/redis"
)

// 内存实现按值存取，模拟数据库"读出的是副本"的语义；
// 带状态守卫的写入与 GORM 实现保持相同的未命中规则。

// ── Mock PracticumRepository ──

type mockPracticumRepo struct {
	practicums map[string]*model.Practicum
	seq        int
}

func newMockPracticumRepo() *mockPracticumRepo {
	return &mockPracticumRepo{practicums: make(map[string]*model.Practicum)}
}

func (m *mockPracticumRepo) Create(_ context.Context, p *model.Practicum) error {
	if p.PracticumID == "" {
		m.seq++
		p.PracticumID = fmt.Sprintf("prac-%d", m.seq)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.practicums[p.PracticumID] = &cp
	return nil
}

func (m *mockPracticumRepo) GetByID(_ context.Context, id string) (*model.Practicum, error) {
	if p, ok := m.practicums[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPracticumRepo) GetByInviteCode(_ context.Context, code string) (*model.Practicum, error) {
	for _, p := range m.practicums {
		if p.InviteCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPracticumRepo) ListByInstructor(_ context.Context, instructorID string, offset, limit int) ([]model.Practicum, int64, error) {
	var all []model.Practicum
	for _, p := range m.practicums {
		if p.InstructorID == instructorID {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PracticumID < all[j].PracticumID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockPracticumRepo) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := m.GetByInviteCode(ctx, code)
	return err == nil, nil
}

func (m *mockPracticumRepo) Update(_ context.Context, p *model.Practicum) error {
	cur, ok := m.practicums[p.PracticumID]
	if !ok || cur.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	m.practicums[p.PracticumID] = &cp
	return nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	enrollments map[string]*model.PracticumEnrollment
	practicums  *mockPracticumRepo
	seq         int
}

func newMockEnrollmentRepo(practicums *mockPracticumRepo) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{
		enrollments: make(map[string]*model.PracticumEnrollment),
		practicums:  practicums,
	}
}

// copyOf 返回副本并模拟 Preload("Practicum")
func (m *mockEnrollmentRepo) copyOf(e *model.PracticumEnrollment) *model.PracticumEnrollment {
	cp := *e
	cp.Practicum = nil
	if p, ok := m.practicums.practicums[e.PracticumID]; ok {
		pc := *p
		cp.Practicum = &pc
	}
	return &cp
}

func (m *mockEnrollmentRepo) Create(_ context.Context, e *model.PracticumEnrollment) error {
	for _, cur := range m.enrollments {
		if cur.PracticumID == e.PracticumID && cur.StudentID == e.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	if e.EnrollmentID == "" {
		m.seq++
		e.EnrollmentID = fmt.Sprintf("enr-%d", m.seq)
	}
	if e.Version == 0 {
		e.Version = 1
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	cp.Practicum = nil
	m.enrollments[e.EnrollmentID] = &cp
	return nil
}

func (m *mockEnrollmentRepo) GetByID(_ context.Context, id string) (*model.PracticumEnrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return m.copyOf(e), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) GetByPracticumAndStudent(_ context.Context, practicumID, studentID string) (*model.PracticumEnrollment, error) {
	for _, e := range m.enrollments {
		if e.PracticumID == practicumID && e.StudentID == studentID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) ListByPracticum(_ context.Context, practicumID, status string, offset, limit int) ([]model.PracticumEnrollment, int64, error) {
	var all []model.PracticumEnrollment
	for _, e := range m.sorted() {
		if e.PracticumID != practicumID || (status != "" && e.Status != status) {
			continue
		}
		all = append(all, e)
	}
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]model.PracticumEnrollment, error) {
	var result []model.PracticumEnrollment
	for _, e := range m.sorted() {
		if e.StudentID == studentID {
			result = append(result, *m.copyOf(&e))
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepo) ListApproved(_ context.Context, practicumID string) ([]model.PracticumEnrollment, error) {
	var result []model.PracticumEnrollment
	for _, e := range m.sorted() {
		if e.PracticumID == practicumID && e.Status == "approved" {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepo) CountByPracticum(_ context.Context, practicumID string) (int64, error) {
	var n int64
	for _, e := range m.enrollments {
		if e.PracticumID == practicumID && e.Status != "draft" {
			n++
		}
	}
	return n, nil
}

func (m *mockEnrollmentRepo) UpdateRegistration(_ context.Context, e *model.PracticumEnrollment) error {
	cur, ok := m.enrollments[e.EnrollmentID]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.Version != e.Version || (cur.Status != "draft" && cur.Status != "pending") {
		return pkgerrors.ErrStatusChanged
	}
	e.Version++
	cp := *e
	cp.Practicum = nil
	m.enrollments[e.EnrollmentID] = &cp
	return nil
}

func (m *mockEnrollmentRepo) TransitionStatus(_ context.Context, e *model.PracticumEnrollment, from string) error {
	cur, ok := m.enrollments[e.EnrollmentID]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.Status != from {
		return pkgerrors.ErrStatusChanged
	}
	cur.Status = e.Status
	cur.SubmittedAt = e.SubmittedAt
	cur.ApprovedAt = e.ApprovedAt
	cur.RejectedAt = e.RejectedAt
	cur.InstructorNotes = e.InstructorNotes
	cur.Version++
	e.Version = cur.Version
	return nil
}

func (m *mockEnrollmentRepo) UpdateGradeComponent(_ context.Context, id, column string, value *float64) error {
	cur, ok := m.enrollments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch column {
	case "logs_grade":
		cur.LogsGrade = value
	case "report_grade":
		cur.ReportGrade = value
	case "supervisor_grade":
		cur.SupervisorGrade = value
	default:
		return fmt.Errorf("未知成绩列 %s", column)
	}
	cur.Version++
	return nil
}

func (m *mockEnrollmentRepo) UpdateFinalGrade(_ context.Context, id string, final *float64) error {
	if cur, ok := m.enrollments[id]; ok {
		cur.FinalGrade = final
	}
	return nil
}

func (m *mockEnrollmentRepo) UpdateSupervisorReport(_ context.Context, id string, report *model.SupervisorReport, grade *float64) error {
	cur, ok := m.enrollments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.SupervisorReport = datatypes.NewJSONType(report)
	cur.SupervisorGrade = grade
	cur.Version++
	return nil
}

func (m *mockEnrollmentRepo) MarkViewed(_ context.Context, id string, at time.Time) error {
	if cur, ok := m.enrollments[id]; ok {
		cur.InstructorViewedAt = &at
	}
	return nil
}

func (m *mockEnrollmentRepo) Withdraw(_ context.Context, id, _ string) error {
	cur, ok := m.enrollments[id]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.Status == "approved" {
		return pkgerrors.ErrStatusChanged
	}
	delete(m.enrollments, id)
	return nil
}

func (m *mockEnrollmentRepo) sorted() []model.PracticumEnrollment {
	list := make([]model.PracticumEnrollment, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		list = append(list, *e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EnrollmentID < list[j].EnrollmentID })
	return list
}

// ── Mock LogRepository ──

type mockLogRepo struct {
	logs map[string]*model.PracticumLog
	seq  int
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{logs: make(map[string]*model.PracticumLog)}
}

func (m *mockLogRepo) Create(_ context.Context, l *model.PracticumLog) error {
	if l.LogID == "" {
		m.seq++
		l.LogID = fmt.Sprintf("log-%d", m.seq)
	}
	if l.Version == 0 {
		l.Version = 1
	}
	l.CreatedAt = time.Now().UTC()
	cp := *l
	m.logs[l.LogID] = &cp
	return nil
}

func (m *mockLogRepo) GetByID(_ context.Context, id string) (*model.PracticumLog, error) {
	if l, ok := m.logs[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLogRepo) GetDraft(_ context.Context, practicumID, studentID, logType string, logDate time.Time) (*model.PracticumLog, error) {
	for _, l := range m.sorted() {
		if l.PracticumID == practicumID && l.StudentID == studentID && l.LogType == logType &&
			l.LogDate.Equal(logDate) && l.SubmissionStatus == "draft" {
			return &l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLogRepo) List(_ context.Context, f repository.LogFilter, offset, limit int) ([]model.PracticumLog, int64, error) {
	var all []model.PracticumLog
	for _, l := range m.sorted() {
		if (f.PracticumID != "" && l.PracticumID != f.PracticumID) ||
			(f.StudentID != "" && l.StudentID != f.StudentID) ||
			(f.LogType != "" && l.LogType != f.LogType) ||
			(f.SubmissionStatus != "" && l.SubmissionStatus != f.SubmissionStatus) ||
			(f.InstructorStatus != "" && l.InstructorStatus != f.InstructorStatus) {
			continue
		}
		all = append(all, l)
	}
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockLogRepo) ListAll(_ context.Context, practicumID, studentID string) ([]model.PracticumLog, error) {
	var result []model.PracticumLog
	for _, l := range m.sorted() {
		if l.PracticumID == practicumID && (studentID == "" || l.StudentID == studentID) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockLogRepo) StatsByPracticum(_ context.Context, practicumID string) ([]repository.LogStats, error) {
	index := make(map[string]*repository.LogStats)
	var order []string
	for _, l := range m.sorted() {
		if l.PracticumID != practicumID {
			continue
		}
		st, ok := index[l.StudentID]
		if !ok {
			st = &repository.LogStats{StudentID: l.StudentID}
			index[l.StudentID] = st
			order = append(order, l.StudentID)
		}
		submitted := l.SubmissionStatus == "submitted"
		if submitted && l.LogType == "log" {
			st.Submitted++
		}
		if submitted && l.InstructorStatus == "unread" {
			st.Unread++
		}
		switch l.SupervisorStatus {
		case "verified":
			st.Verified++
		case "rejected":
			st.Rejected++
		}
	}
	result := make([]repository.LogStats, 0, len(order))
	for _, id := range order {
		result = append(result, *index[id])
	}
	return result, nil
}

func (m *mockLogRepo) UpdateDraft(_ context.Context, l *model.PracticumLog) error {
	cur, ok := m.logs[l.LogID]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.Version != l.Version || cur.SubmissionStatus != "draft" {
		return pkgerrors.ErrStatusChanged
	}
	l.Version++
	cp := *l
	m.logs[l.LogID] = &cp
	return nil
}

func (m *mockLogRepo) Submit(_ context.Context, l *model.PracticumLog) error {
	cur, ok := m.logs[l.LogID]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.SubmissionStatus != "draft" {
		return pkgerrors.ErrStatusChanged
	}
	l.Version = cur.Version + 1
	cp := *l
	m.logs[l.LogID] = &cp
	return nil
}

func (m *mockLogRepo) Decide(_ context.Context, l *model.PracticumLog) error {
	cur, ok := m.logs[l.LogID]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.SubmissionStatus != "submitted" || cur.SupervisorStatus != "pending" {
		return pkgerrors.ErrStatusChanged
	}
	cur.SupervisorStatus = l.SupervisorStatus
	cur.SupervisorComment = l.SupervisorComment
	cur.SupervisorVerifiedAt = l.SupervisorVerifiedAt
	cur.VerifiedBy = l.VerifiedBy
	cur.VerificationTokenHash = ""
	cur.Version++
	l.VerificationTokenHash = ""
	l.Version = cur.Version
	return nil
}

func (m *mockLogRepo) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	cur, ok := m.logs[id]
	if !ok || cur.InstructorStatus != "unread" {
		return false, nil
	}
	cur.InstructorStatus = "read"
	cur.ReadAt = &at
	return true, nil
}

func (m *mockLogRepo) SetGrade(_ context.Context, id string, grade *float64, feedback string) error {
	cur, ok := m.logs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Grade = grade
	cur.Feedback = feedback
	return nil
}

func (m *mockLogRepo) Delete(_ context.Context, id, _ string) error {
	cur, ok := m.logs[id]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if cur.SupervisorStatus == "verified" {
		return pkgerrors.ErrStatusChanged
	}
	delete(m.logs, id)
	return nil
}

func (m *mockLogRepo) sorted() []model.PracticumLog {
	list := make([]model.PracticumLog, 0, len(m.logs))
	for _, l := range m.logs {
		list = append(list, *l)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LogID < list[j].LogID })
	return list
}

// ── Mock Cache ──

type mockCache struct {
	data map[string][]byte
	hits int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return pkgredis.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *mockCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *mockCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

// ── 通用 ──

func paginate[T any](all []T, offset, limit int) []T {
	if limit < 0 {
		return all
	}
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
