package practicum

import "time"

// EnrollmentStatus 学生报名状态
type EnrollmentStatus string

const (
	EnrollmentDraft    EnrollmentStatus = "draft"
	EnrollmentPending  EnrollmentStatus = "pending"
	EnrollmentApproved EnrollmentStatus = "approved"
	EnrollmentRejected EnrollmentStatus = "rejected"
)

// EnrollmentAction 报名状态机动作
type EnrollmentAction string

const (
	ActionSubmit  EnrollmentAction = "submit"
	ActionApprove EnrollmentAction = "approve"
	ActionReject  EnrollmentAction = "reject"
)

const enrollmentMachine = "enrollment"

// enrollmentTransitions 合法转换表；approved/rejected 在自动流程中为终态
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentDraft:   {EnrollmentPending, EnrollmentApproved},
	EnrollmentPending: {EnrollmentApproved, EnrollmentRejected},
}

// Valid 是否为可识别的状态
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentDraft, EnrollmentPending, EnrollmentApproved, EnrollmentRejected:
		return true
	}
	return false
}

// CanTransitionTo 转换表中是否存在 s → to
func (s EnrollmentStatus) CanTransitionTo(to EnrollmentStatus) bool {
	for _, t := range enrollmentTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终态
func (s EnrollmentStatus) IsTerminal() bool {
	return len(enrollmentTransitions[s]) == 0
}

// CanCreateLogs 只有已通过的报名可以创建日志
func CanCreateLogs(s EnrollmentStatus) bool {
	return s == EnrollmentApproved
}

// CanEditRegistration 草稿与待审核状态下可修改报名资料
func CanEditRegistration(s EnrollmentStatus) bool {
	return s == EnrollmentDraft || s == EnrollmentPending
}

// CanWithdraw 已通过的报名不可撤回
func CanWithdraw(s EnrollmentStatus) bool {
	return s != EnrollmentApproved
}

// EnrollmentSettings 影响报名流程的实践项目设置
type EnrollmentSettings struct {
	AutoApprove         bool
	GeolocationRequired bool
}

// EnrollmentState 报名状态快照；ApprovedAt 仅在通过时设置
type EnrollmentState struct {
	Status          EnrollmentStatus
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	InstructorNotes string
}

// SubmitEnrollment 学生提交报名
//
// 只允许从 draft 提交；所有分节校验一次性完成。开启自动审核时直接进入 approved。
func SubmitEnrollment(cur EnrollmentState, settings EnrollmentSettings, reg Registration, now time.Time) (EnrollmentState, error) {
	if cur.Status != EnrollmentDraft {
		return cur, &TransitionError{Machine: enrollmentMachine, Action: string(ActionSubmit), Current: string(cur.Status)}
	}
	if err := reg.Validate(settings.GeolocationRequired); err != nil {
		return cur, err
	}

	next := cur
	next.SubmittedAt = &now
	if settings.AutoApprove {
		next.Status = EnrollmentApproved
		next.ApprovedAt = &now
		return next, nil
	}
	next.Status = EnrollmentPending
	return next, nil
}

// ApproveEnrollment 教师通过报名
func ApproveEnrollment(cur EnrollmentState, now time.Time) (EnrollmentState, error) {
	// draft → approved 只在自动审核提交时发生，教师审核必须从 pending 出发
	if cur.Status != EnrollmentPending {
		return cur, &TransitionError{Machine: enrollmentMachine, Action: string(ActionApprove), Current: string(cur.Status)}
	}
	next := cur
	next.Status = EnrollmentApproved
	next.ApprovedAt = &now
	return next, nil
}

// RejectEnrollment 教师驳回报名，可附带说明；不设置 ApprovedAt
func RejectEnrollment(cur EnrollmentState, notes string, now time.Time) (EnrollmentState, error) {
	if !cur.Status.CanTransitionTo(EnrollmentRejected) {
		return cur, &TransitionError{Machine: enrollmentMachine, Action: string(ActionReject), Current: string(cur.Status)}
	}
	next := cur
	next.Status = EnrollmentRejected
	next.RejectedAt = &now
	next.ApprovedAt = nil
	if notes != "" {
		next.InstructorNotes = notes
	}
	return next, nil
}
