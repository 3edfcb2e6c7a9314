package practicum

import (
	"errors"
	"testing"
)

func submittedLog(t *testing.T) LogState {
	t.Helper()
	s, err := NewDraftLog(KindLog).Submit()
	if err != nil {
		t.Fatalf("提交草稿应成功: %v", err)
	}
	return s
}

func TestLogState_NewDraft(t *testing.T) {
	s := NewDraftLog(KindLog)
	if s.Submission() != SubmissionDraft || s.Supervisor() != SupervisorPending || s.Instructor() != InstructorUnread {
		t.Errorf("初始状态错误: %+v", s)
	}
	if !s.Editable() || !s.Deletable() {
		t.Error("草稿应可编辑、可删除")
	}
	if NewDraftLog("weird").Kind() != KindLog {
		t.Error("未知类型应按 log 处理")
	}
}

func TestLogState_VerifyDraftRejected(t *testing.T) {
	s := NewDraftLog(KindLog)
	next, err := s.Verify()
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("期望 TransitionError，实际: %v", err)
	}
	if terr.Current != string(SubmissionDraft) || terr.Action != "verify" {
		t.Errorf("错误内容不符: %+v", terr)
	}
	if next != s {
		t.Error("失败时状态不应变化")
	}
}

func TestLogState_VerifyOnce(t *testing.T) {
	s := submittedLog(t)
	if s.Editable() {
		t.Error("提交后不可编辑")
	}

	verified, err := s.Verify()
	if err != nil {
		t.Fatalf("submitted+pending 应可审核: %v", err)
	}
	if verified.Supervisor() != SupervisorVerified || verified.Submission() != SubmissionSubmitted {
		t.Errorf("审核后状态错误: %+v", verified)
	}
	if verified.Deletable() {
		t.Error("已审核通过的记录不可删除")
	}

	if _, err := verified.Verify(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("重复审核应报 ErrInvalidTransition，实际: %v", err)
	}
	if _, err := verified.Reject(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("已通过后驳回应报 ErrInvalidTransition，实际: %v", err)
	}
}

func TestLogState_Reject(t *testing.T) {
	rejected, err := submittedLog(t).Reject()
	if err != nil {
		t.Fatalf("驳回应成功: %v", err)
	}
	if rejected.Supervisor() != SupervisorRejected {
		t.Errorf("期望 rejected，实际 %s", rejected.Supervisor())
	}
	if !rejected.Deletable() {
		t.Error("被驳回的记录可删除")
	}
}

func TestLogState_ReportKindCannotBeReviewed(t *testing.T) {
	s, _ := NewDraftLog(KindReport).Submit()
	_, err := s.Verify()
	var terr *TransitionError
	if !errors.As(err, &terr) || terr.Reason == "" {
		t.Fatalf("报告类记录审核应附带原因，实际: %v", err)
	}
}

func TestLogState_SubmitTwice(t *testing.T) {
	if _, err := submittedLog(t).Submit(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("重复提交应报 ErrInvalidTransition，实际: %v", err)
	}
}

func TestLogState_MarkReadIdempotent(t *testing.T) {
	s := submittedLog(t)
	read, changed := s.MarkRead()
	if !changed || read.Instructor() != InstructorRead {
		t.Fatalf("首次标记已读应产生变化: %+v", read)
	}
	again, changed := read.MarkRead()
	if changed || again != read {
		t.Error("重复标记已读不应产生变化")
	}
	// 阅读轴与审核轴相互独立
	if read.Supervisor() != SupervisorPending {
		t.Error("标记已读不应影响审核状态")
	}
}

func TestParseLogState(t *testing.T) {
	tests := []struct {
		name                                string
		kind, submission, supervisor, instr string
		wantErr                             bool
	}{
		{"合法", "log", "submitted", "verified", "read", false},
		{"草稿待审", "report", "draft", "pending", "unread", false},
		{"已审核的草稿", "log", "draft", "verified", "unread", true},
		{"未知类型", "memo", "draft", "pending", "unread", true},
		{"未知提交状态", "log", "archived", "pending", "unread", true},
		{"未知阅读状态", "log", "submitted", "pending", "seen", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseLogState(tt.kind, tt.submission, tt.supervisor, tt.instr)
			if tt.wantErr {
				if !errors.Is(err, ErrIllegalLogState) {
					t.Errorf("期望 ErrIllegalLogState，实际: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("不应报错: %v", err)
			}
			if string(s.Submission()) != tt.submission || string(s.Supervisor()) != tt.supervisor {
				t.Errorf("还原结果错误: %+v", s)
			}
		})
	}
}
