package practicum

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSubmissionItem_KindDiscriminant(t *testing.T) {
	week := 2
	grade := 48.5
	submitted := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	items := []SubmissionItem{
		LogItem{ID: "l1", StudentID: "s1", LogDate: day(2024, 1, 10), WeekNumber: &week,
			SubmissionStatus: SubmissionSubmitted, SupervisorStatus: SupervisorPending, InstructorStatus: InstructorUnread},
		StudentReportItem{ID: "r1", StudentID: "s1", SubmittedAt: &submitted, CreatedAt: day(2024, 2, 20),
			SubmissionStatus: SubmissionSubmitted, InstructorStatus: InstructorRead, Grade: &grade},
		SupervisorReportItem{EnrollmentID: "e1", StudentID: "s1", SupervisorName: "Jane", Score: 42, MaxScore: 50,
			RecordedAt: day(2024, 2, 1)},
	}

	for _, item := range items {
		t.Run(string(item.Kind()), func(t *testing.T) {
			data, err := json.Marshal(item)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(data), `"kind":"`+string(item.Kind())+`"`) {
				t.Errorf("JSON 缺少 kind 字段: %s", data)
			}

			decoded, err := DecodeSubmissionItem(data)
			if err != nil {
				t.Fatalf("解码失败: %v", err)
			}
			if decoded.Kind() != item.Kind() {
				t.Errorf("期望 %s，实际 %s", item.Kind(), decoded.Kind())
			}
			if !decoded.OccurredAt().Equal(item.OccurredAt()) {
				t.Errorf("时间不一致: %v vs %v", decoded.OccurredAt(), item.OccurredAt())
			}
		})
	}
}

func TestDecodeSubmissionItem_UnknownKind(t *testing.T) {
	if _, err := DecodeSubmissionItem([]byte(`{"kind":"memo"}`)); err == nil {
		t.Error("未知 kind 应报错")
	}
}

func TestStudentReportItem_OccurredAtFallsBackToCreated(t *testing.T) {
	item := StudentReportItem{CreatedAt: day(2024, 2, 20)}
	if !item.OccurredAt().Equal(day(2024, 2, 20)) {
		t.Errorf("未提交时应使用创建时间，实际 %v", item.OccurredAt())
	}
}

func TestSortSubmissions(t *testing.T) {
	items := []SubmissionItem{
		LogItem{ID: "old", LogDate: day(2024, 1, 1)},
		SupervisorReportItem{EnrollmentID: "mid", RecordedAt: day(2024, 1, 15)},
		LogItem{ID: "new", LogDate: day(2024, 2, 1)},
	}
	SortSubmissions(items)

	if items[0].(LogItem).ID != "new" || items[2].(LogItem).ID != "old" {
		t.Errorf("应按时间倒序: %+v", items)
	}
	if _, ok := items[1].(SupervisorReportItem); !ok {
		t.Error("中间应为指导老师评价")
	}
}
