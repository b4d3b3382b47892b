package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/gradebook/internal/config"
	"github.com/example/gradebook/internal/ports/primary"
)

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSyncAdapter_Push(t *testing.T) {
	tests := []struct {
		name   string
		result *primary.SyncResult
		wants  []string
	}{
		{
			name:   "success",
			result: &primary.SyncResult{Type: primary.SyncTypePush, Status: primary.SyncStatusSuccess, Synced: 3},
			wants:  []string{"✓ PUSH SUCCESS: 3 synced, 0 failed"},
		},
		{
			name: "partial with errors",
			result: &primary.SyncResult{
				Type: primary.SyncTypePush, Status: primary.SyncStatusPartial, Synced: 1, Failed: 1, Deferred: 2,
				Errors: []primary.EntryError{{TableName: "students", Operation: "INSERT", RecordID: "stu-1", Message: "status 500"}},
			},
			wants: []string{"! PUSH PARTIAL: 1 synced, 1 failed, 2 deferred", "✗ INSERT students stu-1: status 500"},
		},
		{
			name: "failed",
			result: &primary.SyncResult{
				Type: primary.SyncTypePush, Status: primary.SyncStatusFailed, Failed: 2,
				Errors: []primary.EntryError{{Message: "connection refused"}},
			},
			wants: []string{"✗ PUSH FAILED", "✗ connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSyncService{result: tt.result}
			out := &bytes.Buffer{}
			if err := NewSyncAdapter(svc, out).Push(context.Background(), true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !svc.lastForce {
				t.Error("expected force to reach the service")
			}
			assertContains(t, out.String(), tt.wants...)
		})
	}
}

func TestSyncAdapter_SeedDetailsAndNow(t *testing.T) {
	svc := &mockSyncService{
		result: &primary.SyncResult{
			Type: primary.SyncTypeSeed, Status: primary.SyncStatusSuccess, Synced: 6,
			Details: map[string]int{"students": 4, "class_sections": 2},
		},
		pull: &primary.SyncResult{Type: primary.SyncTypePull, Status: primary.SyncStatusSuccess, Skipped: 1},
	}
	out := &bytes.Buffer{}
	adapter := NewSyncAdapter(svc, out)

	if err := adapter.Seed(context.Background(), primary.SeedRequest{}); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if err := adapter.Now(context.Background(), false); err != nil {
		t.Fatalf("Now failed: %v", err)
	}

	s := out.String()
	assertContains(t, s, "SEED SUCCESS: 6 synced", "class_sections", "PULL SUCCESS: 0 synced, 0 failed, 1 skipped")
	if strings.Index(s, "class_sections") > strings.Index(s, "students") {
		t.Error("details should be sorted")
	}
}

func TestSyncAdapter_Status(t *testing.T) {
	svc := &mockSyncService{status: &primary.SyncStatus{
		Pending: 3, Failing: 1, ByTable: map[string]int{"student_scores": 2, "students": 1},
		Configured: true, BaseURL: "https://school.example/api",
		LastSync: &primary.SyncHistoryEntry{SyncType: "PUSH", Status: "SUCCESS", CompletedAt: "2024-06-03T08:00:00Z"},
	}}
	out := &bytes.Buffer{}
	if err := NewSyncAdapter(svc, out).Status(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertContains(t, out.String(), "Remote:   https://school.example/api", "Pending:  3", "Failing:  1", "student_scores", "Last sync: PUSH SUCCESS")

	svc.status = &primary.SyncStatus{ByTable: map[string]int{}}
	out.Reset()
	if err := NewSyncAdapter(svc, out).Status(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertContains(t, out.String(), "(not configured)")
}

func TestSyncAdapter_ConfigureAndHistory(t *testing.T) {
	svc := &mockSyncService{history: []*primary.SyncHistoryEntry{
		{ID: 2, SyncType: "PULL", Status: "PARTIAL", RecordsSynced: 5, RecordsFailed: 1},
	}}
	out := &bytes.Buffer{}
	adapter := NewSyncAdapter(svc, out)

	if err := adapter.Configure(context.Background(), "https://school.example/api", "tok"); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if svc.lastURL != "https://school.example/api" {
		t.Errorf("unexpected url %q", svc.lastURL)
	}
	if err := adapter.History(context.Background(), 10); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	assertContains(t, out.String(), "✓ Remote set to", "PULL", "PARTIAL")
}

func TestSyncAdapter_PropagatesErrors(t *testing.T) {
	svc := &mockSyncService{err: primary.ErrSyncInProgress}
	if err := NewSyncAdapter(svc, &bytes.Buffer{}).Now(context.Background(), false); err != primary.ErrSyncInProgress {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}
}

func TestPrintRecovery(t *testing.T) {
	out := &bytes.Buffer{}
	PrintRecovery(out, nil)
	if out.Len() != 0 {
		t.Errorf("expected nothing for nil recovery, got %q", out.String())
	}

	PrintRecovery(out, &config.Recovery{
		Reason:  "failed to parse config: unexpected end of JSON input",
		MovedTo: "/data/gradebook.db.corrupt-20240603-080000",
		At:      time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC),
	})
	assertContains(t, out.String(), "WARNING", "unexpected end of JSON input", "gradebook.db.corrupt-20240603-080000")
}
