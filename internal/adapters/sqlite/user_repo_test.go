package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/gradebook/internal/adapters/sqlite"
	"github.com/example/gradebook/internal/ports/secondary"
)

func createTestUser(t *testing.T, repo *sqlite.UserRepository, ctx context.Context, id, email string) *secondary.UserRecord {
	t.Helper()

	user := &secondary.UserRecord{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		Salt:         "salt",
		FirstName:    "Liza",
		LastName:     "Ramos",
		IsActive:     true,
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return user
}

func TestUserRepository_GetByEmailIgnoresCase(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewUserRepository(testDB)
	ctx := context.Background()
	createTestUser(t, repo, ctx, "u1", "liza@school.edu.ph")

	got, err := repo.GetByEmail(ctx, "LIZA@School.edu.ph")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != "u1" || got.Role != "teacher" || !got.IsActive {
		t.Errorf("unexpected user: %+v", got)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@school.edu.ph"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_LoginBookkeeping(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewUserRepository(testDB)
	ctx := context.Background()
	createTestUser(t, repo, ctx, "u1", "liza@school.edu.ph")

	at := time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := repo.RecordLoginFailure(ctx, "u1", at); err != nil {
			t.Fatalf("RecordLoginFailure failed: %v", err)
		}
	}

	got, _ := repo.GetByID(ctx, "u1")
	if got.FailedLoginAttempts != 3 || !got.LastFailedLogin.Equal(at) {
		t.Errorf("expected 3 failures at %v, got %d at %v", at, got.FailedLoginAttempts, got.LastFailedLogin)
	}

	later := at.Add(time.Minute)
	if err := repo.RecordLoginSuccess(ctx, "u1", later); err != nil {
		t.Fatalf("RecordLoginSuccess failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, "u1")
	if got.FailedLoginAttempts != 0 || !got.LastLogin.Equal(later) {
		t.Errorf("expected reset counter and last login %v, got %d at %v", later, got.FailedLoginAttempts, got.LastLogin)
	}

	if err := repo.RecordLoginSuccess(ctx, "ghost", later); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUserRepository_PasswordAndCache(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewUserRepository(testDB)
	ctx := context.Background()
	createTestUser(t, repo, ctx, "u1", "liza@school.edu.ph")

	if err := repo.UpdatePassword(ctx, "u1", "new-hash", "new-salt"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if err := repo.SetCachedPassword(ctx, "u1", "ciphertext"); err != nil {
		t.Fatalf("SetCachedPassword failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "u1")
	if got.PasswordHash != "new-hash" || got.Salt != "new-salt" || got.CachedPassword != "ciphertext" {
		t.Errorf("unexpected user: %+v", got)
	}

	if err := repo.SetCachedPassword(ctx, "u1", ""); err != nil {
		t.Fatalf("SetCachedPassword failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, "u1")
	if got.CachedPassword != "" {
		t.Error("expected cached password cleared")
	}
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	testDB := setupTestDB(t)
	users := sqlite.NewUserRepository(testDB)
	repo := sqlite.NewSessionRepository(testDB)
	ctx := context.Background()
	createTestUser(t, users, ctx, "u1", "liza@school.edu.ph")

	now := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	for i, ttl := range []time.Duration{time.Hour, -time.Minute} {
		s := &secondary.SessionRecord{
			ID:           []string{"live", "stale"}[i],
			UserID:       "u1",
			CreatedAt:    now,
			ExpiresAt:    now.Add(ttl),
			LastActivity: now,
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.Get(ctx, "live")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("unexpected expiry %v", got.ExpiresAt)
	}

	if err := repo.Touch(ctx, "live", now.Add(5*time.Minute)); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	got, _ = repo.Get(ctx, "live")
	if !got.LastActivity.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("expected touched activity, got %v", got.LastActivity)
	}

	purged, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged session, got %d", purged)
	}

	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "live"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditRepository_AppendAndList(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewAuditRepository(testDB)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	for i, action := range []string{"LOGIN_FAILED", "LOGIN", "LOGOUT"} {
		if err := repo.Append(ctx, &secondary.AuditRecord{
			UserID: "u1", Action: action, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := repo.Append(ctx, &secondary.AuditRecord{Action: "LOGIN_FAILED", Details: "unknown email", CreatedAt: base}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := repo.List(ctx, secondary.AuditFilters{UserID: "u1", Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "LOGOUT" || entries[1].Action != "LOGIN" {
		t.Errorf("expected newest two entries for u1, got %d", len(entries))
	}

	all, _ := repo.List(ctx, secondary.AuditFilters{})
	if len(all) != 4 {
		t.Errorf("expected 4 entries, got %d", len(all))
	}
}

func TestSyncHistoryRepository_CreateAndList(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewSyncHistoryRepository(testDB)
	ctx := context.Background()

	started := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	id, err := repo.Create(ctx, &secondary.SyncHistoryRecord{
		SyncType:      "SEED",
		StartedAt:     started,
		CompletedAt:   started.Add(3 * time.Second),
		RecordsSynced: 42,
		Status:        "SUCCESS",
		Details:       map[string]int{"sections": 2, "students": 40},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == 0 {
		t.Error("expected a generated id")
	}
	if _, err := repo.Create(ctx, &secondary.SyncHistoryRecord{
		SyncType: "PUSH", StartedAt: started.Add(time.Hour), Status: "FAILED", RecordsFailed: 3, ErrorMessage: "offline",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	history, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(history))
	}
	if history[0].SyncType != "PUSH" || history[0].ErrorMessage != "offline" {
		t.Errorf("expected newest PUSH first, got %+v", history[0])
	}
	if history[1].Details["students"] != 40 {
		t.Errorf("expected details round trip, got %v", history[1].Details)
	}
}

func TestSettingsRepository(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewSettingsRepository(testDB)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "remote.base_url"); !errors.Is(err, secondary.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unset key, got %v", err)
	}
	if err := repo.Set(ctx, "remote.base_url", "http://a"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := repo.Set(ctx, "remote.base_url", "http://b"); err != nil {
		t.Fatalf("Set (replace) failed: %v", err)
	}
	got, err := repo.Get(ctx, "remote.base_url")
	if err != nil || got != "http://b" {
		t.Fatalf("Get = %q, %v; want http://b", got, err)
	}
	if err := repo.Delete(ctx, "remote.base_url"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "remote.base_url"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
	if _, err := repo.Get(ctx, "remote.base_url"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
