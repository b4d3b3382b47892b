package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gradebook/internal/core/grading"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	path, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".gradebook")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	t.Setenv(DataDirEnv, "/srv/gradebook")
	path, err = DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir failed: %v", err)
	}
	if path != "/srv/gradebook" {
		t.Errorf("expected env override, got %s", path)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cfg := &Config{Version: ConfigVersion, Database: DatabaseFileName, CreatedAt: "2024-06-03T08:00:00Z"}
	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, loaded)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing", ""},
		{"not json", "{version: 1"},
		{"no database", `{"version": "1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				writeFile(t, filepath.Join(dir, ConfigFileName), tt.content)
			}
			if _, err := LoadConfig(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ============================================================================
// Settings
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 100, s.RemotePageSize)
	assert.Equal(t, 30*time.Second, s.RemoteTimeout)
	assert.Equal(t, 12*time.Hour, s.SessionTTL)
	assert.Equal(t, 5*time.Second, s.BackoffInitial)
	assert.Equal(t, 30*time.Minute, s.BackoffMax)
	assert.Equal(t, 2.0, s.BackoffMultiplier)
	assert.Equal(t, grading.DefaultWeights(), s.GradingWeights)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, filepath.Join(s.DataDir, DatabaseFileName), s.DatabasePath())
}

func TestLoad_LayeredSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "settings.yaml"), `
remote:
  base_url: https://file.example/api/
  page_size: 50
session:
  ttl: 2h
log:
  level: debug
`)
	writeFile(t, filepath.Join(dir, DotEnvFileName), "GRADEBOOK_REMOTE_PAGE_SIZE=25\nGRADEBOOK_LOG_JSON=true\n")
	t.Setenv("GRADEBOOK_LOG_LEVEL", "warn")
	// godotenv sets variables it loads; make sure they are cleaned up
	t.Setenv("GRADEBOOK_REMOTE_PAGE_SIZE", "")
	os.Unsetenv("GRADEBOOK_REMOTE_PAGE_SIZE")
	t.Setenv("GRADEBOOK_LOG_JSON", "")
	os.Unsetenv("GRADEBOOK_LOG_JSON")

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://file.example/api", s.RemoteBaseURL, "trailing slash trimmed")
	assert.Equal(t, 2*time.Hour, s.SessionTTL, "from settings file")
	assert.Equal(t, 25, s.RemotePageSize, ".env beats settings file")
	assert.True(t, s.LogJSON)
	assert.Equal(t, "warn", s.LogLevel, "environment beats settings file")
}

func TestLoad_RejectsBadWeights(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "settings.yaml"), "grading:\n  weights:\n    ww: 0.5\n    pt: 0.5\n    qa: 0.5\n")

	_, err := Load(dir)
	assert.ErrorContains(t, err, "grading weights")
}

func TestGradingConfig_TableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "table.yaml"), `
floor: 70
breakpoints:
  - {min: 90, grade: 100}
  - {min: 50, grade: 80}
`)
	s := &Settings{DataDir: dir, GradingWeights: grading.DefaultWeights(), GradingTableFile: "table.yaml"}

	cfg, err := s.GradingConfig()
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Table.Transmute(60))
	assert.Equal(t, 70, cfg.Table.Transmute(10))

	s.GradingTableFile = ""
	cfg, err = s.GradingConfig()
	require.NoError(t, err)
	assert.Equal(t, grading.DefaultTable(), cfg.Table)
}

// ============================================================================
// Bootstrap
// ============================================================================

var bootTime = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func TestBootstrap_FirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, recovery, err := Bootstrap(dir, bootTime)
	require.NoError(t, err)
	assert.Nil(t, recovery)
	assert.Equal(t, DatabaseFileName, cfg.Database)

	again, recovery, err := Bootstrap(dir, bootTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, recovery)
	assert.Equal(t, cfg.CreatedAt, again.CreatedAt, "existing config is kept")
}

func TestBootstrap_CorruptConfigMovesDatabaseAside(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, DatabaseFileName)
	writeFile(t, dbPath, "old data")
	writeFile(t, dbPath+"-wal", "old wal")
	writeFile(t, filepath.Join(dir, ConfigFileName), "{garbage")

	cfg, recovery, err := Bootstrap(dir, bootTime)
	require.NoError(t, err)
	require.NotNil(t, recovery)
	assert.Equal(t, dbPath+".corrupt-20240603-080000", recovery.MovedTo)
	assert.Contains(t, recovery.Reason, "parse config")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "database moved away")
	moved, err := os.ReadFile(recovery.MovedTo)
	require.NoError(t, err)
	assert.Equal(t, "old data", string(moved))
	_, err = os.Stat(recovery.MovedTo + "-wal")
	assert.NoError(t, err, "WAL travels with the database")

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, *cfg, *loaded)
}

func TestBootstrap_MissingConfigWithDatabase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DatabaseFileName), "orphan")

	_, recovery, err := Bootstrap(dir, bootTime)
	require.NoError(t, err)
	require.NotNil(t, recovery)
	assert.Contains(t, recovery.Reason, "read config")
}
