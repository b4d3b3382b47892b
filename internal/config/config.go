// Package config resolves the data root, the bootstrap record kept in
// config.json, and the runtime settings layered from defaults, an optional
// settings file, <root>/.env and GRADEBOOK_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/gradebook/internal/core/grading"
)

// File and environment names.
const (
	DataDirEnv       = "GRADEBOOK_DATA_DIR"
	EnvPrefix        = "GRADEBOOK"
	ConfigFileName   = "config.json"
	SettingsFileName = "settings" // settings.yaml, settings.json or settings.toml
	DotEnvFileName   = ".env"
	DatabaseFileName = "gradebook.db"

	// ConfigVersion is written to new config.json files.
	ConfigVersion = "1"
)

// Config is the bootstrap record stored in <root>/config.json. Its presence
// vouches for the database next to it.
type Config struct {
	Version   string `json:"version"`
	Database  string `json:"database"`
	CreatedAt string `json:"created_at"`
}

// LoadConfig reads config.json from dir.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Database == "" {
		return nil, errors.New("failed to parse config: database is empty")
	}

	return &cfg, nil
}

// SaveConfig writes config.json to dir.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultDataDir returns $GRADEBOOK_DATA_DIR, or ~/.gradebook.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".gradebook"), nil
}

// ============================================================================
// Runtime settings
// ============================================================================

// Settings are the resolved runtime settings.
type Settings struct {
	DataDir string

	RemoteBaseURL  string
	RemoteToken    string
	RemotePageSize int
	RemoteTimeout  time.Duration

	SessionTTL time.Duration

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64

	SeedConcurrency int

	GradingWeights   grading.Weights
	GradingTableFile string

	LogLevel string
	LogJSON  bool
}

// DatabasePath returns the store file under the data root.
func (s *Settings) DatabasePath() string {
	return filepath.Join(s.DataDir, DatabaseFileName)
}

// GradingConfig returns the engine configuration: the configured weights
// and either the table file or the default table.
func (s *Settings) GradingConfig() (grading.Config, error) {
	cfg := grading.Config{Weights: s.GradingWeights, Table: grading.DefaultTable()}
	if s.GradingTableFile != "" {
		path := s.GradingTableFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.DataDir, path)
		}
		table, err := grading.LoadTableFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.Table = table
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.page_size", 100)
	v.SetDefault("remote.timeout", 30*time.Second)

	v.SetDefault("session.ttl", 12*time.Hour)

	v.SetDefault("sync.backoff.initial", 5*time.Second)
	v.SetDefault("sync.backoff.max", 30*time.Minute)
	v.SetDefault("sync.backoff.multiplier", 2.0)
	v.SetDefault("sync.seed_concurrency", 4)

	weights := grading.DefaultWeights()
	v.SetDefault("grading.weights.ww", weights.WrittenWorks)
	v.SetDefault("grading.weights.pt", weights.PerformanceTasks)
	v.SetDefault("grading.weights.qa", weights.QuarterlyAssessment)
	v.SetDefault("grading.table_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Load resolves settings for the data root dataDir (DefaultDataDir when
// empty). Later sources win: defaults, <root>/settings.*, <root>/.env,
// then the process environment.
func Load(dataDir string) (*Settings, error) {
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(SettingsFileName)
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	// load .env if it exists (ignore if it does not); it never overrides
	// variables already set in the environment
	dotEnvPath := filepath.Join(dataDir, DotEnvFileName)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", dotEnvPath, err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Settings{
		DataDir:           dataDir,
		RemoteBaseURL:     strings.TrimRight(v.GetString("remote.base_url"), "/"),
		RemoteToken:       v.GetString("remote.token"),
		RemotePageSize:    v.GetInt("remote.page_size"),
		RemoteTimeout:     v.GetDuration("remote.timeout"),
		SessionTTL:        v.GetDuration("session.ttl"),
		BackoffInitial:    v.GetDuration("sync.backoff.initial"),
		BackoffMax:        v.GetDuration("sync.backoff.max"),
		BackoffMultiplier: v.GetFloat64("sync.backoff.multiplier"),
		SeedConcurrency:   v.GetInt("sync.seed_concurrency"),
		GradingWeights: grading.Weights{
			WrittenWorks:        v.GetFloat64("grading.weights.ww"),
			PerformanceTasks:    v.GetFloat64("grading.weights.pt"),
			QuarterlyAssessment: v.GetFloat64("grading.weights.qa"),
		},
		GradingTableFile: v.GetString("grading.table_file"),
		LogLevel:         v.GetString("log.level"),
		LogJSON:          v.GetBool("log.json"),
	}
	if err := s.GradingWeights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grading weights: %w", err)
	}
	return s, nil
}
