package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Recovery describes a database that was moved aside because the config
// vouching for it was missing or unreadable.
type Recovery struct {
	Reason  string
	MovedTo string
	At      time.Time
}

// corruptSuffixLayout stamps moved-aside databases.
const corruptSuffixLayout = "20060102-150405"

// Bootstrap makes sure the data root holds a usable config.json and returns
// it. When config.json is missing or corrupt but a database exists, the
// database (with its WAL and SHM files) is renamed to
// <db>.corrupt-<timestamp> so a fresh store is created, and the returned
// Recovery says so. A first run returns a nil Recovery.
func Bootstrap(dataDir string, now time.Time) (*Config, *Recovery, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cfg, loadErr := LoadConfig(dataDir)
	if loadErr == nil {
		return cfg, nil, nil
	}

	var recovery *Recovery
	dbPath := filepath.Join(dataDir, DatabaseFileName)
	if _, err := os.Stat(dbPath); err == nil {
		movedTo := fmt.Sprintf("%s.corrupt-%s", dbPath, now.UTC().Format(corruptSuffixLayout))
		if err := moveDatabase(dbPath, movedTo); err != nil {
			return nil, nil, err
		}
		recovery = &Recovery{Reason: loadErr.Error(), MovedTo: movedTo, At: now}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to stat database: %w", err)
	}

	cfg = &Config{
		Version:   ConfigVersion,
		Database:  DatabaseFileName,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	if err := SaveConfig(dataDir, cfg); err != nil {
		return nil, nil, err
	}
	return cfg, recovery, nil
}

func moveDatabase(dbPath, movedTo string) error {
	if err := os.Rename(dbPath, movedTo); err != nil {
		return fmt.Errorf("failed to move database aside: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		err := os.Rename(dbPath+suffix, movedTo+suffix)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to move database %s file aside: %w", suffix, err)
		}
	}
	return nil
}
