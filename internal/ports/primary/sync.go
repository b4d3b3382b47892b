package primary

import (
	"context"
	"errors"
)

// ErrSyncInProgress is returned when a sync pass is requested while another
// one is still running.
var ErrSyncInProgress = errors.New("a sync is already in progress")

// ErrRemoteNotConfigured is returned when no server address is known.
var ErrRemoteNotConfigured = errors.New("remote server is not configured")

// Sync pass types, as recorded in sync history.
const (
	SyncTypeSeed = "SEED"
	SyncTypePush = "PUSH"
	SyncTypePull = "PULL"
)

// Sync pass outcomes.
const (
	SyncStatusSuccess   = "SUCCESS"
	SyncStatusPartial   = "PARTIAL"
	SyncStatusFailed    = "FAILED"
	SyncStatusCancelled = "CANCELLED"
)

// SyncService defines the primary port for reconciling with the server.
//
// Partial failure is reported inside SyncResult, never as an error. Errors
// are reserved for local storage failures, an unconfigured remote and
// ErrSyncInProgress.
type SyncService interface {
	// Configure stores the server address and bearer token for later passes.
	Configure(ctx context.Context, req ConfigureRemoteRequest) error

	// Seed fetches the server's roster and stores it as synced.
	Seed(ctx context.Context, req SeedRequest) (*SyncResult, error)

	// Push replays pending outbox entries in creation order.
	Push(ctx context.Context, opts PushOptions) (*SyncResult, error)

	// Pull refreshes the roster, leaving rows with pending local edits alone.
	Pull(ctx context.Context) (*SyncResult, error)

	// SyncNow pushes and then pulls.
	SyncNow(ctx context.Context, opts PushOptions) (*SyncNowResult, error)

	// Status summarizes the outbox.
	Status(ctx context.Context) (*SyncStatus, error)

	// History lists recent passes, newest first.
	History(ctx context.Context, limit int) ([]*SyncHistoryEntry, error)
}

// ConfigureRemoteRequest contains the server connection settings.
type ConfigureRemoteRequest struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	Token   string `json:"token"`
}

// SeedRequest names the server to seed from. Empty fields fall back to the
// configured remote.
type SeedRequest struct {
	BaseURL string `json:"base_url" validate:"omitempty,url"`
	Token   string `json:"token"`
}

// PushOptions tunes a push pass.
type PushOptions struct {
	// Force retries entries still inside their backoff window.
	Force bool `json:"force"`
}

// EntryError describes one outbox entry or fetch that failed.
type EntryError struct {
	EntryID   int64  `json:"entry_id,omitempty"`
	TableName string `json:"table_name,omitempty"`
	Operation string `json:"operation,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
	Message   string `json:"message"`
}

// SyncResult is the outcome of one pass.
type SyncResult struct {
	Type      string         `json:"type"`
	Success   bool           `json:"success"`
	Status    string         `json:"status"`
	Synced    int            `json:"synced"`
	Failed    int            `json:"failed"`
	Deferred  int            `json:"deferred"`
	Skipped   int            `json:"skipped"`
	Cancelled bool           `json:"cancelled"`
	Details   map[string]int `json:"details,omitempty"`
	Errors    []EntryError   `json:"errors,omitempty"`
	HistoryID int64          `json:"history_id,omitempty"`
}

// SyncNowResult combines the push and pull of SyncNow. Pull is nil when the
// push was cancelled.
type SyncNowResult struct {
	Push *SyncResult `json:"push"`
	Pull *SyncResult `json:"pull,omitempty"`
}

// SyncStatus summarizes local sync state.
type SyncStatus struct {
	Pending    int               `json:"pending"`
	Failing    int               `json:"failing"`
	ByTable    map[string]int    `json:"by_table"`
	Configured bool              `json:"configured"`
	BaseURL    string            `json:"base_url,omitempty"`
	InProgress bool              `json:"in_progress"`
	LastSync   *SyncHistoryEntry `json:"last_sync,omitempty"`
}

// SyncHistoryEntry is one recorded pass.
type SyncHistoryEntry struct {
	ID            int64          `json:"id"`
	SyncType      string         `json:"sync_type"`
	StartedAt     string         `json:"started_at"`
	CompletedAt   string         `json:"completed_at"`
	RecordsSynced int            `json:"records_synced"`
	RecordsFailed int            `json:"records_failed"`
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Details       map[string]int `json:"details,omitempty"`
}
