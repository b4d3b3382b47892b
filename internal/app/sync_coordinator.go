package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/example/gradebook/internal/core/credential"
	"github.com/example/gradebook/internal/core/outbox"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// Settings keys holding the configured remote.
const (
	SettingRemoteBaseURL = "remote.base_url"
	SettingRemoteToken   = "remote.token"
)

// DefaultSeedConcurrency bounds concurrent per-section student fetches.
const DefaultSeedConcurrency = 4

// enrollmentNamespace derives stable enrollment IDs for seeded
// (section, student) pairs, which the server lists without an ID of their own.
var enrollmentNamespace = uuid.MustParse("6f1c3c1e-2a55-4d8e-9a43-0b7f3b1d9e21")

// SyncConfig tunes the SyncCoordinator.
type SyncConfig struct {
	// BaseURL and Token are used when nothing was stored with Configure.
	BaseURL string
	Token   string

	Backoff         outbox.BackoffPolicy
	SeedConcurrency int
	Now             func() time.Time
	Logger          *zap.Logger
}

// SyncCoordinator implements the SyncService interface. It replays the
// mutation outbox against the server and refreshes the local roster.
//
// Only one pass runs at a time; a concurrent request fails fast with
// primary.ErrSyncInProgress.
type SyncCoordinator struct {
	outboxRepo   secondary.OutboxRepository
	snapshotRepo secondary.SnapshotRepository
	historyRepo  secondary.SyncHistoryRepository
	settingsRepo secondary.SettingsRepository
	newRemote    secondary.RemoteFactory
	cipher       *credential.Cipher
	validator    *validation.Validator

	defaultBaseURL  string
	defaultToken    string
	policy          outbox.BackoffPolicy
	seedConcurrency int
	now             func() time.Time
	logger          *zap.Logger

	running *semaphore.Weighted
}

// NewSyncCoordinator creates a new SyncCoordinator with injected dependencies.
func NewSyncCoordinator(
	outboxRepo secondary.OutboxRepository,
	snapshotRepo secondary.SnapshotRepository,
	historyRepo secondary.SyncHistoryRepository,
	settingsRepo secondary.SettingsRepository,
	newRemote secondary.RemoteFactory,
	cipher *credential.Cipher,
	validator *validation.Validator,
	cfg SyncConfig,
) *SyncCoordinator {
	c := &SyncCoordinator{
		outboxRepo:      outboxRepo,
		snapshotRepo:    snapshotRepo,
		historyRepo:     historyRepo,
		settingsRepo:    settingsRepo,
		newRemote:       newRemote,
		cipher:          cipher,
		validator:       validator,
		defaultBaseURL:  cfg.BaseURL,
		defaultToken:    cfg.Token,
		policy:          cfg.Backoff,
		seedConcurrency: cfg.SeedConcurrency,
		now:             cfg.Now,
		logger:          cfg.Logger,
		running:         semaphore.NewWeighted(1),
	}
	if c.policy.Initial <= 0 {
		c.policy = outbox.DefaultBackoffPolicy()
	}
	if c.seedConcurrency <= 0 {
		c.seedConcurrency = DefaultSeedConcurrency
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

var _ primary.SyncService = (*SyncCoordinator)(nil)

// ============================================================================
// Remote configuration
// ============================================================================

// Configure stores the server address and the encrypted bearer token.
func (c *SyncCoordinator) Configure(ctx context.Context, req primary.ConfigureRemoteRequest) error {
	if err := c.validator.Struct(req); err != nil {
		return err
	}

	if err := c.settingsRepo.Set(ctx, SettingRemoteBaseURL, req.BaseURL); err != nil {
		return err
	}
	if req.Token == "" {
		return c.settingsRepo.Delete(ctx, SettingRemoteToken)
	}
	sealed, err := c.cipher.Encrypt(req.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}
	return c.settingsRepo.Set(ctx, SettingRemoteToken, sealed)
}

// remoteSettings resolves the server address and token: explicit values
// first, then stored settings, then configured defaults.
func (c *SyncCoordinator) remoteSettings(ctx context.Context, baseURL, token string) (string, string, error) {
	if baseURL == "" {
		stored, err := c.settingsRepo.Get(ctx, SettingRemoteBaseURL)
		if _, err := found(err); err != nil {
			return "", "", err
		}
		baseURL = stored
	}
	if baseURL == "" {
		baseURL = c.defaultBaseURL
	}

	if token == "" {
		sealed, err := c.settingsRepo.Get(ctx, SettingRemoteToken)
		ok, err := found(err)
		if err != nil {
			return "", "", err
		}
		if ok {
			token, err = c.cipher.Decrypt(sealed)
			if errors.Is(err, credential.ErrUndecryptable) {
				c.logger.Warn("stored remote token cannot be decrypted; ignoring it")
				token = ""
			} else if err != nil {
				return "", "", err
			}
		}
	}
	if token == "" {
		token = c.defaultToken
	}
	return baseURL, token, nil
}

func (c *SyncCoordinator) remote(ctx context.Context, baseURL, token string) (secondary.RemoteAPI, error) {
	baseURL, token, err := c.remoteSettings(ctx, baseURL, token)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		return nil, primary.ErrRemoteNotConfigured
	}
	return c.newRemote(baseURL, token), nil
}

// ============================================================================
// Passes
// ============================================================================

// Seed fetches sections, subjects, per-section students and assignments and
// stores everything as synced in one transaction.
func (c *SyncCoordinator) Seed(ctx context.Context, req primary.SeedRequest) (*primary.SyncResult, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, err
	}
	if !c.running.TryAcquire(1) {
		return nil, primary.ErrSyncInProgress
	}
	defer c.running.Release(1)

	api, err := c.remote(ctx, req.BaseURL, req.Token)
	if err != nil {
		return nil, err
	}
	return c.importSnapshot(ctx, api, primary.SyncTypeSeed, secondary.ImportOptions{})
}

// Push replays pending outbox entries.
func (c *SyncCoordinator) Push(ctx context.Context, opts primary.PushOptions) (*primary.SyncResult, error) {
	if !c.running.TryAcquire(1) {
		return nil, primary.ErrSyncInProgress
	}
	defer c.running.Release(1)

	api, err := c.remote(ctx, "", "")
	if err != nil {
		return nil, err
	}
	return c.push(ctx, api, opts)
}

// Pull refreshes the roster from the server. Rows with pending local edits
// are left alone and counted as skipped.
func (c *SyncCoordinator) Pull(ctx context.Context) (*primary.SyncResult, error) {
	if !c.running.TryAcquire(1) {
		return nil, primary.ErrSyncInProgress
	}
	defer c.running.Release(1)

	api, err := c.remote(ctx, "", "")
	if err != nil {
		return nil, err
	}
	return c.importSnapshot(ctx, api, primary.SyncTypePull, secondary.ImportOptions{SkipPending: true})
}

// SyncNow pushes and then pulls within a single pass. The pull is skipped
// when the push was cancelled.
func (c *SyncCoordinator) SyncNow(ctx context.Context, opts primary.PushOptions) (*primary.SyncNowResult, error) {
	if !c.running.TryAcquire(1) {
		return nil, primary.ErrSyncInProgress
	}
	defer c.running.Release(1)

	api, err := c.remote(ctx, "", "")
	if err != nil {
		return nil, err
	}

	pushed, err := c.push(ctx, api, opts)
	if err != nil {
		return nil, err
	}
	result := &primary.SyncNowResult{Push: pushed}
	if pushed.Cancelled {
		return result, nil
	}

	result.Pull, err = c.importSnapshot(ctx, api, primary.SyncTypePull, secondary.ImportOptions{SkipPending: true})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// push drains the outbox in creation order. Each entry is replayed under a
// context that outlives cancellation, so an acknowledged write is always
// marked; the loop stops between entries once ctx is done.
func (c *SyncCoordinator) push(ctx context.Context, api secondary.RemoteAPI, opts primary.PushOptions) (*primary.SyncResult, error) {
	started := c.now()
	store := context.WithoutCancel(ctx)

	entries, err := c.outboxRepo.Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to drain outbox: %w", err)
	}

	result := &primary.SyncResult{Type: primary.SyncTypePush, Details: map[string]int{}}
	// records with an earlier entry still pending in this pass
	blocked := make(map[string]bool)

	for _, entry := range entries {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		key := entry.TableName + "/" + entry.RecordID
		if blocked[key] || referencesBlocked(entry.Payload, blocked) {
			blocked[key] = true
			result.Deferred++
			continue
		}
		if !opts.Force && !outbox.Eligible(entry.NextAttemptAt, started) {
			blocked[key] = true
			result.Deferred++
			continue
		}

		replayErr := api.Replay(store, entry.TableName, entry.Operation, entry.RecordID, entry.Payload)
		at := c.now()

		if replayErr != nil {
			next := c.policy.NextAttempt(at, entry.Attempts+1)
			if err := c.outboxRepo.MarkFailed(store, entry.ID, replayErr.Error(), at, next); err != nil {
				return nil, fmt.Errorf("failed to record outbox failure: %w", err)
			}
			blocked[key] = true
			result.Failed++
			result.Errors = append(result.Errors, primary.EntryError{
				EntryID:   entry.ID,
				TableName: entry.TableName,
				Operation: entry.Operation,
				RecordID:  entry.RecordID,
				Message:   replayErr.Error(),
			})
			c.logger.Warn("outbox entry failed",
				zap.Int64("entry_id", entry.ID),
				zap.String("table", entry.TableName),
				zap.String("operation", entry.Operation),
				zap.Int("attempts", entry.Attempts+1),
				zap.Time("next_attempt", next),
				zap.Error(replayErr),
			)
			continue
		}

		if err := c.outboxRepo.MarkSynced(store, []int64{entry.ID}, at); err != nil {
			return nil, fmt.Errorf("failed to mark outbox entry synced: %w", err)
		}
		result.Synced++
		result.Details[entry.TableName]++
	}

	result.Status = pushStatus(result)
	result.Success = result.Status == primary.SyncStatusSuccess
	if err := c.recordHistory(store, result, started); err != nil {
		return nil, err
	}

	c.logger.Info("push finished",
		zap.String("status", result.Status),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
		zap.Int("deferred", result.Deferred),
		zap.Bool("cancelled", result.Cancelled),
	)
	return result, nil
}

// referenceFields maps payload foreign keys to the table they point at.
var referenceFields = map[string]string{
	"student_id":    secondary.TableStudents,
	"section_id":    secondary.TableClassSections,
	"subject_id":    secondary.TableSubjects,
	"grade_item_id": secondary.TableGradeItems,
}

// referencesBlocked reports whether payload points at a record whose own
// entry is still pending in this pass.
func referencesBlocked(payload json.RawMessage, blocked map[string]bool) bool {
	if len(blocked) == 0 || len(payload) == 0 {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}
	for field, table := range referenceFields {
		id, _ := fields[field].(string)
		if id != "" && blocked[table+"/"+id] {
			return true
		}
	}
	return false
}

func pushStatus(r *primary.SyncResult) string {
	switch {
	case r.Cancelled:
		return primary.SyncStatusCancelled
	case r.Failed == 0 && r.Deferred == 0:
		return primary.SyncStatusSuccess
	case r.Synced > 0:
		return primary.SyncStatusPartial
	case r.Failed > 0:
		return primary.SyncStatusFailed
	default:
		return primary.SyncStatusPartial
	}
}

// importSnapshot fetches the server roster and imports it.
func (c *SyncCoordinator) importSnapshot(ctx context.Context, api secondary.RemoteAPI, syncType string, opts secondary.ImportOptions) (*primary.SyncResult, error) {
	started := c.now()
	store := context.WithoutCancel(ctx)
	result := &primary.SyncResult{Type: syncType, Details: map[string]int{}}

	snapshot, fetchErrs := c.fetchSnapshot(ctx, api)
	result.Errors = fetchErrs
	result.Failed = len(fetchErrs)

	if ctx.Err() != nil {
		result.Cancelled = true
		result.Status = primary.SyncStatusCancelled
		if err := c.recordHistory(store, result, started); err != nil {
			return nil, err
		}
		return result, nil
	}

	counts, err := c.snapshotRepo.Import(ctx, snapshot, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s snapshot: %w", syncType, err)
	}

	result.Synced = counts.Total()
	result.Skipped = counts.Skipped
	result.Details[secondary.TableClassSections] = counts.Sections
	result.Details[secondary.TableSubjects] = counts.Subjects
	result.Details[secondary.TableStudents] = counts.Students
	result.Details[secondary.TableStudentSections] = counts.Enrollments
	result.Details[secondary.TableSubjectAssignments] = counts.Assignments
	if opts.SkipPending {
		result.Details["skipped"] = counts.Skipped
	}

	switch {
	case len(fetchErrs) == 0:
		result.Status = primary.SyncStatusSuccess
	case result.Synced > 0:
		result.Status = primary.SyncStatusPartial
	default:
		result.Status = primary.SyncStatusFailed
	}
	result.Success = result.Status == primary.SyncStatusSuccess

	if err := c.recordHistory(store, result, started); err != nil {
		return nil, err
	}

	c.logger.Info("snapshot imported",
		zap.String("type", syncType),
		zap.String("status", result.Status),
		zap.Int("stored", result.Synced),
		zap.Int("skipped", result.Skipped),
		zap.Int("fetch_errors", len(fetchErrs)),
	)
	return result, nil
}

// fetchSnapshot fetches sections, subjects, every section's students (with
// bounded concurrency) and subject assignments. A failed category is
// reported and left out; the rest is still returned.
func (c *SyncCoordinator) fetchSnapshot(ctx context.Context, api secondary.RemoteAPI) (*secondary.Snapshot, []primary.EntryError) {
	snapshot := &secondary.Snapshot{}
	var errs []primary.EntryError
	fail := func(table, recordID string, err error) {
		errs = append(errs, primary.EntryError{TableName: table, RecordID: recordID, Message: err.Error()})
	}

	sections, err := api.FetchSections(ctx)
	if err != nil {
		fail(secondary.TableClassSections, "", err)
	}
	snapshot.Sections = sections

	if snapshot.Subjects, err = api.FetchSubjects(ctx); err != nil {
		fail(secondary.TableSubjects, "", err)
	}

	// one slot per section keeps the result order independent of timing
	rosters := make([][]*secondary.StudentRecord, len(sections))
	rosterErrs := make([]error, len(sections))
	g := new(errgroup.Group)
	g.SetLimit(c.seedConcurrency)
	for i, section := range sections {
		g.Go(func() error {
			rosters[i], rosterErrs[i] = api.FetchSectionStudents(ctx, section.ID)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	for i, section := range sections {
		if rosterErrs[i] != nil {
			fail(secondary.TableStudents, section.ID, rosterErrs[i])
			continue
		}
		for _, student := range rosters[i] {
			if !seen[student.ID] {
				seen[student.ID] = true
				snapshot.Students = append(snapshot.Students, student)
			}
			snapshot.Enrollments = append(snapshot.Enrollments, &secondary.EnrollmentRecord{
				ID:         enrollmentID(section.ID, student.ID),
				StudentID:  student.ID,
				SectionID:  section.ID,
				SchoolYear: section.SchoolYear,
			})
		}
	}

	if snapshot.Assignments, err = api.FetchSubjectAssignments(ctx); err != nil {
		fail(secondary.TableSubjectAssignments, "", err)
	}
	return snapshot, errs
}

func enrollmentID(sectionID, studentID string) string {
	return uuid.NewSHA1(enrollmentNamespace, []byte(sectionID+"/"+studentID)).String()
}

func (c *SyncCoordinator) recordHistory(ctx context.Context, result *primary.SyncResult, started time.Time) error {
	record := &secondary.SyncHistoryRecord{
		SyncType:      result.Type,
		StartedAt:     started,
		CompletedAt:   c.now(),
		RecordsSynced: result.Synced,
		RecordsFailed: result.Failed,
		Status:        result.Status,
		Details:       result.Details,
	}
	if len(result.Errors) > 0 {
		record.ErrorMessage = result.Errors[0].Message
		if n := len(result.Errors); n > 1 {
			record.ErrorMessage = fmt.Sprintf("%s (and %d more)", record.ErrorMessage, n-1)
		}
	}

	id, err := c.historyRepo.Create(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to record sync history: %w", err)
	}
	result.HistoryID = id
	return nil
}

// ============================================================================
// Status
// ============================================================================

// Status summarizes the outbox and the last pass.
func (c *SyncCoordinator) Status(ctx context.Context) (*primary.SyncStatus, error) {
	pending, err := c.outboxRepo.List(ctx, secondary.OutboxFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}

	status := &primary.SyncStatus{Pending: len(pending), ByTable: map[string]int{}}
	for _, e := range pending {
		status.ByTable[e.TableName]++
		if e.Attempts > 0 {
			status.Failing++
		}
	}

	baseURL, _, err := c.remoteSettings(ctx, "", "")
	if err != nil {
		return nil, err
	}
	status.BaseURL = baseURL
	status.Configured = baseURL != ""

	if c.running.TryAcquire(1) {
		c.running.Release(1)
	} else {
		status.InProgress = true
	}

	history, err := c.History(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		status.LastSync = history[0]
	}
	return status, nil
}

// History lists recent passes, newest first.
func (c *SyncCoordinator) History(ctx context.Context, limit int) ([]*primary.SyncHistoryEntry, error) {
	records, err := c.historyRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}

	entries := make([]*primary.SyncHistoryEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.SyncHistoryEntry{
			ID:            r.ID,
			SyncType:      r.SyncType,
			StartedAt:     formatTime(r.StartedAt),
			CompletedAt:   formatTime(r.CompletedAt),
			RecordsSynced: r.RecordsSynced,
			RecordsFailed: r.RecordsFailed,
			Status:        r.Status,
			ErrorMessage:  r.ErrorMessage,
			Details:       r.Details,
		}
	}
	return entries, nil
}
