package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/example/gradebook/internal/config"
	"github.com/example/gradebook/internal/ports/primary"
)

// SyncAdapter translates CLI operations to SyncService calls.
type SyncAdapter struct {
	service primary.SyncService
	out     io.Writer
}

// NewSyncAdapter creates a new SyncAdapter.
func NewSyncAdapter(service primary.SyncService, out io.Writer) *SyncAdapter {
	return &SyncAdapter{service: service, out: out}
}

// Configure stores the server address and token.
func (a *SyncAdapter) Configure(ctx context.Context, baseURL, token string) error {
	if err := a.service.Configure(ctx, primary.ConfigureRemoteRequest{BaseURL: baseURL, Token: token}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Remote set to %s\n", okMark(), baseURL)
	return nil
}

// Seed populates the local roster from the server.
func (a *SyncAdapter) Seed(ctx context.Context, req primary.SeedRequest) error {
	result, err := a.service.Seed(ctx, req)
	if err != nil {
		return err
	}
	a.printResult(result)
	return nil
}

// Push replays pending local changes.
func (a *SyncAdapter) Push(ctx context.Context, force bool) error {
	result, err := a.service.Push(ctx, primary.PushOptions{Force: force})
	if err != nil {
		return err
	}
	a.printResult(result)
	return nil
}

// Pull refreshes the roster from the server.
func (a *SyncAdapter) Pull(ctx context.Context) error {
	result, err := a.service.Pull(ctx)
	if err != nil {
		return err
	}
	a.printResult(result)
	return nil
}

// Now pushes then pulls.
func (a *SyncAdapter) Now(ctx context.Context, force bool) error {
	result, err := a.service.SyncNow(ctx, primary.PushOptions{Force: force})
	if err != nil {
		return err
	}
	a.printResult(result.Push)
	if result.Pull != nil {
		a.printResult(result.Pull)
	}
	return nil
}

// Status prints the outbox summary.
func (a *SyncAdapter) Status(ctx context.Context) error {
	status, err := a.service.Status(ctx)
	if err != nil {
		return err
	}

	if status.Configured {
		fmt.Fprintf(a.out, "Remote:   %s\n", status.BaseURL)
	} else {
		fmt.Fprintf(a.out, "Remote:   %s\n", color.New(color.FgYellow).Sprint("(not configured)"))
	}
	fmt.Fprintf(a.out, "Pending:  %d\n", status.Pending)
	if status.Failing > 0 {
		fmt.Fprintf(a.out, "Failing:  %s\n", color.New(color.FgRed).Sprint(status.Failing))
	}
	for _, table := range sortedKeys(status.ByTable) {
		fmt.Fprintf(a.out, "  %-20s %d\n", table, status.ByTable[table])
	}
	if status.InProgress {
		fmt.Fprintf(a.out, "%s A sync is running\n", warnMark())
	}
	if status.LastSync != nil {
		fmt.Fprintf(a.out, "Last sync: %s %s at %s\n", status.LastSync.SyncType, statusLabel(status.LastSync.Status), status.LastSync.CompletedAt)
	}
	return nil
}

// History prints recent sync passes.
func (a *SyncAdapter) History(ctx context.Context, limit int) error {
	entries, err := a.service.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No sync history")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-5s %-5s %-10s %7s %7s %s\n", "ID", "TYPE", "STATUS", "SYNCED", "FAILED", "COMPLETED")
	fmt.Fprintln(a.out, rule)
	for _, e := range entries {
		fmt.Fprintf(a.out, "%-5d %-5s %-10s %7d %7d %s\n", e.ID, e.SyncType, statusLabel(e.Status), e.RecordsSynced, e.RecordsFailed, e.CompletedAt)
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *SyncAdapter) printResult(r *primary.SyncResult) {
	mark := okMark()
	switch r.Status {
	case primary.SyncStatusPartial, primary.SyncStatusCancelled:
		mark = warnMark()
	case primary.SyncStatusFailed:
		mark = failMark()
	}

	fmt.Fprintf(a.out, "%s %s %s: %d synced, %d failed", mark, r.Type, statusLabel(r.Status), r.Synced, r.Failed)
	if r.Deferred > 0 {
		fmt.Fprintf(a.out, ", %d deferred", r.Deferred)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(a.out, ", %d skipped", r.Skipped)
	}
	fmt.Fprintln(a.out)

	for _, key := range sortedKeys(r.Details) {
		fmt.Fprintf(a.out, "  %-20s %d\n", key, r.Details[key])
	}
	for _, e := range r.Errors {
		if e.TableName != "" {
			fmt.Fprintf(a.out, "  %s %s %s %s: %s\n", failMark(), e.Operation, e.TableName, e.RecordID, e.Message)
		} else {
			fmt.Fprintf(a.out, "  %s %s\n", failMark(), e.Message)
		}
	}
}

func statusLabel(status string) string {
	switch status {
	case primary.SyncStatusSuccess:
		return color.New(color.FgGreen).Sprint(status)
	case primary.SyncStatusFailed:
		return color.New(color.FgRed).Sprint(status)
	default:
		return color.New(color.FgYellow).Sprint(status)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PrintRecovery reports a database that was moved aside at startup.
func PrintRecovery(out io.Writer, r *config.Recovery) {
	if r == nil {
		return
	}
	warn := color.New(color.FgYellow, color.Bold)
	fmt.Fprintf(out, "%s The local store was reset: %s\n", warn.Sprint("WARNING"), r.Reason)
	fmt.Fprintf(out, "  previous database moved to %s\n", r.MovedTo)
	fmt.Fprintln(out, "  unsynced changes in it were not carried over")
}
