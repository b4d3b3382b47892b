package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/version"
	"github.com/example/gradebook/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for local store validation
func DoctorCmd(rt *runtime) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the local store and sync state",
		Long: `Health check for the gradebook data root.

Validates:
- Data directory and bootstrap config
- Store integrity and schema version
- Encryption key
- Remote configuration and outbox backlog

Examples:
  gradebook doctor              # Run full health check
  gradebook doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			results := runChecks(cmd.Context(), a)

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				printChecks(cmd.OutOrStdout(), results, hasErrors)
			}

			if hasErrors {
				return fmt.Errorf("local store validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

func runChecks(ctx context.Context, a *wire.App) []CheckResult {
	return []CheckResult{
		checkDataDir(a),
		checkRecovery(a),
		checkIntegrity(ctx, a),
		checkSchema(ctx, a),
		checkEncryptionKey(ctx, a),
		checkRemote(ctx, a),
		checkOutbox(ctx, a),
		{Name: "Version", Status: "✓", Details: "  " + version.String()},
	}
}

func printChecks(out io.Writer, results []CheckResult, hasErrors bool) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Check              Status")
	fmt.Fprintln(out, "─────────────────────────")
	for _, r := range results {
		fmt.Fprintf(out, "%-18s %s\n", r.Name, r.Status)
	}
	fmt.Fprintln(out)

	hasDetails := false
	for _, r := range results {
		if r.Status != "✓" && r.Details != "" {
			if !hasDetails {
				fmt.Fprintln(out, "Details:")
				hasDetails = true
			}
			fmt.Fprintf(out, "\n%s:\n%s\n", r.Name, r.Details)
		}
	}

	if hasErrors {
		fmt.Fprintln(out, "\n⚠ Issues found.")
	} else {
		fmt.Fprintln(out, "All checks passed.")
	}
}

// checkDataDir validates the data root and its bootstrap config
func checkDataDir(a *wire.App) CheckResult {
	dir := a.Settings.DataDir
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return CheckResult{Name: "Data Directory", Status: "✗", Details: "  Missing: " + dir}
	}

	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return CheckResult{Name: "Data Directory", Status: "✗", Details: fmt.Sprintf("  %s is not writable: %v", dir, err)}
	}
	tmp.Close()
	os.Remove(tmp.Name())

	return CheckResult{Name: "Data Directory", Status: "✓", Details: "  " + filepath.Join(dir, a.Config.Database)}
}

// checkRecovery reports a store reset during this start
func checkRecovery(a *wire.App) CheckResult {
	if a.Recovery == nil {
		return CheckResult{Name: "Config", Status: "✓"}
	}
	return CheckResult{
		Name:    "Config",
		Status:  "⚠",
		Details: fmt.Sprintf("  Store was reset: %s\n  Previous store kept at %s", a.Recovery.Reason, a.Recovery.MovedTo),
	}
}

// checkIntegrity runs SQLite's integrity check
func checkIntegrity(ctx context.Context, a *wire.App) CheckResult {
	var result string
	if err := a.DB.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return CheckResult{Name: "Store Integrity", Status: "✗", Details: fmt.Sprintf("  %v", err)}
	}
	if result != "ok" {
		return CheckResult{Name: "Store Integrity", Status: "✗", Details: "  " + result}
	}
	return CheckResult{Name: "Store Integrity", Status: "✓"}
}

// checkSchema compares the applied schema version with the latest known one
func checkSchema(ctx context.Context, a *wire.App) CheckResult {
	current, err := db.CurrentVersion(ctx, a.DB)
	if err != nil {
		return CheckResult{Name: "Schema", Status: "✗", Details: fmt.Sprintf("  %v", err)}
	}
	if latest := db.LatestVersion(); current != latest {
		return CheckResult{
			Name:    "Schema",
			Status:  "✗",
			Details: fmt.Sprintf("  Store is at version %d, expected %d", current, latest),
		}
	}
	return CheckResult{Name: "Schema", Status: "✓"}
}

// checkEncryptionKey confirms the store carries its encryption key
func checkEncryptionKey(ctx context.Context, a *wire.App) CheckResult {
	_, err := db.GetSetting(ctx, a.DB, db.EncryptionKeySetting)
	if errors.Is(err, db.ErrSettingNotFound) {
		return CheckResult{Name: "Encryption Key", Status: "✗", Details: "  No encryption key in app_settings"}
	}
	if err != nil {
		return CheckResult{Name: "Encryption Key", Status: "✗", Details: fmt.Sprintf("  %v", err)}
	}
	return CheckResult{Name: "Encryption Key", Status: "✓"}
}

// checkRemote reports whether a server is configured
func checkRemote(ctx context.Context, a *wire.App) CheckResult {
	status, err := a.Sync.Status(ctx)
	if err != nil {
		return CheckResult{Name: "Remote", Status: "✗", Details: fmt.Sprintf("  %v", err)}
	}
	if !status.Configured {
		return CheckResult{
			Name:    "Remote",
			Status:  "⚠",
			Details: "  No server configured\n  Run: gradebook sync configure <url> --token <token>",
		}
	}
	return CheckResult{Name: "Remote", Status: "✓", Details: "  " + status.BaseURL}
}

// checkOutbox reports pending and failing outbox entries
func checkOutbox(ctx context.Context, a *wire.App) CheckResult {
	status, err := a.Sync.Status(ctx)
	if err != nil {
		return CheckResult{Name: "Outbox", Status: "✗", Details: fmt.Sprintf("  %v", err)}
	}
	if status.Failing > 0 {
		return CheckResult{
			Name:    "Outbox",
			Status:  "⚠",
			Details: fmt.Sprintf("  %d pending, %d failing\n  Run: gradebook sync push --force", status.Pending, status.Failing),
		}
	}
	return CheckResult{Name: "Outbox", Status: "✓", Details: fmt.Sprintf("  %d pending", status.Pending)}
}
