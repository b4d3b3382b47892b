package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ports/primary"
)

// SyncCmd returns the sync command group.
func SyncCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local store with the school server",
		Long: `Local edits are queued in the outbox and replayed by push. Pull refreshes
the roster without touching rows that still have pending local edits.`,
	}

	cmd.AddCommand(syncConfigureCmd(rt))
	cmd.AddCommand(syncSeedCmd(rt))
	cmd.AddCommand(syncPushCmd(rt))
	cmd.AddCommand(syncPullCmd(rt))
	cmd.AddCommand(syncNowCmd(rt))
	cmd.AddCommand(syncStatusCmd(rt))
	cmd.AddCommand(syncHistoryCmd(rt))

	return cmd
}

func syncConfigureCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure [base-url]",
		Short: "Set the server address and token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			token, _ := cmd.Flags().GetString("token")
			return a.SyncAdapter(cmd.OutOrStdout()).Configure(cmd.Context(), args[0], token)
		},
	}

	cmd.Flags().String("token", "", "bearer token")

	return cmd
}

func syncSeedCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Download the server's roster into the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			baseURL, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			return a.SyncAdapter(cmd.OutOrStdout()).Seed(cmd.Context(), primary.SeedRequest{BaseURL: baseURL, Token: token})
		},
	}

	cmd.Flags().String("url", "", "server address (default: configured remote)")
	cmd.Flags().String("token", "", "bearer token (default: configured token)")

	return cmd
}

func syncPushCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Replay pending local changes to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			return a.SyncAdapter(cmd.OutOrStdout()).Push(cmd.Context(), force)
		},
	}

	cmd.Flags().Bool("force", false, "retry entries still waiting out their backoff")

	return cmd
}

func syncPullCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Refresh the roster from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.SyncAdapter(cmd.OutOrStdout()).Pull(cmd.Context())
		},
	}
}

func syncNowCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Push, then pull",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			return a.SyncAdapter(cmd.OutOrStdout()).Now(cmd.Context(), force)
		},
	}

	cmd.Flags().Bool("force", false, "retry entries still waiting out their backoff")

	return cmd
}

func syncStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending changes and the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.SyncAdapter(cmd.OutOrStdout()).Status(cmd.Context())
		},
	}
}

func syncHistoryCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return a.SyncAdapter(cmd.OutOrStdout()).History(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "number of passes to show")

	return cmd
}
