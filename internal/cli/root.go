// Package cli holds the gradebook cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/gradebook/internal/adapters/cli"
	"github.com/example/gradebook/internal/config"
	"github.com/example/gradebook/internal/logging"
	"github.com/example/gradebook/internal/version"
	"github.com/example/gradebook/internal/wire"
)

// skipAppAnnotation marks commands that run without opening the store.
const skipAppAnnotation = "gradebook/skip-app"

// runtime carries the App from the root command to its subcommands.
type runtime struct {
	dataDir  string
	logLevel string
	logJSON  bool

	app *wire.App
}

// App returns the App built for the running command.
func (rt *runtime) App() (*wire.App, error) {
	if rt.app == nil {
		return nil, errors.New("application not initialized")
	}
	return rt.app, nil
}

// NewRootCmd builds the gradebook command tree.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:     "gradebook",
		Short:   "Offline gradebook with server sync",
		Version: version.String(),
		Long: `gradebook records sections, students, assessments and scores in a local
store, computes quarterly grades, and reconciles local changes with the school
server when a connection is available.

Data lives under $GRADEBOOK_DATA_DIR (default ~/.gradebook).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipAppAnnotation] == "true" || cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			return rt.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.app == nil {
				return nil
			}
			err := rt.app.Close()
			rt.app = nil
			return err
		},
	}

	root.PersistentFlags().StringVar(&rt.dataDir, "data-dir", "", "data root (default $GRADEBOOK_DATA_DIR or ~/.gradebook)")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&rt.logJSON, "log-json", false, "emit JSON logs")

	root.AddCommand(SectionCmd(rt))
	root.AddCommand(StudentCmd(rt))
	root.AddCommand(SubjectCmd(rt))
	root.AddCommand(ItemCmd(rt))
	root.AddCommand(ScoreCmd(rt))
	root.AddCommand(GradeCmd(rt))
	root.AddCommand(SyncCmd(rt))
	root.AddCommand(AuthCmd(rt))
	root.AddCommand(IPCCmd(rt))
	root.AddCommand(DoctorCmd(rt))
	root.AddCommand(VersionCmd())

	return root
}

// open loads settings, builds the App and attaches the signed-in session.
func (rt *runtime) open(cmd *cobra.Command) error {
	settings, err := config.Load(rt.dataDir)
	if err != nil {
		return err
	}
	if rt.logLevel != "" {
		settings.LogLevel = rt.logLevel
	}
	if rt.logJSON {
		settings.LogJSON = true
	}

	logger, err := logging.New(settings.LogLevel, settings.LogJSON)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := wire.New(ctx, settings, logger, wire.Options{})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	rt.app = a
	cliadapter.PrintRecovery(cmd.ErrOrStderr(), a.Recovery)

	ctx, err = a.WithSession(ctx)
	if err != nil {
		return err
	}
	cmd.SetContext(ctx)
	return nil
}

// VersionCmd prints the build version.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the gradebook version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipAppAnnotation: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
