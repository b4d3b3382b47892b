package cli

import (
	"github.com/spf13/cobra"
)

// IPCCmd returns the command that serves line-delimited JSON requests on
// stdin and answers on stdout.
func IPCCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ipc",
		Short: "Serve JSON requests on stdin for a desktop shell",
		Long: `Read one JSON request per line from stdin and write one JSON response per
line to stdout. Each request names an operation ("op") and carries its payload.

Example:
  echo '{"id":"1","op":"section.list"}' | gradebook ipc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.Dispatcher().Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
