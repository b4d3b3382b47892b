package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/gradebook/internal/ctxutil"
	"github.com/example/gradebook/internal/ports/primary"
)

var errNotSignedIn = errors.New("not signed in; run 'gradebook auth login' first")

// AuthCmd returns the account and session command group.
func AuthCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage local accounts and the signed-in session",
	}

	cmd.AddCommand(authUserCreateCmd(rt))
	cmd.AddCommand(authLoginCmd(rt))
	cmd.AddCommand(authLogoutCmd(rt))
	cmd.AddCommand(authPasswdCmd(rt))
	cmd.AddCommand(authAuditCmd(rt))

	return cmd
}

var (
	isTerminalFunc   = term.IsTerminal
	readPasswordFunc = term.ReadPassword // mockable
)

// passwordFlag returns the named flag when set. Otherwise it prompts on
// stderr and reads without echo from a terminal, or one line from in when
// stdin is piped.
func passwordFlag(cmd *cobra.Command, name string, in *bufio.Reader) (string, error) {
	password, _ := cmd.Flags().GetString(name)
	if password != "" {
		return password, nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", strings.ReplaceAll(name, "-", " "))

	if f, ok := cmd.InOrStdin().(*os.File); ok && isTerminalFunc(int(f.Fd())) {
		pwd, err := readPasswordFunc(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return string(pwd), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func authUserCreateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user-create [email]",
		Short: "Create a local account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			password, err := passwordFlag(cmd, "password", bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			req := primary.CreateUserRequest{Email: args[0], Password: password}
			req.FirstName, _ = flags.GetString("first")
			req.LastName, _ = flags.GetString("last")
			req.Role, _ = flags.GetString("role")

			return a.AuthAdapter(cmd.OutOrStdout()).CreateUser(cmd.Context(), req)
		},
	}

	cmd.Flags().String("password", "", "password (read from stdin when empty)")
	cmd.Flags().String("first", "", "first name")
	cmd.Flags().String("last", "", "last name")
	cmd.Flags().String("role", "teacher", "teacher, adviser or admin")
	cmd.MarkFlagRequired("first")
	cmd.MarkFlagRequired("last")

	return cmd
}

func authLoginCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			password, err := passwordFlag(cmd, "password", bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return err
			}
			remember, _ := cmd.Flags().GetBool("remember")

			ctx := cmd.Context()
			session, err := a.AuthAdapter(cmd.OutOrStdout()).Login(ctx, primary.LoginRequest{
				Email:    args[0],
				Password: password,
				Remember: remember,
			})
			if err != nil {
				return err
			}
			return a.SaveSession(ctx, session.Token)
		},
	}

	cmd.Flags().String("password", "", "password (read from stdin when empty)")
	cmd.Flags().Bool("remember", false, "cache the password for offline sign-in")

	return cmd
}

func authLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the signed-in session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			token, err := a.SessionToken(ctx)
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := a.AuthAdapter(cmd.OutOrStdout()).Logout(ctx, token); err != nil {
				return err
			}
			return a.ClearSession(ctx)
		},
	}
}

func authPasswdCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			userID := ctxutil.ActorFromContext(ctx)
			if userID == "" {
				return errNotSignedIn
			}
			in := bufio.NewReader(cmd.InOrStdin())
			current, err := passwordFlag(cmd, "current-password", in)
			if err != nil {
				return err
			}
			next, err := passwordFlag(cmd, "new-password", in)
			if err != nil {
				return err
			}

			return a.AuthAdapter(cmd.OutOrStdout()).ChangePassword(ctx, primary.ChangePasswordRequest{
				UserID:          userID,
				CurrentPassword: current,
				NewPassword:     next,
			})
		},
	}

	cmd.Flags().String("current-password", "", "current password (read from stdin when empty)")
	cmd.Flags().String("new-password", "", "new password (read from stdin when empty)")

	return cmd
}

func authAuditCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the credential audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			limit, _ := cmd.Flags().GetInt("limit")
			return a.AuthAdapter(cmd.OutOrStdout()).AuditLog(cmd.Context(), primary.AuditLogFilters{UserID: userID, Limit: limit})
		},
	}

	cmd.Flags().String("user", "", "filter by user ID")
	cmd.Flags().IntP("limit", "n", 50, "number of entries")

	return cmd
}
