package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ctxutil"
	"github.com/example/gradebook/internal/ports/primary"
)

// SubjectCmd returns the subject command group.
func SubjectCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage subjects and section assignments",
	}

	cmd.AddCommand(subjectCreateCmd(rt))
	cmd.AddCommand(subjectDeleteCmd(rt))
	cmd.AddCommand(subjectListCmd(rt))
	cmd.AddCommand(subjectAssignCmd(rt))
	cmd.AddCommand(subjectUnassignCmd(rt))

	return cmd
}

func subjectCreateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [code] [name]",
		Short: "Create a subject",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")

			return a.RosterAdapter(cmd.OutOrStdout()).CreateSubject(cmd.Context(), primary.SubjectRequest{
				Code:        args[0],
				Name:        args[1],
				Description: description,
			})
		},
	}

	cmd.Flags().StringP("description", "d", "", "subject description")

	return cmd
}

func subjectDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [subject-id]",
		Short: "Delete a subject with its items, scores and grades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).DeleteSubject(cmd.Context(), args[0])
		},
	}
}

func subjectListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).ListSubjects(cmd.Context())
		},
	}
}

func subjectAssignCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign [subject-id] [section-id]",
		Short: "Assign a subject to a section",
		Long:  `Assign a subject to a section. The teacher defaults to the signed-in user.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			teacher, _ := cmd.Flags().GetString("teacher")
			if teacher == "" {
				teacher = ctxutil.ActorFromContext(ctx)
			}
			schoolYear, _ := cmd.Flags().GetString("school-year")

			return a.RosterAdapter(cmd.OutOrStdout()).Assign(ctx, primary.AssignRequest{
				SubjectID:  args[0],
				SectionID:  args[1],
				TeacherID:  teacher,
				SchoolYear: schoolYear,
			})
		},
	}

	cmd.Flags().String("teacher", "", "teacher user ID")
	cmd.Flags().String("school-year", "", "school year, e.g. 2024-2025")

	return cmd
}

func subjectUnassignCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign [assignment-id]",
		Short: "Remove a subject assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).Unassign(cmd.Context(), args[0])
		},
	}
}
