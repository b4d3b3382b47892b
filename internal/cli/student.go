package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ports/primary"
)

// StudentCmd returns the student command group.
func StudentCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Manage students and enrollment",
	}

	cmd.AddCommand(studentCreateCmd(rt))
	cmd.AddCommand(studentUpdateCmd(rt))
	cmd.AddCommand(studentDeleteCmd(rt))
	cmd.AddCommand(studentListCmd(rt))
	cmd.AddCommand(studentEnrollCmd(rt))
	cmd.AddCommand(studentUnenrollCmd(rt))

	return cmd
}

func studentFlags(cmd *cobra.Command) {
	cmd.Flags().String("lrn", "", "12-digit learner reference number")
	cmd.Flags().String("first", "", "first name")
	cmd.Flags().String("middle", "", "middle name")
	cmd.Flags().String("last", "", "last name")
	cmd.Flags().String("gender", "", "M or F")
	cmd.Flags().String("birth-date", "", "birth date, YYYY-MM-DD")
}

func studentCreateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var req primary.StudentRequest
			req.LRN, _ = flags.GetString("lrn")
			req.FirstName, _ = flags.GetString("first")
			req.MiddleName, _ = flags.GetString("middle")
			req.LastName, _ = flags.GetString("last")
			req.Gender, _ = flags.GetString("gender")
			req.BirthDate, _ = flags.GetString("birth-date")

			return a.RosterAdapter(cmd.OutOrStdout()).CreateStudent(cmd.Context(), req)
		},
	}

	studentFlags(cmd)
	cmd.MarkFlagRequired("first")
	cmd.MarkFlagRequired("last")

	return cmd
}

func studentUpdateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [student-id]",
		Short: "Update a student",
		Long:  `Update the fields given as flags; the others keep their current values.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			current, err := a.Students.GetStudent(ctx, args[0])
			if err != nil {
				return err
			}

			req := primary.StudentRequest{
				LRN:        current.LRN,
				FirstName:  current.FirstName,
				MiddleName: current.MiddleName,
				LastName:   current.LastName,
				Gender:     current.Gender,
				BirthDate:  current.BirthDate,
			}
			flags := cmd.Flags()
			for name, field := range map[string]*string{
				"lrn":        &req.LRN,
				"first":      &req.FirstName,
				"middle":     &req.MiddleName,
				"last":       &req.LastName,
				"gender":     &req.Gender,
				"birth-date": &req.BirthDate,
			} {
				if flags.Changed(name) {
					*field, _ = flags.GetString(name)
				}
			}

			return a.RosterAdapter(cmd.OutOrStdout()).UpdateStudent(ctx, args[0], req)
		},
	}

	studentFlags(cmd)

	return cmd
}

func studentDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [student-id]",
		Short: "Delete a student with enrollments, scores and grades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).DeleteStudent(cmd.Context(), args[0])
		},
	}
}

func studentListCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			sectionID, _ := cmd.Flags().GetString("section")
			search, _ := cmd.Flags().GetString("search")

			return a.RosterAdapter(cmd.OutOrStdout()).ListStudents(cmd.Context(), primary.StudentFilters{
				SectionID: sectionID,
				Search:    search,
			})
		},
	}

	cmd.Flags().String("section", "", "only students enrolled in this section")
	cmd.Flags().String("search", "", "match name or LRN")

	return cmd
}

func studentEnrollCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll [student-id] [section-id]",
		Short: "Enroll a student in a section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			schoolYear, _ := cmd.Flags().GetString("school-year")

			return a.RosterAdapter(cmd.OutOrStdout()).Enroll(cmd.Context(), primary.EnrollRequest{
				StudentID:  args[0],
				SectionID:  args[1],
				SchoolYear: schoolYear,
			})
		},
	}

	cmd.Flags().String("school-year", "", "school year, e.g. 2024-2025")

	return cmd
}

func studentUnenrollCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "unenroll [student-id] [section-id]",
		Short: "Remove a student from a section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).Unenroll(cmd.Context(), args[0], args[1])
		},
	}
}
