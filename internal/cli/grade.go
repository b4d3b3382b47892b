package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ports/primary"
)

// GradeCmd returns the quarterly grade command group.
func GradeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Compute and list quarterly grades",
	}

	cmd.AddCommand(gradeCalculateCmd(rt))
	cmd.AddCommand(gradeListCmd(rt))
	cmd.AddCommand(gradeTransmuteCmd(rt))

	return cmd
}

func gradeCalculateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calculate [student-id] [subject-id]",
		Short: "Compute a student's quarterly grade in a subject",
		Long: `Compute the quarterly grade from the stored scores and save it.
With --preview the grade is shown but not saved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			quarter, _ := cmd.Flags().GetInt("quarter")
			preview, _ := cmd.Flags().GetBool("preview")

			return a.GradeAdapter(cmd.OutOrStdout()).Calculate(cmd.Context(), primary.CalculateGradeRequest{
				StudentID: args[0],
				SubjectID: args[1],
				Quarter:   quarter,
			}, preview)
		},
	}

	cmd.Flags().IntP("quarter", "q", 0, "quarter, 1 to 4")
	cmd.Flags().Bool("preview", false, "compute without saving")
	cmd.MarkFlagRequired("quarter")

	return cmd
}

func gradeListCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved quarterly grades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var filters primary.QuarterlyGradeFilters
			filters.StudentID, _ = flags.GetString("student")
			filters.SubjectID, _ = flags.GetString("subject")
			filters.Quarter, _ = flags.GetInt("quarter")

			return a.GradeAdapter(cmd.OutOrStdout()).ListGrades(cmd.Context(), filters)
		},
	}

	cmd.Flags().String("student", "", "filter by student ID")
	cmd.Flags().String("subject", "", "filter by subject ID")
	cmd.Flags().IntP("quarter", "q", 0, "filter by quarter")

	return cmd
}

func gradeTransmuteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "transmute [initial-grade]",
		Short: "Convert an initial grade with the transmutation table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			initial, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid initial grade %q: %w", args[0], err)
			}
			a.GradeAdapter(cmd.OutOrStdout()).Transmute(initial)
			return nil
		},
	}
}
