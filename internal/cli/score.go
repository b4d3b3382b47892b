package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ports/primary"
)

// ScoreCmd returns the score command group.
func ScoreCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Record student scores",
	}

	cmd.AddCommand(scoreSaveCmd(rt))
	cmd.AddCommand(scoreListCmd(rt))

	return cmd
}

func scoreSaveCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [item-id] [student-id] [score]",
		Short: "Save a student's score on a grade item",
		Long:  `Save a score. A second save for the same student and item replaces the first.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			score, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[2], err)
			}
			remarks, _ := cmd.Flags().GetString("remarks")

			return a.GradeAdapter(cmd.OutOrStdout()).SaveScore(cmd.Context(), primary.SaveScoreRequest{
				GradeItemID: args[0],
				StudentID:   args[1],
				Score:       score,
				Remarks:     remarks,
			})
		},
	}

	cmd.Flags().StringP("remarks", "r", "", "remarks")

	return cmd
}

func scoreListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list [item-id]",
		Short: "List scores on a grade item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.GradeAdapter(cmd.OutOrStdout()).ListScores(cmd.Context(), args[0])
		},
	}
}
