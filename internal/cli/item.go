package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ports/primary"
)

// ItemCmd returns the grade item command group.
func ItemCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage grade items (written works, performance tasks, quarterly assessments)",
	}

	cmd.AddCommand(itemCreateCmd(rt))
	cmd.AddCommand(itemDeleteCmd(rt))
	cmd.AddCommand(itemListCmd(rt))

	return cmd
}

func itemCreateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Create a grade item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			req := primary.GradeItemRequest{Title: args[0]}
			req.SubjectID, _ = flags.GetString("subject")
			req.SectionID, _ = flags.GetString("section")
			req.Category, _ = flags.GetString("category")
			req.Quarter, _ = flags.GetInt("quarter")
			req.MaxScore, _ = flags.GetFloat64("max")
			req.ItemDate, _ = flags.GetString("date")

			return a.GradeAdapter(cmd.OutOrStdout()).CreateItem(cmd.Context(), req)
		},
	}

	cmd.Flags().String("subject", "", "subject ID")
	cmd.Flags().String("section", "", "section ID")
	cmd.Flags().StringP("category", "c", "", "WW, PT or QA")
	cmd.Flags().IntP("quarter", "q", 0, "quarter, 1 to 4")
	cmd.Flags().Float64("max", 0, "highest possible score")
	cmd.Flags().String("date", "", "item date, YYYY-MM-DD")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("quarter")
	cmd.MarkFlagRequired("max")

	return cmd
}

func itemDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [item-id]",
		Short: "Delete a grade item with its scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.GradeAdapter(cmd.OutOrStdout()).DeleteItem(cmd.Context(), args[0])
		},
	}
}

func itemListCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grade items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var filters primary.GradeItemFilters
			filters.SubjectID, _ = flags.GetString("subject")
			filters.SectionID, _ = flags.GetString("section")
			filters.Quarter, _ = flags.GetInt("quarter")
			filters.Category, _ = flags.GetString("category")

			return a.GradeAdapter(cmd.OutOrStdout()).ListItems(cmd.Context(), filters)
		},
	}

	cmd.Flags().String("subject", "", "filter by subject ID")
	cmd.Flags().String("section", "", "filter by section ID")
	cmd.Flags().IntP("quarter", "q", 0, "filter by quarter")
	cmd.Flags().StringP("category", "c", "", "filter by category")

	return cmd
}
