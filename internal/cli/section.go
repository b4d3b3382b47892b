package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gradebook/internal/ports/primary"
)

// SectionCmd returns the section command group.
func SectionCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "section",
		Short: "Manage class sections",
		Long:  `Create, list and manage the class sections kept in the local store.`,
	}

	cmd.AddCommand(sectionCreateCmd(rt))
	cmd.AddCommand(sectionUpdateCmd(rt))
	cmd.AddCommand(sectionDeleteCmd(rt))
	cmd.AddCommand(sectionListCmd(rt))
	cmd.AddCommand(sectionShowCmd(rt))

	return cmd
}

func sectionCreateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			gradeLevel, _ := cmd.Flags().GetString("grade-level")
			schoolYear, _ := cmd.Flags().GetString("school-year")
			adviser, _ := cmd.Flags().GetString("adviser")

			return a.RosterAdapter(cmd.OutOrStdout()).CreateSection(cmd.Context(), primary.SectionRequest{
				Name:       args[0],
				GradeLevel: gradeLevel,
				SchoolYear: schoolYear,
				Adviser:    adviser,
			})
		},
	}

	cmd.Flags().String("grade-level", "", "grade level, e.g. 7")
	cmd.Flags().String("school-year", "", "school year, e.g. 2024-2025")
	cmd.Flags().String("adviser", "", "adviser name")

	return cmd
}

func sectionUpdateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [section-id]",
		Short: "Update a section",
		Long:  `Update the fields given as flags; the others keep their current values.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			current, err := a.Sections.GetSection(ctx, args[0])
			if err != nil {
				return err
			}

			req := primary.SectionRequest{
				Name:       current.Name,
				GradeLevel: current.GradeLevel,
				SchoolYear: current.SchoolYear,
				Adviser:    current.Adviser,
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name, _ = flags.GetString("name")
			}
			if flags.Changed("grade-level") {
				req.GradeLevel, _ = flags.GetString("grade-level")
			}
			if flags.Changed("school-year") {
				req.SchoolYear, _ = flags.GetString("school-year")
			}
			if flags.Changed("adviser") {
				req.Adviser, _ = flags.GetString("adviser")
			}

			return a.RosterAdapter(cmd.OutOrStdout()).UpdateSection(ctx, args[0], req)
		},
	}

	cmd.Flags().String("name", "", "section name")
	cmd.Flags().String("grade-level", "", "grade level")
	cmd.Flags().String("school-year", "", "school year")
	cmd.Flags().String("adviser", "", "adviser name")

	return cmd
}

func sectionDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [section-id]",
		Short: "Delete a section with its enrollments, assignments and items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).DeleteSection(cmd.Context(), args[0])
		},
	}
}

func sectionListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).ListSections(cmd.Context())
		},
	}
}

func sectionShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show [section-id]",
		Short: "Show a section and its students",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.App()
			if err != nil {
				return err
			}
			return a.RosterAdapter(cmd.OutOrStdout()).ShowSection(cmd.Context(), args[0])
		},
	}
}
