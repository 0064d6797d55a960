package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var planOutput string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Import and export milestone plans as YAML",
}

var planImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Create a milestone hierarchy from a YAML plan",
	Long: `Create a whole milestone hierarchy from a YAML plan. Use - to read
from stdin. The plan is rejected as a whole if any weight budget is
exceeded.

Examples:
  keel plan import q3.yaml
  cat q3.yaml | keel plan import -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		data, err := readPlan(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := app.ImportPlanHandler.Handle(cmd.Context(), commands.ImportPlanCommand{
			Session: app.Session,
			Data:    data,
		})
		if err != nil {
			return fmt.Errorf("failed to import plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Milestone imported: %s\n", res.View.ID)
		PrintHierarchy(cmd.OutOrStdout(), res.View)
		return nil
	},
}

var planExportCmd = &cobra.Command{
	Use:   "export [milestone-id]",
	Short: "Write a milestone hierarchy as a YAML plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}
		milestoneID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid milestone ID: %w", err)
		}
		data, err := app.ExportPlanHandler.Handle(cmd.Context(), milestoneID)
		if err != nil {
			return fmt.Errorf("failed to export plan: %w", err)
		}
		if planOutput == "" || planOutput == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(planOutput, data, 0o644); err != nil {
			return fmt.Errorf("failed to write plan: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", planOutput)
		return nil
	},
}

func readPlan(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return data, nil
}

func init() {
	planExportCmd.Flags().StringVarP(&planOutput, "output", "o", "", "output file (default stdout)")
	planCmd.AddCommand(planImportCmd)
	planCmd.AddCommand(planExportCmd)
	rootCmd.AddCommand(planCmd)
}
