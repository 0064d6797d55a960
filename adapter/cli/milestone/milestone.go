package milestone

import (
	"github.com/spf13/cobra"
)

// Cmd is the milestone command group
var Cmd = &cobra.Command{
	Use:   "milestone",
	Short: "Manage milestones",
	Long:  `Create, list, show, and delete milestone hierarchies.`,
}

// SubCmd is the sub-milestone command group
var SubCmd = &cobra.Command{
	Use:     "submilestone",
	Aliases: []string{"sub"},
	Short:   "Manage sub-milestones",
	Long:    `Add and remove weighted sub-milestones under a milestone.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(deleteCmd)

	SubCmd.AddCommand(addSubCmd)
	SubCmd.AddCommand(deleteSubCmd)
}
