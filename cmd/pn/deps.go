package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/pensa/output"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependency edges between issues",
}

var depAddCmd = &cobra.Command{
	Use:   "add <issue-id> <depends-on-id>",
	Short: "Add a dependency edge (rejected if it would form a cycle)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().AddDep(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s now depends on %s\n", args[0], args[1])
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <issue-id> <depends-on-id>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().RemoveDep(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s no longer depends on %s\n", args[0], args[1])
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <issue-id>",
	Short: "List an issue's direct dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newClient().ListDeps(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderIssueList(deps)
	},
}

var depTreeDirection string

var depTreeCmd = &cobra.Command{
	Use:   "tree <issue-id>",
	Short: "Walk an issue's dependency tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := newClient().DepTree(cmd.Context(), args[0], depTreeDirection)
		if err != nil {
			return err
		}
		if outMode() == output.JSON {
			return output.WriteJSON(os.Stdout, nodes)
		}
		for _, n := range nodes {
			fmt.Printf("%s%s  %s [%s]\n", indent(n.Depth), n.ID, n.Title, n.Status)
		}
		return nil
	},
}

func indent(depth int) string {
	s := ""
	for i := 0; i < depth; i++ {
		s += "  "
	}
	return s
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect dependency cycles project-wide",
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, err := newClient().DetectCycles(cmd.Context())
		if err != nil {
			return err
		}
		if outMode() == output.JSON || len(cycles) == 0 {
			return output.WriteJSON(os.Stdout, cycles)
		}
		for _, c := range cycles {
			fmt.Println(joinArrow(c))
		}
		return nil
	},
}

func joinArrow(ids []string) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += id
	}
	return s
}

func init() {
	depTreeCmd.Flags().StringVar(&depTreeDirection, "direction", "up", "up (what this depends on) or down (what depends on this)")
	depCmd.AddCommand(depAddCmd, depRemoveCmd, depListCmd, depTreeCmd, depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}
