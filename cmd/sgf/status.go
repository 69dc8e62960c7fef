package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/orchestrate/recovery"
	"github.com/fieldnotes/springfield/internal/pensa/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show running stage loops and the tracker's reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		pidFiles, err := recovery.ListPIDFiles(projectDir())
		if err != nil {
			return err
		}
		if len(pidFiles) == 0 {
			fmt.Println("no stage loops recorded")
		}
		for _, p := range pidFiles {
			alive := recovery.IsAlive(p.PID)
			fmt.Printf("%s\tpid=%d\talive=%t\n", p.LoopID, p.PID, alive)
		}

		c := client.New("", "")
		if c.Healthy(cmd.Context()) {
			fmt.Println("pensa daemon: reachable")
		} else {
			fmt.Println("pensa daemon: unreachable")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var templateCmd = &cobra.Command{
	Use:   "template <stage>",
	Short: "Print the raw (un-assembled) prompt template for a stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(projectDir(), ".sgf", "prompts", args[0]+".md")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
}
