package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/orchestrate/scaffold"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold .pensa/, .sgf/, and specs/ in the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := scaffold.Init(projectDir()); err != nil {
			return err
		}
		fmt.Println("initialized springfield project in", projectDir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
