package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/pensa/output"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add or list comments on an issue",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <issue-id> <text...>",
	Short: "Add a comment to an issue",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		c, err := newClient().AddComment(cmd.Context(), args[0], text)
		if err != nil {
			return err
		}
		return output.WriteJSON(os.Stdout, c)
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list <issue-id>",
	Short: "List an issue's comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comments, err := newClient().ListComments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output.WriteJSON(os.Stdout, comments)
	},
}

func init() {
	commentCmd.AddCommand(commentAddCmd, commentListCmd)
	rootCmd.AddCommand(commentCmd)
}
