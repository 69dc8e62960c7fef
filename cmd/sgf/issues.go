package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/pensa/client"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Log a bug or run the issue-planning stage loop",
}

var issuesLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Interactively log a bug against the tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		var title, description, priority, issueType string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Title").Value(&title).Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}),
				huh.NewText().Title("Description").Value(&description),
				huh.NewSelect[string]().Title("Priority").
					Options(huh.NewOptions("p0", "p1", "p2", "p3")...).
					Value(&priority),
				huh.NewSelect[string]().Title("Type").
					Options(huh.NewOptions("bug", "task", "test", "chore")...).
					Value(&issueType),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}

		c := client.New("", client.ResolveActor(""))
		params := types.CreateIssueParams{
			Title:       title,
			IssueType:   types.IssueType(issueType),
			Priority:    types.Priority(priority),
			Description: strPtrOrNil(description),
		}
		iss, err := c.CreateIssue(cmd.Context(), params)
		if err != nil {
			return err
		}
		fmt.Println("logged", iss.ID, iss.Title)
		return nil
	},
}

var issuesPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run the issue-planning stage loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("issues-plan")
	},
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func init() {
	issuesCmd.AddCommand(issuesLogCmd, issuesPlanCmd)
	rootCmd.AddCommand(issuesCmd)
}
