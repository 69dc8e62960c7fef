package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/fieldnotes/springfield/internal/pensa/output"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue resolves a natural-language or RFC3339 deadline string
// ("tomorrow", "next friday", "2026-08-01T00:00:00Z") relative to now.
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	r, err := dueParser.Parse(s, time.Now())
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("could not parse due date %q", s)
	}
	return &r.Time, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func renderIssue(iss *types.Issue) {
	if outMode() == output.JSON {
		output.WriteJSON(os.Stdout, iss)
		return
	}
	output.RenderIssueTable(os.Stdout, []types.Issue{*iss})
}

var (
	createType        string
	createPriority    string
	createDescription string
	createSpec        string
	createFixes       string
	createAssignee    string
	createDeps        []string
	createDue         string
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := parseDue(createDue)
		if err != nil {
			return err
		}
		params := types.CreateIssueParams{
			Title:       args[0],
			IssueType:   types.IssueType(createType),
			Priority:    types.Priority(createPriority),
			Description: strPtr(createDescription),
			Spec:        strPtr(createSpec),
			Fixes:       strPtr(createFixes),
			Assignee:    strPtr(createAssignee),
			Deps:        createDeps,
			DueAt:       due,
		}
		iss, err := newClient().CreateIssue(cmd.Context(), params)
		if err != nil {
			return err
		}
		renderIssue(iss)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one issue with its deps and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := newClient().GetIssue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outMode() == output.JSON {
			return output.WriteJSON(os.Stdout, detail)
		}
		output.RenderIssueDetail(os.Stdout, detail)
		return nil
	},
}

var (
	updateTitle       string
	updateDescription string
	updatePriority    string
	updateStatus      string
	updateAssignee    string
	updateSpec        string
	updateFixes       string
	updateDue         string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Patch an issue's fields directly, bypassing the claim state machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		id := args[0]
		body := map[string]any{}
		if updateTitle != "" {
			body["title"] = updateTitle
		}
		if updateDescription != "" {
			body["description"] = updateDescription
		}
		if updatePriority != "" {
			body["priority"] = updatePriority
		}
		if updateStatus != "" {
			body["status"] = updateStatus
		}
		if updateAssignee != "" {
			body["assignee"] = updateAssignee
		}
		if updateSpec != "" {
			body["spec"] = updateSpec
		}
		if updateFixes != "" {
			body["fixes"] = updateFixes
		}
		if updateDue != "" {
			due, err := parseDue(updateDue)
			if err != nil {
				return err
			}
			body["due_at"] = due.Format(time.RFC3339)
		}
		iss, err := c.UpdateIssueRaw(cmd.Context(), id, body)
		if err != nil {
			return err
		}
		renderIssue(iss)
		return nil
	},
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an issue (requires --force if it has dependents or comments)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteIssue(cmd.Context(), args[0], deleteForce); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim <id>",
	Short: "Atomically claim an open issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iss, err := newClient().ClaimIssue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderIssue(iss)
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Release a claimed issue back to open",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iss, err := newClient().ReleaseIssue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderIssue(iss)
		return nil
	},
}

var (
	closeReason string
	closeForce  bool
)

var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close an issue, cascading to anything it fixes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iss, err := newClient().CloseIssue(cmd.Context(), args[0], strPtr(closeReason), closeForce)
		if err != nil {
			return err
		}
		renderIssue(iss)
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <id>",
	Short: "Reopen a closed issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iss, err := newClient().ReopenIssue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderIssue(iss)
		return nil
	},
}

var (
	listStatus    string
	listPriority  string
	listAssignee  string
	listIssueType string
	listSpec      string
	listSort      string
	listLimit     int
)

func listFiltersFromFlags() types.ListFilters {
	var f types.ListFilters
	if listStatus != "" {
		st := types.Status(listStatus)
		f.Status = &st
	}
	if listPriority != "" {
		p := types.Priority(listPriority)
		f.Priority = &p
	}
	if listAssignee != "" {
		f.Assignee = &listAssignee
	}
	if listIssueType != "" {
		it := types.IssueType(listIssueType)
		f.IssueType = &it
	}
	if listSpec != "" {
		f.Spec = &listSpec
	}
	f.Sort = listSort
	f.Limit = listLimit
	return f
}

func renderIssueList(issues []types.Issue) error {
	if outMode() == output.JSON {
		return output.WriteJSON(os.Stdout, issues)
	}
	output.RenderIssueTable(os.Stdout, issues)
	return nil
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	addListFlagsExceptStatus(cmd)
}

// addListFlagsExceptStatus registers the same filter flags as
// addListFlags, minus --status, for commands (like "ready") whose
// status is already fixed by the operation itself.
func addListFlagsExceptStatus(cmd *cobra.Command) {
	cmd.Flags().StringVar(&listPriority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&listAssignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&listIssueType, "type", "", "filter by issue type")
	cmd.Flags().StringVar(&listSpec, "spec", "", "filter by spec")
	cmd.Flags().StringVar(&listSort, "sort", "", "sort order")
	cmd.Flags().IntVar(&listLimit, "limit", 0, "limit result count")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues matching filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := newClient().ListIssues(cmd.Context(), listFiltersFromFlags())
		if err != nil {
			return err
		}
		return renderIssueList(issues)
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List open, unblocked, non-bug issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := newClient().ReadyIssues(cmd.Context(), listFiltersFromFlags())
		if err != nil {
			return err
		}
		return renderIssueList(issues)
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List issues with at least one unresolved dependency",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := newClient().BlockedIssues(cmd.Context())
		if err != nil {
			return err
		}
		return renderIssueList(issues)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search issue titles and descriptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := newClient().SearchIssues(cmd.Context(), args[0], listFiltersFromFlags())
		if err != nil {
			return err
		}
		return renderIssueList(issues)
	},
}

var countBy []string

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count issues matching filters, optionally grouped",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := newClient().Count(cmd.Context(), listFiltersFromFlags(), countBy)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-type open/in-progress/closed breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newClient().ProjectStatus(cmd.Context())
		if err != nil {
			return err
		}
		if outMode() == output.JSON {
			return output.WriteJSON(os.Stdout, entries)
		}
		output.RenderStatus(os.Stdout, entries)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show an issue's audit event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := newClient().IssueHistory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output.WriteJSON(os.Stdout, events)
	},
}

func init() {
	createCmd.Flags().StringVar(&createType, "type", "task", "issue type: bug, task, test, chore")
	createCmd.Flags().StringVar(&createPriority, "priority", "p2", "priority: p0-p3")
	createCmd.Flags().StringVar(&createDescription, "description", "", "long-form description (markdown)")
	createCmd.Flags().StringVar(&createSpec, "spec", "", "spec reference")
	createCmd.Flags().StringVar(&createFixes, "fixes", "", "id of a bug this issue fixes, auto-closed on close")
	createCmd.Flags().StringVar(&createAssignee, "assignee", "", "initial assignee")
	createCmd.Flags().StringSliceVar(&createDeps, "deps", nil, "ids this issue depends on")
	createCmd.Flags().StringVar(&createDue, "due", "", "deadline, natural language or RFC3339 (e.g. \"next friday\")")

	updateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "new description")
	updateCmd.Flags().StringVar(&updatePriority, "priority", "", "new priority")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "new status (bypasses the claim state machine)")
	updateCmd.Flags().StringVar(&updateAssignee, "assignee", "", "new assignee")
	updateCmd.Flags().StringVar(&updateSpec, "spec", "", "new spec reference")
	updateCmd.Flags().StringVar(&updateFixes, "fixes", "", "new fixes reference")
	updateCmd.Flags().StringVar(&updateDue, "due", "", "new deadline, natural language or RFC3339")

	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "delete even if the issue has dependents or comments")

	closeCmd.Flags().StringVar(&closeReason, "reason", "", "close reason")
	closeCmd.Flags().BoolVar(&closeForce, "force", false, "close even if already closed")

	for _, c := range []*cobra.Command{listCmd, searchCmd} {
		addListFlags(c)
	}
	addListFlagsExceptStatus(readyCmd)
	countCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	countCmd.Flags().StringVar(&listPriority, "priority", "", "filter by priority")
	countCmd.Flags().StringVar(&listIssueType, "type", "", "filter by issue type")
	countCmd.Flags().StringSliceVar(&countBy, "by", nil, "group by fields, e.g. --by status,priority")

	rootCmd.AddCommand(createCmd, getCmd, updateCmd, deleteCmd, claimCmd, releaseCmd,
		closeCmd, reopenCmd, listCmd, readyCmd, blockedCmd, searchCmd, countCmd, statusCmd, historyCmd)
}
