// Package output renders Pensa CLI results either as JSON (for
// scripting and agent consumption) or as styled human-readable text,
// mirroring the teacher's own --json/human duality in cmd/bd.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// Mode picks JSON vs human rendering.
type Mode int

const (
	Human Mode = iota
	JSON
)

// DefaultMode returns JSON when stdout is not a terminal (scripts,
// pipes, agent tool calls), Human otherwise -- the same TTY-detection
// default the teacher's CLI applies before deciding whether to color
// its tables.
func DefaultMode(w io.Writer) Mode {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return Human
	}
	return JSON
}

var (
	priorityStyle = lipgloss.NewStyle().Bold(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
)

// WriteJSON writes v as pretty-printed JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderIssueTable prints a compact human table of issues.
func RenderIssueTable(w io.Writer, issues []types.Issue) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-10s %-6s %-12s %-8s %s", "ID", "PRI", "STATUS", "TYPE", "TITLE")))
	for _, iss := range issues {
		fmt.Fprintf(w, "%-10s %-6s %-12s %-8s %s\n",
			iss.ID,
			priorityStyle.Render(string(iss.Priority)),
			statusStyle.Render(string(iss.Status)),
			string(iss.IssueType),
			iss.Title)
	}
}

// RenderIssueDetail prints one issue with its deps and comments,
// rendering the description through glamour the way the teacher
// renders issue bodies and commit messages in its own human-mode CLI.
func RenderIssueDetail(w io.Writer, detail *types.IssueDetail) {
	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(detail.ID), detail.Title)
	fmt.Fprintf(w, "status=%s priority=%s type=%s\n", detail.Status, detail.Priority, detail.IssueType)
	if detail.Description != nil && *detail.Description != "" {
		rendered, err := glamour.Render(*detail.Description, "dark")
		if err != nil {
			fmt.Fprintln(w, *detail.Description)
		} else {
			fmt.Fprint(w, rendered)
		}
	}
	if len(detail.Deps) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Depends on:"))
		for _, d := range detail.Deps {
			fmt.Fprintf(w, "  - %s %s (%s)\n", d.ID, d.Title, d.Status)
		}
	}
	if len(detail.Comments) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Comments:"))
		for _, c := range detail.Comments {
			fmt.Fprintf(w, "  [%s] %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.Actor, c.Text)
		}
	}
}

// RenderStatus prints the per-type open/in_progress/closed breakdown.
func RenderStatus(w io.Writer, entries []types.StatusEntry) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-8s %6s %6s %6s", "TYPE", "OPEN", "WIP", "CLOSED")))
	for _, e := range entries {
		fmt.Fprintf(w, "%-8s %6d %6d %6d\n", e.IssueType, e.Open, e.InProgress, e.Closed)
	}
}

// RenderFindings prints doctor findings.
func RenderFindings(w io.Writer, findings []types.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "no issues found")
		return
	}
	for _, f := range findings {
		status := "unfixed"
		if f.Fixed {
			status = "fixed"
		}
		fmt.Fprintf(w, "[%s] %s (%s)\n", f.Check, f.Message, status)
		if len(f.IDs) > 0 {
			fmt.Fprintln(w, "  "+strings.Join(f.IDs, ", "))
		}
	}
}
