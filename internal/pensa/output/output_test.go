package output_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/springfield/internal/pensa/output"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

func TestWriteJSONPrettyPrints(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.WriteJSON(&buf, map[string]string{"id": "iss-1"}))
	require.Contains(t, buf.String(), "\"id\": \"iss-1\"")
}

func TestRenderIssueTableIncludesEachRow(t *testing.T) {
	var buf bytes.Buffer
	issues := []types.Issue{
		{ID: "iss-1", Title: "fix the thing", Priority: types.P1, Status: types.Open, IssueType: types.Bug},
		{ID: "iss-2", Title: "write docs", Priority: types.P3, Status: types.Closed, IssueType: types.Task},
	}
	output.RenderIssueTable(&buf, issues)

	out := buf.String()
	require.Contains(t, out, "iss-1")
	require.Contains(t, out, "fix the thing")
	require.Contains(t, out, "iss-2")
	require.Contains(t, out, "write docs")
}

func TestRenderIssueDetailIncludesDepsAndComments(t *testing.T) {
	var buf bytes.Buffer
	desc := "plain description, no markdown"
	detail := &types.IssueDetail{
		Issue: types.Issue{
			ID:          "iss-1",
			Title:       "fix the thing",
			Priority:    types.P1,
			Status:      types.Open,
			IssueType:   types.Bug,
			Description: &desc,
		},
		Deps: []types.Issue{
			{ID: "iss-0", Title: "blocking issue", Status: types.Open},
		},
		Comments: []types.Comment{
			{Actor: "alice", Text: "looking into it", CreatedAt: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)},
		},
	}
	output.RenderIssueDetail(&buf, detail)

	out := buf.String()
	require.Contains(t, out, "iss-1")
	require.Contains(t, out, "Depends on:")
	require.Contains(t, out, "iss-0")
	require.Contains(t, out, "Comments:")
	require.Contains(t, out, "alice")
	require.Contains(t, out, "looking into it")
}

func TestRenderStatusPrintsPerTypeBreakdown(t *testing.T) {
	var buf bytes.Buffer
	output.RenderStatus(&buf, []types.StatusEntry{
		{IssueType: types.Bug, Open: 3, InProgress: 1, Closed: 10},
	})
	out := buf.String()
	require.Contains(t, out, "bug")
	require.Contains(t, out, "3")
	require.Contains(t, out, "10")
}

func TestRenderFindingsEmptyReportsClean(t *testing.T) {
	var buf bytes.Buffer
	output.RenderFindings(&buf, nil)
	require.Contains(t, buf.String(), "no issues found")
}

func TestRenderFindingsListsChecksAndIDs(t *testing.T) {
	var buf bytes.Buffer
	output.RenderFindings(&buf, []types.Finding{
		{Check: "orphan_deps", Message: "dependency on missing issue", IDs: []string{"iss-9"}, Fixed: false},
		{Check: "stale_claim", Message: "claimed over 24h ago", IDs: []string{"iss-2"}, Fixed: true},
	})
	out := buf.String()
	require.Contains(t, out, "orphan_deps")
	require.Contains(t, out, "unfixed")
	require.Contains(t, out, "stale_claim")
	require.Contains(t, out, "fixed")
	require.Contains(t, out, "iss-9")
	require.Contains(t, out, "iss-2")
}
