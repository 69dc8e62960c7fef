package client_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/springfield/internal/pensa/client"
	"github.com/fieldnotes/springfield/internal/pensa/daemon"
	"github.com/fieldnotes/springfield/internal/pensa/storage/sqlite"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := daemon.New(store, "127.0.0.1:0", log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthyReflectsServerReachability(t *testing.T) {
	ts := newTestServer(t)
	c := client.New(ts.URL, "")
	require.True(t, c.Healthy(context.Background()))

	unreachable := client.New("http://127.0.0.1:1", "")
	require.False(t, unreachable.Healthy(context.Background()))
}

func TestCreateGetUpdateRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	c := client.New(ts.URL, "alice")
	ctx := context.Background()

	created, err := c.CreateIssue(ctx, types.CreateIssueParams{
		Title:     "fix the parser",
		IssueType: types.Bug,
		Priority:  types.P1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	detail, err := c.GetIssue(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, detail.ID)

	newTitle := "fix the parser properly"
	updated, err := c.UpdateIssueRaw(ctx, created.ID, map[string]any{"title": newTitle})
	require.NoError(t, err)
	require.Equal(t, newTitle, updated.Title)
}

func TestClaimConflictSurfacesAsErrorWithCode(t *testing.T) {
	ts := newTestServer(t)
	c := client.New(ts.URL, "")
	ctx := context.Background()

	created, err := c.CreateIssue(ctx, types.CreateIssueParams{Title: "claim me", IssueType: types.Task, Priority: types.P2})
	require.NoError(t, err)

	alice := client.New(ts.URL, "alice")
	_, err = alice.ClaimIssue(ctx, created.ID)
	require.NoError(t, err)

	bob := client.New(ts.URL, "bob")
	_, err = bob.ClaimIssue(ctx, created.ID)
	require.Error(t, err)

	type coder interface{ Code() string }
	var ce coder
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "already_claimed", ce.Code())
}

func TestAddDepAndDetectCycles(t *testing.T) {
	ts := newTestServer(t)
	c := client.New(ts.URL, "")
	ctx := context.Background()

	a, err := c.CreateIssue(ctx, types.CreateIssueParams{Title: "a", IssueType: types.Task, Priority: types.P2})
	require.NoError(t, err)
	b, err := c.CreateIssue(ctx, types.CreateIssueParams{Title: "b", IssueType: types.Task, Priority: types.P2})
	require.NoError(t, err)

	require.NoError(t, c.AddDep(ctx, a.ID, b.ID))

	deps, err := c.ListDeps(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, b.ID, deps[0].ID)

	cycles, err := c.DetectCycles(ctx)
	require.NoError(t, err)
	require.Empty(t, cycles)
}
