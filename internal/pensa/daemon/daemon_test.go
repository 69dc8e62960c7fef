package daemon_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

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

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}

func TestCreateAndGetIssue(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts, "/issues", map[string]any{
		"title":      "fix the parser",
		"issue_type": "bug",
		"priority":   "p1",
	})
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	var created types.Issue
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "fix the parser", created.Title)
	require.Equal(t, types.Open, created.Status)

	getResp, err := http.Get(ts.URL + "/issues/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, 200, getResp.StatusCode)

	var detail types.IssueDetail
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&detail))
	require.Equal(t, created.ID, detail.ID)
}

func TestGetIssueNotFoundMapsTo404(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/issues/iss-does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode)
}

func TestClaimThenDoubleClaimConflicts(t *testing.T) {
	ts := newTestServer(t)

	created := createIssue(t, ts, "claim me", "bug", "p2")

	claimResp, err := http.Post(ts.URL+"/issues/"+created.ID+"/claim", "application/json", bytes.NewReader([]byte(`{"actor":"alice"}`)))
	require.NoError(t, err)
	defer claimResp.Body.Close()
	require.Equal(t, 200, claimResp.StatusCode)

	secondClaim, err := http.Post(ts.URL+"/issues/"+created.ID+"/claim", "application/json", bytes.NewReader([]byte(`{"actor":"bob"}`)))
	require.NoError(t, err)
	defer secondClaim.Body.Close()
	require.Equal(t, 409, secondClaim.StatusCode)
}

func TestDeleteWithoutForceOnIssueWithDependentConflicts(t *testing.T) {
	ts := newTestServer(t)

	dependency := createIssue(t, ts, "base work", "task", "p2")
	dependent := createIssue(t, ts, "depends on base", "task", "p2")

	addDepResp := postJSON(t, ts, "/deps", map[string]any{
		"issue_id":      dependent.ID,
		"depends_on_id": dependency.ID,
	})
	defer addDepResp.Body.Close()
	require.Equal(t, 201, addDepResp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/issues/"+dependency.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, 409, delResp.StatusCode)
}

func createIssue(t *testing.T, ts *httptest.Server, title, issueType, priority string) types.Issue {
	t.Helper()
	resp := postJSON(t, ts, "/issues", map[string]any{
		"title":      title,
		"issue_type": issueType,
		"priority":   priority,
	})
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)
	var iss types.Issue
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&iss))
	return iss
}
