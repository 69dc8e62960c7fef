// Package client is the blocking HTTP client `pn` uses to talk to the
// Tracker Service. There is no client-side timeout by design: the
// daemon is always local loopback, per spec.md §5.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// Client talks to one Tracker Service instance.
type Client struct {
	baseURL string
	actor   string
	http    *http.Client
}

// New builds a Client targeting baseURL (e.g. "http://127.0.0.1:7533").
// Reads PN_DAEMON if baseURL is empty.
func New(baseURL, actor string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PN_DAEMON")
	}
	if baseURL == "" {
		baseURL = "http://localhost:7533"
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), actor: actor, http: &http.Client{}}
}

// ResolveActor implements the CLI-side precedence: --actor flag ->
// PN_ACTOR env -> `git config user.name` -> USER env -> "unknown".
func ResolveActor(flagActor string) string {
	if flagActor != "" {
		return flagActor
	}
	if v := os.Getenv("PN_ACTOR"); v != "" {
		return v
	}
	if name := gitUserName(); name != "" {
		return name
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload := map[string]any{}
		if m, ok := body.(map[string]any); ok {
			payload = m
		} else {
			buf, err := json.Marshal(body)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(buf, &payload); err != nil {
				return err
			}
		}
		if c.actor != "" {
			if _, ok := payload["actor"]; !ok {
				payload["actor"] = c.actor
			}
		}
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.actor != "" {
		req.Header.Set("x-pensa-actor", c.actor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Internal(fmt.Errorf("daemon unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp perr.Response
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &clientError{status: resp.StatusCode, resp: errResp}
	}

	if out != nil && resp.StatusCode != 204 {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type clientError struct {
	status int
	resp   perr.Response
}

func (e *clientError) Error() string { return e.resp.Error }
func (e *clientError) Code() string  { return e.resp.Code }

func (c *Client) CreateIssue(ctx context.Context, params types.CreateIssueParams) (*types.Issue, error) {
	body := map[string]any{
		"title": params.Title, "issue_type": params.IssueType, "priority": params.Priority,
		"description": params.Description, "spec": params.Spec, "fixes": params.Fixes,
		"assignee": params.Assignee, "deps": params.Deps,
	}
	if params.DueAt != nil {
		body["due_at"] = params.DueAt.Format(time.RFC3339)
	}
	var iss types.Issue
	err := c.do(ctx, http.MethodPost, "/issues", nil, body, &iss)
	return &iss, err
}

func (c *Client) GetIssue(ctx context.Context, id string) (*types.IssueDetail, error) {
	var detail types.IssueDetail
	err := c.do(ctx, http.MethodGet, "/issues/"+id, nil, nil, &detail)
	return &detail, err
}

func (c *Client) ClaimIssue(ctx context.Context, id string) (*types.Issue, error) {
	var iss types.Issue
	err := c.do(ctx, http.MethodPost, "/issues/"+id+"/claim", nil, map[string]any{}, &iss)
	return &iss, err
}

func (c *Client) ReleaseIssue(ctx context.Context, id string) (*types.Issue, error) {
	var iss types.Issue
	err := c.do(ctx, http.MethodPost, "/issues/"+id+"/release", nil, nil, &iss)
	return &iss, err
}

func (c *Client) CloseIssue(ctx context.Context, id string, reason *string, force bool) (*types.Issue, error) {
	var iss types.Issue
	err := c.do(ctx, http.MethodPost, "/issues/"+id+"/close", nil, map[string]any{"reason": reason, "force": force}, &iss)
	return &iss, err
}

func (c *Client) ReopenIssue(ctx context.Context, id string) (*types.Issue, error) {
	var iss types.Issue
	err := c.do(ctx, http.MethodPost, "/issues/"+id+"/reopen", nil, map[string]any{}, &iss)
	return &iss, err
}

// UpdateIssueRaw patches an issue with a sparse body map, used by the
// CLI's `update` command which only sends flags the caller actually set.
func (c *Client) UpdateIssueRaw(ctx context.Context, id string, body map[string]any) (*types.Issue, error) {
	var iss types.Issue
	err := c.do(ctx, http.MethodPatch, "/issues/"+id, nil, body, &iss)
	return &iss, err
}

func (c *Client) DeleteIssue(ctx context.Context, id string, force bool) error {
	q := url.Values{}
	if force {
		q.Set("force", "true")
	}
	return c.do(ctx, http.MethodDelete, "/issues/"+id, q, nil, nil)
}

func (c *Client) ListIssues(ctx context.Context, filters types.ListFilters) ([]types.Issue, error) {
	var issues []types.Issue
	err := c.do(ctx, http.MethodGet, "/issues", filtersToQuery(filters), nil, &issues)
	return issues, err
}

func (c *Client) ReadyIssues(ctx context.Context, filters types.ListFilters) ([]types.Issue, error) {
	var issues []types.Issue
	err := c.do(ctx, http.MethodGet, "/issues/ready", filtersToQuery(filters), nil, &issues)
	return issues, err
}

func (c *Client) BlockedIssues(ctx context.Context) ([]types.Issue, error) {
	var issues []types.Issue
	err := c.do(ctx, http.MethodGet, "/issues/blocked", nil, nil, &issues)
	return issues, err
}

func (c *Client) SearchIssues(ctx context.Context, q string, filters types.ListFilters) ([]types.Issue, error) {
	query := filtersToQuery(filters)
	query.Set("q", q)
	var issues []types.Issue
	err := c.do(ctx, http.MethodGet, "/issues/search", query, nil, &issues)
	return issues, err
}

func (c *Client) ProjectStatus(ctx context.Context) ([]types.StatusEntry, error) {
	var entries []types.StatusEntry
	err := c.do(ctx, http.MethodGet, "/status", nil, nil, &entries)
	return entries, err
}

func (c *Client) IssueHistory(ctx context.Context, id string) ([]types.Event, error) {
	var events []types.Event
	err := c.do(ctx, http.MethodGet, "/issues/"+id+"/history", nil, nil, &events)
	return events, err
}

func (c *Client) AddDep(ctx context.Context, issueID, dependsOnID string) error {
	return c.do(ctx, http.MethodPost, "/deps", nil, map[string]any{"issue_id": issueID, "depends_on_id": dependsOnID}, nil)
}

func (c *Client) RemoveDep(ctx context.Context, issueID, dependsOnID string) error {
	return c.do(ctx, http.MethodDelete, "/deps", nil, map[string]any{"issue_id": issueID, "depends_on_id": dependsOnID}, nil)
}

func (c *Client) ListDeps(ctx context.Context, id string) ([]types.Issue, error) {
	var deps []types.Issue
	err := c.do(ctx, http.MethodGet, "/issues/"+id+"/deps", nil, nil, &deps)
	return deps, err
}

func (c *Client) DepTree(ctx context.Context, id, direction string) ([]types.DepTreeNode, error) {
	q := url.Values{}
	if direction != "" {
		q.Set("direction", direction)
	}
	var nodes []types.DepTreeNode
	err := c.do(ctx, http.MethodGet, "/issues/"+id+"/deps/tree", q, nil, &nodes)
	return nodes, err
}

func (c *Client) DetectCycles(ctx context.Context) ([][]string, error) {
	var cycles [][]string
	err := c.do(ctx, http.MethodGet, "/deps/cycles", nil, nil, &cycles)
	return cycles, err
}

func (c *Client) AddComment(ctx context.Context, issueID, text string) (*types.Comment, error) {
	var comment types.Comment
	err := c.do(ctx, http.MethodPost, "/issues/"+issueID+"/comments", nil, map[string]any{"text": text}, &comment)
	return &comment, err
}

func (c *Client) ListComments(ctx context.Context, issueID string) ([]types.Comment, error) {
	var comments []types.Comment
	err := c.do(ctx, http.MethodGet, "/issues/"+issueID+"/comments", nil, nil, &comments)
	return comments, err
}

func (c *Client) Export(ctx context.Context, dir string) (*types.ExportCounts, error) {
	var counts types.ExportCounts
	err := c.do(ctx, http.MethodPost, "/export", nil, map[string]any{"dir": dir}, &counts)
	return &counts, err
}

func (c *Client) Import(ctx context.Context, dir string) error {
	return c.do(ctx, http.MethodPost, "/import", nil, map[string]any{"dir": dir}, nil)
}

func (c *Client) Doctor(ctx context.Context, fix bool) ([]types.Finding, error) {
	q := url.Values{}
	if fix {
		q.Set("fix", "true")
	}
	var findings []types.Finding
	err := c.do(ctx, http.MethodPost, "/doctor", q, nil, &findings)
	return findings, err
}

// Count returns the raw /issues/count response, which is either a bare
// CountResult or a GroupedCountResult depending on the by_* params --
// left undecoded so callers can type-switch on shape.
func (c *Client) Count(ctx context.Context, filters types.ListFilters, groupBy []string) (json.RawMessage, error) {
	q := filtersToQuery(filters)
	for _, g := range groupBy {
		q.Set("by_"+g, "true")
	}
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/issues/count", q, nil, &raw)
	return raw, err
}

// Healthy reports whether the daemon answers /status with a 2xx.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func filtersToQuery(f types.ListFilters) url.Values {
	q := url.Values{}
	if f.Status != nil {
		q.Set("status", string(*f.Status))
	}
	if f.Priority != nil {
		q.Set("priority", string(*f.Priority))
	}
	if f.Assignee != nil {
		q.Set("assignee", *f.Assignee)
	}
	if f.IssueType != nil {
		q.Set("issue_type", string(*f.IssueType))
	}
	if f.Spec != nil {
		q.Set("spec", *f.Spec)
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	return q
}
