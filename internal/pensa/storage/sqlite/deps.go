package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// AddDep inserts a "child depends on parent" edge after checking that
// doing so would not close a cycle: it searches forward from parent
// through existing depends_on edges, and if child turns up reachable,
// parent already (transitively) depends on child, so child->parent
// would complete a loop.
func (d *DB) AddDep(ctx context.Context, child, parent, actor string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if child == parent {
		return perr.Internal(fmt.Errorf("self-dependency: %s", child))
	}
	if _, err := d.getIssue(ctx, child); err != nil {
		return err
	}
	if _, err := d.getIssue(ctx, parent); err != nil {
		return err
	}

	reachable, err := d.reachableFrom(ctx, parent)
	if err != nil {
		return perr.Internal(err)
	}
	if reachable[child] {
		return perr.CycleDetected()
	}

	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return perr.Internal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO deps (issue_id, depends_on_id) VALUES (?, ?)`, child, parent)
	if err != nil {
		return perr.Internal(fmt.Errorf("insert dep: %w", err))
	}

	detail := parent
	if err := appendEvent(ctx, tx, child, types.EventDepAdded, nullableActor(actor), &detail, now); err != nil {
		return perr.Internal(err)
	}
	return tx.Commit()
}

// reachableFrom returns the set of ids reachable from start by
// following depends_on edges forward (start depends on X, X depends on
// Y, ...), including start itself.
func (d *DB) reachableFrom(ctx context.Context, start string) (map[string]bool, error) {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rows, err := d.conn.QueryContext(ctx, `SELECT depends_on_id FROM deps WHERE issue_id = ?`, cur)
		if err != nil {
			return nil, err
		}
		var next []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			next = append(next, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, id := range next {
			if !seen[id] {
				seen[id] = true
				stack = append(stack, id)
			}
		}
	}
	return seen, nil
}

// RemoveDep deletes one edge, failing NotFound if it was absent.
func (d *DB) RemoveDep(ctx context.Context, child, parent, actor string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return perr.Internal(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM deps WHERE issue_id = ? AND depends_on_id = ?`, child, parent)
	if err != nil {
		return perr.Internal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return perr.Internal(err)
	}
	if n == 0 {
		return perr.NotFound("dep", fmt.Sprintf("%s->%s", child, parent))
	}

	detail := parent
	if err := appendEvent(ctx, tx, child, types.EventDepRemoved, nullableActor(actor), &detail, now); err != nil {
		return perr.Internal(err)
	}
	return tx.Commit()
}

func (d *DB) listDeps(ctx context.Context, issueID string) ([]types.Issue, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+prefixedColumns("i")+` FROM deps d JOIN issues i ON i.id = d.depends_on_id WHERE d.issue_id = ? ORDER BY i.created_at ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *iss)
	}
	return out, rows.Err()
}

func prefixedColumns(alias string) string {
	cols := []string{"id", "title", "description", "issue_type", "status", "priority", "spec", "fixes", "assignee", "due_at", "created_at", "updated_at", "closed_at", "close_reason"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

// ListDeps returns id's direct dep-parents.
func (d *DB) ListDeps(ctx context.Context, issueID string) ([]types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, issueID); err != nil {
		return nil, err
	}
	deps, err := d.listDeps(ctx, issueID)
	if err != nil {
		return nil, perr.Internal(err)
	}
	return deps, nil
}

// DepTree walks the dep graph breadth-first from id and returns each
// node once, at the shallowest depth it was first reached. DepTree
// always walks "up" (forward edges, the transitive parents of id);
// DepTreeDirection also accepts "down" (reverse edges, the transitive
// dependents of id).
func (d *DB) DepTree(ctx context.Context, id string) ([]types.DepTreeNode, error) {
	return d.depTree(ctx, id, "up")
}

// DepTreeDirection is the fuller form used by the HTTP layer, which
// needs to pass direction through from the query string.
func (d *DB) DepTreeDirection(ctx context.Context, id, direction string) ([]types.DepTreeNode, error) {
	return d.depTree(ctx, id, direction)
}

func (d *DB) depTree(ctx context.Context, id, direction string) ([]types.DepTreeNode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, id); err != nil {
		return nil, err
	}

	query := `SELECT depends_on_id FROM deps WHERE issue_id = ?`
	if direction == "down" {
		query = `SELECT issue_id FROM deps WHERE depends_on_id = ?`
	}

	type queued struct {
		id    string
		depth int
	}
	visited := map[string]int{id: 0}
	queue := []queued{{id, 0}}
	var order []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		rows, err := d.conn.QueryContext(ctx, query, cur.id)
		if err != nil {
			return nil, perr.Internal(err)
		}
		var next []string
		for rows.Next() {
			var nid string
			if err := rows.Scan(&nid); err != nil {
				rows.Close()
				return nil, perr.Internal(err)
			}
			next = append(next, nid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, perr.Internal(err)
		}

		for _, nid := range next {
			if _, ok := visited[nid]; !ok {
				visited[nid] = cur.depth + 1
				order = append(order, nid)
				queue = append(queue, queued{nid, cur.depth + 1})
			}
		}
	}

	out := make([]types.DepTreeNode, 0, len(order))
	for _, nid := range order {
		iss, err := d.getIssue(ctx, nid)
		if err != nil {
			return nil, err
		}
		out = append(out, types.DepTreeNode{
			ID: iss.ID, Title: iss.Title, Status: iss.Status,
			Priority: iss.Priority, IssueType: iss.IssueType, Depth: visited[nid],
		})
	}
	return out, nil
}

// DetectCycles is a diagnostic white/grey/black DFS over the full
// deps edge set, terminating on any graph state including one
// containing cycles introduced by means other than AddDep (e.g. a
// raw ImportJSONL).
func (d *DB) DetectCycles(ctx context.Context) ([][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detectCycles(ctx)
}

const (
	white = 0
	grey  = 1
	black = 2
)

func (d *DB) detectCycles(ctx context.Context) ([][]string, error) {
	adj, err := d.loadAdjacency(ctx)
	if err != nil {
		return nil, perr.Internal(err)
	}

	color := map[string]int{}
	var cycles [][]string
	var stack []string

	var visit func(n string)
	visit = func(n string) {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range adj[n] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				// found a back edge into the stack: extract the cycle.
				start := -1
				for i, s := range stack {
					if s == next {
						start = i
						break
					}
				}
				if start >= 0 {
					cycle := append([]string{}, stack[start:]...)
					cycle = append(cycle, next)
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}

	for n := range adj {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles, nil
}

func (d *DB) loadAdjacency(ctx context.Context) (map[string][]string, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT issue_id, depends_on_id FROM deps`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adj := map[string][]string{}
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		if _, ok := adj[a]; !ok {
			adj[a] = nil
		}
		adj[a] = append(adj[a], b)
		if _, ok := adj[b]; !ok {
			adj[b] = nil
		}
	}
	return adj, rows.Err()
}

// ReadyIssues returns open non-bug issues with no non-closed
// dep-parent, additionally narrowed by filters (status is ignored:
// readiness already fixes status to open).
func (d *DB) ReadyIssues(ctx context.Context, filters types.ListFilters) ([]types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	filters.Status = nil
	extraWhere, args := buildFilterWhere(filters)
	extraWhere = strings.Replace(extraWhere, "WHERE ", "AND ", 1)

	query := `
		SELECT ` + issueColumns + ` FROM issues i
		WHERE i.status = 'open' AND i.issue_type != 'bug'
		AND NOT EXISTS (
			SELECT 1 FROM deps dp JOIN issues p ON p.id = dp.depends_on_id
			WHERE dp.issue_id = i.id AND p.status != 'closed'
		)
		` + extraWhere + `
		ORDER BY ` + sortClause(filters.Sort)
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filters.Limit)
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, perr.Internal(err)
		}
		out = append(out, *iss)
	}
	return out, rows.Err()
}

// BlockedIssues returns issues with at least one non-closed dep-parent.
func (d *DB) BlockedIssues(ctx context.Context) ([]types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT `+issueColumns+` FROM issues i
		WHERE EXISTS (
			SELECT 1 FROM deps dp JOIN issues p ON p.id = dp.depends_on_id
			WHERE dp.issue_id = i.id AND p.status != 'closed'
		)
		ORDER BY i.priority ASC, i.created_at ASC`)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer rows.Close()

	var out []types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, perr.Internal(err)
		}
		out = append(out, *iss)
	}
	return out, rows.Err()
}
