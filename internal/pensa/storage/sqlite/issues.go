package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/idgen"
	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

const issueColumns = `id, title, description, issue_type, status, priority, spec, fixes, assignee, due_at, created_at, updated_at, closed_at, close_reason`

type issueScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row issueScanner) (*types.Issue, error) {
	var iss types.Issue
	var description, spec, fixes, assignee, dueAt, closedAt, closeReason sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&iss.ID, &iss.Title, &description, &iss.IssueType, &iss.Status, &iss.Priority,
		&spec, &fixes, &assignee, &dueAt, &createdAt, &updatedAt, &closedAt, &closeReason)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		iss.Description = &description.String
	}
	if spec.Valid {
		iss.Spec = &spec.String
	}
	if fixes.Valid {
		iss.Fixes = &fixes.String
	}
	if assignee.Valid {
		iss.Assignee = &assignee.String
	}
	if dueAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, dueAt.String)
		if err != nil {
			return nil, err
		}
		iss.DueAt = &t
	}
	if closedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, closedAt.String)
		if err != nil {
			return nil, err
		}
		iss.ClosedAt = &t
	}
	if closeReason.Valid {
		iss.CloseReason = &closeReason.String
	}

	iss.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	iss.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, err
	}
	return &iss, nil
}

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTimeStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeStr(*t)
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// CreateIssue inserts a new issue plus its initial dep edges. No cycle
// check is performed on the initial deps: a freshly generated id cannot
// already appear as somebody's parent, so the new issue can only be a
// source of a cycle, not close one, the day it's created. Doctor is the
// backstop for catching a cycle introduced some other way.
func (d *DB) CreateIssue(ctx context.Context, params types.CreateIssueParams) (*types.Issue, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, perr.Internal(fmt.Errorf("title is required"))
	}
	if params.IssueType == "" {
		params.IssueType = types.Task
	}
	if !params.IssueType.Valid() {
		return nil, perr.Internal(fmt.Errorf("invalid issue type: %q", params.IssueType))
	}
	if params.Priority == "" {
		params.Priority = types.P2
	}
	if !params.Priority.Valid() {
		return nil, perr.Internal(fmt.Errorf("invalid priority: %q", params.Priority))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := idgen.Generate(ctx, d.conn)
	if err != nil {
		return nil, perr.Internal(err)
	}
	now := time.Now().UTC()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO issues (id, title, description, issue_type, status, priority, spec, fixes, assignee, due_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, params.Title, nullStr(params.Description), params.IssueType, types.Open, params.Priority,
		nullStr(params.Spec), nullStr(params.Fixes), nullStr(params.Assignee), nullTimeStr(params.DueAt),
		timeStr(now), timeStr(now))
	if err != nil {
		return nil, perr.Internal(fmt.Errorf("insert issue: %w", err))
	}

	for _, parent := range params.Deps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO deps (issue_id, depends_on_id) VALUES (?, ?)`, id, parent); err != nil {
			return nil, perr.Internal(fmt.Errorf("insert dep on create: %w", err))
		}
	}

	actor := nullableActor(params.Actor)
	if err := appendEvent(ctx, tx, id, types.EventCreated, actor, nil, now); err != nil {
		return nil, perr.Internal(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, perr.Internal(err)
	}

	return &types.Issue{
		ID: id, Title: params.Title, Description: params.Description, IssueType: params.IssueType,
		Status: types.Open, Priority: params.Priority, Spec: params.Spec, Fixes: params.Fixes,
		Assignee: params.Assignee, DueAt: params.DueAt, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func nullableActor(actor string) *string {
	if actor == "" {
		return nil
	}
	return &actor
}

func (d *DB) getIssue(ctx context.Context, id string) (*types.Issue, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	iss, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, perr.NotFound("issue", id)
	}
	if err != nil {
		return nil, perr.Internal(err)
	}
	return iss, nil
}

// GetIssue returns the issue plus its direct dep-parents and comments.
func (d *DB) GetIssue(ctx context.Context, id string) (*types.IssueDetail, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	iss, err := d.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	deps, err := d.listDeps(ctx, id)
	if err != nil {
		return nil, perr.Internal(err)
	}
	comments, err := d.listComments(ctx, id)
	if err != nil {
		return nil, perr.Internal(err)
	}

	return &types.IssueDetail{Issue: *iss, Deps: deps, Comments: comments}, nil
}

// UpdateIssue applies a sparse patch directly, bypassing the claim/
// release/close/reopen state machine by design: this is the hole
// diagnostic tooling and the import path rely on.
func (d *DB) UpdateIssue(ctx context.Context, id string, fields types.UpdateFields, actor string) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, id); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []any{}
	applied := map[string]any{}

	if fields.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *fields.Title)
		applied["title"] = *fields.Title
	}
	if fields.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *fields.Description)
		applied["description"] = *fields.Description
	}
	if fields.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *fields.Priority)
		applied["priority"] = *fields.Priority
	}
	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *fields.Status)
		applied["status"] = *fields.Status
	}
	if fields.Assignee != nil {
		if *fields.Assignee == "" {
			sets = append(sets, "assignee = NULL")
		} else {
			sets = append(sets, "assignee = ?")
			args = append(args, *fields.Assignee)
		}
		applied["assignee"] = *fields.Assignee
	}
	if fields.Spec != nil {
		sets = append(sets, "spec = ?")
		args = append(args, *fields.Spec)
		applied["spec"] = *fields.Spec
	}
	if fields.Fixes != nil {
		sets = append(sets, "fixes = ?")
		args = append(args, *fields.Fixes)
		applied["fixes"] = *fields.Fixes
	}
	if fields.DueAt != nil {
		sets = append(sets, "due_at = ?")
		args = append(args, timeStr(*fields.DueAt))
		applied["due_at"] = *fields.DueAt
	}

	now := time.Now().UTC()
	sets = append(sets, "updated_at = ?")
	args = append(args, timeStr(now))
	args = append(args, id)

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, perr.Internal(fmt.Errorf("update issue: %w", err))
	}

	detailJSON, err := json.Marshal(applied)
	if err != nil {
		return nil, perr.Internal(err)
	}
	detail := string(detailJSON)
	if err := appendEvent(ctx, tx, id, types.EventUpdated, nullableActor(actor), &detail, now); err != nil {
		return nil, perr.Internal(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, perr.Internal(err)
	}

	return d.getIssue(ctx, id)
}

// DeleteIssue cascades dep edges, comments and events then the issue
// row. Without force, refuses when the issue has dependents or
// comments.
func (d *DB) DeleteIssue(ctx context.Context, id string, force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, id); err != nil {
		return err
	}

	if !force {
		var dependents, comments int
		if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM deps WHERE depends_on_id = ?`, id).Scan(&dependents); err != nil {
			return perr.Internal(err)
		}
		if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE issue_id = ?`, id).Scan(&comments); err != nil {
			return perr.Internal(err)
		}
		if dependents > 0 || comments > 0 {
			return perr.DeleteRequiresForce(id)
		}
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return perr.Internal(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM deps WHERE issue_id = ? OR depends_on_id = ?`, id, id); err != nil {
		return perr.Internal(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE issue_id = ?`, id); err != nil {
		return perr.Internal(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE issue_id = ?`, id); err != nil {
		return perr.Internal(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id); err != nil {
		return perr.Internal(err)
	}

	return tx.Commit()
}

func sortClause(sortKey string) string {
	switch sortKey {
	case "created_at":
		return "created_at ASC"
	case "updated_at":
		return "updated_at ASC"
	case "status":
		return "status ASC, created_at ASC"
	case "title":
		return "title ASC"
	default:
		// default and "priority": p0 first, then creation order.
		return "priority ASC, created_at ASC"
	}
}

func buildFilterWhere(filters types.ListFilters) (string, []any) {
	var clauses []string
	var args []any
	if filters.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *filters.Status)
	}
	if filters.Priority != nil {
		clauses = append(clauses, "priority = ?")
		args = append(args, *filters.Priority)
	}
	if filters.Assignee != nil {
		clauses = append(clauses, "assignee = ?")
		args = append(args, *filters.Assignee)
	}
	if filters.IssueType != nil {
		clauses = append(clauses, "issue_type = ?")
		args = append(args, *filters.IssueType)
	}
	if filters.Spec != nil {
		clauses = append(clauses, "spec = ?")
		args = append(args, *filters.Spec)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return where, args
}

func (d *DB) queryIssues(ctx context.Context, where string, args []any, orderBy string, limit int) ([]types.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues ` + where + ` ORDER BY ` + orderBy
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := d.conn.QueryContext(ctx, query, args...)
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

func (d *DB) ListIssues(ctx context.Context, filters types.ListFilters) ([]types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	where, args := buildFilterWhere(filters)
	issues, err := d.queryIssues(ctx, where, args, sortClause(filters.Sort), filters.Limit)
	if err != nil {
		return nil, perr.Internal(err)
	}
	return issues, nil
}

// SearchIssues does a case-insensitive substring match on title or
// description, combined with any other filters given.
func (d *DB) SearchIssues(ctx context.Context, query string, filters types.ListFilters) ([]types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	where, args := buildFilterWhere(filters)
	needle := "%" + strings.ToLower(query) + "%"
	searchClause := "(LOWER(title) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)"
	if where == "" {
		where = "WHERE " + searchClause
	} else {
		where += " AND " + searchClause
	}
	args = append(args, needle, needle)

	issues, err := d.queryIssues(ctx, where, args, sortClause(filters.Sort), filters.Limit)
	if err != nil {
		return nil, perr.Internal(err)
	}
	return issues, nil
}

// CountIssues returns a plain non-closed total when groupBy is empty,
// otherwise groups by a "/"-joined key over the requested columns.
func (d *DB) CountIssues(ctx context.Context, filters types.ListFilters, groupBy string) (*types.CountResult, *types.GroupedCountResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	where, args := buildFilterWhere(filters)

	if groupBy == "" {
		statusClause := "status != 'closed'"
		if where == "" {
			where = "WHERE " + statusClause
		} else {
			where += " AND " + statusClause
		}
		var count int64
		err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues `+where, args...).Scan(&count)
		if err != nil {
			return nil, nil, perr.Internal(err)
		}
		return &types.CountResult{Count: count}, nil, nil
	}

	cols := strings.Split(groupBy, ",")
	for i, c := range cols {
		cols[i] = strings.TrimSpace(c)
	}
	rows, err := d.conn.QueryContext(ctx, `SELECT `+strings.Join(cols, ", ")+`, COUNT(*) FROM issues `+where+` GROUP BY `+strings.Join(cols, ", "), args...)
	if err != nil {
		return nil, nil, perr.Internal(err)
	}
	defer rows.Close()

	var groups []types.CountGroup
	var total int64
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		scanArgs := make([]any, len(cols)+1)
		for i := range vals {
			scanArgs[i] = &vals[i]
		}
		var count int64
		scanArgs[len(cols)] = &count
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, perr.Internal(err)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = v.String
		}
		groups = append(groups, types.CountGroup{Key: strings.Join(parts, "/"), Count: count})
		total += count
	}
	return nil, &types.GroupedCountResult{Total: total, Groups: groups}, rows.Err()
}

// ProjectStatus returns an open/in_progress/closed triple per issue type.
func (d *DB) ProjectStatus(ctx context.Context) ([]types.StatusEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.QueryContext(ctx,
		`SELECT issue_type, status, COUNT(*) FROM issues GROUP BY issue_type, status`)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer rows.Close()

	byType := map[types.IssueType]*types.StatusEntry{}
	var order []types.IssueType
	for rows.Next() {
		var t types.IssueType
		var status types.Status
		var count int64
		if err := rows.Scan(&t, &status, &count); err != nil {
			return nil, perr.Internal(err)
		}
		entry, ok := byType[t]
		if !ok {
			entry = &types.StatusEntry{IssueType: t}
			byType[t] = entry
			order = append(order, t)
		}
		switch status {
		case types.Open:
			entry.Open = count
		case types.InProgress:
			entry.InProgress = count
		case types.Closed:
			entry.Closed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Internal(err)
	}

	out := make([]types.StatusEntry, 0, len(order))
	for _, t := range order {
		out = append(out, *byType[t])
	}
	return out, nil
}
