package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

func writeJSONL(path string, marshal func(enc *json.Encoder) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return marshal(enc)
}

// ExportJSONL writes the four newline-delimited JSON files under dir,
// each in a stable order (issues and comments by created_at, deps by
// issue_id then depends_on_id, events by id, all ascending), so a diff
// of the checked-in files reads naturally.
func (d *DB) ExportJSONL(ctx context.Context, dir string) (*types.ExportCounts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Internal(err)
	}

	issueCount, err := d.exportIssues(ctx, filepath.Join(dir, "issues.jsonl"))
	if err != nil {
		return nil, perr.Internal(err)
	}
	depCount, err := d.exportDeps(ctx, filepath.Join(dir, "deps.jsonl"))
	if err != nil {
		return nil, perr.Internal(err)
	}
	commentCount, err := d.exportComments(ctx, filepath.Join(dir, "comments.jsonl"))
	if err != nil {
		return nil, perr.Internal(err)
	}
	if err := d.exportEvents(ctx, filepath.Join(dir, "events.jsonl")); err != nil {
		return nil, perr.Internal(err)
	}

	return &types.ExportCounts{Status: "ok", Issues: issueCount, Deps: depCount, Comments: commentCount}, nil
}

func (d *DB) exportIssues(ctx context.Context, path string) (int, error) {
	count := 0
	err := writeJSONL(path, func(enc *json.Encoder) error {
		rows, err := d.conn.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY created_at ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			iss, err := scanIssue(rows)
			if err != nil {
				return err
			}
			if err := enc.Encode(iss); err != nil {
				return err
			}
			count++
		}
		return rows.Err()
	})
	return count, err
}

func (d *DB) exportDeps(ctx context.Context, path string) (int, error) {
	count := 0
	err := writeJSONL(path, func(enc *json.Encoder) error {
		rows, err := d.conn.QueryContext(ctx, `SELECT issue_id, depends_on_id FROM deps ORDER BY issue_id ASC, depends_on_id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var dep types.Dep
			if err := rows.Scan(&dep.IssueID, &dep.DependsOnID); err != nil {
				return err
			}
			if err := enc.Encode(dep); err != nil {
				return err
			}
			count++
		}
		return rows.Err()
	})
	return count, err
}

func (d *DB) exportComments(ctx context.Context, path string) (int, error) {
	count := 0
	err := writeJSONL(path, func(enc *json.Encoder) error {
		rows, err := d.conn.QueryContext(ctx, `SELECT id, issue_id, actor, text, created_at FROM comments ORDER BY created_at ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c types.Comment
			var createdAt string
			if err := rows.Scan(&c.ID, &c.IssueID, &c.Actor, &c.Text, &createdAt); err != nil {
				return err
			}
			if c.CreatedAt, err = parseTime(createdAt); err != nil {
				return err
			}
			if err := enc.Encode(c); err != nil {
				return err
			}
			count++
		}
		return rows.Err()
	})
	return count, err
}

func (d *DB) exportEvents(ctx context.Context, path string) error {
	return writeJSONL(path, func(enc *json.Encoder) error {
		rows, err := d.conn.QueryContext(ctx, `SELECT id, issue_id, event_type, actor, detail, created_at FROM events ORDER BY id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e types.Event
			var createdAt string
			if err := rows.Scan(&e.ID, &e.IssueID, &e.EventType, &e.Actor, &e.Detail, &createdAt); err != nil {
				return err
			}
			if e.CreatedAt, err = parseTime(createdAt); err != nil {
				return err
			}
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// ImportJSONL transactionally rebuilds the database from the four
// files under dir. The four files are fully parsed into memory first
// so a malformed file fails before anything is truncated.
func (d *DB) ImportJSONL(ctx context.Context, dir string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	issues, err := readJSONL[types.Issue](filepath.Join(dir, "issues.jsonl"))
	if err != nil {
		return perr.Internal(fmt.Errorf("read issues.jsonl: %w", err))
	}
	deps, err := readJSONL[types.Dep](filepath.Join(dir, "deps.jsonl"))
	if err != nil {
		return perr.Internal(fmt.Errorf("read deps.jsonl: %w", err))
	}
	comments, err := readJSONL[types.Comment](filepath.Join(dir, "comments.jsonl"))
	if err != nil {
		return perr.Internal(fmt.Errorf("read comments.jsonl: %w", err))
	}
	events, err := readJSONL[types.Event](filepath.Join(dir, "events.jsonl"))
	if err != nil {
		return perr.Internal(fmt.Errorf("read events.jsonl: %w", err))
	}

	ids := map[string]bool{}
	for _, iss := range issues {
		if iss.ID == "" || iss.Title == "" {
			return perr.Internal(fmt.Errorf("issue missing required field"))
		}
		ids[iss.ID] = true
	}
	for _, dep := range deps {
		if !ids[dep.IssueID] || !ids[dep.DependsOnID] {
			return perr.Internal(fmt.Errorf("dep references unknown issue: %s -> %s", dep.IssueID, dep.DependsOnID))
		}
	}
	for _, c := range comments {
		if !ids[c.IssueID] {
			return perr.Internal(fmt.Errorf("comment references unknown issue: %s", c.IssueID))
		}
	}
	for _, e := range events {
		if !ids[e.IssueID] {
			return perr.Internal(fmt.Errorf("event references unknown issue: %s", e.IssueID))
		}
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return perr.Internal(err)
	}
	defer tx.Rollback()

	for _, table := range []string{"events", "comments", "deps", "issues"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return perr.Internal(fmt.Errorf("truncate %s: %w", table, err))
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'events'`); err != nil {
		return perr.Internal(err)
	}

	for _, iss := range issues {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO issues (id, title, description, issue_type, status, priority, spec, fixes, assignee, due_at, created_at, updated_at, closed_at, close_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			iss.ID, iss.Title, nullStr(iss.Description), iss.IssueType, iss.Status, iss.Priority,
			nullStr(iss.Spec), nullStr(iss.Fixes), nullStr(iss.Assignee), nullTimeStr(iss.DueAt),
			timeStr(iss.CreatedAt), timeStr(iss.UpdatedAt), nullTimeStr(iss.ClosedAt), nullStr(iss.CloseReason))
		if err != nil {
			return perr.Internal(fmt.Errorf("insert issue %s: %w", iss.ID, err))
		}
	}
	for _, dep := range deps {
		if _, err := tx.ExecContext(ctx, `INSERT INTO deps (issue_id, depends_on_id) VALUES (?, ?)`, dep.IssueID, dep.DependsOnID); err != nil {
			return perr.Internal(fmt.Errorf("insert dep: %w", err))
		}
	}
	for _, c := range comments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO comments (id, issue_id, actor, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.IssueID, c.Actor, c.Text, timeStr(c.CreatedAt)); err != nil {
			return perr.Internal(fmt.Errorf("insert comment: %w", err))
		}
	}
	var maxEventID int64
	for _, e := range events {
		if _, err := tx.ExecContext(ctx, `INSERT INTO events (id, issue_id, event_type, actor, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.IssueID, e.EventType, e.Actor, e.Detail, timeStr(e.CreatedAt)); err != nil {
			return perr.Internal(fmt.Errorf("insert event: %w", err))
		}
		if e.ID > maxEventID {
			maxEventID = e.ID
		}
	}
	if maxEventID > 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sqlite_sequence (name, seq) VALUES ('events', ?)`, maxEventID); err != nil {
			return perr.Internal(fmt.Errorf("reseed event sequence: %w", err))
		}
	}

	return tx.Commit()
}

func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}
