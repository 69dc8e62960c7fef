package sqlite

import (
	"context"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/idgen"
	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// AddComment appends an immutable remark. Comments are not logged as
// a separate event type -- the event taxonomy is the eight kinds the
// state machine and dep graph produce, and a comment's own row is
// already the audit trail for itself.
func (d *DB) AddComment(ctx context.Context, issueID, actor, text string) (*types.Comment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, issueID); err != nil {
		return nil, err
	}

	id, err := idgen.Generate(ctx, d.conn)
	if err != nil {
		return nil, perr.Internal(err)
	}
	now := time.Now().UTC()

	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO comments (id, issue_id, actor, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, issueID, actor, text, timeStr(now))
	if err != nil {
		return nil, perr.Internal(err)
	}

	return &types.Comment{ID: id, IssueID: issueID, Actor: actor, Text: text, CreatedAt: now}, nil
}

func (d *DB) listComments(ctx context.Context, issueID string) ([]types.Comment, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, issue_id, actor, text, created_at FROM comments WHERE issue_id = ? ORDER BY created_at ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Comment
	for rows.Next() {
		var c types.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Actor, &c.Text, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) ListComments(ctx context.Context, issueID string) ([]types.Comment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, issueID); err != nil {
		return nil, err
	}
	comments, err := d.listComments(ctx, issueID)
	if err != nil {
		return nil, perr.Internal(err)
	}
	return comments, nil
}
