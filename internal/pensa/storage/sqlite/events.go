package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// appendEvent records one audit row. actor/detail may be nil.
func appendEvent(ctx context.Context, tx *sql.Tx, issueID, eventType string, actor, detail *string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO events (issue_id, event_type, actor, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		issueID, eventType, actor, detail, at.UTC().Format(time.RFC3339Nano))
	return err
}

// IssueHistory returns events newest-first, ties broken by sequence
// descending (the autoincrement id already provides a stable order
// that correlates with insertion time, so a single ORDER BY suffices).
func (d *DB) IssueHistory(ctx context.Context, id string) ([]types.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, issue_id, event_type, actor, detail, created_at FROM events WHERE issue_id = ? ORDER BY id DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var e types.Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.IssueID, &e.EventType, &e.Actor, &e.Detail, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
