package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// ClaimIssue atomically transitions open -> in_progress. The
// conditional UPDATE (status = 'open' in the WHERE clause) combined
// with the engine-wide mutex is what makes exactly one of N concurrent
// claims win: every caller serialises on mu, and only the first one to
// run sees status still "open".
func (d *DB) ClaimIssue(ctx context.Context, id, actor string) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	iss, err := d.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if iss.Status != types.Open {
		holder := "unknown"
		if iss.Assignee != nil {
			holder = *iss.Assignee
		}
		return nil, perr.AlreadyClaimed(id, holder)
	}

	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE issues SET status = ?, assignee = ?, updated_at = ? WHERE id = ? AND status = ?`,
		types.InProgress, actor, timeStr(now), id, types.Open)
	if err != nil {
		return nil, perr.Internal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, perr.Internal(err)
	}
	if n == 0 {
		return nil, perr.AlreadyClaimed(id, "unknown")
	}

	if err := appendEvent(ctx, tx, id, types.EventClaimed, nullableActor(actor), nil, now); err != nil {
		return nil, perr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, perr.Internal(err)
	}

	return d.getIssue(ctx, id)
}

// ReleaseIssue returns an issue to open regardless of current status,
// idempotently.
func (d *DB) ReleaseIssue(ctx context.Context, id, actor string) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, id); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE issues SET status = ?, assignee = NULL, updated_at = ? WHERE id = ?`,
		types.Open, timeStr(now), id)
	if err != nil {
		return nil, perr.Internal(err)
	}
	if err := appendEvent(ctx, tx, id, types.EventReleased, nullableActor(actor), nil, now); err != nil {
		return nil, perr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, perr.Internal(err)
	}

	return d.getIssue(ctx, id)
}

// CloseIssue closes id and, if it has a fixes target, unconditionally
// closes that target too -- even overwriting an already-closed
// closed_at/close_reason. This is surprising but deliberate: it models
// "last close wins" for a root cause patched by a chain of fixes.
func (d *DB) CloseIssue(ctx context.Context, id, actor string, reason *string, force bool) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	iss, err := d.getIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if iss.Status == types.Closed && !force {
		return nil, perr.InvalidStatusTransition("closed", "closed")
	}

	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer tx.Rollback()

	if err := closeOne(ctx, tx, id, reason, actor, now); err != nil {
		return nil, perr.Internal(err)
	}

	if iss.Fixes != nil {
		fixReason := fmt.Sprintf("fixed by %s", id)
		if err := closeOne(ctx, tx, *iss.Fixes, &fixReason, actor, now); err != nil {
			return nil, perr.Internal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, perr.Internal(err)
	}

	return d.getIssue(ctx, id)
}

// ReopenIssue clears closed_at/close_reason and returns the issue to
// open from any status, idempotently.
func (d *DB) ReopenIssue(ctx context.Context, id, actor string) (*types.Issue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.getIssue(ctx, id); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, perr.Internal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE issues SET status = ?, closed_at = NULL, close_reason = NULL, updated_at = ? WHERE id = ?`,
		types.Open, timeStr(now), id)
	if err != nil {
		return nil, perr.Internal(err)
	}
	if err := appendEvent(ctx, tx, id, types.EventReopened, nullableActor(actor), nil, now); err != nil {
		return nil, perr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, perr.Internal(err)
	}

	return d.getIssue(ctx, id)
}

func closeOne(ctx context.Context, tx *sql.Tx, id string, reason *string, actor string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE issues SET status = ?, closed_at = ?, close_reason = ?, updated_at = ? WHERE id = ?`,
		types.Closed, timeStr(now), nullStr(reason), timeStr(now), id)
	if err != nil {
		return fmt.Errorf("close issue %s: %w", id, err)
	}
	return appendEvent(ctx, tx, id, types.EventClosed, nullableActor(actor), nil, now)
}
