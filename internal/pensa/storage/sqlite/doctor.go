package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/types"
)

// staleClaimThreshold is how long an in_progress issue can go without
// a fresher claimed event before doctor flags it. 24h is an arbitrary
// but documented choice: long enough that a developer's overnight
// claim isn't flagged, short enough to catch an agent that crashed
// mid-run and left its issue claimed.
const staleClaimThreshold = 24 * time.Hour

// Doctor scans for stale claims, invariant violations, dangling fixes
// references, orphaned dep rows and cycles. With fix=true it applies
// every safe remediation except cycle repair, which has no safe
// automatic fix and is always report-only.
func (d *DB) Doctor(ctx context.Context, fix bool) ([]types.Finding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var findings []types.Finding

	stale, err := d.findStaleClaims(ctx)
	if err != nil {
		return nil, perr.Internal(err)
	}
	if len(stale) > 0 {
		f := types.Finding{Check: "stale_claim", Message: fmt.Sprintf("%d issue(s) claimed for over %s with no recent activity", len(stale), staleClaimThreshold), IDs: stale}
		if fix {
			for _, id := range stale {
				if _, err := d.releaseLocked(ctx, id, "doctor"); err != nil {
					return nil, perr.Internal(err)
				}
			}
			f.Fixed = true
		}
		findings = append(findings, f)
	}

	invalid, err := d.findInvariantViolations(ctx, fix)
	if err != nil {
		return nil, perr.Internal(err)
	}
	findings = append(findings, invalid...)

	dangling, err := d.findDanglingFixes(ctx, fix)
	if err != nil {
		return nil, perr.Internal(err)
	}
	if dangling != nil {
		findings = append(findings, *dangling)
	}

	orphanedDeps, err := d.findOrphanedDeps(ctx, fix)
	if err != nil {
		return nil, perr.Internal(err)
	}
	if orphanedDeps != nil {
		findings = append(findings, *orphanedDeps)
	}

	cycles, err := d.detectCycles(ctx)
	if err != nil {
		return nil, perr.Internal(err)
	}
	if len(cycles) > 0 {
		ids := make([]string, 0, len(cycles))
		for _, c := range cycles {
			ids = append(ids, strings.Join(c, "->"))
		}
		findings = append(findings, types.Finding{Check: "cycle", Message: fmt.Sprintf("%d cycle(s) detected in the dependency graph", len(cycles)), IDs: ids})
	}

	return findings, nil
}

func (d *DB) findStaleClaims(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT i.id, (
			SELECT MAX(e.created_at) FROM events e WHERE e.issue_id = i.id AND e.event_type = 'claimed'
		) FROM issues i WHERE i.status = 'in_progress' AND i.assignee IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cutoff := time.Now().UTC().Add(-staleClaimThreshold)
	var stale []string
	for rows.Next() {
		var id string
		var lastClaimed *string
		if err := rows.Scan(&id, &lastClaimed); err != nil {
			return nil, err
		}
		if lastClaimed == nil {
			stale = append(stale, id)
			continue
		}
		t, err := parseTime(*lastClaimed)
		if err != nil {
			return nil, err
		}
		if t.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale, rows.Err()
}

// releaseLocked is ReleaseIssue's body without re-acquiring mu, for
// callers that already hold it (Doctor's fix path).
func (d *DB) releaseLocked(ctx context.Context, id, actor string) (*types.Issue, error) {
	now := time.Now().UTC()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE issues SET status = ?, assignee = NULL, updated_at = ? WHERE id = ?`,
		types.Open, timeStr(now), id); err != nil {
		return nil, err
	}
	if err := appendEvent(ctx, tx, id, types.EventReleased, nullableActor(actor), nil, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d.getIssue(ctx, id)
}

func (d *DB) findInvariantViolations(ctx context.Context, fix bool) ([]types.Finding, error) {
	var findings []types.Finding

	var assigneeNullInProgress []string
	rows, err := d.conn.QueryContext(ctx, `SELECT id FROM issues WHERE status = 'in_progress' AND assignee IS NULL`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		assigneeNullInProgress = append(assigneeNullInProgress, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(assigneeNullInProgress) > 0 {
		f := types.Finding{Check: "invariant_assignee_null", Message: "in_progress issue(s) with no assignee", IDs: assigneeNullInProgress}
		if fix {
			for _, id := range assigneeNullInProgress {
				if _, err := d.conn.ExecContext(ctx, `UPDATE issues SET status = 'open' WHERE id = ?`, id); err != nil {
					return nil, err
				}
			}
			f.Fixed = true
		}
		findings = append(findings, f)
	}

	var closedNullClosedAt []string
	rows, err = d.conn.QueryContext(ctx, `SELECT id FROM issues WHERE status = 'closed' AND closed_at IS NULL`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		closedNullClosedAt = append(closedNullClosedAt, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(closedNullClosedAt) > 0 {
		f := types.Finding{Check: "invariant_closed_at_null", Message: "closed issue(s) with no closed_at", IDs: closedNullClosedAt}
		if fix {
			now := timeStr(time.Now().UTC())
			for _, id := range closedNullClosedAt {
				if _, err := d.conn.ExecContext(ctx, `UPDATE issues SET closed_at = ? WHERE id = ?`, now, id); err != nil {
					return nil, err
				}
			}
			f.Fixed = true
		}
		findings = append(findings, f)
	}

	return findings, nil
}

func (d *DB) findDanglingFixes(ctx context.Context, fix bool) (*types.Finding, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT i.id FROM issues i
		WHERE i.fixes IS NOT NULL AND NOT EXISTS (SELECT 1 FROM issues t WHERE t.id = i.fixes)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	f := &types.Finding{Check: "dangling_fixes", Message: "issue(s) with a fixes reference to a missing issue", IDs: ids}
	if fix {
		for _, id := range ids {
			if _, err := d.conn.ExecContext(ctx, `UPDATE issues SET fixes = NULL WHERE id = ?`, id); err != nil {
				return nil, err
			}
		}
		f.Fixed = true
	}
	return f, nil
}

func (d *DB) findOrphanedDeps(ctx context.Context, fix bool) (*types.Finding, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT d.issue_id, d.depends_on_id FROM deps d
		WHERE NOT EXISTS (SELECT 1 FROM issues i WHERE i.id = d.issue_id)
		   OR NOT EXISTS (SELECT 1 FROM issues i WHERE i.id = d.depends_on_id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	type pair struct{ a, b string }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.a, &p.b); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
		ids = append(ids, fmt.Sprintf("%s->%s", p.a, p.b))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	f := &types.Finding{Check: "orphaned_dep", Message: "dep row(s) referencing a missing issue", IDs: ids}
	if fix {
		for _, p := range pairs {
			if _, err := d.conn.ExecContext(ctx, `DELETE FROM deps WHERE issue_id = ? AND depends_on_id = ?`, p.a, p.b); err != nil {
				return nil, err
			}
		}
		f.Fixed = true
	}
	return f, nil
}
