// Package idgen generates Pensa issue IDs.
//
// IDs are "pn-" followed by the low 8 hex characters of a UUIDv7.
// Those characters come from the UUID's random tail, not its
// timestamp, so IDs are not time-ordered. A bounded retry loop (up to
// 10 candidates) guards against one of these 32-bit tails colliding
// with an existing issue, the same defensive posture the wider
// ecosystem's hash-based ID generators take on collision, kept to
// plain re-draws instead of a multi-length/multi-nonce search.
package idgen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const prefix = "pn-"

// New generates a fresh, unchecked issue ID.
func New() string {
	id := uuid.Must(uuid.NewV7())
	s := strings.ReplaceAll(id.String(), "-", "")
	return prefix + s[len(s)-8:]
}

// Exists reports whether id is already present in the issues table.
func Exists(ctx context.Context, db *sql.DB, id string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Generate returns a new ID guaranteed not to collide with an existing
// row, retrying a handful of times before giving up.
func Generate(ctx context.Context, db *sql.DB) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		candidate := New()
		exists, err := Exists(ctx, db, candidate)
		if err != nil {
			return "", fmt.Errorf("check id collision: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique issue id after 10 attempts")
}

// Valid reports whether id looks like a well-formed Pensa issue ID.
func Valid(id string) bool {
	if !strings.HasPrefix(id, prefix) {
		return false
	}
	hex := id[len(prefix):]
	if len(hex) != 8 {
		return false
	}
	for _, c := range hex {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
