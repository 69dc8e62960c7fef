// Package sqlite is the only Store implementation: a pure-Go, no-CGO
// SQLite backend serialised behind one mutex.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/fieldnotes/springfield/internal/pensa/storage"
)

// DB is the sole Store implementation. All mutating and reading
// operations take mu, mirroring the single-writer contract: the
// workload is one developer plus a handful of agents, so a single
// exclusive lock is simpler than a read/write split and the spec only
// requires the observable at-most-one-claim guarantee, not concurrent
// reads.
type DB struct {
	mu   sync.Mutex
	conn *sql.DB
}

var _ storage.Store = (*DB)(nil)

// Open creates (if needed) and migrates the database at path, returning
// a ready-to-use Store. path is a plain filesystem path; the file:
// prefix and pragma query parameters are added here.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(context.Background(), schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}
