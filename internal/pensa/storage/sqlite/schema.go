package sqlite

// schema is applied on every Open. CHECK constraints enforce the enum
// columns at the database layer so a stray direct SQL write can't put
// an issue into an invalid state even if the Go layer has a bug.
const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT,
	issue_type   TEXT NOT NULL CHECK (issue_type IN ('bug','task','test','chore')),
	status       TEXT NOT NULL CHECK (status IN ('open','in_progress','closed')),
	priority     TEXT NOT NULL CHECK (priority IN ('p0','p1','p2','p3')),
	spec         TEXT,
	fixes        TEXT REFERENCES issues(id),
	assignee     TEXT,
	due_at       TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	closed_at    TEXT,
	close_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_priority ON issues(priority);
CREATE INDEX IF NOT EXISTS idx_issues_issue_type ON issues(issue_type);
CREATE INDEX IF NOT EXISTS idx_issues_assignee ON issues(assignee);
CREATE INDEX IF NOT EXISTS idx_issues_spec ON issues(spec);
CREATE INDEX IF NOT EXISTS idx_issues_fixes ON issues(fixes);

CREATE TABLE IF NOT EXISTS deps (
	issue_id       TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	depends_on_id  TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	PRIMARY KEY (issue_id, depends_on_id),
	CHECK (issue_id != depends_on_id)
);

CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON deps(depends_on_id);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	issue_id   TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	actor      TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_issue ON comments(issue_id);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	issue_id   TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor      TEXT,
	detail     TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_issue ON events(issue_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
`
