package storage

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the Postgres migration with SQLite column types.
const sqliteSchema = `
CREATE TABLE repositories (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    github_id   INTEGER,
    full_name   TEXT NOT NULL UNIQUE,
    owner       TEXT NOT NULL,
    name        TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE pull_requests (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id      INTEGER NOT NULL REFERENCES repositories(id),
    pr_number    INTEGER NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    diff         TEXT NOT NULL DEFAULT '',
    state        TEXT NOT NULL DEFAULT 'open',
    created_at   TIMESTAMP NOT NULL,
    reviewed_at  TIMESTAMP
);
CREATE TABLE code_reviews (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    pr_id            INTEGER NOT NULL UNIQUE REFERENCES pull_requests(id) ON DELETE CASCADE,
    ai_response      TEXT NOT NULL,
    issues_found     INTEGER NOT NULL DEFAULT 0,
    severity_high    INTEGER NOT NULL DEFAULT 0,
    severity_medium  INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMP NOT NULL
);
CREATE TABLE code_snippets (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path   TEXT NOT NULL,
    content     TEXT NOT NULL,
    embedding   TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL
);`

// setupTestDB creates a named shared in-memory SQLite database for one test.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(ON)", url.PathEscape(t.Name()))
	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}
