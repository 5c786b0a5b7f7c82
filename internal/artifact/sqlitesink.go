package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteSink persists artifacts in a single table, keyed on (job_id, name).
// Put is an INSERT ... ON CONFLICT (job_id, name) DO UPDATE upsert, so
// calling it twice with the same key and body is idempotent.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if needed) a sqlite database at dbPath and
// ensures the artifacts table exists.
func OpenSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS artifacts (
            job_id        TEXT NOT NULL,
            name          TEXT NOT NULL,
            artifact_type TEXT NOT NULL,
            body          BLOB NOT NULL,
            created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (job_id, name)
        )
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("create artifacts table: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) Put(ctx context.Context, jobID, name, artifactType string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO artifacts (job_id, name, artifact_type, body)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (job_id, name) DO UPDATE SET
            artifact_type = excluded.artifact_type,
            body = excluded.body
    `, jobID, name, artifactType, body)
	return err
}

func (s *SQLiteSink) Get(ctx context.Context, jobID, name string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT body FROM artifacts WHERE job_id = ? AND name = ?
    `, jobID, name)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("artifact not found: job=%s name=%s", jobID, name)
		}
		return nil, err
	}
	return body, nil
}

func (s *SQLiteSink) List(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT name FROM artifacts WHERE job_id = ?
    `, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
