package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/gitrecon/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	source TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE INDEX IF NOT EXISTS idx_findings_value ON findings(value);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, f *storage.Finding) error {
	query := `
	INSERT INTO findings (id, run_id, kind, value, source, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		f.ID,
		f.RunID,
		f.Kind,
		f.Value,
		f.Source,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save finding: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	query := `SELECT id, run_id, kind, value, source, created_at FROM findings WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Value != "" {
		query += ` AND value = ?`
		args = append(args, filter.Value)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query findings: %w", err)
	}
	defer rows.Close()

	var findings []*storage.Finding
	for rows.Next() {
		var f storage.Finding
		if err := rows.Scan(&f.ID, &f.RunID, &f.Kind, &f.Value, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan finding: %w", err)
		}
		findings = append(findings, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate findings: %w", err)
	}

	return findings, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
