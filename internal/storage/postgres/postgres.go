package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/FranksOps/gitrecon/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	source TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE INDEX IF NOT EXISTS idx_findings_value ON findings(value);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, f *storage.Finding) error {
	query := `
	INSERT INTO findings (id, run_id, kind, value, source, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := b.pool.Exec(ctx, query,
		f.ID,
		f.RunID,
		f.Kind,
		f.Value,
		f.Source,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save finding: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	query := `SELECT id, run_id, kind, value, source, created_at FROM findings WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.RunID != "" {
		query += ` AND run_id = ` + arg(filter.RunID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ` + arg(filter.Kind)
	}
	if filter.Value != "" {
		query += ` AND value = ` + arg(filter.Value)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ` + arg(*filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query findings: %w", err)
	}
	defer rows.Close()

	var findings []*storage.Finding
	for rows.Next() {
		var f storage.Finding
		if err := rows.Scan(&f.ID, &f.RunID, &f.Kind, &f.Value, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan finding: %w", err)
		}
		findings = append(findings, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate findings: %w", err)
	}

	return findings, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
