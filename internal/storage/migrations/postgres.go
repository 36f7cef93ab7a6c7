package migrations

import (
	"context"
	"fmt"

	"price-signal-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded schema in lexical order and
// returns the names of the applied files. Every statement is idempotent
// (IF NOT EXISTS), so reruns are safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(files))
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		applied = append(applied, m.name)
	}
	return applied, nil
}
