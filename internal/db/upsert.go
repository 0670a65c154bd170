// Package db provides shared pgx helpers for the postgres store.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertRow inserts one row and updates every non-key column on conflict.
// The criteria tree and run states are written this way: external ids from
// the registry import and release ids both act as natural keys, so a re-sync
// or a state transition is always an insert-or-update.
func UpsertRow(ctx context.Context, pool Pool, table string, columns, conflictKeys []string, values []any) error {
	if len(columns) == 0 || len(columns) != len(values) {
		return eris.Errorf("db: upsert %s: %d columns for %d values", table, len(columns), len(values))
	}
	if len(conflictKeys) == 0 {
		return eris.Errorf("db: upsert %s: no conflict keys", table)
	}

	keySet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		keySet[k] = true
	}

	placeholders := make([]string, len(columns))
	var setClauses []string
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if !keySet[col] {
			setClauses = append(setClauses,
				fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1))
		}
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{table}.Sanitize(),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
		strings.Join(setClauses, ", "),
	)

	if _, err := pool.Exec(ctx, sql, values...); err != nil {
		return eris.Wrapf(err, "db: upsert %s", table)
	}
	return nil
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
