package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertSpec describes a bulk upsert into a schema-qualified table.
type UpsertSpec struct {
	Schema       string   // target schema (e.g. "afford")
	Table        string   // target table (e.g. "score")
	Columns      []string // all columns being written, in row order
	ConflictKeys []string // columns forming the unique constraint
}

// BulkUpsert writes rows with INSERT ... ON CONFLICT DO UPDATE, staging
// them through a temp table with the COPY protocol so a full
// recomputation run is one round trip per batch rather than one per
// row. On conflict every non-key column is overwritten, which is what
// gives the score table its single-current-row semantics.
func BulkUpsert(ctx context.Context, pool Pool, spec UpsertSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(spec.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(spec.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	target := pgx.Identifier{spec.Schema, spec.Table}.Sanitize()
	if spec.Schema == "" {
		target = pgx.Identifier{spec.Table}.Sanitize()
	}
	temp := fmt.Sprintf("_stage_%s", spec.Table)

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(), target,
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage table for %s", spec.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into stage for %s", spec.Table)
	}

	keySet := make(map[string]bool, len(spec.ConflictKeys))
	for _, k := range spec.ConflictKeys {
		keySet[k] = true
	}
	var assignments []string
	for _, col := range spec.Columns {
		if keySet[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	mergeSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		target,
		quoteJoin(spec.Columns),
		quoteJoin(spec.Columns),
		pgx.Identifier{temp}.Sanitize(),
		quoteJoin(spec.ConflictKeys),
		strings.Join(assignments, ", "),
	)
	tag, err := tx.Exec(ctx, mergeSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", spec.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func quoteJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
