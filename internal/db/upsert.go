package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names the target of a bulk upsert. Columns not in
// ConflictKeys are overwritten from the incoming rows on conflict, which
// makes a distribution re-sync idempotent: a second pull of the same
// county replaces stale breakpoints instead of duplicating strata.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
}

// BulkUpsert stages rows into a session temp table with COPY, then folds
// them into the target with INSERT ... ON CONFLICT DO UPDATE, all in one
// transaction. Plain row-at-a-time upserts are an order of magnitude
// slower at county snapshot sizes.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := "_stage_" + cfg.Table
	_, err = tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(),
		pgx.Identifier{cfg.Table}.Sanitize(),
	))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into stage for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, foldSQL(cfg, stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: fold stage into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// foldSQL builds the INSERT ... ON CONFLICT statement that moves staged
// rows into the target, updating every non-key column.
func foldSQL(cfg UpsertConfig, stage string) string {
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var sets []string
	for _, col := range cfg.Columns {
		if keys[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		sets = append(sets, q+" = EXCLUDED."+q)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{cfg.Table}.Sanitize(),
		identList(cfg.Columns),
		identList(cfg.Columns),
		pgx.Identifier{stage}.Sanitize(),
		identList(cfg.ConflictKeys),
		strings.Join(sets, ", "),
	)
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
