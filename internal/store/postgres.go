package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/db"
	"github.com/sells-group/hui-cli/internal/geo"
	"github.com/sells-group/hui-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, community, county, seed, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"finish_run":        `UPDATE runs SET status = $1, result = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, community, county, seed, status, result, created_at, updated_at FROM runs WHERE id = $1`,
	"last_sync":         `SELECT source, county, vintage, row_count, etag, synced_at FROM sync_log WHERE source = $1 AND county = $2 AND vintage = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	community  TEXT NOT NULL,
	county     TEXT NOT NULL,
	seed       BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS unit_counts (
	county   TEXT NOT NULL,
	vintage  INTEGER NOT NULL,
	block_id TEXT NOT NULL,
	vacancy  INTEGER NOT NULL,
	gqtype   INTEGER NOT NULL,
	numprec  INTEGER NOT NULL,
	race     INTEGER NOT NULL,
	hispan   INTEGER NOT NULL,
	family   INTEGER NOT NULL,
	count    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS distributions (
	county      TEXT NOT NULL,
	vintage     INTEGER NOT NULL,
	tract_id    TEXT NOT NULL,
	race        INTEGER NOT NULL,
	hispan      INTEGER NOT NULL,
	family      INTEGER NOT NULL,
	breakpoints JSONB NOT NULL,
	ceiling     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (county, vintage, tract_id, race, hispan, family)
);

CREATE TABLE IF NOT EXISTS crosswalk (
	county   TEXT NOT NULL,
	vintage  INTEGER NOT NULL,
	block_id TEXT NOT NULL,
	tract_id TEXT NOT NULL,
	lon      DOUBLE PRECISION,
	lat      DOUBLE PRECISION,
	PRIMARY KEY (county, vintage, block_id)
);

CREATE TABLE IF NOT EXISTS sync_log (
	source    TEXT NOT NULL,
	county    TEXT NOT NULL,
	vintage   INTEGER NOT NULL,
	row_count BIGINT NOT NULL DEFAULT 0,
	etag      TEXT NOT NULL DEFAULT '',
	synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, county, vintage)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_community ON runs(community);
CREATE INDEX IF NOT EXISTS idx_runs_county ON runs(county);
CREATE INDEX IF NOT EXISTS idx_unit_counts_snapshot ON unit_counts(county, vintage, block_id);
CREATE INDEX IF NOT EXISTS idx_distributions_tract ON distributions(county, vintage, tract_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, community, county string, seed int64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, community, county, seed, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, community, county, seed, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Community: community,
		County:    county,
		Seed:      seed,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	var resultJSON []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal result")
		}
		resultJSON = b
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, result = $2, updated_at = $3 WHERE id = $4`,
		string(status), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, community, county, seed, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Community, &r.County, &r.Seed, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, community, county, seed, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Community != "" {
		query += fmt.Sprintf(` AND community = $%d`, argIdx)
		args = append(args, filter.Community)
		argIdx++
	}
	if filter.County != "" {
		query += fmt.Sprintf(` AND county = $%d`, argIdx)
		args = append(args, filter.County)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultNull *[]byte

		if err := rows.Scan(&r.ID, &r.Community, &r.County, &r.Seed, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if resultNull != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultNull, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var unitCountColumns = []string{"county", "vintage", "block_id", "vacancy", "gqtype", "numprec", "race", "hispan", "family", "count"}

func (s *PostgresStore) ReplaceUnitCounts(ctx context.Context, county string, vintage int, counts []model.UnitCount) (int64, error) {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM unit_counts WHERE county = $1 AND vintage = $2`, county, vintage,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: clear unit counts")
	}

	rows := make([][]any, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []any{
			county, vintage, c.BlockID, int(c.Vacancy), int(c.GQType), c.Numprec,
			int(c.Race), int(c.Hispan), int(c.Family), c.Count,
		})
	}
	n, err := db.CopyFrom(ctx, s.pool, "unit_counts", unitCountColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: load unit counts")
	}
	return n, nil
}

func (s *PostgresStore) UnitCounts(ctx context.Context, county string, vintage int) ([]model.UnitCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT block_id, vacancy, gqtype, numprec, race, hispan, family, count
		 FROM unit_counts WHERE county = $1 AND vintage = $2
		 ORDER BY block_id, vacancy, gqtype, numprec, race, hispan, family`,
		county, vintage,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query unit counts")
	}
	defer rows.Close()

	var counts []model.UnitCount
	for rows.Next() {
		var c model.UnitCount
		var vacancy, gqtype, race, hispan, family int
		if err := rows.Scan(&c.BlockID, &vacancy, &gqtype, &c.Numprec, &race, &hispan, &family, &c.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unit count")
		}
		c.Vacancy = model.Vacancy(vacancy)
		c.GQType = model.GQType(gqtype)
		c.Race = model.Race(race)
		c.Hispan = model.Hispan(hispan)
		c.Family = model.Family(family)
		c.Vintage = vintage
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: unit counts iterate")
}

func (s *PostgresStore) UpsertDistributions(ctx context.Context, county string, vintage int, dists []model.Distribution) (int64, error) {
	rows := make([][]any, 0, len(dists))
	for _, d := range dists {
		bpJSON, err := json.Marshal(d.Breakpoints)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal breakpoints for tract %s", d.TractID)
		}
		rows = append(rows, []any{
			county, vintage, d.TractID, int(d.Race), int(d.Hispan), int(d.Family),
			bpJSON, d.Ceiling,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "distributions",
		Columns:      []string{"county", "vintage", "tract_id", "race", "hispan", "family", "breakpoints", "ceiling"},
		ConflictKeys: []string{"county", "vintage", "tract_id", "race", "hispan", "family"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert distributions")
	}
	return n, nil
}

func (s *PostgresStore) Distributions(ctx context.Context, county string, vintage int) ([]model.Distribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tract_id, race, hispan, family, breakpoints, ceiling
		 FROM distributions WHERE county = $1 AND vintage = $2
		 ORDER BY tract_id, race, hispan, family`,
		county, vintage,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query distributions")
	}
	defer rows.Close()

	var dists []model.Distribution
	for rows.Next() {
		var d model.Distribution
		var race, hispan, family int
		var bpJSON []byte
		if err := rows.Scan(&d.TractID, &race, &hispan, &family, &bpJSON, &d.Ceiling); err != nil {
			return nil, eris.Wrap(err, "postgres: scan distribution")
		}
		if err := json.Unmarshal(bpJSON, &d.Breakpoints); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal breakpoints for tract %s", d.TractID)
		}
		d.Race = model.Race(race)
		d.Hispan = model.Hispan(hispan)
		d.Family = model.Family(family)
		d.Vintage = vintage
		dists = append(dists, d)
	}
	return dists, eris.Wrap(rows.Err(), "postgres: distributions iterate")
}

var crosswalkColumns = []string{"county", "vintage", "block_id", "tract_id", "lon", "lat"}

func (s *PostgresStore) ReplaceCrosswalk(ctx context.Context, county string, vintage int, cw *geo.Crosswalk) (int64, error) {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM crosswalk WHERE county = $1 AND vintage = $2`, county, vintage,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: clear crosswalk")
	}

	blocks := cw.Blocks()
	rows := make([][]any, 0, len(blocks))
	for _, blockID := range blocks {
		tractID, _ := cw.TractOf(blockID)
		var lon, lat any
		if p, ok := cw.PointOf(blockID); ok {
			lon, lat = p.Lon, p.Lat
		}
		rows = append(rows, []any{county, vintage, blockID, tractID, lon, lat})
	}
	n, err := db.CopyFrom(ctx, s.pool, "crosswalk", crosswalkColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: load crosswalk")
	}
	return n, nil
}

// Crosswalk returns the cached crosswalk for a county, or (nil, nil) when
// none has been synced.
func (s *PostgresStore) Crosswalk(ctx context.Context, county string, vintage int) (*geo.Crosswalk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT block_id, tract_id, lon, lat FROM crosswalk
		 WHERE county = $1 AND vintage = $2 ORDER BY block_id`,
		county, vintage,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query crosswalk")
	}
	defer rows.Close()

	cw := geo.NewCrosswalk()
	for rows.Next() {
		var blockID, tractID string
		var lon, lat *float64
		if err := rows.Scan(&blockID, &tractID, &lon, &lat); err != nil {
			return nil, eris.Wrap(err, "postgres: scan crosswalk row")
		}
		if err := cw.Add(blockID, tractID); err != nil {
			return nil, eris.Wrap(err, "postgres: rebuild crosswalk")
		}
		if lon != nil && lat != nil {
			cw.AddPoint(blockID, geo.Point{Lat: *lat, Lon: *lon})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: crosswalk iterate")
	}
	if cw.Len() == 0 {
		return nil, nil
	}
	return cw, nil
}

func (s *PostgresStore) RecordSync(ctx context.Context, rec SyncRecord) error {
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_log (source, county, vintage, row_count, etag, synced_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source, county, vintage)
		 DO UPDATE SET row_count = $4, etag = $5, synced_at = $6`,
		rec.Source, rec.County, rec.Vintage, rec.Rows, rec.ETag, rec.SyncedAt,
	)
	return eris.Wrap(err, "postgres: record sync")
}

// LastSync returns the most recent sync record for a source, or (nil, nil)
// when the source has never been synced.
func (s *PostgresStore) LastSync(ctx context.Context, source, county string, vintage int) (*SyncRecord, error) {
	var rec SyncRecord
	err := s.pool.QueryRow(ctx,
		`SELECT source, county, vintage, row_count, etag, synced_at FROM sync_log
		 WHERE source = $1 AND county = $2 AND vintage = $3`,
		source, county, vintage,
	).Scan(&rec.Source, &rec.County, &rec.Vintage, &rec.Rows, &rec.ETag, &rec.SyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: last sync")
	}
	return &rec, nil
}
