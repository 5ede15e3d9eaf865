package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hui-cli/internal/geo"
	"github.com/sells-group/hui-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	community  TEXT NOT NULL,
	county     TEXT NOT NULL,
	seed       INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	breakpoints TEXT NOT NULL,
	ceiling     REAL NOT NULL,
	PRIMARY KEY (county, vintage, tract_id, race, hispan, family)
);

CREATE TABLE IF NOT EXISTS crosswalk (
	county   TEXT NOT NULL,
	vintage  INTEGER NOT NULL,
	block_id TEXT NOT NULL,
	tract_id TEXT NOT NULL,
	lon      REAL,
	lat      REAL,
	PRIMARY KEY (county, vintage, block_id)
);

CREATE TABLE IF NOT EXISTS sync_log (
	source    TEXT NOT NULL,
	county    TEXT NOT NULL,
	vintage   INTEGER NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	etag      TEXT NOT NULL DEFAULT '',
	synced_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (source, county, vintage)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_community ON runs(community);
CREATE INDEX IF NOT EXISTS idx_runs_county ON runs(county);
CREATE INDEX IF NOT EXISTS idx_unit_counts_snapshot ON unit_counts(county, vintage, block_id);
CREATE INDEX IF NOT EXISTS idx_distributions_tract ON distributions(county, vintage, tract_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, community, county string, seed int64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, community, county, seed, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, community, county, seed, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	var resultJSON any
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		resultJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		string(status), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, community, county, seed, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, community, county, seed, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Community != "" {
		query += ` AND community = ?`
		args = append(args, filter.Community)
	}
	if filter.County != "" {
		query += ` AND county = ?`
		args = append(args, filter.County)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ReplaceUnitCounts(ctx context.Context, county string, vintage int, counts []model.UnitCount) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM unit_counts WHERE county = ? AND vintage = ?`, county, vintage,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear unit counts")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO unit_counts (county, vintage, block_id, vacancy, gqtype, numprec, race, hispan, family, count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare unit count insert")
	}
	defer stmt.Close()

	for _, c := range counts {
		if _, err := stmt.ExecContext(ctx,
			county, vintage, c.BlockID, int(c.Vacancy), int(c.GQType), c.Numprec,
			int(c.Race), int(c.Hispan), int(c.Family), c.Count,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert unit count for block %s", c.BlockID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit unit counts")
	}
	return int64(len(counts)), nil
}

func (s *SQLiteStore) UnitCounts(ctx context.Context, county string, vintage int) ([]model.UnitCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, vacancy, gqtype, numprec, race, hispan, family, count
		 FROM unit_counts WHERE county = ? AND vintage = ?
		 ORDER BY block_id, vacancy, gqtype, numprec, race, hispan, family`,
		county, vintage,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query unit counts")
	}
	defer rows.Close()

	var counts []model.UnitCount
	for rows.Next() {
		var c model.UnitCount
		var vacancy, gqtype, race, hispan, family int
		if err := rows.Scan(&c.BlockID, &vacancy, &gqtype, &c.Numprec, &race, &hispan, &family, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unit count")
		}
		c.Vacancy = model.Vacancy(vacancy)
		c.GQType = model.GQType(gqtype)
		c.Race = model.Race(race)
		c.Hispan = model.Hispan(hispan)
		c.Family = model.Family(family)
		c.Vintage = vintage
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: unit counts iterate")
}

func (s *SQLiteStore) UpsertDistributions(ctx context.Context, county string, vintage int, dists []model.Distribution) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO distributions (county, vintage, tract_id, race, hispan, family, breakpoints, ceiling)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (county, vintage, tract_id, race, hispan, family)
		 DO UPDATE SET breakpoints = excluded.breakpoints, ceiling = excluded.ceiling`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare distribution upsert")
	}
	defer stmt.Close()

	for _, d := range dists {
		bpJSON, err := json.Marshal(d.Breakpoints)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal breakpoints for tract %s", d.TractID)
		}
		if _, err := stmt.ExecContext(ctx,
			county, vintage, d.TractID, int(d.Race), int(d.Hispan), int(d.Family),
			string(bpJSON), d.Ceiling,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert distribution for tract %s", d.TractID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit distributions")
	}
	return int64(len(dists)), nil
}

func (s *SQLiteStore) Distributions(ctx context.Context, county string, vintage int) ([]model.Distribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tract_id, race, hispan, family, breakpoints, ceiling
		 FROM distributions WHERE county = ? AND vintage = ?
		 ORDER BY tract_id, race, hispan, family`,
		county, vintage,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query distributions")
	}
	defer rows.Close()

	var dists []model.Distribution
	for rows.Next() {
		var d model.Distribution
		var race, hispan, family int
		var bpJSON string
		if err := rows.Scan(&d.TractID, &race, &hispan, &family, &bpJSON, &d.Ceiling); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan distribution")
		}
		if err := json.Unmarshal([]byte(bpJSON), &d.Breakpoints); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal breakpoints for tract %s", d.TractID)
		}
		d.Race = model.Race(race)
		d.Hispan = model.Hispan(hispan)
		d.Family = model.Family(family)
		d.Vintage = vintage
		dists = append(dists, d)
	}
	return dists, eris.Wrap(rows.Err(), "sqlite: distributions iterate")
}

func (s *SQLiteStore) ReplaceCrosswalk(ctx context.Context, county string, vintage int, cw *geo.Crosswalk) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM crosswalk WHERE county = ? AND vintage = ?`, county, vintage,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear crosswalk")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO crosswalk (county, vintage, block_id, tract_id, lon, lat) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare crosswalk insert")
	}
	defer stmt.Close()

	var n int64
	for _, blockID := range cw.Blocks() {
		tractID, _ := cw.TractOf(blockID)
		var lon, lat any
		if p, ok := cw.PointOf(blockID); ok {
			lon, lat = p.Lon, p.Lat
		}
		if _, err := stmt.ExecContext(ctx, county, vintage, blockID, tractID, lon, lat); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert crosswalk row for block %s", blockID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit crosswalk")
	}
	return n, nil
}

// Crosswalk returns the cached crosswalk for a county, or (nil, nil) when
// none has been synced.
func (s *SQLiteStore) Crosswalk(ctx context.Context, county string, vintage int) (*geo.Crosswalk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_id, tract_id, lon, lat FROM crosswalk
		 WHERE county = ? AND vintage = ? ORDER BY block_id`,
		county, vintage,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query crosswalk")
	}
	defer rows.Close()

	cw := geo.NewCrosswalk()
	for rows.Next() {
		var blockID, tractID string
		var lon, lat sql.NullFloat64
		if err := rows.Scan(&blockID, &tractID, &lon, &lat); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan crosswalk row")
		}
		if err := cw.Add(blockID, tractID); err != nil {
			return nil, eris.Wrap(err, "sqlite: rebuild crosswalk")
		}
		if lon.Valid && lat.Valid {
			cw.AddPoint(blockID, geo.Point{Lat: lat.Float64, Lon: lon.Float64})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: crosswalk iterate")
	}
	if cw.Len() == 0 {
		return nil, nil
	}
	return cw, nil
}

func (s *SQLiteStore) RecordSync(ctx context.Context, rec SyncRecord) error {
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (source, county, vintage, row_count, etag, synced_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source, county, vintage)
		 DO UPDATE SET row_count = excluded.row_count, etag = excluded.etag, synced_at = excluded.synced_at`,
		rec.Source, rec.County, rec.Vintage, rec.Rows, rec.ETag, rec.SyncedAt,
	)
	return eris.Wrap(err, "sqlite: record sync")
}

// LastSync returns the most recent sync record for a source, or (nil, nil)
// when the source has never been synced.
func (s *SQLiteStore) LastSync(ctx context.Context, source, county string, vintage int) (*SyncRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, county, vintage, row_count, etag, synced_at FROM sync_log
		 WHERE source = ? AND county = ? AND vintage = ?`,
		source, county, vintage,
	)

	var rec SyncRecord
	err := row.Scan(&rec.Source, &rec.County, &rec.Vintage, &rec.Rows, &rec.ETag, &rec.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last sync")
	}
	return &rec, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Community, &r.County, &r.Seed, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
