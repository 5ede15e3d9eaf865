package census

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/store"
)

// Syncer pulls county snapshots from a source into the store and keeps
// the sync ledger current. Generation then runs entirely off the store.
type Syncer struct {
	src Source
	st  store.Store
}

// NewSyncer builds a syncer over a live source and the snapshot store.
func NewSyncer(src Source, st store.Store) *Syncer {
	return &Syncer{src: src, st: st}
}

// SyncCounty refreshes both snapshot tables for one county. The unit
// counts are replaced whole; distributions upsert in place so a partial
// income pull never empties strata synced earlier.
func (s *Syncer) SyncCounty(ctx context.Context, countyFIPS string) error {
	log := zap.L().With(
		zap.String("county", countyFIPS),
		zap.String("source", s.src.Name()),
		zap.Int("vintage", s.src.Vintage()),
	)

	counts, err := s.src.UnitCounts(ctx, countyFIPS)
	if err != nil {
		return eris.Wrapf(err, "census: sync unit counts for %s", countyFIPS)
	}
	n, err := s.st.ReplaceUnitCounts(ctx, countyFIPS, s.src.Vintage(), counts)
	if err != nil {
		return eris.Wrapf(err, "census: store unit counts for %s", countyFIPS)
	}
	if err := s.recordSync(ctx, SourceUnits, countyFIPS, n); err != nil {
		return err
	}
	log.Info("synced unit counts", zap.Int64("rows", n))

	dists, err := s.src.Distributions(ctx, countyFIPS)
	if err != nil {
		return eris.Wrapf(err, "census: sync distributions for %s", countyFIPS)
	}
	n, err = s.st.UpsertDistributions(ctx, countyFIPS, s.src.Vintage(), dists)
	if err != nil {
		return eris.Wrapf(err, "census: store distributions for %s", countyFIPS)
	}
	if err := s.recordSync(ctx, SourceIncomes, countyFIPS, n); err != nil {
		return err
	}
	log.Info("synced income distributions", zap.Int64("rows", n))
	return nil
}

func (s *Syncer) recordSync(ctx context.Context, source, countyFIPS string, rows int64) error {
	err := s.st.RecordSync(ctx, store.SyncRecord{
		Source:  source,
		County:  countyFIPS,
		Vintage: s.src.Vintage(),
		Rows:    rows,
	})
	return eris.Wrapf(err, "census: record %s sync for %s", source, countyFIPS)
}

// Cached serves county snapshots from the store, falling back to the live
// source and warming the store on a miss. A store read failure degrades to
// the live source so a damaged cache cannot block generation.
type Cached struct {
	src Source
	st  store.Store
}

// NewCached wraps a live source with the snapshot store.
func NewCached(src Source, st store.Store) *Cached {
	return &Cached{src: src, st: st}
}

// Name implements Source.
func (c *Cached) Name() string { return c.src.Name() }

// Vintage implements Source.
func (c *Cached) Vintage() int { return c.src.Vintage() }

// UnitCounts implements Source.
func (c *Cached) UnitCounts(ctx context.Context, countyFIPS string) ([]model.UnitCount, error) {
	cached, err := c.st.UnitCounts(ctx, countyFIPS, c.src.Vintage())
	if err != nil {
		zap.L().Warn("unit count cache read failed, falling back to source",
			zap.String("county", countyFIPS), zap.Error(err))
	}
	if len(cached) > 0 {
		return cached, nil
	}

	counts, err := c.src.UnitCounts(ctx, countyFIPS)
	if err != nil {
		return nil, err
	}
	c.warm(ctx, SourceUnits, countyFIPS, func() (int64, error) {
		return c.st.ReplaceUnitCounts(ctx, countyFIPS, c.src.Vintage(), counts)
	})
	return counts, nil
}

// Distributions implements Source.
func (c *Cached) Distributions(ctx context.Context, countyFIPS string) ([]model.Distribution, error) {
	cached, err := c.st.Distributions(ctx, countyFIPS, c.src.Vintage())
	if err != nil {
		zap.L().Warn("distribution cache read failed, falling back to source",
			zap.String("county", countyFIPS), zap.Error(err))
	}
	if len(cached) > 0 {
		return cached, nil
	}

	dists, err := c.src.Distributions(ctx, countyFIPS)
	if err != nil {
		return nil, err
	}
	c.warm(ctx, SourceIncomes, countyFIPS, func() (int64, error) {
		return c.st.UpsertDistributions(ctx, countyFIPS, c.src.Vintage(), dists)
	})
	return dists, nil
}

// warm writes fetched rows back to the store. Failures are logged, not
// returned; the caller already holds the data it asked for.
func (c *Cached) warm(ctx context.Context, source, countyFIPS string, write func() (int64, error)) {
	n, err := write()
	if err != nil {
		zap.L().Warn("snapshot warm failed",
			zap.String("source", source), zap.String("county", countyFIPS), zap.Error(err))
		return
	}
	if err := c.st.RecordSync(ctx, store.SyncRecord{
		Source:  source,
		County:  countyFIPS,
		Vintage: c.src.Vintage(),
		Rows:    n,
	}); err != nil {
		zap.L().Warn("sync ledger write failed",
			zap.String("source", source), zap.String("county", countyFIPS), zap.Error(err))
	}
}
