package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/geo"
	"github.com/sells-group/hui-cli/internal/inventory"
	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/synth"
)

// CountyResult is one county's synthesized records plus run statistics.
type CountyResult struct {
	County  community.County
	Records []model.HousingUnitRecord
	Stats   model.RunResult
}

// generateCounty runs the per-county stages: source load, crosswalk join,
// expansion, income synthesis. Deterministic given (seed, county, inputs);
// no state is shared with sibling counties.
func (p *Pipeline) generateCounty(ctx context.Context, rc model.RunContext, county community.County) (*CountyResult, error) {
	start := time.Now()
	log := p.log.With(
		zap.String("county", county.FIPS),
		zap.String("run_id", rc.RunID),
	)

	run := p.ledgerStart(ctx, rc, county)

	res, err := p.synthesizeCounty(ctx, rc, county)
	if err != nil {
		p.ledgerFinish(ctx, run, model.RunStatusFailed, nil)
		return nil, err
	}
	res.Stats.DurationMS = time.Since(start).Milliseconds()
	p.ledgerFinish(ctx, run, model.RunStatusComplete, &res.Stats)

	log.Info("generated county inventory",
		zap.Int("records", res.Stats.Records),
		zap.Int("occupied", res.Stats.Occupied),
		zap.Int("vacant", res.Stats.Vacant),
		zap.Int("group_quarters", res.Stats.GroupQuarters),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (p *Pipeline) synthesizeCounty(ctx context.Context, rc model.RunContext, county community.County) (*CountyResult, error) {
	counts, err := p.src.UnitCounts(ctx, county.FIPS)
	if err != nil {
		return nil, eris.Wrap(err, "load unit counts")
	}
	if len(counts) == 0 {
		return nil, eris.Errorf("source returned no unit counts for vintage %d", rc.Vintage)
	}

	cw, err := p.crosswalk(ctx, rc, county, counts)
	if err != nil {
		return nil, eris.Wrap(err, "build crosswalk")
	}
	joined, err := geo.Join(counts, cw)
	if err != nil {
		return nil, eris.Wrap(err, "join blocks to tracts")
	}

	records, err := inventory.Expand(joined)
	if err != nil {
		return nil, eris.Wrap(err, "expand counts")
	}

	dists, err := p.src.Distributions(ctx, county.FIPS)
	if err != nil {
		return nil, eris.Wrap(err, "load income distributions")
	}
	syn, err := synth.New(rc.Seed, county.FIPS, dists)
	if err != nil {
		return nil, eris.Wrap(err, "prepare synthesizer")
	}
	records, err = syn.Synthesize(records)
	if err != nil {
		return nil, eris.Wrap(err, "synthesize incomes")
	}

	stats := model.RunResult{Records: len(records)}
	stats.TractPooled, stats.CountyPooled = syn.Substitutions()
	for _, r := range records {
		switch {
		case r.GQType != model.GQNone:
			stats.GroupQuarters++
		case r.Vacancy != model.VacancyOccupied:
			stats.Vacant++
		default:
			stats.Occupied++
		}
	}

	return &CountyResult{County: county, Records: records, Stats: stats}, nil
}

// crosswalk serves the snapshot crosswalk when one was synced, otherwise
// derives the block-to-tract mapping structurally from the count GEOIDs.
func (p *Pipeline) crosswalk(ctx context.Context, rc model.RunContext, county community.County, counts []model.UnitCount) (*geo.Crosswalk, error) {
	if p.opts.Store != nil {
		cw, err := p.opts.Store.Crosswalk(ctx, county.FIPS, rc.Vintage)
		if err != nil {
			p.log.Warn("crosswalk snapshot read failed, deriving structurally",
				zap.String("county", county.FIPS), zap.Error(err))
		}
		if cw != nil && cw.Len() > 0 {
			return cw, nil
		}
	}

	seen := make(map[string]bool, len(counts))
	blocks := make([]string, 0, len(counts))
	for _, uc := range counts {
		if !seen[uc.BlockID] {
			seen[uc.BlockID] = true
			blocks = append(blocks, uc.BlockID)
		}
	}
	return geo.Structural(blocks)
}

// ledgerStart opens a run ledger entry. Ledger failures never fail
// generation; they are logged and the entry is dropped.
func (p *Pipeline) ledgerStart(ctx context.Context, rc model.RunContext, county community.County) *model.Run {
	if p.opts.Store == nil {
		return nil
	}
	run, err := p.opts.Store.CreateRun(ctx, rc.Community, county.FIPS, rc.Seed)
	if err != nil {
		p.log.Warn("run ledger create failed", zap.String("county", county.FIPS), zap.Error(err))
		return nil
	}
	if err := p.opts.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusGenerating); err != nil {
		p.log.Warn("run ledger update failed", zap.String("run", run.ID), zap.Error(err))
	}
	return run
}

func (p *Pipeline) ledgerFinish(ctx context.Context, run *model.Run, status model.RunStatus, result *model.RunResult) {
	if p.opts.Store == nil || run == nil {
		return
	}
	if err := p.opts.Store.FinishRun(ctx, run.ID, status, result); err != nil {
		p.log.Warn("run ledger finish failed", zap.String("run", run.ID), zap.Error(err))
	}
}
