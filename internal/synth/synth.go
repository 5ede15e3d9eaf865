// Package synth draws household incomes for occupied housing units by
// inverting tract-level quantile distributions against deterministic,
// stratum-keyed uniform streams. The same seed and inputs always yield
// the same incomes, in any processing order and at any concurrency.
package synth

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/stratum"
)

// ErrMissingDistribution marks a stratum whose income distribution cannot
// be resolved, even through the pooled fallbacks.
var ErrMissingDistribution = eris.New("synth: no income distribution for stratum")

// Synthesizer draws incomes for one county.
type Synthesizer struct {
	seed       int64
	countyFIPS string
	dists      map[model.DistributionKey]model.Distribution
	log        *zap.Logger

	// fallback use per resolution tier, for the run report
	tractPooled  int
	countyPooled int
}

// New builds a Synthesizer over the county's distributions. Every
// distribution is validated; duplicate keys are rejected.
func New(seed int64, countyFIPS string, dists []model.Distribution) (*Synthesizer, error) {
	m := make(map[model.DistributionKey]model.Distribution, len(dists))
	for _, d := range dists {
		if err := d.Validate(); err != nil {
			return nil, eris.Wrap(err, "synth: load distributions")
		}
		if _, ok := m[d.DistributionKey]; ok {
			return nil, eris.Errorf("synth: duplicate distribution %v", d.DistributionKey)
		}
		m[d.DistributionKey] = d
	}
	return &Synthesizer{
		seed:       seed,
		countyFIPS: countyFIPS,
		dists:      m,
		log:        zap.L().With(zap.String("component", "synth"), zap.String("county", countyFIPS)),
	}, nil
}

// Substitutions reports how many draws resolved through each pooled
// fallback tier, for the run report.
func (s *Synthesizer) Substitutions() (tractPooled, countyPooled int) {
	return s.tractPooled, s.countyPooled
}

// resolve finds the distribution for an occupied stratum in a tract,
// falling through the documented substitution chain: exact cell, tract
// pooled across race and ethnicity, county pooled. Nothing defaults
// silently past that.
func (s *Synthesizer) resolve(key model.DistributionKey) (model.Distribution, error) {
	if d, ok := s.dists[key]; ok {
		return d, nil
	}
	tractPool := model.DistributionKey{TractID: key.TractID, Race: model.RaceAny, Hispan: model.HispanAny, Family: key.Family}
	if d, ok := s.dists[tractPool]; ok {
		s.tractPooled++
		return d, nil
	}
	countyPool := model.DistributionKey{TractID: s.countyFIPS, Race: model.RaceAny, Hispan: model.HispanAny, Family: key.Family}
	if d, ok := s.dists[countyPool]; ok {
		s.countyPooled++
		return d, nil
	}
	return model.Distribution{}, eris.Wrapf(ErrMissingDistribution,
		"tract %s race %d hispan %d family %d", key.TractID, key.Race, key.Hispan, key.Family)
}

// Synthesize returns a copy of records with incomes drawn for every
// income-eligible unit. Within a stratum, draws are consumed in huid
// order, so the result does not depend on input order.
func (s *Synthesizer) Synthesize(records []model.HousingUnitRecord) ([]model.HousingUnitRecord, error) {
	out := make([]model.HousingUnitRecord, len(records))
	copy(out, records)

	groups := make(map[string][]int)
	for i, r := range out {
		if !r.IncomeEligible() {
			continue
		}
		key := stratum.ClassifyRecord(r).Key()
		groups[key] = append(groups[key], i)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	drawn := 0
	for _, key := range keys {
		idxs := groups[key]
		sort.Slice(idxs, func(a, b int) bool { return out[idxs[a]].HUID < out[idxs[b]].HUID })

		stream := NewUniformStream(s.seed, s.countyFIPS, key)
		for _, i := range idxs {
			r := &out[i]
			dist, err := s.resolve(stratum.ClassifyRecord(*r).DistKey(r.TractID))
			if err != nil {
				return nil, eris.Wrapf(err, "unit %s", r.HUID)
			}
			income, group := InverseCDF(dist, stream.Next())
			income = RoundCents(income)
			r.IncomeGroup = group
			r.RandIncome = &income
			drawn++
		}
	}

	s.log.Info("synthesized incomes",
		zap.Int("records", len(out)),
		zap.Int("drawn", drawn),
		zap.Int("strata", len(groups)),
		zap.Int("tract_pooled", s.tractPooled),
		zap.Int("county_pooled", s.countyPooled),
	)
	if s.tractPooled > 0 || s.countyPooled > 0 {
		s.log.Warn("income distributions substituted for some strata",
			zap.Int("tract_pooled", s.tractPooled),
			zap.Int("county_pooled", s.countyPooled),
		)
	}
	return out, nil
}
