package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/model"
)

// fakeSource serves canned county snapshots for pipeline tests.
type fakeSource struct {
	counts map[string][]model.UnitCount
	dists  map[string][]model.Distribution
	fail   map[string]bool // counties whose loads error
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Vintage() int { return 2010 }

func (f *fakeSource) UnitCounts(_ context.Context, countyFIPS string) ([]model.UnitCount, error) {
	if f.fail[countyFIPS] {
		return nil, eris.Errorf("fake: source unavailable for %s", countyFIPS)
	}
	return f.counts[countyFIPS], nil
}

func (f *fakeSource) Distributions(_ context.Context, countyFIPS string) ([]model.Distribution, error) {
	if f.fail[countyFIPS] {
		return nil, eris.Errorf("fake: source unavailable for %s", countyFIPS)
	}
	return f.dists[countyFIPS], nil
}

// robesonSource builds a one-county source: two blocks in tract
// 37155970100 with occupied, vacant, and group quarters units.
func robesonSource() *fakeSource {
	return &fakeSource{
		counts: map[string][]model.UnitCount{
			"37155": {
				{
					BlockID: "371559701001000", Vacancy: model.VacancyOccupied,
					Race: model.RaceWhite, Hispan: model.HispanNot, Family: model.FamilyYes,
					Numprec: 3, Count: 2, Vintage: 2010,
				},
				{
					BlockID: "371559701001000", Vacancy: model.VacancyForRent,
					Count: 1, Vintage: 2010,
				},
				{
					BlockID: "371559701001001", Vacancy: model.VacancyOccupied,
					Race: model.RaceBlack, Hispan: model.HispanNot, Family: model.FamilyNo,
					Numprec: 1, Count: 1, Vintage: 2010,
				},
				{
					BlockID: "371559701001001", GQType: model.GQCollege,
					Numprec: 1, Count: 1, Vintage: 2010,
				},
			},
		},
		dists: map[string][]model.Distribution{
			"37155": {
				{
					DistributionKey: model.DistributionKey{
						TractID: "37155970100", Race: model.RaceWhite,
						Hispan: model.HispanNot, Family: model.FamilyYes,
					},
					Breakpoints: []float64{20000, 40000, 60000, 80000},
					Ceiling:     160000, Vintage: 2010,
				},
				{
					DistributionKey: model.DistributionKey{
						TractID: "37155970100", Race: model.RaceBlack,
						Hispan: model.HispanNot, Family: model.FamilyNo,
					},
					Breakpoints: []float64{15000, 30000, 45000, 60000},
					Ceiling:     120000, Vintage: 2010,
				},
			},
		},
	}
}
