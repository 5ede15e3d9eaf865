package synth

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/hui-cli/internal/model"
)

const (
	testTract  = "37155970100"
	testCounty = "37155"
)

func occupiedRecords(t *testing.T, n int, race model.Race, hispan model.Hispan, family model.Family) []model.HousingUnitRecord {
	t.Helper()
	recs := make([]model.HousingUnitRecord, n)
	for i := range recs {
		recs[i] = model.HousingUnitRecord{
			HUID:    model.MakeHUID(testTract+"1000", i+1),
			BlockID: testTract + "1000",
			TractID: testTract,
			Numprec: 2,
			Race:    race,
			Hispan:  hispan,
			Family:  family,
		}
	}
	return recs
}

func distFor(race model.Race, hispan model.Hispan, family model.Family) model.Distribution {
	return model.Distribution{
		DistributionKey: model.DistributionKey{TractID: testTract, Race: race, Hispan: hispan, Family: family},
		Breakpoints:     []float64{20000, 40000, 60000, 80000},
		Ceiling:         160000,
	}
}

func TestSynthesizeDeterminism(t *testing.T) {
	t.Parallel()

	recs := occupiedRecords(t, 40, model.RaceWhite, model.HispanNot, model.FamilyYes)
	dists := []model.Distribution{distFor(model.RaceWhite, model.HispanNot, model.FamilyYes)}

	s1, err := New(9876, testCounty, dists)
	require.NoError(t, err)
	out1, err := s1.Synthesize(recs)
	require.NoError(t, err)

	s2, err := New(9876, testCounty, dists)
	require.NoError(t, err)
	out2, err := s2.Synthesize(recs)
	require.NoError(t, err)

	require.Len(t, out1, 40)
	for i := range out1 {
		require.NotNil(t, out1[i].RandIncome)
		require.NotNil(t, out2[i].RandIncome)
		assert.Equal(t, *out1[i].RandIncome, *out2[i].RandIncome)
		assert.Equal(t, out1[i].IncomeGroup, out2[i].IncomeGroup)
	}
}

func TestSynthesizeOrderIndependence(t *testing.T) {
	t.Parallel()

	recs := occupiedRecords(t, 60, model.RaceBlack, model.HispanNot, model.FamilyNo)
	dists := []model.Distribution{distFor(model.RaceBlack, model.HispanNot, model.FamilyNo)}

	s1, err := New(9876, testCounty, dists)
	require.NoError(t, err)
	out1, err := s1.Synthesize(recs)
	require.NoError(t, err)

	shuffled := make([]model.HousingUnitRecord, len(recs))
	copy(shuffled, recs)
	r := rand.New(rand.NewPCG(1, 2))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	s2, err := New(9876, testCounty, dists)
	require.NoError(t, err)
	out2, err := s2.Synthesize(shuffled)
	require.NoError(t, err)

	byHUID := make(map[string]float64, len(out2))
	for _, rec := range out2 {
		require.NotNil(t, rec.RandIncome)
		byHUID[rec.HUID] = *rec.RandIncome
	}
	for _, rec := range out1 {
		assert.Equal(t, byHUID[rec.HUID], *rec.RandIncome, "huid %s", rec.HUID)
	}
}

func TestSynthesizeSkipsIneligible(t *testing.T) {
	t.Parallel()

	recs := []model.HousingUnitRecord{
		{HUID: "H1", BlockID: testTract + "1000", TractID: testTract, Vacancy: model.VacancyForRent},
		{HUID: "H2", BlockID: testTract + "1000", TractID: testTract, GQType: model.GQCollege},
	}
	s, err := New(9876, testCounty, nil)
	require.NoError(t, err)

	out, err := s.Synthesize(recs)
	require.NoError(t, err)
	for _, rec := range out {
		assert.Nil(t, rec.RandIncome)
		assert.Zero(t, rec.IncomeGroup)
	}
}

func TestSynthesizeFallbacks(t *testing.T) {
	t.Parallel()

	t.Run("tract pooled", func(t *testing.T) {
		t.Parallel()
		recs := occupiedRecords(t, 5, model.RaceAsian, model.HispanNot, model.FamilyYes)
		dists := []model.Distribution{distFor(model.RaceAny, model.HispanAny, model.FamilyYes)}

		s, err := New(9876, testCounty, dists)
		require.NoError(t, err)
		out, err := s.Synthesize(recs)
		require.NoError(t, err)
		for _, rec := range out {
			require.NotNil(t, rec.RandIncome)
		}
		assert.Equal(t, 5, s.tractPooled)
		assert.Zero(t, s.countyPooled)
	})

	t.Run("county pooled", func(t *testing.T) {
		t.Parallel()
		recs := occupiedRecords(t, 3, model.RaceAsian, model.HispanNot, model.FamilyNo)
		countyDist := model.Distribution{
			DistributionKey: model.DistributionKey{TractID: testCounty, Race: model.RaceAny, Hispan: model.HispanAny, Family: model.FamilyNo},
			Breakpoints:     []float64{15000, 30000, 45000},
			Ceiling:         90000,
		}

		s, err := New(9876, testCounty, []model.Distribution{countyDist})
		require.NoError(t, err)
		out, err := s.Synthesize(recs)
		require.NoError(t, err)
		for _, rec := range out {
			require.NotNil(t, rec.RandIncome)
			assert.LessOrEqual(t, *rec.RandIncome, 90000.0)
		}
		assert.Equal(t, 3, s.countyPooled)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		t.Parallel()
		recs := occupiedRecords(t, 1, model.RacePacific, model.HispanNot, model.FamilyYes)
		s, err := New(9876, testCounty, nil)
		require.NoError(t, err)

		_, err = s.Synthesize(recs)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingDistribution))
	})
}

func TestNewRejectsBadDistributions(t *testing.T) {
	t.Parallel()

	t.Run("duplicate key", func(t *testing.T) {
		t.Parallel()
		d := distFor(model.RaceWhite, model.HispanNot, model.FamilyYes)
		_, err := New(9876, testCounty, []model.Distribution{d, d})
		assert.Error(t, err)
	})

	t.Run("invalid breakpoints", func(t *testing.T) {
		t.Parallel()
		d := distFor(model.RaceWhite, model.HispanNot, model.FamilyYes)
		d.Breakpoints = []float64{40000, 20000}
		_, err := New(9876, testCounty, []model.Distribution{d})
		assert.Error(t, err)
	})
}

// Three strata, one hundred units, the fixed production seed. Incomes must
// replay exactly and each stratum's median must land in the middle segment
// of its distribution.
func TestSynthesizeScenario(t *testing.T) {
	t.Parallel()

	strata := []struct {
		race   model.Race
		hispan model.Hispan
		family model.Family
		n      int
	}{
		{model.RaceWhite, model.HispanNot, model.FamilyYes, 34},
		{model.RaceBlack, model.HispanNot, model.FamilyYes, 33},
		{model.RaceWhite, model.HispanLatino, model.FamilyNo, 33},
	}

	var recs []model.HousingUnitRecord
	var dists []model.Distribution
	seq := 0
	for _, st := range strata {
		dists = append(dists, distFor(st.race, st.hispan, st.family))
		for i := 0; i < st.n; i++ {
			seq++
			recs = append(recs, model.HousingUnitRecord{
				HUID:    model.MakeHUID(testTract+"1000", seq),
				BlockID: testTract + "1000",
				TractID: testTract,
				Numprec: 2,
				Race:    st.race,
				Hispan:  st.hispan,
				Family:  st.family,
			})
		}
	}
	require.Len(t, recs, 100)

	run := func() []model.HousingUnitRecord {
		s, err := New(9876, testCounty, dists)
		require.NoError(t, err)
		out, err := s.Synthesize(recs)
		require.NoError(t, err)
		return out
	}

	out1 := run()
	out2 := run()
	for i := range out1 {
		require.NotNil(t, out1[i].RandIncome)
		assert.Equal(t, *out1[i].RandIncome, *out2[i].RandIncome)
		assert.Equal(t, out1[i].IncomeGroup, out2[i].IncomeGroup)
	}

	for _, st := range strata {
		var incomes []float64
		for _, rec := range out1 {
			if rec.Race == st.race && rec.Hispan == st.hispan && rec.Family == st.family {
				incomes = append(incomes, *rec.RandIncome)
				assert.GreaterOrEqual(t, rec.IncomeGroup, 1)
				assert.LessOrEqual(t, rec.IncomeGroup, 5)
				assert.Equal(t, RoundCents(*rec.RandIncome), *rec.RandIncome)
				assert.GreaterOrEqual(t, *rec.RandIncome, 0.0)
				assert.LessOrEqual(t, *rec.RandIncome, 160000.0)
			}
		}
		require.Len(t, incomes, st.n)
		sort.Float64s(incomes)
		// With ~33 draws per stratum the sample median scatters around the
		// 50000 distribution center; the band covers that scatter.
		median := stat.Quantile(0.5, stat.Empirical, incomes, nil)
		assert.GreaterOrEqual(t, median, 25000.0)
		assert.LessOrEqual(t, median, 75000.0)
	}
}
