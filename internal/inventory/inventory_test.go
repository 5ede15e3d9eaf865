package inventory

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hui-cli/internal/model"
)

const (
	blockA = "371559701001000"
	blockB = "371559701001001"
	tractA = "37155970100"
)

func joinedCounts() []model.UnitCount {
	return []model.UnitCount{
		{BlockID: blockA, TractID: tractA, Race: model.RaceWhite, Hispan: model.HispanNot, Family: model.FamilyYes, Numprec: 2, Count: 3},
		{BlockID: blockA, TractID: tractA, Vacancy: model.VacancyForRent, Count: 2},
		{BlockID: blockB, TractID: tractA, GQType: model.GQCollege, Numprec: 120, Count: 1},
		{BlockID: blockB, TractID: tractA, Race: model.RaceBlack, Hispan: model.HispanNot, Family: model.FamilyNo, Numprec: 1, Count: 2},
	}
}

func TestExpandCoverage(t *testing.T) {
	t.Parallel()

	records, err := Expand(joinedCounts())
	require.NoError(t, err)
	assert.Len(t, records, 8) // 3+2+1+2

	seen := make(map[string]bool)
	for _, r := range records {
		assert.False(t, seen[r.HUID], "duplicate huid %s", r.HUID)
		seen[r.HUID] = true
		assert.Equal(t, tractA, r.TractID)
	}
}

func TestExpandCanonicalOrder(t *testing.T) {
	t.Parallel()

	counts := joinedCounts()
	base, err := Expand(counts)
	require.NoError(t, err)

	shuffled := make([]model.UnitCount, len(counts))
	copy(shuffled, counts)
	r := rand.New(rand.NewPCG(7, 7))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	again, err := Expand(shuffled)
	require.NoError(t, err)
	assert.Equal(t, base, again)
}

func TestExpandRecordShapes(t *testing.T) {
	t.Parallel()

	records, err := Expand(joinedCounts())
	require.NoError(t, err)

	var occupied, vacant, gq int
	for _, r := range records {
		switch {
		case r.GQType != model.GQNone:
			gq++
			assert.Equal(t, model.VacancyOccupied, r.Vacancy)
			assert.Equal(t, 120, r.Numprec)
			assert.Equal(t, model.FamilyAny, r.Family)
		case r.Vacancy != model.VacancyOccupied:
			vacant++
			assert.Zero(t, r.Numprec)
			assert.Equal(t, model.FamilyAny, r.Family)
		default:
			occupied++
			assert.NotEqual(t, model.FamilyAny, r.Family)
			assert.Positive(t, r.Numprec)
		}
	}
	assert.Equal(t, 5, occupied)
	assert.Equal(t, 2, vacant)
	assert.Equal(t, 1, gq)
}

func TestExpandErrors(t *testing.T) {
	t.Parallel()

	t.Run("negative count", func(t *testing.T) {
		t.Parallel()
		_, err := Expand([]model.UnitCount{{BlockID: blockA, TractID: tractA, Count: -1}})
		assert.Error(t, err)
	})

	t.Run("unjoined row", func(t *testing.T) {
		t.Parallel()
		_, err := Expand([]model.UnitCount{{BlockID: blockA, Count: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not joined")
	})

	t.Run("block overflow", func(t *testing.T) {
		t.Parallel()
		_, err := Expand([]model.UnitCount{{BlockID: blockA, TractID: tractA, Race: model.RaceWhite, Family: model.FamilyNo, Numprec: 1, Count: 10000}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds")
	})

	t.Run("zero count yields nothing", func(t *testing.T) {
		t.Parallel()
		records, err := Expand([]model.UnitCount{{BlockID: blockA, TractID: tractA, Race: model.RaceWhite, Family: model.FamilyNo, Numprec: 1, Count: 0}})
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	income := 45231.5
	records := []model.HousingUnitRecord{
		{
			HUID: "Ha", BlockID: blockA, TractID: tractA,
			Numprec: 4, Race: model.RaceWhite, Hispan: model.HispanNot, Family: model.FamilyYes,
			IncomeGroup: 3, RandIncome: &income,
		},
		{
			HUID: "Hb", BlockID: blockA, TractID: tractA,
			Vacancy: model.VacancySeasonal, Race: model.RaceAny, Hispan: model.HispanAny, Family: model.FamilyAny,
		},
	}

	tbl, err := Finalize(records)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)

	var sb strings.Builder
	require.NoError(t, tbl.WriteCSV(&sb))
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "huid,blockid,tractid,vacancy,gqtype,numprec,race,hispan,family,incomegroup,randincome", lines[0])
	assert.Equal(t, "Ha,"+blockA+","+tractA+",0,0,4,1,0,1,3,45231.5", lines[1])
	assert.Equal(t, "Hb,"+blockA+","+tractA+",5,0,0,,,,,", lines[2])
}

func TestColumnsStable(t *testing.T) {
	t.Parallel()

	names := make([]string, 0, len(Columns()))
	for _, c := range Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"huid", "blockid", "tractid", "vacancy", "gqtype", "numprec",
		"race", "hispan", "family", "incomegroup", "randincome",
	}, names)
}
