package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTractOfBlock(t *testing.T) {
	t.Parallel()

	t.Run("well formed block", func(t *testing.T) {
		t.Parallel()
		tract, err := TractOfBlock("371559701001000")
		require.NoError(t, err)
		assert.Equal(t, "37155970100", tract)
	})

	t.Run("county prefix", func(t *testing.T) {
		t.Parallel()
		county, err := CountyOfBlock("371559701001000")
		require.NoError(t, err)
		assert.Equal(t, "37155", county)
	})

	t.Run("short geoid rejected", func(t *testing.T) {
		t.Parallel()
		_, err := TractOfBlock("37155")
		require.Error(t, err)
		_, err = CountyOfBlock("3715597010")
		require.Error(t, err)
	})
}

func TestMakeHUID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "H3715597010010000007", MakeHUID("371559701001000", 7))
	assert.Equal(t, "H3715597010010001234", MakeHUID("371559701001000", 1234))
}

func TestIncomeEligible(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  HousingUnitRecord
		want bool
	}{
		{"occupied household", HousingUnitRecord{Vacancy: VacancyOccupied, GQType: GQNone}, true},
		{"vacant for rent", HousingUnitRecord{Vacancy: VacancyForRent, GQType: GQNone}, false},
		{"group quarters", HousingUnitRecord{Vacancy: VacancyOccupied, GQType: GQCollege}, false},
		{"vacant seasonal", HousingUnitRecord{Vacancy: VacancySeasonal, GQType: GQNone}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.rec.IncomeEligible())
		})
	}
}

func TestCodeLabels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "White alone", RaceWhite.Label())
	assert.Equal(t, "Not reported", RaceAny.Label())
	assert.Equal(t, "Hispanic or Latino", HispanLatino.Label())
	assert.Equal(t, "Family household", FamilyYes.Label())
	assert.Equal(t, "For seasonal, recreational, or occasional use", VacancySeasonal.Label())
	assert.Equal(t, "College or university student housing", GQCollege.Label())
}

func TestCodeValidity(t *testing.T) {
	t.Parallel()
	assert.True(t, RaceTwoPlus.Valid())
	assert.False(t, Race(8).Valid())
	assert.True(t, HispanAny.Valid())
	assert.False(t, Hispan(2).Valid())
	assert.True(t, VacancyOtherVacant.Valid())
	assert.False(t, Vacancy(-1).Valid())
	assert.True(t, GQMilitary.Valid())
	assert.False(t, GQType(9).Valid())
}
