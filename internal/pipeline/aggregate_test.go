package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/model"
)

func testCommunity() community.Community {
	return community.Community{
		ID:   "twocounty",
		Name: "Two County Region",
		Counties: []community.County{
			{FIPS: "37155", Name: "Robeson County"},
			{FIPS: "37093", Name: "Hoke County"},
		},
	}
}

func countyResult(fips, name string, huids ...string) *CountyResult {
	res := &CountyResult{County: community.County{FIPS: fips, Name: name}}
	for _, huid := range huids {
		res.Records = append(res.Records, model.HousingUnitRecord{
			HUID:    huid,
			BlockID: "371559701001000",
			TractID: "37155970100",
			Vacancy: model.VacancyForRent, // no income fields needed
		})
	}
	return res
}

func TestAggregatePreservesCountyOrder(t *testing.T) {
	comm := testCommunity()
	results := []*CountyResult{
		countyResult("37155", "Robeson County", "H-a", "H-b"),
		countyResult("37093", "Hoke County", "H-c"),
	}

	table, records, err := Aggregate(comm, results)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "H-a", records[0].HUID)
	assert.Equal(t, "H-c", records[2].HUID)
	assert.Len(t, table.Rows, 3)
}

func TestAggregateDuplicateHUID(t *testing.T) {
	comm := testCommunity()
	results := []*CountyResult{
		countyResult("37155", "Robeson County", "H-dup"),
		countyResult("37093", "Hoke County", "H-dup"),
	}

	_, _, err := Aggregate(comm, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate huid H-dup")
}

func TestAggregateOrderMismatch(t *testing.T) {
	comm := testCommunity()
	results := []*CountyResult{
		countyResult("37093", "Hoke County", "H-c"),
		countyResult("37155", "Robeson County", "H-a"),
	}

	_, _, err := Aggregate(comm, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order mismatch")
}

func TestAggregateMissingResult(t *testing.T) {
	comm := testCommunity()
	_, _, err := Aggregate(comm, []*CountyResult{countyResult("37155", "Robeson County", "H-a"), nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing result for county 37093")
}
