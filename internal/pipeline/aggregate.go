package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/inventory"
	"github.com/sells-group/hui-cli/internal/model"
)

// Aggregate concatenates county results in community county-list order,
// never worker completion order, and finalizes the published table. A huid
// appearing twice across counties is a data-integrity error.
func Aggregate(comm community.Community, results []*CountyResult) (*model.Table, []model.HousingUnitRecord, error) {
	if len(results) != len(comm.Counties) {
		return nil, nil, eris.Errorf("pipeline: %s has %d counties but %d results",
			comm.ID, len(comm.Counties), len(results))
	}

	total := 0
	for i, res := range results {
		if res == nil {
			return nil, nil, eris.Errorf("pipeline: missing result for county %s", comm.Counties[i].FIPS)
		}
		if res.County.FIPS != comm.Counties[i].FIPS {
			return nil, nil, eris.Errorf("pipeline: result order mismatch at %d: %s != %s",
				i, res.County.FIPS, comm.Counties[i].FIPS)
		}
		total += len(res.Records)
	}

	records := make([]model.HousingUnitRecord, 0, total)
	seen := make(map[string]string, total) // huid -> county
	for _, res := range results {
		for _, r := range res.Records {
			if prev, dup := seen[r.HUID]; dup {
				return nil, nil, eris.Errorf("pipeline: duplicate huid %s in counties %s and %s",
					r.HUID, prev, res.County.FIPS)
			}
			seen[r.HUID] = res.County.FIPS
			records = append(records, r)
		}
	}

	table, err := inventory.Finalize(records)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: finalize %s table", comm.ID)
	}
	return table, records, nil
}
