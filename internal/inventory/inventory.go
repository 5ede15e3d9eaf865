// Package inventory expands block-level unit counts into one record per
// housing unit and shapes synthesized records into the published table.
package inventory

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/stratum"
)

// maxUnitsPerBlock keeps the four-digit huid sequence honest.
const maxUnitsPerBlock = 9999

// Columns returns the published column set, identical for every county.
func Columns() []model.Column {
	return []model.Column{
		{Name: "huid", Kind: model.ColumnString},
		{Name: "blockid", Kind: model.ColumnString},
		{Name: "tractid", Kind: model.ColumnString},
		{Name: "vacancy", Kind: model.ColumnInt},
		{Name: "gqtype", Kind: model.ColumnInt},
		{Name: "numprec", Kind: model.ColumnInt},
		{Name: "race", Kind: model.ColumnInt},
		{Name: "hispan", Kind: model.ColumnInt},
		{Name: "family", Kind: model.ColumnInt},
		{Name: "incomegroup", Kind: model.ColumnInt},
		{Name: "randincome", Kind: model.ColumnFloat},
	}
}

// Expand turns joined count rows into per-unit records. Rows are processed
// in canonical order (block, stratum key, household size) and huids number
// each block's units from 1, so the output is a pure function of the count
// set regardless of input order.
func Expand(counts []model.UnitCount) ([]model.HousingUnitRecord, error) {
	sorted := make([]model.UnitCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BlockID != b.BlockID {
			return a.BlockID < b.BlockID
		}
		ak, bk := stratum.Classify(a).Key(), stratum.Classify(b).Key()
		if ak != bk {
			return ak < bk
		}
		return a.Numprec < b.Numprec
	})

	var records []model.HousingUnitRecord
	seq := make(map[string]int)
	for _, uc := range sorted {
		if uc.Count < 0 {
			return nil, eris.Errorf("inventory: negative count for block %s", uc.BlockID)
		}
		if uc.TractID == "" {
			return nil, eris.Errorf("inventory: block %s not joined to a tract", uc.BlockID)
		}
		st := stratum.Classify(uc)
		for i := 0; i < uc.Count; i++ {
			seq[uc.BlockID]++
			if seq[uc.BlockID] > maxUnitsPerBlock {
				return nil, eris.Errorf("inventory: block %s exceeds %d units", uc.BlockID, maxUnitsPerBlock)
			}
			records = append(records, buildRecord(uc, st, seq[uc.BlockID]))
		}
	}

	zap.L().With(zap.String("component", "inventory")).Debug("expanded counts",
		zap.Int("cells", len(counts)),
		zap.Int("records", len(records)),
		zap.Int("blocks", len(seq)),
	)
	return records, nil
}

func buildRecord(uc model.UnitCount, st stratum.Stratum, seq int) model.HousingUnitRecord {
	rec := model.HousingUnitRecord{
		HUID:    model.MakeHUID(uc.BlockID, seq),
		BlockID: uc.BlockID,
		TractID: uc.TractID,
		Race:    uc.Race,
		Hispan:  uc.Hispan,
		Family:  model.FamilyAny,
	}
	switch st.Kind {
	case stratum.KindGroupQuarters:
		rec.GQType = st.GQType
		rec.Numprec = uc.Numprec
	case stratum.KindVacant:
		rec.Vacancy = st.Vacancy
	default:
		rec.Family = uc.Family
		rec.Numprec = uc.Numprec
	}
	return rec
}

// Finalize shapes records into the published table and normalizes every
// cell to its declared column kind.
func Finalize(records []model.HousingUnitRecord) (*model.Table, error) {
	t := model.NewTable(Columns())
	for _, r := range records {
		row := []any{
			r.HUID,
			r.BlockID,
			r.TractID,
			int(r.Vacancy),
			int(r.GQType),
			r.Numprec,
			cellRace(r.Race),
			cellHispan(r.Hispan),
			cellFamily(r.Family),
			cellGroup(r.IncomeGroup),
			cellIncome(r.RandIncome),
		}
		if err := t.Append(row); err != nil {
			return nil, eris.Wrapf(err, "inventory: finalize unit %s", r.HUID)
		}
	}
	if err := t.Normalize(); err != nil {
		return nil, eris.Wrap(err, "inventory: finalize")
	}
	return t, nil
}

func cellRace(r model.Race) any {
	if r == model.RaceAny {
		return nil
	}
	return int(r)
}

func cellHispan(h model.Hispan) any {
	if h == model.HispanAny {
		return nil
	}
	return int(h)
}

func cellFamily(f model.Family) any {
	if f == model.FamilyAny {
		return nil
	}
	return int(f)
}

func cellGroup(g int) any {
	if g == 0 {
		return nil
	}
	return g
}

func cellIncome(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
