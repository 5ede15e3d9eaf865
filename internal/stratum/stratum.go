// Package stratum classifies housing unit counts into the sampling strata
// that drive income synthesis. Classification is total: every count row
// lands in exactly one stratum.
package stratum

import (
	"fmt"

	"github.com/sells-group/hui-cli/internal/model"
)

// Kind is the coarse stratum class.
type Kind int

const (
	KindOccupied Kind = iota
	KindVacant
	KindGroupQuarters
)

// Stratum identifies one sampling stratum. Occupied strata carry the
// demographic triple; vacant and group quarters strata carry their
// subtype code.
type Stratum struct {
	Kind    Kind
	Race    model.Race
	Hispan  model.Hispan
	Family  model.Family
	Vacancy model.Vacancy
	GQType  model.GQType
}

// Classify assigns a count row to its stratum. Group quarters takes
// precedence over vacancy, and vacancy over occupancy, so rows carrying
// artifacts of both dimensions classify the same way every run.
func Classify(uc model.UnitCount) Stratum {
	switch {
	case uc.GQType != model.GQNone:
		return Stratum{Kind: KindGroupQuarters, GQType: uc.GQType, Race: uc.Race, Hispan: uc.Hispan}
	case uc.Vacancy != model.VacancyOccupied:
		return Stratum{Kind: KindVacant, Vacancy: uc.Vacancy}
	default:
		return Stratum{Kind: KindOccupied, Race: uc.Race, Hispan: uc.Hispan, Family: uc.Family}
	}
}

// ClassifyRecord assigns a synthesized record to its stratum under the
// same precedence as Classify.
func ClassifyRecord(r model.HousingUnitRecord) Stratum {
	return Classify(model.UnitCount{
		Race:    r.Race,
		Hispan:  r.Hispan,
		Family:  r.Family,
		Vacancy: r.Vacancy,
		GQType:  r.GQType,
	})
}

// IncomeEligible reports whether units in this stratum draw an income.
func (s Stratum) IncomeEligible() bool {
	return s.Kind == KindOccupied
}

// Key returns the canonical stratum key. It names the random stream for
// the stratum within a county and orders strata during expansion, so its
// format is load-bearing: changing it changes every synthesized value.
func (s Stratum) Key() string {
	switch s.Kind {
	case KindGroupQuarters:
		return fmt.Sprintf("gq:%d", s.GQType)
	case KindVacant:
		return fmt.Sprintf("vac:%d", s.Vacancy)
	default:
		return fmt.Sprintf("occ:r%d:h%d:f%d", s.Race, s.Hispan, s.Family)
	}
}

// DistKey returns the income distribution key for an occupied stratum in
// the given tract.
func (s Stratum) DistKey(tractID string) model.DistributionKey {
	return model.DistributionKey{
		TractID: tractID,
		Race:    s.Race,
		Hispan:  s.Hispan,
		Family:  s.Family,
	}
}
