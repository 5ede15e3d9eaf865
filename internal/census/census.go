// Package census loads block unit-count tabulations and tract income
// distributions from the Census Bureau API or from prepared files, and
// keeps county snapshots warm in the local store.
package census

import (
	"context"

	"github.com/sells-group/hui-cli/internal/model"
)

// Source names recorded in the sync ledger.
const (
	SourceUnits   = "sf1_units"
	SourceIncomes = "acs_income"
)

// UnitCountSource supplies block-keyed demographic cross-tab counts for a
// county, vintage-tagged.
type UnitCountSource interface {
	Name() string
	Vintage() int
	UnitCounts(ctx context.Context, countyFIPS string) ([]model.UnitCount, error)
}

// DistributionSource supplies tract-and-stratum-keyed income breakpoints
// for a county, including the tract-total and county-total pooled rows the
// synthesis fallback chain resolves against.
type DistributionSource interface {
	Name() string
	Vintage() int
	Distributions(ctx context.Context, countyFIPS string) ([]model.Distribution, error)
}

// Source is a combined provider. Both the API client and the file source
// serve the unit and income sides together.
type Source interface {
	UnitCountSource
	DistributionSource
}
