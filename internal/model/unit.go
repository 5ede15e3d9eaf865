package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Block GEOID layout: state(2) + county(3) + tract(6) + block(4).
const (
	BlockGEOIDLen = 15
	TractGEOIDLen = 11
	CountyFIPSLen = 5
)

// TractOfBlock returns the 11-digit tract GEOID embedded in a block GEOID.
func TractOfBlock(blockID string) (string, error) {
	if len(blockID) != BlockGEOIDLen {
		return "", eris.Errorf("model: block geoid %q is %d chars, want %d", blockID, len(blockID), BlockGEOIDLen)
	}
	return blockID[:TractGEOIDLen], nil
}

// CountyOfBlock returns the 5-digit county FIPS embedded in a block GEOID.
func CountyOfBlock(blockID string) (string, error) {
	if len(blockID) != BlockGEOIDLen {
		return "", eris.Errorf("model: block geoid %q is %d chars, want %d", blockID, len(blockID), BlockGEOIDLen)
	}
	return blockID[:CountyFIPSLen], nil
}

// UnitCount is one cell of a block-level cross tabulation: the number of
// housing units in one block sharing a single demographic profile.
type UnitCount struct {
	BlockID string  `json:"blockid"`
	TractID string  `json:"tractid,omitempty"` // attached by the crosswalk join
	Vacancy Vacancy `json:"vacancy"`
	GQType  GQType  `json:"gqtype"`
	Numprec int     `json:"numprec"`
	Race    Race    `json:"race"`
	Hispan  Hispan  `json:"hispan"`
	Family  Family  `json:"family"`
	Count   int     `json:"count"`
	Vintage int     `json:"vintage"`
}

// HousingUnitRecord is one synthesized housing unit, the published row shape.
type HousingUnitRecord struct {
	HUID        string   `json:"huid"`
	BlockID     string   `json:"blockid"`
	TractID     string   `json:"tractid"`
	Vacancy     Vacancy  `json:"vacancy"`
	GQType      GQType   `json:"gqtype"`
	Numprec     int      `json:"numprec"`
	Race        Race     `json:"race"`
	Hispan      Hispan   `json:"hispan"`
	Family      Family   `json:"family"`
	IncomeGroup int      `json:"incomegroup"` // 1-based CDF segment, 0 when no income drawn
	RandIncome  *float64 `json:"randincome,omitempty"`
}

// IncomeEligible reports whether the unit receives a synthesized income.
// Vacant units and group quarters never do.
func (r HousingUnitRecord) IncomeEligible() bool {
	return r.GQType == GQNone && r.Vacancy == VacancyOccupied
}

// MakeHUID builds the published unit identifier: "H" + block GEOID + a
// four-digit per-block sequence. Unique within a run because the block
// GEOID embeds state and county.
func MakeHUID(blockID string, seq int) string {
	return fmt.Sprintf("H%s%04d", blockID, seq)
}
