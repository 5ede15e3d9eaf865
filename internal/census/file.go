package census

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/fetcher"
	"github.com/sells-group/hui-cli/internal/model"
)

// FileSource loads unit counts and income bracket counts from prepared
// files, CSV or XLSX by extension. Offline runs and fixture counties use
// it in place of the API. Files may hold several counties; rows are
// filtered to the requested one.
//
// The unit file carries the columns blockid, vacancy, gqtype, numprec,
// race, hispan, family, count in any order. The distribution file is
// positional: tractid, race, hispan, family, then the sixteen bracket
// counts in schedule order. Pooled fallback rows (race 0, hispan -1, and
// the county row keyed by the bare FIPS) ship in the file like any other.
type FileSource struct {
	unitsPath string
	distsPath string
	vintage   int
}

// NewFileSource builds a file source over the two prepared files.
func NewFileSource(unitsPath, distsPath string, vintage int) *FileSource {
	return &FileSource{unitsPath: unitsPath, distsPath: distsPath, vintage: vintage}
}

// Name implements Source.
func (s *FileSource) Name() string { return "census_file" }

// Vintage implements Source.
func (s *FileSource) Vintage() int { return s.vintage }

// UnitCounts implements Source.
func (s *FileSource) UnitCounts(ctx context.Context, countyFIPS string) ([]model.UnitCount, error) {
	if len(countyFIPS) != model.CountyFIPSLen {
		return nil, eris.Errorf("census: county fips %q is %d chars, want %d", countyFIPS, len(countyFIPS), model.CountyFIPSLen)
	}
	rows, err := loadRows(ctx, s.unitsPath)
	if err != nil {
		return nil, eris.Wrapf(err, "census: load unit file %s", s.unitsPath)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	colIdx := mapColumns(rows[0])
	for _, name := range []string{"blockid", "vacancy", "gqtype", "numprec", "race", "hispan", "family", "count"} {
		if _, ok := colIdx[name]; !ok {
			return nil, eris.Errorf("census: unit file %s missing column %q", s.unitsPath, name)
		}
	}

	var counts []model.UnitCount
	for i, record := range rows[1:] {
		if isBlankRow(record) {
			continue
		}
		unit, err := parseUnitRow(record, colIdx, s.vintage)
		if err != nil {
			return nil, eris.Wrapf(err, "census: unit file %s row %d", s.unitsPath, i+2)
		}
		if !strings.HasPrefix(unit.BlockID, countyFIPS) {
			continue
		}
		if unit.Count == 0 {
			continue
		}
		counts = append(counts, unit)
	}
	zap.L().Info("loaded unit counts from file",
		zap.String("path", s.unitsPath),
		zap.String("county", countyFIPS),
		zap.Int("rows", len(counts)),
	)
	return counts, nil
}

func parseUnitRow(record []string, colIdx map[string]int, vintage int) (model.UnitCount, error) {
	blockID := trimQuotes(getCol(record, colIdx, "blockid"))
	if len(blockID) != model.BlockGEOIDLen {
		return model.UnitCount{}, eris.Errorf("block geoid %q is %d chars, want %d", blockID, len(blockID), model.BlockGEOIDLen)
	}

	vacancy, err := parseCode(getCol(record, colIdx, "vacancy"))
	if err != nil {
		return model.UnitCount{}, eris.Wrap(err, "vacancy")
	}
	gqtype, err := parseCode(getCol(record, colIdx, "gqtype"))
	if err != nil {
		return model.UnitCount{}, eris.Wrap(err, "gqtype")
	}
	numprec, err := parseCode(getCol(record, colIdx, "numprec"))
	if err != nil {
		return model.UnitCount{}, eris.Wrap(err, "numprec")
	}
	race, hispan, family, err := parseStratum(record, colIdx)
	if err != nil {
		return model.UnitCount{}, err
	}
	count, err := parseCode(getCol(record, colIdx, "count"))
	if err != nil {
		return model.UnitCount{}, eris.Wrap(err, "count")
	}

	unit := model.UnitCount{
		BlockID: blockID,
		Vacancy: model.Vacancy(vacancy),
		GQType:  model.GQType(gqtype),
		Numprec: numprec,
		Race:    race,
		Hispan:  hispan,
		Family:  family,
		Count:   count,
		Vintage: vintage,
	}
	switch {
	case !unit.Vacancy.Valid():
		return model.UnitCount{}, eris.Errorf("vacancy code %d out of range", vacancy)
	case !unit.GQType.Valid():
		return model.UnitCount{}, eris.Errorf("gq type code %d out of range", gqtype)
	case numprec < 0:
		return model.UnitCount{}, eris.Errorf("negative numprec %d", numprec)
	case count < 0:
		return model.UnitCount{}, eris.Errorf("negative count %d", count)
	}
	return unit, nil
}

// Distributions implements Source. Bracket counts convert through the same
// quantile interpolation the API source uses; empty strata are dropped.
func (s *FileSource) Distributions(ctx context.Context, countyFIPS string) ([]model.Distribution, error) {
	if len(countyFIPS) != model.CountyFIPSLen {
		return nil, eris.Errorf("census: county fips %q is %d chars, want %d", countyFIPS, len(countyFIPS), model.CountyFIPSLen)
	}
	rows, err := loadRows(ctx, s.distsPath)
	if err != nil {
		return nil, eris.Wrapf(err, "census: load distribution file %s", s.distsPath)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	for i, name := range []string{"tractid", "race", "hispan", "family"} {
		if i >= len(header) || strings.TrimSpace(header[i]) != name {
			return nil, eris.Errorf("census: distribution file %s wants key columns tractid,race,hispan,family then %d bracket counts", s.distsPath, len(bracketBounds))
		}
	}

	var dists []model.Distribution
	for i, record := range rows[1:] {
		if isBlankRow(record) {
			continue
		}
		d, err := s.parseDistRow(record)
		if err != nil {
			return nil, eris.Wrapf(err, "census: distribution file %s row %d", s.distsPath, i+2)
		}
		if !keyInCounty(d.TractID, countyFIPS) {
			continue
		}
		if d.Breakpoints == nil {
			continue
		}
		dists = append(dists, *d)
	}
	zap.L().Info("loaded income distributions from file",
		zap.String("path", s.distsPath),
		zap.String("county", countyFIPS),
		zap.Int("rows", len(dists)),
	)
	return dists, nil
}

func (s *FileSource) parseDistRow(record []string) (*model.Distribution, error) {
	if len(record) < 4+len(bracketBounds) {
		return nil, eris.Errorf("got %d columns, want %d", len(record), 4+len(bracketBounds))
	}

	tractID := trimQuotes(record[0])
	if len(tractID) != model.TractGEOIDLen && len(tractID) != model.CountyFIPSLen {
		return nil, eris.Errorf("tract geoid %q is %d chars, want %d or %d", tractID, len(tractID), model.TractGEOIDLen, model.CountyFIPSLen)
	}
	colIdx := map[string]int{"race": 1, "hispan": 2, "family": 3}
	race, hispan, family, err := parseStratum(record, colIdx)
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(bracketBounds))
	for i := range counts {
		counts[i] = parseCountOr(record[4+i], 0)
	}
	bps, ceiling := BreakpointsFromBrackets(acsBrackets(counts), breakpointCount)

	d := &model.Distribution{
		DistributionKey: model.DistributionKey{TractID: tractID, Race: race, Hispan: hispan, Family: family},
		Breakpoints:     bps,
		Ceiling:         ceiling,
		Vintage:         s.vintage,
	}
	if bps != nil {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// parseStratum reads and validates the shared race, hispan, family key
// columns.
func parseStratum(record []string, colIdx map[string]int) (model.Race, model.Hispan, model.Family, error) {
	raceCode, err := parseCode(getCol(record, colIdx, "race"))
	if err != nil {
		return 0, 0, 0, eris.Wrap(err, "race")
	}
	hispanCode, err := parseCode(getCol(record, colIdx, "hispan"))
	if err != nil {
		return 0, 0, 0, eris.Wrap(err, "hispan")
	}
	familyCode, err := parseCode(getCol(record, colIdx, "family"))
	if err != nil {
		return 0, 0, 0, eris.Wrap(err, "family")
	}

	race, hispan, family := model.Race(raceCode), model.Hispan(hispanCode), model.Family(familyCode)
	switch {
	case !race.Valid():
		return 0, 0, 0, eris.Errorf("race code %d out of range", raceCode)
	case !hispan.Valid():
		return 0, 0, 0, eris.Errorf("hispan code %d out of range", hispanCode)
	case !family.Valid():
		return 0, 0, 0, eris.Errorf("family code %d out of range", familyCode)
	}
	return race, hispan, family, nil
}

// parseCode parses a signed integer cell; pooled keys carry -1.
func parseCode(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(trimQuotes(s)))
	if err != nil {
		return 0, eris.Wrapf(err, "parse %q", s)
	}
	return v, nil
}

// keyInCounty reports whether a distribution key row belongs to the
// county: a tract inside it or its own pooled row.
func keyInCounty(tractID, countyFIPS string) bool {
	if len(tractID) == model.CountyFIPSLen {
		return tractID == countyFIPS
	}
	return strings.HasPrefix(tractID, countyFIPS)
}

func isBlankRow(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// loadRows reads a tabular file whole, header included, choosing the
// decoder by extension.
func loadRows(ctx context.Context, path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	return fetcher.ReadAllCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})
}
