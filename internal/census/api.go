package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/config"
	"github.com/sells-group/hui-cli/internal/fetcher"
	"github.com/sells-group/hui-cli/internal/model"
)

const (
	sf1Dataset = "dec/sf1"
	acsDataset = "acs/acs5"

	// ACS household income tables: family and nonfamily households,
	// sixteen brackets each.
	tableFamilyIncome    = "B19101"
	tableNonfamilyIncome = "B19201"
)

// sf1Variables is the single block-level pull: occupancy status (H3),
// vacancy status (H5), householder ethnicity by race (H7), household size
// (H13), and group quarters population by type (P42). 46 variables, under
// the API's 50-per-request cap.
var sf1Variables = func() []string {
	vars := []string{"H003001", "H003002", "H003003"}
	for i := 1; i <= 8; i++ {
		vars = append(vars, fmt.Sprintf("H005%03d", i))
	}
	for i := 1; i <= 17; i++ {
		vars = append(vars, fmt.Sprintf("H007%03d", i))
	}
	for i := 1; i <= 8; i++ {
		vars = append(vars, fmt.Sprintf("H013%03d", i))
	}
	for i := 1; i <= 10; i++ {
		vars = append(vars, fmt.Sprintf("P042%03d", i))
	}
	return vars
}()

// gqCells maps P42 cells to group quarters type codes 1..7. Cells 002 and
// 007 are the institutional and noninstitutional subtotals and are skipped.
var gqCells = [7]string{
	"P042003", // correctional
	"P042004", // juvenile
	"P042005", // nursing
	"P042006", // other institutional
	"P042008", // college housing
	"P042009", // military quarters
	"P042010", // other noninstitutional
}

// raceIterations maps ACS table race iterations onto distribution key
// strata. B through G and H are householder races holding ethnicity at
// not-Hispanic; iteration I is Hispanic householders of any race and is
// replicated across the race codes so a Hispanic householder of any race
// draws from the Hispanic income distribution. Iteration A (White alone
// regardless of ethnicity) overlaps H and I and is not pulled.
var raceIterations = []struct {
	suffix string
	races  []model.Race
	hispan model.Hispan
}{
	{"H", []model.Race{model.RaceWhite}, model.HispanNot},
	{"B", []model.Race{model.RaceBlack}, model.HispanNot},
	{"C", []model.Race{model.RaceAmerIndian}, model.HispanNot},
	{"D", []model.Race{model.RaceAsian}, model.HispanNot},
	{"E", []model.Race{model.RacePacific}, model.HispanNot},
	{"F", []model.Race{model.RaceOther}, model.HispanNot},
	{"G", []model.Race{model.RaceTwoPlus}, model.HispanNot},
	{"I", []model.Race{
		model.RaceWhite, model.RaceBlack, model.RaceAmerIndian, model.RaceAsian,
		model.RacePacific, model.RaceOther, model.RaceTwoPlus,
	}, model.HispanLatino},
}

// incomeTables pairs each income table with the family code its universe
// carries.
var incomeTables = []struct {
	table  string
	family model.Family
}{
	{tableFamilyIncome, model.FamilyYes},
	{tableNonfamilyIncome, model.FamilyNo},
}

// APISource pulls block unit counts from the decennial SF1 tabulations and
// tract income distributions from the ACS 5-year tables.
type APISource struct {
	f       fetcher.Downloader
	baseURL string
	apiKey  string
	vintage int
	acsYear int
}

// NewAPISource builds an API source for one decennial vintage. The ACS
// endpoint year comes from the census config.
func NewAPISource(f fetcher.Downloader, cfg config.CensusConfig, vintage int) *APISource {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.census.gov/data"
	}
	return &APISource{
		f:       f,
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.Key,
		vintage: vintage,
		acsYear: cfg.ACSYear,
	}
}

// Name implements Source.
func (s *APISource) Name() string { return "census_api" }

// Vintage implements Source.
func (s *APISource) Vintage() int { return s.vintage }

// UnitCounts fetches the county's block tabulations in one request and
// assembles them into demographic cross-tab rows: occupied households by
// race, ethnicity, size, and family status, vacant units by vacancy type,
// and group quarters residents by facility type.
func (s *APISource) UnitCounts(ctx context.Context, countyFIPS string) ([]model.UnitCount, error) {
	state, county, err := SplitCountyFIPS(countyFIPS)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("source", s.Name()), zap.String("county", countyFIPS))

	shares, err := s.familyShares(ctx, state, county)
	if err != nil {
		log.Warn("family share lookup failed, splitting households evenly", zap.Error(err))
		shares = map[string]float64{}
	}

	url := fmt.Sprintf("%s/%d/%s?get=%s&for=block:*&in=state:%s%%20county:%s",
		s.baseURL, s.vintage, sf1Dataset, strings.Join(sf1Variables, ","), state, county)

	raw, err := s.fetchRows(ctx, s.withKey(url))
	if err != nil {
		return nil, eris.Wrapf(err, "census: fetch sf1 blocks for %s", countyFIPS)
	}
	if len(raw) < 2 {
		return nil, nil
	}

	colIdx := mapColumns(raw[0])
	var counts []model.UnitCount
	mismatched := 0
	for _, record := range raw[1:] {
		blockID := getCol(record, colIdx, "state") + getCol(record, colIdx, "county") +
			getCol(record, colIdx, "tract") + getCol(record, colIdx, "block")
		if len(blockID) != model.BlockGEOIDLen {
			log.Warn("skipping malformed block geography", zap.String("block", blockID))
			continue
		}

		cells := decodeBlock(record, colIdx)
		rows, mismatch := buildBlockRows(blockID, cells, shareFor(shares, blockID, countyFIPS), s.vintage)
		if mismatch {
			mismatched++
		}
		counts = append(counts, rows...)
	}
	if mismatched > 0 {
		log.Warn("householder cross-tab disagrees with occupancy total", zap.Int("blocks", mismatched))
	}
	log.Info("fetched block unit counts",
		zap.Int("blocks", len(raw)-1),
		zap.Int("rows", len(counts)),
	)
	return counts, nil
}

// blockCells holds one block's decoded tabulation, indexed by code minus
// one: sizes and vacant by household size and vacancy type 1..7, hh by
// race 1..7 crossed with hispan 0..1, gq by facility type 1..7.
type blockCells struct {
	occupied int
	sizes    [7]float64
	hh       [7][2]int
	vacant   [7]int
	gq       [7]int
}

func decodeBlock(record []string, colIdx map[string]int) blockCells {
	var c blockCells
	c.occupied = parseCountOr(getCol(record, colIdx, "H003002"), 0)
	for i := range 7 {
		c.sizes[i] = float64(parseCountOr(getCol(record, colIdx, fmt.Sprintf("H013%03d", i+2)), 0))
		c.vacant[i] = parseCountOr(getCol(record, colIdx, fmt.Sprintf("H005%03d", i+2)), 0)
		// H7 runs not-Hispanic householders in cells 003-009, Hispanic in 011-017.
		c.hh[i][0] = parseCountOr(getCol(record, colIdx, fmt.Sprintf("H007%03d", i+3)), 0)
		c.hh[i][1] = parseCountOr(getCol(record, colIdx, fmt.Sprintf("H007%03d", i+11)), 0)
		c.gq[i] = parseCountOr(getCol(record, colIdx, gqCells[i]), 0)
	}
	return c
}

// buildBlockRows turns decoded cells into unit count rows. Households get
// their size apportioned from the block size profile; one-person
// households are nonfamily by definition and larger ones split by the
// tract family share. The mismatch flag reports a householder cross-tab
// that does not sum to the occupancy total.
func buildBlockRows(blockID string, c blockCells, famShare float64, vintage int) ([]model.UnitCount, bool) {
	var rows []model.UnitCount
	crossTab := 0

	for race := range 7 {
		for hisp := range 2 {
			n := c.hh[race][hisp]
			crossTab += n
			if n == 0 {
				continue
			}
			for si, sized := range apportion(n, c.sizes[:]) {
				if sized == 0 {
					continue
				}
				numprec := si + 1
				unit := model.UnitCount{
					BlockID: blockID,
					Vacancy: model.VacancyOccupied,
					GQType:  model.GQNone,
					Numprec: numprec,
					Race:    model.Race(race + 1),
					Hispan:  model.Hispan(hisp),
					Vintage: vintage,
				}
				if numprec == 1 {
					unit.Family = model.FamilyNo
					unit.Count = sized
					rows = append(rows, unit)
					continue
				}
				split := apportion(sized, []float64{famShare, 1 - famShare})
				if split[0] > 0 {
					fam := unit
					fam.Family = model.FamilyYes
					fam.Count = split[0]
					rows = append(rows, fam)
				}
				if split[1] > 0 {
					unit.Family = model.FamilyNo
					unit.Count = split[1]
					rows = append(rows, unit)
				}
			}
		}
	}

	for v, n := range c.vacant {
		if n == 0 {
			continue
		}
		rows = append(rows, model.UnitCount{
			BlockID: blockID,
			Vacancy: model.Vacancy(v + 1),
			GQType:  model.GQNone,
			Race:    model.RaceAny,
			Hispan:  model.HispanAny,
			Family:  model.FamilyAny,
			Count:   n,
			Vintage: vintage,
		})
	}

	// Group quarters residents come through as one-person records since
	// the tabulation counts people, not rooms.
	for g, n := range c.gq {
		if n == 0 {
			continue
		}
		rows = append(rows, model.UnitCount{
			BlockID: blockID,
			Vacancy: model.VacancyOccupied,
			GQType:  model.GQType(g + 1),
			Numprec: 1,
			Race:    model.RaceAny,
			Hispan:  model.HispanAny,
			Family:  model.FamilyAny,
			Count:   n,
			Vintage: vintage,
		})
	}

	return rows, crossTab != c.occupied
}

// familyShares maps tract GEOIDs to the share of households that are
// family households, from the income table universe totals. The county
// aggregate sits under the bare county FIPS.
func (s *APISource) familyShares(ctx context.Context, state, county string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%d/%s?get=%s_001E,%s_001E&for=tract:*&in=state:%s%%20county:%s",
		s.baseURL, s.acsYear, acsDataset, tableFamilyIncome, tableNonfamilyIncome, state, county)

	raw, err := s.fetchRows(ctx, s.withKey(url))
	if err != nil {
		return nil, err
	}
	shares := make(map[string]float64)
	if len(raw) < 2 {
		return shares, nil
	}

	colIdx := mapColumns(raw[0])
	var famTotal, nonfamTotal float64
	for _, record := range raw[1:] {
		tractID := getCol(record, colIdx, "state") + getCol(record, colIdx, "county") + getCol(record, colIdx, "tract")
		fam := parseFloatOr(getCol(record, colIdx, tableFamilyIncome+"_001E"), 0)
		nonfam := parseFloatOr(getCol(record, colIdx, tableNonfamilyIncome+"_001E"), 0)
		famTotal += fam
		nonfamTotal += nonfam
		if fam+nonfam > 0 && len(tractID) == model.TractGEOIDLen {
			shares[tractID] = fam / (fam + nonfam)
		}
	}
	if famTotal+nonfamTotal > 0 {
		shares[state+county] = famTotal / (famTotal + nonfamTotal)
	}
	return shares, nil
}

// shareFor resolves the family share for a block: its tract, then the
// county, then an even split.
func shareFor(shares map[string]float64, blockID, countyFIPS string) float64 {
	if sh, ok := shares[blockID[:model.TractGEOIDLen]]; ok {
		return sh
	}
	if sh, ok := shares[countyFIPS]; ok {
		return sh
	}
	return 0.5
}

// Distributions fetches the county's tract income tables and converts each
// stratum's bracket counts to quantile breakpoints. Tract-pooled rows come
// from the base tables, county-pooled rows from their sum across tracts
// keyed by the bare county FIPS. A race iteration that fails to fetch is
// skipped; those strata resolve through the pooled fallbacks.
func (s *APISource) Distributions(ctx context.Context, countyFIPS string) ([]model.Distribution, error) {
	state, county, err := SplitCountyFIPS(countyFIPS)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("source", s.Name()), zap.String("county", countyFIPS))

	var dists []model.Distribution
	for _, spec := range incomeTables {
		base, err := s.fetchBrackets(ctx, state, county, spec.table)
		if err != nil {
			return nil, eris.Wrapf(err, "census: fetch %s for %s", spec.table, countyFIPS)
		}

		var countyCounts [16]int
		for tractID, counts := range base {
			for i, n := range counts {
				countyCounts[i] += n
			}
			key := model.DistributionKey{TractID: tractID, Race: model.RaceAny, Hispan: model.HispanAny, Family: spec.family}
			if d := s.distFor(key, counts); d != nil {
				dists = append(dists, *d)
			}
		}
		key := model.DistributionKey{TractID: countyFIPS, Race: model.RaceAny, Hispan: model.HispanAny, Family: spec.family}
		if d := s.distFor(key, countyCounts); d != nil {
			dists = append(dists, *d)
		}

		for _, it := range raceIterations {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			counts, err := s.fetchBrackets(ctx, state, county, spec.table+it.suffix)
			if err != nil {
				log.Warn("skipping income iteration",
					zap.String("table", spec.table+it.suffix),
					zap.Error(err),
				)
				continue
			}
			for tractID, c := range counts {
				for _, race := range it.races {
					key := model.DistributionKey{TractID: tractID, Race: race, Hispan: it.hispan, Family: spec.family}
					if d := s.distFor(key, c); d != nil {
						dists = append(dists, *d)
					}
				}
			}
		}
	}

	sort.Slice(dists, func(i, j int) bool {
		a, b := dists[i].DistributionKey, dists[j].DistributionKey
		if a.TractID != b.TractID {
			return a.TractID < b.TractID
		}
		if a.Race != b.Race {
			return a.Race < b.Race
		}
		if a.Hispan != b.Hispan {
			return a.Hispan < b.Hispan
		}
		return a.Family < b.Family
	})
	log.Info("fetched income distributions", zap.Int("rows", len(dists)))
	return dists, nil
}

// distFor converts bracket counts to a keyed distribution, nil when the
// stratum holds no households or the conversion violates an invariant.
func (s *APISource) distFor(key model.DistributionKey, counts [16]int) *model.Distribution {
	bps, ceiling := BreakpointsFromBrackets(acsBrackets(counts[:]), breakpointCount)
	if bps == nil {
		return nil
	}
	d := model.Distribution{DistributionKey: key, Breakpoints: bps, Ceiling: ceiling, Vintage: s.vintage}
	if err := d.Validate(); err != nil {
		zap.L().Warn("dropping malformed distribution", zap.String("tract", key.TractID), zap.Error(err))
		return nil
	}
	return &d
}

// fetchBrackets pulls one income table's sixteen bracket cells for every
// tract in the county.
func (s *APISource) fetchBrackets(ctx context.Context, state, county, table string) (map[string][16]int, error) {
	vars := make([]string, 0, 16)
	for i := 2; i <= 17; i++ {
		vars = append(vars, fmt.Sprintf("%s_%03dE", table, i))
	}
	url := fmt.Sprintf("%s/%d/%s?get=%s&for=tract:*&in=state:%s%%20county:%s",
		s.baseURL, s.acsYear, acsDataset, strings.Join(vars, ","), state, county)

	raw, err := s.fetchRows(ctx, s.withKey(url))
	if err != nil {
		return nil, err
	}

	out := make(map[string][16]int)
	if len(raw) < 2 {
		return out, nil
	}
	colIdx := mapColumns(raw[0])
	for _, record := range raw[1:] {
		tractID := getCol(record, colIdx, "state") + getCol(record, colIdx, "county") + getCol(record, colIdx, "tract")
		if len(tractID) != model.TractGEOIDLen {
			continue
		}
		var counts [16]int
		for i := range 16 {
			counts[i] = parseCountOr(getCol(record, colIdx, fmt.Sprintf("%s_%03dE", table, i+2)), 0)
		}
		out[tractID] = counts
	}
	return out, nil
}

// fetchRows performs one API query and decodes the array-of-arrays
// payload: [[header], [row1], [row2], ...].
func (s *APISource) fetchRows(ctx context.Context, url string) ([][]string, error) {
	body, err := s.f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "census: read response")
	}

	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "census: unmarshal response")
	}
	return raw, nil
}

func (s *APISource) withKey(url string) string {
	if s.apiKey == "" {
		return url
	}
	return url + "&key=" + s.apiKey
}
