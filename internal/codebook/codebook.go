// Package codebook renders the markdown codebook published alongside each
// community table: the column schema, the demographic code tables, and
// per-group income summary statistics. No figures, text only.
package codebook

import (
	"fmt"
	"io"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/inventory"
	"github.com/sells-group/hui-cli/internal/model"
)

// columnDescriptions document the published schema, keyed by column name.
var columnDescriptions = map[string]string{
	"huid":        "Housing unit identifier: H + block GEOID + per-block sequence",
	"blockid":     "2010 census block GEOID (15 digits)",
	"tractid":     "Census tract GEOID (11 digits)",
	"vacancy":     "Vacancy status code (0 = occupied or group quarters)",
	"gqtype":      "Group quarters type code (0 = not group quarters)",
	"numprec":     "Number of persons in the unit",
	"race":        "Race of householder code",
	"hispan":      "Hispanic or Latino origin of householder",
	"family":      "Family household flag",
	"incomegroup": "Income distribution segment the draw fell in (1-based)",
	"randincome":  "Synthesized household income in dollars and cents",
}

// GroupSummary is the income summary for one (race, hispan, family) group.
type GroupSummary struct {
	Race   model.Race
	Hispan model.Hispan
	Family model.Family
	Count  int
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Mean   float64
	Max    float64
}

// Summarize computes income summary statistics per demographic group over
// the units that drew an income. Groups come back in (race, hispan, family)
// code order.
func Summarize(records []model.HousingUnitRecord) ([]GroupSummary, error) {
	type key struct {
		race   model.Race
		hispan model.Hispan
		family model.Family
	}
	incomes := make(map[key][]float64)
	for _, r := range records {
		if r.RandIncome == nil {
			continue
		}
		k := key{r.Race, r.Hispan, r.Family}
		incomes[k] = append(incomes[k], *r.RandIncome)
	}

	keys := make([]key, 0, len(incomes))
	for k := range incomes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.race != b.race {
			return a.race < b.race
		}
		if a.hispan != b.hispan {
			return a.hispan < b.hispan
		}
		return a.family < b.family
	})

	summaries := make([]GroupSummary, 0, len(keys))
	for _, k := range keys {
		vals := incomes[k]
		s, err := summarizeGroup(vals)
		if err != nil {
			return nil, eris.Wrapf(err, "codebook: summarize race %d hispan %d family %d", k.race, k.hispan, k.family)
		}
		s.Race, s.Hispan, s.Family = k.race, k.hispan, k.family
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func summarizeGroup(vals []float64) (GroupSummary, error) {
	data := stats.Float64Data(vals)

	min, err := data.Min()
	if err != nil {
		return GroupSummary{}, eris.Wrap(err, "min")
	}
	max, err := data.Max()
	if err != nil {
		return GroupSummary{}, eris.Wrap(err, "max")
	}
	mean, err := data.Mean()
	if err != nil {
		return GroupSummary{}, eris.Wrap(err, "mean")
	}
	median, err := data.Median()
	if err != nil {
		return GroupSummary{}, eris.Wrap(err, "median")
	}
	quartiles, err := stats.Quartile(data)
	if err != nil {
		// Quartile needs at least four observations; degrade to the median.
		quartiles = stats.Quartiles{Q1: median, Q2: median, Q3: median}
	}

	return GroupSummary{
		Count:  len(vals),
		Min:    min,
		Q1:     quartiles.Q1,
		Median: median,
		Q3:     quartiles.Q3,
		Mean:   mean,
		Max:    max,
	}, nil
}

// Write renders the full codebook for one community run.
func Write(w io.Writer, rc model.RunContext, comm community.Community, records []model.HousingUnitRecord) error {
	p := message.NewPrinter(language.AmericanEnglish)

	var occupied, vacant, gq int
	for _, r := range records {
		switch {
		case r.GQType != model.GQNone:
			gq++
		case r.Vacancy != model.VacancyOccupied:
			vacant++
		default:
			occupied++
		}
	}

	fprintf(w, "# Housing Unit Inventory Codebook: %s\n\n", comm.Name)
	fprintf(w, "- Version: %s\n", rc.Version)
	fprintf(w, "- Vintage: %d decennial census, ACS 5-year income tables\n", rc.Vintage)
	fprintf(w, "- Random seed: %d\n", rc.Seed)
	fprintf(w, "- Output file: `%s.csv`\n", rc.OutputBase())
	fprintf(w, "- Counties: ")
	for i, county := range comm.Counties {
		if i > 0 {
			fprintf(w, ", ")
		}
		fprintf(w, "%s (%s)", county.Name, county.FIPS)
	}
	fprintf(w, "\n- Records: %s (%s occupied, %s vacant, %s group quarters)\n\n",
		p.Sprintf("%d", len(records)), p.Sprintf("%d", occupied),
		p.Sprintf("%d", vacant), p.Sprintf("%d", gq))

	writeSchema(w)
	writeCodeTables(w)
	return writeSummaries(w, p, records)
}

func writeSchema(w io.Writer) {
	fprintf(w, "## Columns\n\n")
	fprintf(w, "| Column | Type | Description |\n|---|---|---|\n")
	for _, col := range inventory.Columns() {
		fprintf(w, "| %s | %s | %s |\n", col.Name, kindName(col.Kind), columnDescriptions[col.Name])
	}
	fprintf(w, "\n")
}

func kindName(k model.ColumnKind) string {
	switch k {
	case model.ColumnInt:
		return "integer"
	case model.ColumnFloat:
		return "float"
	default:
		return "string"
	}
}

func writeCodeTables(w io.Writer) {
	fprintf(w, "## Code tables\n\n")

	fprintf(w, "### race\n\n| Code | Description |\n|---|---|\n")
	for r := model.RaceWhite; r <= model.RaceTwoPlus; r++ {
		fprintf(w, "| %d | %s |\n", int(r), r.Label())
	}

	fprintf(w, "\n### hispan\n\n| Code | Description |\n|---|---|\n")
	for _, h := range []model.Hispan{model.HispanNot, model.HispanLatino} {
		fprintf(w, "| %d | %s |\n", int(h), h.Label())
	}

	fprintf(w, "\n### family\n\n| Code | Description |\n|---|---|\n")
	for _, f := range []model.Family{model.FamilyNo, model.FamilyYes} {
		fprintf(w, "| %d | %s |\n", int(f), f.Label())
	}

	fprintf(w, "\n### vacancy\n\n| Code | Description |\n|---|---|\n")
	for v := model.VacancyOccupied; v <= model.VacancyOtherVacant; v++ {
		fprintf(w, "| %d | %s |\n", int(v), v.Label())
	}

	fprintf(w, "\n### gqtype\n\n| Code | Description |\n|---|---|\n")
	for g := model.GQNone; g <= model.GQOtherNoninst; g++ {
		fprintf(w, "| %d | %s |\n", int(g), g.Label())
	}
	fprintf(w, "\n")
}

func writeSummaries(w io.Writer, p *message.Printer, records []model.HousingUnitRecord) error {
	summaries, err := Summarize(records)
	if err != nil {
		return err
	}

	fprintf(w, "## Synthesized income by group\n\n")
	if len(summaries) == 0 {
		fprintf(w, "No income-eligible units.\n")
		return nil
	}
	fprintf(w, "| Race | Hispan | Family | N | Min | Q1 | Median | Q3 | Mean | Max |\n")
	fprintf(w, "|---|---|---|---|---|---|---|---|---|---|\n")
	for _, s := range summaries {
		fprintf(w, "| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			s.Race.Label(), s.Hispan.Label(), s.Family.Label(),
			p.Sprintf("%d", s.Count),
			p.Sprintf("%.2f", s.Min), p.Sprintf("%.2f", s.Q1),
			p.Sprintf("%.2f", s.Median), p.Sprintf("%.2f", s.Q3),
			p.Sprintf("%.2f", s.Mean), p.Sprintf("%.2f", s.Max),
		)
	}
	return nil
}

// fprintf ignores short-write errors to keep the table-emitting code flat;
// the caller's writer surfaces real I/O failures on close.
func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
