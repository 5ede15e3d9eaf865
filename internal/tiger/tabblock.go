// Package tiger builds block-to-tract crosswalks from Census TIGER/Line
// TABBLOCK shapefiles. The DBF attributes carry the block GEOID and its
// published interior point; geometry is only consulted when the interior
// point attributes are absent.
package tiger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/geo"
	"github.com/sells-group/hui-cli/internal/model"
)

// attribute name candidates by vintage suffix ("10" for 2010, "20" for 2020)
var vintageSuffixes = []string{"10", "20", ""}

// TABBLOCKURL returns the download URL for one county's TABBLOCK archive.
func TABBLOCKURL(vintage int, countyFIPS string) string {
	suffix := "10"
	if vintage >= 2020 {
		suffix = "20"
	}
	return fmt.Sprintf(
		"https://www2.census.gov/geo/tiger/TIGER%d/TABBLOCK/%d/tl_%d_%s_tabblock%s.zip",
		vintage, vintage, vintage, countyFIPS, suffix,
	)
}

// ParseTABBLOCK reads a TABBLOCK shapefile into a crosswalk. Every record
// must carry a well-formed 15-digit block GEOID; a malformed GEOID fails
// the build rather than producing a partial crosswalk.
func ParseTABBLOCK(shpPath string) (*geo.Crosswalk, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	geoidIdx, ok := findField(fieldIdx, "geoid")
	if !ok {
		return nil, eris.Errorf("tiger: %s has no GEOID field", shpPath)
	}
	latIdx, hasLat := findField(fieldIdx, "intptlat")
	lonIdx, hasLon := findField(fieldIdx, "intptlon")

	cw := geo.NewCrosswalk()
	var fromGeom int
	for reader.Next() {
		_, shape := reader.Shape()

		blockID := attr(reader, geoidIdx)
		tractID, err := model.TractOfBlock(blockID)
		if err != nil {
			return nil, eris.Wrap(err, "tiger: parse tabblock")
		}
		if err := cw.Add(blockID, tractID); err != nil {
			return nil, eris.Wrap(err, "tiger: parse tabblock")
		}

		if hasLat && hasLon {
			if p, ok := parseInteriorPoint(attr(reader, latIdx), attr(reader, lonIdx)); ok {
				cw.AddPoint(blockID, p)
				continue
			}
		}
		if p, ok := shapeCentroid(shape); ok {
			cw.AddPoint(blockID, p)
			fromGeom++
		}
	}

	zap.L().With(zap.String("component", "tiger")).Info("parsed tabblock shapefile",
		zap.String("path", shpPath),
		zap.Int("blocks", cw.Len()),
		zap.Int("centroid_fallback", fromGeom),
	)
	return cw, nil
}

// findField resolves a base attribute name against its vintage-suffixed
// variants (geoid10, geoid20, geoid).
func findField(fieldIdx map[string]int, base string) (int, bool) {
	for _, suffix := range vintageSuffixes {
		if i, ok := fieldIdx[base+suffix]; ok {
			return i, true
		}
	}
	return 0, false
}

func attr(reader *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// parseInteriorPoint decodes the signed INTPTLAT/INTPTLON attribute pair.
// TIGER writes an explicit leading sign ("+35.1234567", "-079.0558373").
func parseInteriorPoint(latStr, lonStr string) (geo.Point, bool) {
	lat, err := strconv.ParseFloat(strings.TrimPrefix(latStr, "+"), 64)
	if err != nil {
		return geo.Point{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimPrefix(lonStr, "+"), 64)
	if err != nil {
		return geo.Point{}, false
	}
	if lat == 0 && lon == 0 {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lon: lon}, true
}
