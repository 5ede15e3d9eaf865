// Package geo holds the block-to-tract crosswalk and the join that anchors
// block-level unit counts to the tract geography their income distributions
// live at.
package geo

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/model"
)

// Point is a block interior point in WGS84.
type Point struct {
	Lat float64
	Lon float64
}

// Crosswalk maps block GEOIDs to tract GEOIDs, optionally annotated with
// block interior points when built from TIGER geometry.
type Crosswalk struct {
	tractOf map[string]string
	points  map[string]Point
}

// NewCrosswalk returns an empty crosswalk.
func NewCrosswalk() *Crosswalk {
	return &Crosswalk{
		tractOf: make(map[string]string),
		points:  make(map[string]Point),
	}
}

// Add registers one block. The tract must prefix the block GEOID; a block
// may be re-added only with the same tract.
func (c *Crosswalk) Add(blockID, tractID string) error {
	if len(blockID) != model.BlockGEOIDLen {
		return eris.Errorf("geo: block geoid %q is %d chars, want %d", blockID, len(blockID), model.BlockGEOIDLen)
	}
	if len(tractID) != model.TractGEOIDLen || blockID[:model.TractGEOIDLen] != tractID {
		return eris.Errorf("geo: tract %q does not prefix block %q", tractID, blockID)
	}
	if prev, ok := c.tractOf[blockID]; ok && prev != tractID {
		return eris.Errorf("geo: block %s already mapped to tract %s", blockID, prev)
	}
	c.tractOf[blockID] = tractID
	return nil
}

// AddPoint attaches an interior point to a registered block.
func (c *Crosswalk) AddPoint(blockID string, p Point) {
	c.points[blockID] = p
}

// TractOf returns the tract for a block.
func (c *Crosswalk) TractOf(blockID string) (string, bool) {
	t, ok := c.tractOf[blockID]
	return t, ok
}

// PointOf returns the interior point for a block, when known.
func (c *Crosswalk) PointOf(blockID string) (Point, bool) {
	p, ok := c.points[blockID]
	return p, ok
}

// Len returns the number of mapped blocks.
func (c *Crosswalk) Len() int { return len(c.tractOf) }

// Blocks returns all mapped block GEOIDs in sorted order.
func (c *Crosswalk) Blocks() []string {
	ids := make([]string, 0, len(c.tractOf))
	for id := range c.tractOf {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Structural derives a crosswalk from the block GEOIDs themselves. Any
// malformed GEOID fails the build; there is no partial result.
func Structural(blockIDs []string) (*Crosswalk, error) {
	c := NewCrosswalk()
	for _, id := range blockIDs {
		tract, err := model.TractOfBlock(id)
		if err != nil {
			return nil, eris.Wrap(err, "geo: structural crosswalk")
		}
		if err := c.Add(id, tract); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WriteCSV exports the crosswalk with one row per block, sorted by GEOID.
func (c *Crosswalk) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"blockid", "tractid", "lat", "lon"}); err != nil {
		return eris.Wrap(err, "geo: write crosswalk header")
	}
	for _, id := range c.Blocks() {
		row := []string{id, c.tractOf[id], "", ""}
		if p, ok := c.points[id]; ok {
			row[2] = strconv.FormatFloat(p.Lat, 'f', -1, 64)
			row[3] = strconv.FormatFloat(p.Lon, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "geo: write crosswalk row %s", id)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "geo: flush crosswalk")
}
