package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	intgeo "github.com/sells-group/hui-cli/internal/geo"
)

// shapeCentroid derives an interior point from the record geometry when the
// DBF interior-point attributes are unusable. Points pass through; polygons
// reduce to the area centroid of their outer ring.
func shapeCentroid(shape shp.Shape) (intgeo.Point, bool) {
	switch s := shape.(type) {
	case *shp.Point:
		return intgeo.Point{Lat: s.Y, Lon: s.X}, true
	case *shp.Polygon:
		return polygonCentroid(s)
	default:
		return intgeo.Point{}, false
	}
}

func polygonCentroid(p *shp.Polygon) (intgeo.Point, bool) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return intgeo.Point{}, false
	}

	// Outer ring only; TABBLOCK holes are negligible at block scale.
	end := int32(len(p.Points))
	if p.NumParts > 1 {
		end = p.Parts[1]
	}
	flat := make([]float64, 0, end*2)
	for i := p.Parts[0]; i < end; i++ {
		flat = append(flat, p.Points[i].X, p.Points[i].Y)
	}
	if len(flat) < 8 { // a closed ring needs at least four vertices
		return intgeo.Point{}, false
	}

	ring := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	c := xy.PolygonsCentroid(ring)
	return intgeo.Point{Lat: c[1], Lon: c[0]}, true
}
