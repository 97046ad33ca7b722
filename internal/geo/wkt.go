package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// GlobalPolygonWKT is the geometry a layer carries before any extent is known.
const GlobalPolygonWKT = "POLYGON((-180 -90,-180 90,180 90,180 -90,-180 -90))"

// EnvelopeWKT renders the legacy Solr spatial string.
func EnvelopeWKT(b BBox) string {
	return fmt.Sprintf("ENVELOPE(%f,%f,%f,%f)", b.MinX, b.MaxX, b.MaxY, b.MinY)
}

// Envelope is the geo_shape envelope understood by Elasticsearch.
type Envelope struct {
	Type        string        `json:"type"`
	Coordinates [2][2]float64 `json:"coordinates"`
}

// GeoJSONEnvelope builds the upper-left / lower-right envelope for b.
func GeoJSONEnvelope(b BBox) Envelope {
	return Envelope{
		Type:        "envelope",
		Coordinates: [2][2]float64{{b.MinX, b.MaxY}, {b.MaxX, b.MinY}},
	}
}

// PolygonWKT renders b as a closed polygon ring.
func PolygonWKT(b BBox) (string, error) {
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{{
		{b.MinX, b.MinY},
		{b.MinX, b.MaxY},
		{b.MaxX, b.MaxY},
		{b.MaxX, b.MinY},
		{b.MinX, b.MinY},
	}})
	if err != nil {
		return "", fmt.Errorf("build polygon: %w", err)
	}
	return wkt.Marshal(poly)
}

// ExtentOfWKT returns the bounding box of any WKT geometry.
func ExtentOfWKT(s string) (BBox, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return BBox{}, fmt.Errorf("%w: %v", ErrBadCoords, err)
	}
	bounds := g.Bounds()
	if bounds == nil || bounds.IsEmpty() {
		return BBox{}, fmt.Errorf("%w: empty geometry", ErrBadCoords)
	}
	return BBox{
		MinX: bounds.Min(0),
		MinY: bounds.Min(1),
		MaxX: bounds.Max(0),
		MaxY: bounds.Max(1),
	}, nil
}
