package geo

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrBadCoords is returned when a coordinate tuple fails GoodCoords.
	ErrBadCoords = errors.New("invalid coordinates")
	// ErrBadBox is returned when a "[lat,lon TO lat,lon]" box cannot be parsed.
	ErrBadBox = errors.New("invalid geo box")
)

// BBox is an axis aligned rectangle in WGS84 degrees.
type BBox struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
}

var (
	// Global is the whole world extent.
	Global = BBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	// HarvestDefault is used by adapters when a remote layer declares no
	// extent. It stays one degree inside the world edges.
	HarvestDefault = BBox{MinX: -179, MinY: -89, MaxX: 179, MaxY: 89}
)

// Strings renders the four values the way they are persisted.
func (b BBox) Strings() []string {
	return []string{
		strconv.FormatFloat(b.MinX, 'f', -1, 64),
		strconv.FormatFloat(b.MinY, 'f', -1, 64),
		strconv.FormatFloat(b.MaxX, 'f', -1, 64),
		strconv.FormatFloat(b.MaxY, 'f', -1, 64),
	}
}

// Perimeter of the rectangle in degrees.
func (b BBox) Perimeter() float64 {
	return 2*math.Abs(b.MaxX-b.MinX) + 2*math.Abs(b.MaxY-b.MinY)
}

// GoodCoords validates a four value coordinate tuple. Only the first three
// values are checked; the fourth is accepted as is.
func GoodCoords(coords []string) bool {
	if len(coords) != 4 {
		return false
	}
	for _, c := range coords[:3] {
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return false
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Normalized is a repaired bbox with its derived measures.
type Normalized struct {
	BBox
	CenterX    float64
	CenterY    float64
	HalfWidth  float64
	HalfHeight float64
	Area       float64
}

// Normalize swaps inverted pairs, clamps to the world extent and computes
// center, half extents and area.
func Normalize(minX, minY, maxX, maxY float64) Normalized {
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	minX = clamp(minX, -180, 180)
	maxX = clamp(maxX, -180, 180)
	minY = clamp(minY, -90, 90)
	maxY = clamp(maxY, -90, 90)

	halfW := (maxX - minX) / 2.0
	halfH := (maxY - minY) / 2.0
	return Normalized{
		BBox:       BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY},
		CenterX:    minX + halfW,
		CenterY:    minY + halfH,
		HalfWidth:  halfW,
		HalfHeight: halfH,
		Area:       (2 * halfW) * (2 * halfH),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

var boxPattern = regexp.MustCompile(`^\[\s*(\S+)\s*,\s*(\S+)\s+TO\s+(\S+)\s*,\s*(\S+)\s*\]$`)

// ParseBox parses the "[minLat,minLon TO maxLat,maxLon]" form used by
// search requests.
func ParseBox(s string) (BBox, error) {
	m := boxPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return BBox{}, fmt.Errorf("%w: %q", ErrBadBox, s)
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return BBox{}, fmt.Errorf("%w: %q", ErrBadBox, s)
		}
		v[i] = f
	}
	return BBox{MinY: v[0], MinX: v[1], MaxY: v[2], MaxX: v[3]}, nil
}

// FormatBox renders b back into the "[lat,lon TO lat,lon]" form.
func FormatBox(b BBox) string {
	return fmt.Sprintf("[%s,%s TO %s,%s]",
		fmtFloat(b.MinY), fmtFloat(b.MinX), fmtFloat(b.MaxY), fmtFloat(b.MaxX))
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
