package domain

import (
	"strings"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// DateType tells whether a layer date was mined from text or read from
// structured metadata.
type DateType int

const (
	DateDetected DateType = iota
	DateFromMetadata
)

func (t DateType) String() string {
	if t == DateFromMetadata {
		return "From Metadata"
	}
	return "Detected"
}

// LayerDate is a date attached to a layer. Date is either a single value
// ("1950-01-01", "-0019-01-01") or a range ("[-0220 TO -0206]").
type LayerDate struct {
	Date string   `json:"date"`
	Type DateType `json:"type"`
}

// IsRange reports whether the value is a "[start TO end]" range.
func (d LayerDate) IsRange() bool {
	return strings.HasPrefix(d.Date, "[") && strings.HasSuffix(d.Date, "]")
}

// WorldMapAttrs holds the extension fields present only on layers harvested
// from a WorldMap instance.
type WorldMapAttrs struct {
	Category            string `json:"category,omitempty"`
	Username            string `json:"username,omitempty"`
	TemporalExtentStart string `json:"temporal_extent_start,omitempty"`
	TemporalExtentEnd   string `json:"temporal_extent_end,omitempty"`
}

// Layer is a single map layer published by a Service.
//
// A Layer is uniquely identified by its (Name, ServiceID) pair.
type Layer struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	Resource

	ServiceID int64  `json:"service_id"`
	Name      string `json:"name"`

	// ─────────────────────────────
	// Geometry
	// ─────────────────────────────

	// BBox is nil when the source did not provide usable extents.
	BBox *geo.BBox `json:"bbox,omitempty"`

	// WKTGeometry defaults to the world polygon and follows BBox once set.
	WKTGeometry string `json:"wkt_geometry"`

	// ─────────────────────────────
	// Descriptive metadata
	// ─────────────────────────────

	Keywords  []string    `json:"keywords,omitempty"`
	Dates     []LayerDate `json:"dates,omitempty"`
	PageURL   string      `json:"page_url,omitempty"`
	Thumbnail string      `json:"thumbnail,omitempty"`

	WorldMap *WorldMapAttrs `json:"worldmap,omitempty"`

	// ─────────────────────────────
	// Indexing state
	// ─────────────────────────────

	// Valid=false marks a layer whose last indexing attempt was refused.
	Valid       bool      `json:"is_valid"`
	LastIndexed time.Time `json:"last_indexed,omitempty"`
}

// NewLayer returns an active, public layer with the default world geometry.
func NewLayer(serviceID int64, name string, now time.Time) *Layer {
	l := &Layer{
		Resource: Resource{
			Active:   true,
			IsPublic: true,
		},
		ServiceID:   serviceID,
		Name:        name,
		WKTGeometry: geo.GlobalPolygonWKT,
		Valid:       true,
	}
	l.Touch(now)
	return l
}

func (l *Layer) ResourceKey() ResourceKey { return ResourceKey{Kind: KindLayer, ID: l.ID} }
func (l *Layer) IsActive() bool           { return l.Active }

// SetBBox replaces the bbox and re-derives the WKT geometry from it.
// A nil or unrepresentable box resets the geometry to the world polygon.
func (l *Layer) SetBBox(b *geo.BBox) {
	l.BBox = b
	l.WKTGeometry = geo.GlobalPolygonWKT
	if b == nil {
		return
	}
	if poly, err := geo.PolygonWKT(*b); err == nil {
		l.WKTGeometry = poly
	}
}

// AddDate attaches a date unless the same (date, type) pair exists already.
func (l *Layer) AddDate(date string, typ DateType) bool {
	date = strings.TrimSpace(date)
	if date == "" {
		return false
	}
	for _, d := range l.Dates {
		if d.Date == date && d.Type == typ {
			return false
		}
	}
	l.Dates = append(l.Dates, LayerDate{Date: date, Type: typ})
	return true
}

// AddKeyword attaches a keyword. Duplicates and blanks are ignored.
func (l *Layer) AddKeyword(k string) bool {
	k = strings.TrimSpace(k)
	if k == "" {
		return false
	}
	for _, existing := range l.Keywords {
		if existing == k {
			return false
		}
	}
	l.Keywords = append(l.Keywords, k)
	return true
}

// DatesOfType returns the dates with the given type, in insertion order.
func (l *Layer) DatesOfType(typ DateType) []LayerDate {
	var out []LayerDate
	for _, d := range l.Dates {
		if d.Type == typ {
			out = append(out, d)
		}
	}
	return out
}

// Clone returns a deep copy.
func (l *Layer) Clone() *Layer {
	if l == nil {
		return nil
	}
	c := *l
	if l.BBox != nil {
		b := *l.BBox
		c.BBox = &b
	}
	if l.WorldMap != nil {
		wm := *l.WorldMap
		c.WorldMap = &wm
	}
	c.Keywords = append([]string(nil), l.Keywords...)
	c.Dates = append([]LayerDate(nil), l.Dates...)
	return &c
}
