// Package document derives the fields both search engines index from a
// catalog layer: the repaired geometry, the canonical date, the originator
// and the health summary.
package document

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/MrSnakeDoc/georegistry/internal/dates"
	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// DefaultLocalOrganization stands in for the originator of services
// harvested from localhost.
const DefaultLocalOrganization = "Harvard"

var (
	// ErrInvalidBBox is returned when a layer's extent fails validation
	// after Mercator correction. The layer is not indexed.
	ErrInvalidBBox = errors.New("there are no valid coordinates for this layer")
	// ErrMissingBBox is the ErrInvalidBBox case of a layer without extent.
	ErrMissingBBox = fmt.Errorf("%w: bbox is missing", ErrInvalidBBox)
)

// Options tune field derivation.
type Options struct {
	// LocalOrganization is the originator of localhost services.
	LocalOrganization string
}

// Source bundles what a document is built from.
type Source struct {
	Layer   *domain.Layer
	Service *domain.Service
	Checks  []domain.Check // layer check history, may be empty
}

// Prepared holds the engine-independent fields of a layer document.
type Prepared struct {
	Layer   *domain.Layer
	Service *domain.Service

	// ─────────────────────────────────────────────────────────────────
	// Geometry
	// ─────────────────────────────────────────────────────────────────

	BBox     geo.Normalized
	Envelope string       // ENVELOPE(minX,maxX,maxY,minY)
	Shape    geo.Envelope // geo_shape envelope

	// ─────────────────────────────────────────────────────────────────
	// Provenance
	// ─────────────────────────────────────────────────────────────────

	Originator string
	DomainName string

	// ─────────────────────────────────────────────────────────────────
	// Time
	// ─────────────────────────────────────────────────────────────────

	// Date is the start of the canonical date; DateRange is set only when
	// the canonical value is a range.
	Date      string
	DateRange string
	DateEnd   string
	DateType  domain.DateType
	HasDate   bool

	// ─────────────────────────────────────────────────────────────────
	// Health
	// ─────────────────────────────────────────────────────────────────

	Reliability    float64
	HasReliability bool
	Available      bool
}

// Prepare validates and derives the indexable fields of src. It returns
// an error wrapping ErrInvalidBBox when the layer must be skipped.
func Prepare(src Source, opts Options) (*Prepared, error) {
	l, svc := src.Layer, src.Service
	if l == nil || svc == nil {
		return nil, errors.New("layer and service are required")
	}
	if l.BBox == nil {
		return nil, ErrMissingBBox
	}

	b := CorrectMercator(*l.BBox, svc.SRS)
	if !geo.GoodCoords(b.Strings()) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBBox, b.Strings())
	}
	n := geo.Normalize(b.MinX, b.MinY, b.MaxX, b.MaxY)

	p := &Prepared{
		Layer:      l,
		Service:    svc,
		BBox:       n,
		Envelope:   geo.EnvelopeWKT(n.BBox),
		Shape:      geo.GeoJSONEnvelope(n.BBox),
		Originator: Originator(l, svc, opts),
		DomainName: Hostname(svc.URL),
	}

	if v, typ, ok := dates.Canonical(l); ok {
		p.HasDate = true
		p.DateType = typ
		p.Date = dates.StartOf(v)
		p.DateEnd = dates.EndOf(v)
		if p.Date != v {
			p.DateRange = v
		}
	}

	stats := domain.Stats(src.Checks)
	p.Reliability, p.HasReliability = stats.Reliability, stats.HasReliability
	p.Available = stats.Count == 0 || stats.LastSuccess
	return p, nil
}

// CorrectMercator reprojects b when the service advertises a Web Mercator
// SRS and the values cannot be degrees.
func CorrectMercator(b geo.BBox, srs []string) geo.BBox {
	// Most servers listing a Mercator SRS still report the layer extent in
	// degrees; only meter-range values are reprojected.
	if !geo.AnyMercator(srs) || inDegrees(b) {
		return b
	}
	return geo.MercatorToLLBBox(b)
}

func inDegrees(b geo.BBox) bool {
	for _, x := range []float64{b.MinX, b.MaxX} {
		if math.Abs(x) > 180 {
			return false
		}
	}
	for _, y := range []float64{b.MinY, b.MaxY} {
		if math.Abs(y) > 90 {
			return false
		}
	}
	return true
}

// Originator is the WorldMap owner for WorldMap layers, otherwise the
// registrable domain of the service URL.
func Originator(l *domain.Layer, svc *domain.Service, opts Options) string {
	if svc.Type == domain.ServiceWorldMap && l.WorldMap != nil && l.WorldMap.Username != "" {
		return l.WorldMap.Username
	}
	host := Hostname(svc.URL)
	if host == "localhost" {
		if opts.LocalOrganization != "" {
			return opts.LocalOrganization
		}
		return DefaultLocalOrganization
	}
	return RegistrableDomain(host)
}

// Hostname returns the lower-cased host of u without port.
func Hostname(u string) string {
	p, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	return strings.ToLower(p.Hostname())
}

// RegistrableDomain returns eTLD+1 of host. IP addresses and hosts that
// are themselves public suffixes are returned unchanged.
func RegistrableDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
