// Package ogc reads OGC capabilities documents (WMS, WMTS, TMS, CSW) into
// a flat, structured form.
package ogc

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// ErrNoLayers is returned when a document parses but advertises nothing.
var ErrNoLayers = errors.New("capabilities advertise no layers")

// Capabilities is the service-level description and its named layers.
type Capabilities struct {
	Version   string
	Title     string
	Abstract  string
	Keywords  []string
	GetMapURL string
	Layers    []Layer
}

// Layer is one named layer. BBox is in WGS84 when Native is false, and in
// the units of the first CRS otherwise (TMS tile maps).
type Layer struct {
	Name     string
	Title    string
	Abstract string
	Keywords []string
	CRS      []string
	BBox     *geo.BBox
	Native   bool
	URL      string
}

// Reader fetches and parses capabilities for the OGC service types.
type Reader interface {
	WMS(ctx context.Context, url string) (*Capabilities, error)
	WMTS(ctx context.Context, url string) (*Capabilities, error)
	TMS(ctx context.Context, url string) (*Capabilities, error)
	CSW(ctx context.Context, url string) (*Capabilities, error)
}

var urnCRS = regexp.MustCompile(`(?i)^urn:ogc:def:crs:([a-z]+):[^:]*:(\w+)$`)

// NormalizeCRS maps URN and lowercase forms to "AUTH:CODE".
// "urn:ogc:def:crs:EPSG::3857" → "EPSG:3857", "epsg:4326" → "EPSG:4326".
func NormalizeCRS(s string) string {
	s = strings.TrimSpace(s)
	if m := urnCRS.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]) + ":" + m[2]
	}
	if auth, code, ok := strings.Cut(s, ":"); ok && !strings.Contains(code, ":") {
		return strings.ToUpper(auth) + ":" + code
	}
	return s
}

func cleanKeywords(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func mergeCRS(parent, own []string) []string {
	out := make([]string, 0, len(parent)+len(own))
	seen := make(map[string]struct{})
	for _, list := range [][]string{parent, own} {
		for _, c := range list {
			for _, code := range strings.Fields(c) {
				code = NormalizeCRS(code)
				if _, dup := seen[code]; dup || code == "" {
					continue
				}
				seen[code] = struct{}{}
				out = append(out, code)
			}
		}
	}
	return out
}
