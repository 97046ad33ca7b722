// Package searchapi defines the engine-independent search request and
// response, and the parameter parsing and time arithmetic shared by the
// Solr and Elasticsearch translators.
package searchapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// Sort orders the returned documents.
type Sort string

const (
	SortScore    Sort = "score"
	SortTime     Sort = "time"
	SortDistance Sort = "distance"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// WorldBox is the heatmap area when the request names none.
var WorldBox = geo.Global

// Request is an abstract search request. Zero facet limits disable the
// corresponding facet.
type Request struct {
	// ─────────────────────────────────────────────────────────────────
	// Filters
	// ─────────────────────────────────────────────────────────────────

	Catalog string
	Text    string     // q_text
	Time    *TimeRange // q_time
	Geo     *geo.BBox  // q_geo
	User    string     // q_user

	// ─────────────────────────────────────────────────────────────────
	// Documents
	// ─────────────────────────────────────────────────────────────────

	Limit int  // d_docs_limit
	Page  int  // d_docs_page, 1-based
	Sort  Sort // d_docs_sort

	// ─────────────────────────────────────────────────────────────────
	// Facets
	// ─────────────────────────────────────────────────────────────────

	TimeLimit        int       // a_time_limit
	TimeGap          *Gap      // a_time_gap
	HeatmapLimit     int       // a_hm_limit
	HeatmapGridLevel int       // a_hm_gridlevel
	HeatmapFilter    *geo.BBox // a_hm_filter
	TextLimit        int       // a_text_limit
	UserLimit        int       // a_user_limit

	// FacetBounds is the time facet range once engines have bound the
	// open ends of Time from the index. It never filters.
	FacetBounds *TimeRange

	// ─────────────────────────────────────────────────────────────────
	// Output
	// ─────────────────────────────────────────────────────────────────

	Engine   string // search_engine
	Original bool   // original_response
}

// WantsTimeFacet reports whether a time histogram is requested.
func (r *Request) WantsTimeFacet() bool { return r.TimeLimit > 0 || r.TimeGap != nil }

// WantsHeatmap reports whether a heatmap is requested.
func (r *Request) WantsHeatmap() bool { return r.HeatmapLimit > 0 || r.HeatmapGridLevel > 0 }

// HeatmapBox is the area the heatmap covers.
func (r *Request) HeatmapBox() geo.BBox {
	switch {
	case r.HeatmapFilter != nil:
		return *r.HeatmapFilter
	case r.Geo != nil:
		return *r.Geo
	default:
		return WorldBox
	}
}

// Offset is the index of the first returned document.
func (r *Request) Offset() int { return (r.Page - 1) * r.Limit }

// TimeFacetRange is the range the time histogram covers.
func (r *Request) TimeFacetRange() (TimeRange, error) {
	switch {
	case r.FacetBounds != nil:
		return *r.FacetBounds, nil
	case r.Time != nil && !r.Time.Open():
		return *r.Time, nil
	default:
		return TimeRange{}, BadRequest("time facet needs q_time with both ends bound")
	}
}

// NeedsFacetBounds reports whether the time facet range must be taken
// from the index before translating.
func (r *Request) NeedsFacetBounds() bool {
	return r.WantsTimeFacet() && r.FacetBounds == nil && (r.Time == nil || r.Time.Open())
}

// BindFacetBounds fills the open ends of Time with the indexed extremes.
func (r *Request) BindFacetBounds(minDate, maxDate string) error {
	tr := TimeRange{Start: TimeValue{Open: true}, End: TimeValue{Open: true}}
	if r.Time != nil {
		tr = *r.Time
	}
	var err error
	if tr.Start.Open {
		if tr.Start, err = ParseIndexedTime(minDate); err != nil {
			return err
		}
	}
	if tr.End.Open {
		if tr.End, err = ParseIndexedTime(maxDate); err != nil {
			return err
		}
	}
	r.FacetBounds = &tr
	return nil
}

// TimeGapFor returns the explicit gap or computes one from the range.
func (r *Request) TimeGapFor(tr TimeRange) (Gap, error) {
	if r.TimeGap != nil {
		return *r.TimeGap, nil
	}
	return ComputeGap(tr, r.TimeLimit)
}

// ParseRequest reads the search API query parameters. Invalid values are
// reported as a 400 *Error.
func ParseRequest(q url.Values) (*Request, error) {
	r := &Request{
		Text:   strings.TrimSpace(q.Get("q_text")),
		User:   strings.TrimSpace(q.Get("q_user")),
		Limit:  DefaultLimit,
		Page:   1,
		Sort:   SortScore,
		Engine: strings.ToLower(strings.TrimSpace(q.Get("search_engine"))),
	}
	if r.Text == "*" {
		r.Text = ""
	}

	if s := q.Get("q_time"); s != "" {
		tr, err := ParseTimeRange(s)
		if err != nil {
			return nil, err
		}
		r.Time = &tr
	}
	var err error
	if r.Geo, err = parseBox(q, "q_geo"); err != nil {
		return nil, err
	}
	if r.HeatmapFilter, err = parseBox(q, "a_hm_filter"); err != nil {
		return nil, err
	}

	ints := []struct {
		key string
		dst *int
		min int
		max int
	}{
		{"d_docs_limit", &r.Limit, 0, MaxLimit},
		{"d_docs_page", &r.Page, 1, 1 << 20},
		{"a_time_limit", &r.TimeLimit, 0, 10000},
		{"a_hm_limit", &r.HeatmapLimit, 0, 1 << 20},
		{"a_hm_gridlevel", &r.HeatmapGridLevel, 0, 12},
		{"a_text_limit", &r.TextLimit, 0, 1000},
		{"a_user_limit", &r.UserLimit, 0, 1000},
	}
	for _, p := range ints {
		if err := parseInt(q, p.key, p.dst, p.min, p.max); err != nil {
			return nil, err
		}
	}

	if s := q.Get("a_time_gap"); s != "" {
		g, err := ParseISO8601Gap(s)
		if err != nil {
			return nil, err
		}
		r.TimeGap = &g
	}

	if s := strings.ToLower(q.Get("d_docs_sort")); s != "" {
		switch Sort(s) {
		case SortScore, SortTime, SortDistance:
			r.Sort = Sort(s)
		default:
			return nil, BadRequest("d_docs_sort must be one of score, time, distance")
		}
	}
	if r.Sort == SortDistance && r.Geo == nil {
		return nil, BadRequest("d_docs_sort=distance requires q_geo")
	}

	if s := q.Get("original_response"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, BadRequest("original_response must be a boolean")
		}
		r.Original = b
	}
	return r, nil
}

func parseBox(q url.Values, key string) (*geo.BBox, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	b, err := geo.ParseBox(s)
	if err != nil {
		return nil, BadRequest("%s must be [minLat,minLon TO maxLat,maxLon]: %v", key, err)
	}
	return &b, nil
}

func parseInt(q url.Values, key string, dst *int, lo, hi int) error {
	s := q.Get(key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return BadRequest("%s must be an integer", key)
	}
	if n < lo || n > hi {
		return BadRequest("%s must be between %d and %d", key, lo, hi)
	}
	*dst = n
	return nil
}
