package searchapi

import "encoding/json"

// FacetCount is one bucket of a terms or histogram facet.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// TimeFacet is the date histogram.
type TimeFacet struct {
	Start  string       `json:"start"`
	End    string       `json:"end"`
	Gap    string       `json:"gap"` // ISO-8601
	Counts []FacetCount `json:"counts"`
}

// HeatmapFacet is a grid of counts over a box. Counts[0] is the
// northernmost row; a nil row means all zeros.
type HeatmapFacet struct {
	GridLevel  int     `json:"gridLevel"`
	Columns    int     `json:"columns"`
	Rows       int     `json:"rows"`
	MinX       float64 `json:"minX"`
	MaxX       float64 `json:"maxX"`
	MinY       float64 `json:"minY"`
	MaxY       float64 `json:"maxY"`
	Projection string  `json:"projection"`
	Counts     [][]int `json:"counts_ints2D"`
}

// Timing is a labelled duration with optional children.
type Timing struct {
	Label  string   `json:"label"`
	Millis float64  `json:"millis"`
	Subs   []Timing `json:"subs,omitempty"`
}

// Response is the normalized answer of either engine.
type Response struct {
	MatchDocs int              `json:"a.matchDocs"`
	Docs      []map[string]any `json:"d.docs"`
	Time      *TimeFacet       `json:"a.time,omitempty"`
	Heatmap   *HeatmapFacet    `json:"a.hm,omitempty"`
	Text      []FacetCount     `json:"a.text,omitempty"`
	User      []FacetCount     `json:"a.user,omitempty"`
	Timing    *Timing          `json:"timing,omitempty"`

	// Original is the raw engine response when requested.
	Original json.RawMessage `json:"original_response,omitempty"`
}

// Pairs converts Solr's flat ["term", n, "term", n] lists.
func Pairs(flat []any) []FacetCount {
	out := make([]FacetCount, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		v, _ := flat[i].(string)
		n, _ := flat[i+1].(float64)
		out = append(out, FacetCount{Value: v, Count: int(n)})
	}
	return out
}
