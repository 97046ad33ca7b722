package elastic

import (
	"math"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

// Field names the translator refers to.
const (
	FieldDate       = "layer_date"
	FieldShape      = "layer_geoshape"
	FieldCentroid   = "layer_centroid"
	FieldOriginator = "layer_originator"
	FieldKeywords   = "layer_keywords"
)

// QueryFields are searched by free text, with their boosts.
var QueryFields = []string{"title^4", "abstract", "layer_keywords^2"}

// Aggregation names. They match the response keys of the search API.
const (
	aggTime = "a_time"
	aggHeat = "a_hm"
	aggText = "a_text"
	aggUser = "a_user"
)

// MaxPrecision is the finest geohash_grid precision.
const MaxPrecision = 12

// TranslateRequest maps req onto a search body. A time facet needs a
// bound range: q_time itself or FacetBounds.
func TranslateRequest(req *searchapi.Request) (map[string]any, error) {
	var must []any
	if req.Text != "" {
		must = append(must, map[string]any{
			"query_string": map[string]any{
				"query":  req.Text,
				"fields": QueryFields,
			},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	var filter []any
	if req.Time != nil {
		filter = append(filter, rangeFilter(*req.Time))
	}
	if req.Geo != nil {
		filter = append(filter, map[string]any{
			"geo_shape": map[string]any{
				FieldShape: map[string]any{
					"shape":    geo.GeoJSONEnvelope(*req.Geo),
					"relation": "intersects",
				},
			},
		})
	}
	if req.User != "" {
		filter = append(filter, map[string]any{"term": map[string]any{FieldOriginator: req.User}})
	}

	boolQuery := map[string]any{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	body := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"size":  req.Limit,
		"from":  req.Offset(),
	}

	switch req.Sort {
	case searchapi.SortTime:
		body["sort"] = []any{map[string]any{FieldDate: map[string]any{"order": "desc"}}}
	case searchapi.SortDistance:
		n := geo.Normalize(req.Geo.MinX, req.Geo.MinY, req.Geo.MaxX, req.Geo.MaxY)
		body["sort"] = []any{map[string]any{
			"_geo_distance": map[string]any{
				FieldCentroid: map[string]any{"lat": n.CenterY, "lon": n.CenterX},
				"order":       "asc",
				"unit":        "km",
			},
		}}
	default:
		body["sort"] = []any{"_score"}
	}

	aggs := map[string]any{}
	if req.WantsTimeFacet() {
		tr, err := req.TimeFacetRange()
		if err != nil {
			return nil, err
		}
		gap, err := req.TimeGapFor(tr)
		if err != nil {
			return nil, err
		}
		aggs[aggTime] = map[string]any{
			"filter": rangeFilter(tr),
			"aggs": map[string]any{
				"dates": map[string]any{
					"date_histogram": map[string]any{
						"field":         FieldDate,
						"interval":      gap.Elastic(),
						"min_doc_count": 0,
						"extended_bounds": map[string]any{
							"min": tr.Start.String(),
							"max": tr.End.String(),
						},
					},
				},
			},
		}
	}
	if req.WantsHeatmap() {
		box := req.HeatmapBox()
		aggs[aggHeat] = map[string]any{
			"filter": map[string]any{
				"geo_bounding_box": map[string]any{
					FieldCentroid: map[string]any{
						"top_left":     map[string]any{"lat": box.MaxY, "lon": box.MinX},
						"bottom_right": map[string]any{"lat": box.MinY, "lon": box.MaxX},
					},
				},
			},
			"aggs": map[string]any{
				"cells": map[string]any{
					"geohash_grid": map[string]any{
						"field":     FieldCentroid,
						"precision": HeatmapPrecision(req),
						"size":      10000,
					},
				},
			},
		}
	}
	if req.TextLimit > 0 {
		aggs[aggText] = terms(FieldKeywords, req.TextLimit)
	}
	if req.UserLimit > 0 {
		aggs[aggUser] = terms(FieldOriginator, req.UserLimit)
	}
	if len(aggs) > 0 {
		body["aggs"] = aggs
	}
	return body, nil
}

// HeatmapPrecision is the explicit grid level, or the coarsest geohash
// precision whose cells are no wider than the distErr heuristic. Either is
// then lowered until the grid over the heatmap box fits MaxHeatmapCells.
func HeatmapPrecision(req *searchapi.Request) int {
	box := req.HeatmapBox()
	p := MaxPrecision
	if req.HeatmapGridLevel > 0 {
		p = min(req.HeatmapGridLevel, MaxPrecision)
	} else {
		distErr := searchapi.HeatmapDistErr(box, req.HeatmapLimit)
		for c := 1; c <= MaxPrecision; c++ {
			if w, _ := CellSize(c); w <= distErr {
				p = c
				break
			}
		}
	}
	for p > 1 && newGrid(box, p).cells() > searchapi.MaxHeatmapCells {
		p--
	}
	return p
}

// grid is a heatmap box widened to whole geohash cells at one precision.
type grid struct {
	minX, maxX, minY, maxY float64
	cellW, cellH           float64
	cols, rows             int
}

func newGrid(box geo.BBox, p int) grid {
	w, h := CellSize(p)
	g := grid{
		minX:  math.Floor((box.MinX+180)/w)*w - 180,
		maxX:  math.Ceil((box.MaxX+180)/w)*w - 180,
		minY:  math.Floor((box.MinY+90)/h)*h - 90,
		maxY:  math.Ceil((box.MaxY+90)/h)*h - 90,
		cellW: w,
		cellH: h,
	}
	g.cols = max(int(math.Round((g.maxX-g.minX)/w)), 1)
	g.rows = max(int(math.Round((g.maxY-g.minY)/h)), 1)
	return g
}

func (g grid) cells() int { return g.cols * g.rows }

// CellSize is the width and height in degrees of a geohash cell at
// precision p. Longitude takes the odd bit when 5*p is odd.
func CellSize(p int) (width, height float64) {
	bits := 5 * p
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	return 360 / math.Pow(2, float64(lonBits)), 180 / math.Pow(2, float64(latBits))
}

func rangeFilter(tr searchapi.TimeRange) map[string]any {
	bounds := map[string]any{}
	if !tr.Start.Open {
		bounds["gte"] = tr.Start.String()
	}
	if !tr.End.Open {
		bounds["lte"] = tr.End.String()
	}
	return map[string]any{"range": map[string]any{FieldDate: bounds}}
}

func terms(field string, size int) map[string]any {
	return map[string]any{"terms": map[string]any{"field": field, "size": size}}
}
