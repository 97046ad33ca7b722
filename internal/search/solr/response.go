package solr

import (
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

type selectResponse struct {
	ResponseHeader struct {
		Status int     `json:"status"`
		QTime  float64 `json:"QTime"`
	} `json:"responseHeader"`
	Response *struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
	FacetCounts struct {
		FacetRanges map[string]struct {
			Counts []any  `json:"counts"`
			Gap    string `json:"gap"`
			Start  string `json:"start"`
			End    string `json:"end"`
		} `json:"facet_ranges"`
		FacetFields   map[string][]any `json:"facet_fields"`
		FacetHeatmaps map[string][]any `json:"facet_heatmaps"`
	} `json:"facet_counts"`
	Debug struct {
		Timing map[string]any `json:"timing"`
	} `json:"debug"`
	Error *struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error"`
}

// NormalizeResponse maps a Solr select response onto the common shape.
func NormalizeResponse(body []byte, req *searchapi.Request) (*searchapi.Response, error) {
	var sr selectResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, searchapi.Upstream(502, fmt.Errorf("malformed solr response: %w", err))
	}
	if sr.Error != nil {
		return nil, searchapi.Upstream(sr.Error.Code, fmt.Errorf("solr: %s", sr.Error.Msg))
	}
	if sr.Response == nil {
		return nil, searchapi.Upstream(502, fmt.Errorf("solr response has no result"))
	}

	out := &searchapi.Response{
		MatchDocs: sr.Response.NumFound,
		Docs:      sr.Response.Docs,
	}
	if out.Docs == nil {
		out.Docs = []map[string]any{}
	}

	if r, ok := sr.FacetCounts.FacetRanges[FieldDate]; ok && req.WantsTimeFacet() {
		tr, err := req.TimeFacetRange()
		if err != nil {
			return nil, err
		}
		gap, err := req.TimeGapFor(tr)
		if err != nil {
			return nil, err
		}
		out.Time = &searchapi.TimeFacet{
			Start:  r.Start,
			End:    r.End,
			Gap:    gap.ISO(),
			Counts: searchapi.Pairs(r.Counts),
		}
	}
	if flat, ok := sr.FacetCounts.FacetHeatmaps[FieldGeo]; ok {
		out.Heatmap = heatmap(flat)
	}
	if flat, ok := sr.FacetCounts.FacetFields[FieldKeywords]; ok && req.TextLimit > 0 {
		out.Text = searchapi.Pairs(flat)
	}
	if flat, ok := sr.FacetCounts.FacetFields[FieldOriginator]; ok && req.UserLimit > 0 {
		out.User = searchapi.Pairs(flat)
	}

	out.Timing = &searchapi.Timing{Label: "solr", Millis: sr.ResponseHeader.QTime}
	if t := sr.Debug.Timing; t != nil {
		for _, phase := range []string{"prepare", "process"} {
			if sub, ok := t[phase].(map[string]any); ok {
				ms, _ := sub["time"].(float64)
				out.Timing.Subs = append(out.Timing.Subs, searchapi.Timing{Label: phase, Millis: ms})
			}
		}
	}

	if req.Original {
		out.Original = json.RawMessage(body)
	}
	return out, nil
}

// heatmap decodes Solr's flat ["gridLevel", 2, "columns", 4, ...] list.
func heatmap(flat []any) *searchapi.HeatmapFacet {
	h := &searchapi.HeatmapFacet{Projection: "EPSG:4326"}
	for i := 0; i+1 < len(flat); i += 2 {
		key, _ := flat[i].(string)
		val := flat[i+1]
		num, _ := val.(float64)
		switch key {
		case "gridLevel":
			h.GridLevel = int(num)
		case "columns":
			h.Columns = int(num)
		case "rows":
			h.Rows = int(num)
		case "minX":
			h.MinX = num
		case "maxX":
			h.MaxX = num
		case "minY":
			h.MinY = num
		case "maxY":
			h.MaxY = num
		case "counts_ints2D":
			rows, _ := val.([]any)
			h.Counts = make([][]int, len(rows))
			for r, row := range rows {
				cells, ok := row.([]any)
				if !ok {
					continue // null row: all zeros
				}
				h.Counts[r] = make([]int, len(cells))
				for c, cell := range cells {
					n, _ := cell.(float64)
					h.Counts[r][c] = int(n)
				}
			}
		}
	}
	return h
}
