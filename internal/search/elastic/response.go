package elastic

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmcloughlin/geohash"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

type searchResponse struct {
	Took float64 `json:"took"`
	Hits *struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
	Error        json.RawMessage            `json:"error"`
	Status       int                        `json:"status"`
}

type bucket struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string"`
	DocCount    int    `json:"doc_count"`
}

type buckets struct {
	Buckets []bucket `json:"buckets"`
}

// NormalizeResponse maps an Elasticsearch search response onto the common
// shape.
func NormalizeResponse(body []byte, req *searchapi.Request) (*searchapi.Response, error) {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, searchapi.Upstream(502, fmt.Errorf("malformed elasticsearch response: %w", err))
	}
	if len(sr.Error) > 0 && string(sr.Error) != "null" {
		return nil, searchapi.Upstream(sr.Status, fmt.Errorf("elasticsearch: %s", errorReason(sr.Error)))
	}
	if sr.Hits == nil {
		return nil, searchapi.Upstream(502, errors.New("elasticsearch response has no hits"))
	}

	total, err := hitsTotal(sr.Hits.Total)
	if err != nil {
		return nil, searchapi.Upstream(502, err)
	}
	out := &searchapi.Response{
		MatchDocs: total,
		Docs:      make([]map[string]any, 0, len(sr.Hits.Hits)),
	}
	for _, h := range sr.Hits.Hits {
		doc := h.Source
		if doc == nil {
			doc = map[string]any{}
		}
		doc["_id"] = h.ID
		out.Docs = append(out.Docs, doc)
	}

	if raw, ok := sr.Aggregations[aggTime]; ok && req.WantsTimeFacet() {
		tr, err := req.TimeFacetRange()
		if err != nil {
			return nil, err
		}
		gap, err := req.TimeGapFor(tr)
		if err != nil {
			return nil, err
		}
		var agg struct {
			Dates buckets `json:"dates"`
		}
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, searchapi.Upstream(502, fmt.Errorf("malformed time aggregation: %w", err))
		}
		out.Time = &searchapi.TimeFacet{
			Start:  tr.Start.String(),
			End:    tr.End.String(),
			Gap:    gap.ISO(),
			Counts: counts(agg.Dates.Buckets),
		}
	}
	if raw, ok := sr.Aggregations[aggHeat]; ok {
		var agg struct {
			Cells buckets `json:"cells"`
		}
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, searchapi.Upstream(502, fmt.Errorf("malformed heatmap aggregation: %w", err))
		}
		out.Heatmap = heatmap(agg.Cells.Buckets, req.HeatmapBox(), HeatmapPrecision(req))
	}
	for name, dst := range map[string]*[]searchapi.FacetCount{aggText: &out.Text, aggUser: &out.User} {
		raw, ok := sr.Aggregations[name]
		if !ok {
			continue
		}
		var agg buckets
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, searchapi.Upstream(502, fmt.Errorf("malformed %s aggregation: %w", name, err))
		}
		*dst = counts(agg.Buckets)
	}

	out.Timing = &searchapi.Timing{Label: "elasticsearch", Millis: sr.Took}
	if req.Original {
		out.Original = json.RawMessage(body)
	}
	return out, nil
}

// hitsTotal reads hits.total, a number before 7.x and an object after.
func hitsTotal(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("malformed hits.total: %s", raw)
	}
	return obj.Value, nil
}

func counts(bs []bucket) []searchapi.FacetCount {
	out := make([]searchapi.FacetCount, 0, len(bs))
	for _, b := range bs {
		v := b.KeyAsString
		if v == "" {
			v = fmt.Sprint(b.Key)
		}
		out = append(out, searchapi.FacetCount{Value: v, Count: b.DocCount})
	}
	return out
}

// heatmap lays geohash buckets onto a grid of cells aligned to the
// geohash cells at precision, covering box. Row 0 is the northernmost.
// Callers pass a precision from HeatmapPrecision, which keeps the grid
// within MaxHeatmapCells.
func heatmap(bs []bucket, box geo.BBox, precision int) *searchapi.HeatmapFacet {
	g := newGrid(box, precision)
	hm := &searchapi.HeatmapFacet{
		GridLevel:  precision,
		Columns:    g.cols,
		Rows:       g.rows,
		MinX:       g.minX,
		MaxX:       g.maxX,
		MinY:       g.minY,
		MaxY:       g.maxY,
		Projection: "EPSG:4326",
	}
	hm.Counts = make([][]int, hm.Rows)
	for _, b := range bs {
		key, ok := b.Key.(string)
		if !ok || b.DocCount == 0 {
			continue
		}
		lat, lng := geohash.DecodeCenter(key)
		col := int((lng - g.minX) / g.cellW)
		row := int((g.maxY - lat) / g.cellH)
		if col < 0 || col >= hm.Columns || row < 0 || row >= hm.Rows {
			continue
		}
		if hm.Counts[row] == nil {
			hm.Counts[row] = make([]int, hm.Columns)
		}
		hm.Counts[row][col] += b.DocCount
	}
	return hm
}

// errorReason extracts a message from either error shape: a plain string
// or an object with reason and root_cause.
func errorReason(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var e struct {
		Type      string `json:"type"`
		Reason    string `json:"reason"`
		RootCause []struct {
			Reason string `json:"reason"`
		} `json:"root_cause"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return string(raw)
	}
	if len(e.RootCause) > 0 && e.RootCause[0].Reason != "" {
		return e.RootCause[0].Reason
	}
	if e.Reason != "" {
		return e.Reason
	}
	return e.Type
}
