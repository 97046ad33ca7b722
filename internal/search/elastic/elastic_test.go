package elastic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

func preparedLayer(t *testing.T, id int64) *document.Prepared {
	t.Helper()
	now := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := domain.NewService("https://maps.example.org/geoserver/wms", domain.ServiceWMS, "", now)
	svc.ID = 3
	l := domain.NewLayer(3, "boston", now)
	l.ID = id
	l.Title = "Boston 1880"
	l.AddKeyword("boston")
	l.SetBBox(&geo.BBox{MinX: -72, MinY: 42, MaxX: -70, MaxY: 44})
	l.AddDate("1880-01-01", domain.DateDetected)

	p, err := document.Prepare(document.Source{Layer: l, Service: svc}, document.Options{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return p
}

func mustParse(t *testing.T, q url.Values) *searchapi.Request {
	t.Helper()
	req, err := searchapi.ParseRequest(q)
	if err != nil {
		t.Fatalf("ParseRequest(%v) error = %v", q, err)
	}
	return req
}

func TestBuildDocument(t *testing.T) {
	d := BuildDocument(preparedLayer(t, 9))

	if d.ID != 9 || d.Type != DocType || d.Catalog != domain.DefaultCatalogSlug {
		t.Errorf("ids = %+v", d)
	}
	if d.Centroid != [2]float64{-71, 43} {
		t.Errorf("Centroid = %v, want [lon lat]", d.Centroid)
	}
	if d.GeoShape.Type != "envelope" || d.GeoShape.Coordinates != [2][2]float64{{-72, 44}, {-70, 42}} {
		t.Errorf("GeoShape = %+v", d.GeoShape)
	}
	if d.Date != "1880-01-01T00:00:00Z" || d.DateType != "Detected" || d.Originator != "example.org" {
		t.Errorf("date/originator = %q %q %q", d.Date, d.DateType, d.Originator)
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, field := range []string{`"layer_geoshape":{"type":"envelope","coordinates":[[-72,44],[-70,42]]}`, `"layer_keywords":["boston"]`, `"srs":[]`} {
		if !strings.Contains(string(b), field) {
			t.Errorf("document JSON lacks %s: %s", field, b)
		}
	}
}

func TestMappingPrecision(t *testing.T) {
	b, _ := json.Marshal(Mapping(""))
	if !strings.Contains(string(b), `"layer_geoshape":{"precision":"500m","tree":"quadtree","type":"geo_shape"}`) {
		t.Errorf("default mapping = %s", b)
	}
	b, _ = json.Marshal(Mapping("1km"))
	if !strings.Contains(string(b), `"precision":"1km"`) {
		t.Errorf("mapping ignores precision: %s", b)
	}
}

func TestTranslateRequest(t *testing.T) {
	req := mustParse(t, url.Values{
		"q_text":       {"boston"},
		"q_time":       {"[2000 TO 2014-01-02T11:12:13]"},
		"q_geo":        {"[42,-72 TO 44,-70]"},
		"q_user":       {"example.org"},
		"d_docs_limit": {"10"},
		"d_docs_page":  {"3"},
		"d_docs_sort":  {"distance"},
		"a_time_limit": {"1000"},
		"a_hm_limit":   {"100"},
		"a_text_limit": {"5"},
	})

	body, err := TranslateRequest(req)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	b, _ := json.Marshal(body)
	got := string(b)

	for _, want := range []string{
		`"query_string":{"fields":["title^4","abstract","layer_keywords^2"],"query":"boston"}`,
		`"range":{"layer_date":{"gte":"2000-01-01T00:00:00Z","lte":"2014-01-02T11:12:13Z"}}`,
		`"geo_shape":{"layer_geoshape":{"relation":"intersects","shape":{"type":"envelope","coordinates":[[-72,44],[-70,42]]}}}`,
		`"term":{"layer_originator":"example.org"}`,
		`"_geo_distance":{"layer_centroid":{"lat":43,"lon":-71},"order":"asc","unit":"km"}`,
		`"interval":"6d"`,
		`"geohash_grid":{"field":"layer_centroid","precision":5,"size":10000}`,
		`"a_text":{"terms":{"field":"layer_keywords","size":5}}`,
		`"from":20`,
		`"size":10`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("query lacks %s\n%s", want, got)
		}
	}
	if strings.Contains(got, "a_user") {
		t.Errorf("unrequested user facet: %s", got)
	}
}

func TestTranslateRequestDefaults(t *testing.T) {
	body, err := TranslateRequest(mustParse(t, url.Values{}))
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	b, _ := json.Marshal(body)
	if string(b) != `{"from":0,"query":{"bool":{"must":[{"match_all":{}}]}},"size":100,"sort":["_score"]}` {
		t.Errorf("default query = %s", b)
	}

	open := mustParse(t, url.Values{"q_time": {"[* TO 2000]"}, "a_time_limit": {"10"}})
	if _, err := TranslateRequest(open); !errors.Is(err, searchapi.ErrBadRequest) {
		t.Errorf("open facet error = %v, want bad request", err)
	}
}

func TestHeatmapPrecision(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
		want int
	}{
		{"world", url.Values{"a_hm_limit": {"100"}}, 2},
		{"grid level", url.Values{"a_hm_gridlevel": {"6"}, "a_hm_filter": {"[42,-72 TO 44,-70]"}}, 6},
		{"small box", url.Values{"a_hm_limit": {"100"}, "a_hm_filter": {"[42,-72 TO 44,-70]"}}, 5},
		{"grid level capped on world", url.Values{"a_hm_gridlevel": {"8"}}, 3},
		{"huge limit capped on world", url.Values{"a_hm_limit": {"1048576"}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeatmapPrecision(mustParse(t, tt.q)); got != tt.want {
				t.Errorf("HeatmapPrecision() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCellSize(t *testing.T) {
	w, h := CellSize(1)
	if w != 45 || h != 45 {
		t.Errorf("CellSize(1) = %v x %v", w, h)
	}
	w, h = CellSize(2)
	if w != 11.25 || h != 5.625 {
		t.Errorf("CellSize(2) = %v x %v", w, h)
	}
}

const searchBody = `{
  "took": 7,
  "hits": {"total": {"value": 3, "relation": "eq"}, "hits": [{"_id": "1", "_source": {"title": "a"}}]},
  "aggregations": {
    "a_time": {"doc_count": 3, "dates": {"buckets": [{"key_as_string": "2000-01-01T00:00:00.000Z", "key": 946684800000, "doc_count": 3}]}},
    "a_hm": {"doc_count": 8, "cells": {"buckets": [{"key": "d", "doc_count": 5}, {"key": "u", "doc_count": 3}]}},
    "a_user": {"buckets": [{"key": "example.org", "doc_count": 3}]}
  }
}`

func TestNormalizeResponse(t *testing.T) {
	req := mustParse(t, url.Values{
		"q_time":            {"[2000 TO 2014-01-02T11:12:13]"},
		"a_time_limit":      {"1000"},
		"a_hm_gridlevel":    {"1"},
		"a_user_limit":      {"5"},
		"original_response": {"true"},
	})

	resp, err := NormalizeResponse([]byte(searchBody), req)
	if err != nil {
		t.Fatalf("NormalizeResponse() error = %v", err)
	}
	if resp.MatchDocs != 3 || len(resp.Docs) != 1 || resp.Docs[0]["_id"] != "1" {
		t.Errorf("docs = %d %v", resp.MatchDocs, resp.Docs)
	}
	if resp.Time == nil || resp.Time.Gap != "P6D" || resp.Time.Start != "2000-01-01T00:00:00Z" || len(resp.Time.Counts) != 1 {
		t.Errorf("time = %+v", resp.Time)
	}
	if len(resp.User) != 1 || resp.User[0].Value != "example.org" || resp.Text != nil {
		t.Errorf("user = %v text = %v", resp.User, resp.Text)
	}

	hm := resp.Heatmap
	if hm == nil || hm.Columns != 8 || hm.Rows != 4 || hm.MinX != -180 || hm.MaxY != 90 {
		t.Fatalf("heatmap = %+v", hm)
	}
	if hm.Counts[1][2] != 5 || hm.Counts[0][4] != 3 {
		t.Errorf("heatmap counts = %v", hm.Counts)
	}
	if hm.Counts[2] != nil || hm.Counts[3] != nil {
		t.Errorf("empty rows should be nil: %v", hm.Counts)
	}
	if resp.Timing.Millis != 7 || resp.Original == nil {
		t.Errorf("timing = %+v original = %d bytes", resp.Timing, len(resp.Original))
	}
}

func TestNormalizeResponseTotals(t *testing.T) {
	req := mustParse(t, url.Values{})
	resp, err := NormalizeResponse([]byte(`{"hits":{"total":42,"hits":[]}}`), req)
	if err != nil || resp.MatchDocs != 42 {
		t.Errorf("legacy total = %v, %v", resp, err)
	}

	for _, body := range []string{
		`{"error":{"root_cause":[{"reason":"failed to parse"}],"type":"search_phase_execution_exception"},"status":400}`,
		`{"error":"IndexMissingException[[x] missing]","status":404}`,
		`{}`,
		`[`,
	} {
		_, err := NormalizeResponse([]byte(body), req)
		var e *searchapi.Error
		if !errors.As(err, &e) {
			t.Errorf("NormalizeResponse(%s) error = %v", body, err)
		}
	}
}

func TestBulkBuffer(t *testing.T) {
	buf := NewBulkBuffer(2)
	d := BuildDocument(preparedLayer(t, 1))
	if buf.Add(NewEnvelope("hypermap", d)) {
		t.Error("buffer full after one")
	}
	if !buf.Add(NewEnvelope("hypermap", d)) {
		t.Error("buffer not full after two")
	}
	envs := buf.Take()
	if len(envs) != 2 || buf.Len() != 0 {
		t.Fatalf("Take() = %d, left %d", len(envs), buf.Len())
	}

	b, err := EncodeBulk(envs[:1])
	if err != nil {
		t.Fatalf("EncodeBulk() error = %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if len(lines) != 2 || lines[0] != `{"index":{"_id":"1","_index":"hypermap","_type":"layer"}}` {
		t.Errorf("bulk body = %s", b)
	}
}

// fakeES records requests and answers index, bulk and search calls.
type fakeES struct {
	mu       sync.Mutex
	creates  int
	bulkDocs []int
	deletes  int
	searches []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/hypermap":
		f.creates++
		if f.creates > 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"index_already_exists_exception"},"status":400}`))
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/hypermap/layer/"):
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.URL.Path == "/_bulk":
		n := 0
		sc := bufio.NewScanner(bytes.NewReader(body))
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			n++
		}
		f.bulkDocs = append(f.bulkDocs, n/2)
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	case r.Method == http.MethodDelete:
		f.deletes++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"IndexMissingException","status":404}`))
	case r.URL.Path == "/hypermap/_search":
		f.searches = append(f.searches, string(body))
		if strings.Contains(string(body), "min_date") {
			_, _ = w.Write([]byte(`{"hits":{"total":3,"hits":[]},"aggregations":{"min_date":{"value":-3786825600000},"max_date":{"value":1275350400000}}}`))
			return
		}
		_, _ = w.Write([]byte(searchBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, bulkSize int) (*Client, *fakeES) {
	t.Helper()
	f := &fakeES{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL, BulkSize: bulkSize}, logger.Nop()), f
}

func TestClientEnsureCatalog(t *testing.T) {
	c, f := newTestClient(t, 0)
	ctx := context.Background()

	for range 2 {
		if err := c.EnsureCatalog(ctx, ""); err != nil {
			t.Fatalf("EnsureCatalog() error = %v", err)
		}
	}
	if f.creates != 1 {
		t.Errorf("creates = %d, want 1", f.creates)
	}

	// After a clear the index is created again; the existing index answer
	// is tolerated.
	if err := c.Clear(ctx, "hypermap"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := c.EnsureCatalog(ctx, "hypermap"); err != nil {
		t.Fatalf("EnsureCatalog() after clear error = %v", err)
	}
	if f.creates != 2 || f.deletes != 1 {
		t.Errorf("creates = %d deletes = %d", f.creates, f.deletes)
	}
}

func TestClientIndexLayers(t *testing.T) {
	c, f := newTestClient(t, 2)
	ctx := context.Background()

	ps := []*document.Prepared{preparedLayer(t, 1), preparedLayer(t, 2), preparedLayer(t, 3)}
	if err := c.IndexLayers(ctx, ps); err != nil {
		t.Fatalf("IndexLayers() error = %v", err)
	}
	if len(f.bulkDocs) != 2 || f.bulkDocs[0] != 2 || f.bulkDocs[1] != 1 {
		t.Errorf("bulk requests = %v, want [2 1]", f.bulkDocs)
	}
	if err := c.IndexLayer(ctx, ps[0]); err != nil {
		t.Errorf("IndexLayer() error = %v", err)
	}
}

func TestClientBulkItemErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":true,"items":[
			{"index":{"_id":"1","status":201}},
			{"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse [layer_geoshape]"}}}]}`))
	}))
	defer srv.Close()
	c := New(Options{URL: srv.URL}, logger.Nop())

	d := BuildDocument(preparedLayer(t, 1))
	err := c.Bulk(context.Background(), []Envelope{NewEnvelope("hypermap", d), NewEnvelope("hypermap", d)})
	if err == nil || !strings.Contains(err.Error(), "1 of 2") || !strings.Contains(err.Error(), "layer_geoshape") {
		t.Errorf("Bulk() error = %v", err)
	}
	pe, ok := document.AsPartial(err)
	if !ok || len(pe.Failed) != 1 || pe.Failed[2] == nil {
		t.Errorf("Bulk() partial = %+v, want layer 2 rejected", pe)
	}
}

func TestClientIndexLayersReportsRejectedLayers(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			_, _ = w.Write([]byte(`{"errors":true,"items":[
				{"index":{"_id":"1","status":201}},
				{"index":{"_id":"2","status":400,"error":{"reason":"failed to parse [layer_geoshape]"}}}]}`))
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable","status":503}`))
		default:
			_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"_id":"5","status":201}}]}`))
		}
	}))
	defer srv.Close()
	c := New(Options{URL: srv.URL, BulkSize: 2}, logger.Nop())

	var ps []*document.Prepared
	for id := int64(1); id <= 5; id++ {
		ps = append(ps, preparedLayer(t, id))
	}
	err := c.IndexLayers(context.Background(), ps)
	pe, ok := document.AsPartial(err)
	if !ok {
		t.Fatalf("IndexLayers() error = %v, want partial", err)
	}
	if calls != 3 {
		t.Errorf("bulk requests = %d, want 3", calls)
	}
	if pe.Total != 5 || len(pe.Failed) != 3 {
		t.Fatalf("partial = %v", pe)
	}
	for _, id := range []int64{2, 3, 4} {
		if pe.Failed[id] == nil {
			t.Errorf("layer %d should be reported as rejected", id)
		}
	}
}

func TestClientSearchBindsFacetBounds(t *testing.T) {
	c, f := newTestClient(t, 0)
	req := mustParse(t, url.Values{"a_time_limit": {"100"}})

	resp, err := c.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.MatchDocs != 3 {
		t.Errorf("MatchDocs = %d", resp.MatchDocs)
	}
	if len(f.searches) != 2 {
		t.Fatalf("searches = %d, want stats + query", len(f.searches))
	}
	fb := req.FacetBounds
	if fb == nil || fb.Start.String() != "1850-01-01T00:00:00Z" || fb.End.String() != "2010-06-01T00:00:00Z" {
		t.Fatalf("facet bounds = %+v", fb)
	}
	if !strings.Contains(f.searches[1], `"extended_bounds":{"max":"2010-06-01T00:00:00Z","min":"1850-01-01T00:00:00Z"}`) {
		t.Errorf("query = %s", f.searches[1])
	}
	if strings.Contains(f.searches[1], `"filter":[`) {
		t.Errorf("facet bounds must not filter documents: %s", f.searches[1])
	}
}

func TestEpochDate(t *testing.T) {
	if got := epochDate(-3786825600000); got != "1850-01-01T00:00:00Z" {
		t.Errorf("epochDate() = %q", got)
	}
	bce := time.Date(-220, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got := epochDate(float64(bce)); got != "-0220-01-01T00:00:00Z" {
		t.Errorf("epochDate(BCE) = %q", got)
	}
}
