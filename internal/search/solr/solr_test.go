package solr

import (
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

func prepared(t *testing.T) *document.Prepared {
	t.Helper()
	now := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := domain.NewService("https://maps.example.org/geoserver/wms", domain.ServiceWMS, "", now)
	svc.ID = 3
	svc.SRS = []string{"EPSG:4326", "EPSG:3857"}
	l := domain.NewLayer(3, "boston", now)
	l.ID = 9
	l.Title = "Boston 1880"
	l.SetBBox(&geo.BBox{MinX: -72, MinY: 42, MaxX: -70, MaxY: 44})
	l.AddDate("1880-01-01", domain.DateDetected)

	p, err := document.Prepare(document.Source{Layer: l, Service: svc}, document.Options{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return p
}

func TestBuildDocument(t *testing.T) {
	d := BuildDocument(prepared(t))

	if d.ID != 9 || d.LayerID != 9 || d.Type != DocType || d.ServiceID != 3 {
		t.Errorf("ids = %+v", d)
	}
	if d.BBox != "ENVELOPE(-72.000000,-70.000000,44.000000,42.000000)" {
		t.Errorf("bbox = %q", d.BBox)
	}
	if d.LayerDate != "1880-01-01T00:00:00Z" || d.LayerDateType != "Detected" {
		t.Errorf("date = %q %q", d.LayerDate, d.LayerDateType)
	}
	if d.Originator != "example.org" || d.ServiceType != "OGC:WMS" || len(d.SrsProjectionCode) != 2 {
		t.Errorf("service fields = %+v", d)
	}
	if d.Availability != "Online" || d.LayerReliability != nil {
		t.Errorf("health = %q %v", d.Availability, d.LayerReliability)
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, field := range []string{`"LayerId":9`, `"SrsProjectionCode":["EPSG:4326","EPSG:3857"]`, `"Centroid":"43,-71"`} {
		if !strings.Contains(string(b), field) {
			t.Errorf("document JSON lacks %s: %s", field, b)
		}
	}
}

func TestTranslateRequestTimeFacet(t *testing.T) {
	req, err := searchapi.ParseRequest(url.Values{
		"q_time":       {"[2000 TO 2014-01-02T11:12:13]"},
		"a_time_limit": {"1000"},
	})
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	p, err := TranslateRequest(req)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}

	want := map[string]string{
		"facet":             "true",
		"facet.range":       "LayerDate",
		"facet.range.start": "2000-01-01T00:00:00Z",
		"facet.range.end":   "2014-01-02T11:12:13Z",
		"facet.range.gap":   "+6DAYS",
		"q":                 "*:*",
	}
	for k, v := range want {
		if got := p.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := p["fq"]; len(got) != 1 || got[0] != "LayerDate:[2000-01-01T00:00:00Z TO 2014-01-02T11:12:13Z]" {
		t.Errorf("fq = %v", got)
	}
}

func TestTranslateRequestFilters(t *testing.T) {
	req, err := searchapi.ParseRequest(url.Values{
		"q_text":       {"boston maps"},
		"q_geo":        {"[42,-72 TO 44,-70]"},
		"q_user":       {`jo"e`},
		"d_docs_limit": {"10"},
		"d_docs_page":  {"2"},
		"d_docs_sort":  {"distance"},
		"a_hm_limit":   {"100"},
		"a_text_limit": {"5"},
		"a_user_limit": {"3"},
	})
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	req.Catalog = "hypermap"

	p, err := TranslateRequest(req)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	wantFq := []string{`Catalog:"hypermap"`, "bbox:[42,-72 TO 44,-70]", `Originator:"jo\"e"`}
	if got := p["fq"]; strings.Join(got, "|") != strings.Join(wantFq, "|") {
		t.Errorf("fq = %v, want %v", got, wantFq)
	}
	checks := map[string]string{
		"defType":                     "edismax",
		"q":                           "boston maps",
		"rows":                        "10",
		"start":                       "10",
		"sort":                        "geodist() asc",
		"sfield":                      "Centroid",
		"pt":                          "43,-71",
		"facet.heatmap":               "bbox",
		"facet.heatmap.geom":          "[42,-72 TO 44,-70]",
		"facet.heatmap.distErr":       "0.2",
		"facet.heatmap.maxCells":      "100000",
		"f.LayerKeywords.facet.limit": "5",
		"f.Originator.facet.limit":    "3",
	}
	for k, v := range checks {
		if got := p.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := p["facet.field"]; len(got) != 2 {
		t.Errorf("facet.field = %v", got)
	}
}

func TestTranslateRequestOpenFacet(t *testing.T) {
	req, _ := searchapi.ParseRequest(url.Values{"q_time": {"[* TO 2000]"}, "a_time_limit": {"10"}})
	if _, err := TranslateRequest(req); !errors.Is(err, searchapi.ErrBadRequest) {
		t.Fatalf("TranslateRequest() error = %v, want bad request", err)
	}

	if err := req.BindFacetBounds("1850-01-01T00:00:00Z", "2010-01-01T00:00:00Z"); err != nil {
		t.Fatalf("BindFacetBounds() error = %v", err)
	}
	p, err := TranslateRequest(req)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	if p.Get("facet.range.start") != "1850-01-01T00:00:00Z" || p.Get("facet.range.end") != "2000-01-01T00:00:00Z" {
		t.Errorf("facet range = %s .. %s", p.Get("facet.range.start"), p.Get("facet.range.end"))
	}
	if got := p["fq"]; len(got) != 1 || got[0] != "LayerDate:[* TO 2000-01-01T00:00:00Z]" {
		t.Errorf("fq = %v", got)
	}
}

const selectBody = `{
  "responseHeader": {"status": 0, "QTime": 12},
  "response": {"numFound": 2, "start": 0, "docs": [{"id": 1, "LayerTitle": "a"}, {"id": 2, "LayerTitle": "b"}]},
  "facet_counts": {
    "facet_ranges": {"LayerDate": {"counts": ["2000-01-01T00:00:00Z", 1, "2000-01-07T00:00:00Z", 1], "gap": "+6DAYS", "start": "2000-01-01T00:00:00Z", "end": "2014-01-02T11:12:13Z"}},
    "facet_fields": {"LayerKeywords": ["boston", 2], "Originator": ["example.org", 2]},
    "facet_heatmaps": {"bbox": ["gridLevel", 2, "columns", 2, "rows", 2, "minX", -180.0, "maxX", 180.0, "minY", -90.0, "maxY", 90.0, "counts_ints2D", [[0, 1], null]]}
  },
  "debug": {"timing": {"time": 11.0, "prepare": {"time": 1.0}, "process": {"time": 10.0}}}
}`

func TestNormalizeResponse(t *testing.T) {
	req, _ := searchapi.ParseRequest(url.Values{
		"q_time":       {"[2000 TO 2014-01-02T11:12:13]"},
		"a_time_limit": {"1000"},
		"a_text_limit": {"5"},
		"a_user_limit": {"5"},
		"a_hm_limit":   {"4"},
	})

	resp, err := NormalizeResponse([]byte(selectBody), req)
	if err != nil {
		t.Fatalf("NormalizeResponse() error = %v", err)
	}
	if resp.MatchDocs != 2 || len(resp.Docs) != 2 {
		t.Errorf("docs = %d / %d", resp.MatchDocs, len(resp.Docs))
	}
	if resp.Time == nil || resp.Time.Gap != "P6D" || len(resp.Time.Counts) != 2 {
		t.Errorf("time facet = %+v", resp.Time)
	}
	hm := resp.Heatmap
	if hm == nil || hm.Columns != 2 || hm.Rows != 2 || hm.MinX != -180 {
		t.Fatalf("heatmap = %+v", hm)
	}
	if hm.Counts[0][1] != 1 || hm.Counts[1] != nil {
		t.Errorf("heatmap counts = %v", hm.Counts)
	}
	if len(resp.Text) != 1 || resp.Text[0].Value != "boston" || len(resp.User) != 1 {
		t.Errorf("text = %v user = %v", resp.Text, resp.User)
	}
	if resp.Timing == nil || resp.Timing.Millis != 12 || len(resp.Timing.Subs) != 2 {
		t.Errorf("timing = %+v", resp.Timing)
	}
	if resp.Original != nil {
		t.Error("original response not requested")
	}
}

func TestNormalizeResponseErrors(t *testing.T) {
	req, _ := searchapi.ParseRequest(url.Values{})

	for _, body := range []string{`not json`, `{"responseHeader":{}}`, `{"error":{"msg":"undefined field x","code":400}}`} {
		_, err := NormalizeResponse([]byte(body), req)
		var e *searchapi.Error
		if !errors.As(err, &e) {
			t.Errorf("NormalizeResponse(%s) error = %v, want *searchapi.Error", body, err)
		}
	}
}

// fakeSolr records update bodies and answers schema and select calls.
type fakeSolr struct {
	mu      sync.Mutex
	updates []string
	schema  []string
}

func (f *fakeSolr) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/solr/hypermap/schema/fieldtypes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fieldTypes":[{"name":"string"},{"name":"location_rpt"}]}`))
	})
	mux.HandleFunc("/solr/hypermap/schema/fields", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fields":[{"name":"id"},{"name":"bbox"}]}`))
	})
	mux.HandleFunc("/solr/hypermap/schema", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.schema = append(f.schema, string(b))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"responseHeader":{"status":0}}`))
	})
	mux.HandleFunc("/solr/hypermap/update", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("commit") != "true" {
			t.Errorf("update without commit")
		}
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.updates = append(f.updates, string(b))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"responseHeader":{"status":0}}`))
	})
	mux.HandleFunc("/solr/hypermap/select", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch {
		case r.Form.Get("stats") == "true":
			_, _ = w.Write([]byte(`{"stats":{"stats_fields":{"LayerDate":{"min":"1850-01-01T00:00:00Z","max":"2010-06-01T00:00:00.000Z"}}}}`))
		case r.Form.Get("q") == "bad:":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"msg":"org.apache.solr.search.SyntaxError","code":400}}`))
		default:
			_, _ = w.Write([]byte(selectBody))
		}
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeSolr) {
	t.Helper()
	f := &fakeSolr{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(Options{URL: srv.URL + "/solr", Core: "hypermap"}, logger.Nop()), f
}

func TestClientIndexAndClear(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()

	if err := c.IndexLayers(ctx, []*document.Prepared{prepared(t), prepared(t)}); err != nil {
		t.Fatalf("IndexLayers() error = %v", err)
	}
	if err := c.IndexLayers(ctx, nil); err != nil {
		t.Fatalf("IndexLayers(nil) error = %v", err)
	}
	if err := c.Clear(ctx, ""); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if len(f.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(f.updates))
	}
	var docs []Document
	if err := json.Unmarshal([]byte(f.updates[0]), &docs); err != nil || len(docs) != 2 {
		t.Errorf("index body = %s (%v)", f.updates[0], err)
	}
	if f.updates[1] != `{"delete":{"query":"*:*"}}` {
		t.Errorf("clear body = %s", f.updates[1])
	}
}

func TestClientEnsureCatalogAddsMissingOnly(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()

	for range 2 {
		if err := c.EnsureCatalog(ctx, "hypermap"); err != nil {
			t.Fatalf("EnsureCatalog() error = %v", err)
		}
	}
	if len(f.schema) != 1 {
		t.Fatalf("schema updates = %d, want 1", len(f.schema))
	}
	var cmd struct {
		Types  []map[string]any `json:"add-field-type"`
		Fields []Field          `json:"add-field"`
	}
	if err := json.Unmarshal([]byte(f.schema[0]), &cmd); err != nil {
		t.Fatalf("schema body: %v", err)
	}
	if len(cmd.Types) != 1 || len(cmd.Fields) != len(Fields)-1 {
		t.Errorf("added %d types and %d fields", len(cmd.Types), len(cmd.Fields))
	}
	for _, fl := range cmd.Fields {
		if fl.Name == "bbox" {
			t.Error("existing field bbox re-added")
		}
	}
}

func TestClientSearch(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	req, _ := searchapi.ParseRequest(url.Values{"a_time_limit": {"100"}})
	resp, err := c.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.MatchDocs != 2 {
		t.Errorf("MatchDocs = %d", resp.MatchDocs)
	}
	if req.FacetBounds == nil || req.FacetBounds.End.Time.Year() != 2010 || req.Time != nil {
		t.Errorf("facet bounds = %+v, time = %+v", req.FacetBounds, req.Time)
	}

	bad, _ := searchapi.ParseRequest(url.Values{"q_text": {"bad:"}})
	_, err = c.Search(ctx, bad)
	var e *searchapi.Error
	if !errors.As(err, &e) || e.Status != http.StatusBadRequest || !strings.Contains(e.Message, "SyntaxError") {
		t.Errorf("Search() error = %v, want structured 400", err)
	}
}

func TestClientSearchUnreachable(t *testing.T) {
	c := New(Options{URL: "http://127.0.0.1:1/solr", Core: "hypermap", QueryTimeout: time.Second}, logger.Nop())
	req, _ := searchapi.ParseRequest(url.Values{})

	_, err := c.Search(context.Background(), req)
	var e *searchapi.Error
	if !errors.As(err, &e) || e.Status != http.StatusInternalServerError {
		t.Errorf("Search() error = %v, want structured 500", err)
	}
}
