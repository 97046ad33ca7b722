package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/index"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/metrics"
	"github.com/MrSnakeDoc/georegistry/internal/search"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

// stubEngine answers every search with one document and records the request.
type stubEngine struct {
	name    string
	last    *searchapi.Request
	fail    error
	pingErr error
}

func (e *stubEngine) Name() string                                            { return e.name }
func (e *stubEngine) EnsureCatalog(context.Context, string) error             { return nil }
func (e *stubEngine) IndexLayer(context.Context, *document.Prepared) error    { return nil }
func (e *stubEngine) IndexLayers(context.Context, []*document.Prepared) error { return nil }
func (e *stubEngine) Clear(context.Context, string) error                     { return nil }
func (e *stubEngine) Ping(context.Context) error                              { return e.pingErr }

func (e *stubEngine) Search(_ context.Context, req *searchapi.Request) (*searchapi.Response, error) {
	e.last = req
	if e.fail != nil {
		return nil, e.fail
	}
	return &searchapi.Response{MatchDocs: 1, Docs: []map[string]any{{"id": "1"}}}, nil
}

type env struct {
	repo    *index.MemoryIndex
	solr    *stubEngine
	es      *stubEngine
	trigger chan struct{}
	handler http.Handler
}

func newEnv(t *testing.T, mutate ...func(*deps.Deps)) *env {
	t.Helper()
	ctx := context.Background()
	repo := index.NewMemoryIndex()
	for _, slug := range []string{"hypermap", "boston"} {
		if err := repo.SaveCatalog(ctx, &domain.Catalog{Slug: slug, Name: slug}); err != nil {
			t.Fatal(err)
		}
	}

	e := &env{
		repo:    repo,
		solr:    &stubEngine{name: search.EngineSolr},
		es:      &stubEngine{name: search.EngineElastic},
		trigger: make(chan struct{}, 1),
	}
	d := deps.Deps{
		Logger:           logger.Nop(),
		StartTime:        time.Now(),
		Version:          "test",
		SearchRatePerMin: 600,
		SearchRateBurst:  100,
		Repo:             repo,
		DefaultCatalog:   "hypermap",
		Backend:          "memory",
		Engines:          search.NewSetOf(e.solr, e.es),
		Metrics:          metrics.New(),
		HarvestTrigger:   e.trigger,
	}
	for _, m := range mutate {
		m(&d)
	}
	e.handler = NewRouter(logger.Nop(), d)
	return e
}

func (e *env) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Message
}

func TestSearchDefaultCatalog(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/search?q_text=boston&d_docs_limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if e.solr.last == nil || e.solr.last.Catalog != "hypermap" || e.solr.last.Text != "boston" || e.solr.last.Limit != 5 {
		t.Errorf("request = %+v", e.solr.last)
	}
	if !strings.Contains(rec.Body.String(), `"a.matchDocs":1`) {
		t.Errorf("body = %s", rec.Body)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
}

func TestSearchCatalogAndEngineOverride(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/catalogs/boston/search?search_engine=es")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if e.es.last == nil || e.es.last.Catalog != "boston" {
		t.Errorf("elasticsearch request = %+v", e.es.last)
	}
	if e.solr.last != nil {
		t.Error("solr should not have been queried")
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		fail   error
		want   int
	}{
		{name: "unknown catalog", target: "/api/catalogs/nowhere/search", want: http.StatusNotFound},
		{name: "bad time range", target: "/api/search?q_time=[2010%20TO%202000]", want: http.StatusBadRequest},
		{name: "unknown engine", target: "/api/search?search_engine=lucene", want: http.StatusBadRequest},
		{name: "engine syntax error", target: "/api/search", fail: searchapi.Upstream(400, errors.New("syntax error")), want: http.StatusBadRequest},
		{name: "engine unreachable", target: "/api/search", fail: searchapi.Upstream(0, errors.New("connection refused")), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.solr.fail = tt.fail
			rec := e.do(t, http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if errorMessage(t, rec) == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestSearchRateLimit(t *testing.T) {
	e := newEnv(t, func(d *deps.Deps) {
		d.SearchRateBurst = 2
		d.SearchRatePerMin = 1
	})

	for i := range 2 {
		if rec := e.do(t, http.MethodGet, "/api/search"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := e.do(t, http.MethodGet, "/api/search")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestCatalogViews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	svc := domain.NewService("http://maps.example.org/wms", domain.ServiceWMS, "boston", time.Now())
	if err := e.repo.CreateService(ctx, svc); err != nil {
		t.Fatal(err)
	}
	l, _, err := e.repo.GetOrCreateLayer(ctx, svc.ID, "roads")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	_ = e.repo.AppendCheck(ctx, domain.NewCheck(svc.ResourceKey(), true, 100*time.Millisecond, "", now))
	_ = e.repo.AppendCheck(ctx, domain.NewCheck(svc.ResourceKey(), false, 300*time.Millisecond, "timeout", now.Add(time.Minute)))

	rec := e.do(t, http.MethodGet, "/api/services?catalog=boston")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "maps.example.org") {
		t.Fatalf("services = %d %s", rec.Code, rec.Body)
	}
	if rec := e.do(t, http.MethodGet, "/api/services?catalog=hypermap"); strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("filtered services = %s", rec.Body)
	}

	rec = e.do(t, http.MethodGet, "/api/services/"+itoa(svc.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("service status = %d", rec.Code)
	}
	var view struct {
		URL    string `json:"url"`
		Layers int    `json:"layers_count"`
		Checks struct {
			Count       int     `json:"count"`
			Reliability float64 `json:"reliability"`
			LastMessage string  `json:"last_message"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.URL != svc.URL || view.Layers != 1 || view.Checks.Count != 2 || view.Checks.Reliability != 50 || view.Checks.LastMessage != "timeout" {
		t.Errorf("service view = %+v", view)
	}

	if rec := e.do(t, http.MethodGet, "/api/layers/"+itoa(l.ID)); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"roads"`) {
		t.Errorf("layer = %d %s", rec.Code, rec.Body)
	}
	if rec := e.do(t, http.MethodGet, "/api/layers/999"); rec.Code != http.StatusNotFound {
		t.Errorf("missing layer status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/services/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/catalogs"); !strings.Contains(rec.Body.String(), `"slug":"boston"`) {
		t.Errorf("catalogs = %s", rec.Body)
	}
}

func TestHarvestTrigger(t *testing.T) {
	e := newEnv(t)

	if rec := e.do(t, http.MethodPost, "/api/harvest"); rec.Code != http.StatusAccepted {
		t.Fatalf("first trigger status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/harvest"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("queued trigger status = %d, want 429", rec.Code)
	}
	select {
	case <-e.trigger:
	default:
		t.Error("trigger channel is empty")
	}
}

func TestAdminEndpointsRestricted(t *testing.T) {
	e := newEnv(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"192.168.0.0/16"} })

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/harvest"},
		{http.MethodGet, "/infra"},
		{http.MethodGet, "/readyz"},
		{http.MethodGet, "/metrics"},
	} {
		if rec := e.do(t, tc.method, tc.path); rec.Code != http.StatusForbidden {
			t.Errorf("%s %s status = %d, want 403", tc.method, tc.path, rec.Code)
		}
	}
	if rec := e.do(t, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestInfraAndReadiness(t *testing.T) {
	e := newEnv(t)
	e.es.pingErr = errors.New("connection refused")

	rec := e.do(t, http.MethodGet, "/infra")
	if rec.Code != http.StatusOK {
		t.Fatalf("infra status = %d", rec.Code)
	}
	var body struct {
		Status     string `json:"status"`
		Components map[string]struct {
			OK      bool `json:"ok"`
			Default bool `json:"default"`
		} `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || !body.Components["solr"].Default || body.Components["elasticsearch"].OK {
		t.Errorf("infra = %+v", body)
	}

	if rec := e.do(t, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}
	e.solr.pingErr = errors.New("down")
	if rec := e.do(t, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with default engine down = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodGet, "/api/search")

	rec := e.do(t, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "searches_total") {
		t.Error("searches_total missing from /metrics")
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t, func(d *deps.Deps) { d.CORSOrigins = []string{"https://maps.example.org"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://maps.example.org" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
