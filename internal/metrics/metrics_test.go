package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveHarvest("OGC:WMS", true, 2*time.Second)
	m.ObserveHarvest("OGC:WMS", false, time.Second)
	m.ObserveCheck(domain.KindLayer, true, time.Second)
	m.ObserveIndex("solr", "ok", 12)
	m.ObserveIndex("solr", "invalid", 0)
	m.ObserveSearch("solr", http.StatusOK, 30*time.Millisecond)

	if got := testutil.ToFloat64(m.harvests.WithLabelValues("OGC:WMS", "error")); got != 1 {
		t.Errorf("failed harvests = %v", got)
	}
	if got := testutil.ToFloat64(m.indexed.WithLabelValues("solr", "ok")); got != 12 {
		t.Errorf("indexed = %v", got)
	}
	if got := testutil.CollectAndCount(m.indexed); got != 1 {
		t.Errorf("index series = %d, zero counts must not create series", got)
	}
	if got := testutil.ToFloat64(m.checks.WithLabelValues("layer", "ok")); got != 1 {
		t.Errorf("checks = %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveSearch("elasticsearch", http.StatusBadRequest, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`georegistry_searches_total{engine="elasticsearch",status="400"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output lacks %s", want)
		}
	}
}
