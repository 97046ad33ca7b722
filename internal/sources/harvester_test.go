package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/index"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/sources/epsg"
	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
	"github.com/MrSnakeDoc/georegistry/internal/sources/ogc"
)

// stubReader serves fixed capabilities for every OGC type.
type stubReader struct {
	caps *ogc.Capabilities
	err  error
}

func (s *stubReader) WMS(context.Context, string) (*ogc.Capabilities, error)  { return s.caps, s.err }
func (s *stubReader) WMTS(context.Context, string) (*ogc.Capabilities, error) { return s.caps, s.err }
func (s *stubReader) TMS(context.Context, string) (*ogc.Capabilities, error)  { return s.caps, s.err }
func (s *stubReader) CSW(context.Context, string) (*ogc.Capabilities, error)  { return s.caps, s.err }

type fixture struct {
	repo *index.MemoryIndex
	h    *Harvester
	reg  *Registry
}

func newFixture(t *testing.T, reader ogc.Reader, epsgURL string) *fixture {
	t.Helper()
	repo := index.NewMemoryIndex()
	client := fetch.New(fetch.Options{Timeout: 5 * time.Second})
	if reader == nil {
		reader = ogc.NewHTTPReader(client)
	}
	h := NewHarvester(repo, client, reader, epsg.NewResolver(client, epsgURL, nil), logger.Nop())
	return &fixture{repo: repo, h: h, reg: NewRegistry(h)}
}

func (f *fixture) service(t *testing.T, url string, typ domain.ServiceType) *domain.Service {
	t.Helper()
	svc := domain.NewService(url, typ, "", time.Now())
	if err := f.repo.CreateService(context.Background(), svc); err != nil {
		t.Fatalf("CreateService() error = %v", err)
	}
	return svc
}

func (f *fixture) layers(t *testing.T, serviceID int64) map[string]*domain.Layer {
	t.Helper()
	list, err := f.repo.ListLayers(context.Background(), serviceID)
	if err != nil {
		t.Fatalf("ListLayers() error = %v", err)
	}
	out := make(map[string]*domain.Layer, len(list))
	for _, l := range list {
		out[l.Name] = l
	}
	return out
}

func nineLayers() *ogc.Capabilities {
	caps := &ogc.Capabilities{Title: "Harvard WMS", Abstract: "Scanned maps"}
	for i := range 9 {
		caps.Layers = append(caps.Layers, ogc.Layer{
			Name:     fmt.Sprintf("layer_%d", i),
			Title:    fmt.Sprintf("Boston %d", 1880+i),
			Keywords: []string{"boston", "maps", "history"},
			CRS:      []string{"EPSG:4326", "EPSG:3857"},
			BBox:     &geo.BBox{MinX: -71.2, MinY: 42.2, MaxX: -70.9, MaxY: 42.4},
		})
	}
	caps.Layers[8].BBox = nil
	return caps
}

func TestWMSHarvest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &stubReader{caps: nineLayers()}, "")
	svc := f.service(t, "http://example.com/wms", domain.ServiceWMS)

	res, err := f.reg.Harvest(ctx, svc)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if res.Layers != 9 || res.Created != 9 || res.Failed != 0 {
		t.Errorf("Result = %+v, want 9 layers created", res)
	}

	layers := f.layers(t, svc.ID)
	if len(layers) != 9 {
		t.Fatalf("stored %d layers, want 9", len(layers))
	}
	for name, l := range layers {
		if len(l.Keywords) != 3 {
			t.Errorf("%s keywords = %v, want 3", name, l.Keywords)
		}
		if len(l.DatesOfType(domain.DateDetected)) != 1 {
			t.Errorf("%s detected dates = %+v", name, l.Dates)
		}
	}
	if got := layers["layer_0"].Dates[0].Date; got != "1880-01-01" {
		t.Errorf("layer_0 date = %q, want 1880-01-01", got)
	}
	if got := *layers["layer_8"].BBox; got != geo.HarvestDefault {
		t.Errorf("layer_8 bbox = %+v, want harvest default", got)
	}

	stored, _ := f.repo.GetService(ctx, svc.ID)
	if len(stored.SRS) != 2 {
		t.Errorf("service SRS = %v, want 2 codes", stored.SRS)
	}
	if stored.Title != "Harvard WMS" || stored.LastHarvested.IsZero() {
		t.Errorf("service not described: %+v", stored)
	}
	srs, _ := f.repo.ListSRS(ctx)
	if len(srs) != 2 {
		t.Errorf("ListSRS() = %v, want 2", srs)
	}
}

func TestHarvestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reader := &stubReader{caps: nineLayers()}
	f := newFixture(t, reader, "")
	svc := f.service(t, "http://example.com/wms", domain.ServiceWMS)

	if _, err := f.reg.Harvest(ctx, svc); err != nil {
		t.Fatalf("first Harvest() error = %v", err)
	}
	reader.caps.Layers[0].Title = "Boston renamed"

	res, err := f.reg.Harvest(ctx, svc)
	if err != nil {
		t.Fatalf("second Harvest() error = %v", err)
	}
	if res.Created != 0 {
		t.Errorf("second run created %d layers", res.Created)
	}

	layers := f.layers(t, svc.ID)
	if len(layers) != 9 {
		t.Fatalf("stored %d layers after rerun, want 9", len(layers))
	}
	if l := layers["layer_0"]; l.Title != "Boston renamed" || len(l.Keywords) != 3 {
		t.Errorf("layer_0 did not converge: %+v", l)
	}
	if len(layers["layer_1"].Dates) != 1 {
		t.Errorf("dates duplicated: %+v", layers["layer_1"].Dates)
	}
}

func TestHarvestSkipsInactiveLayer(t *testing.T) {
	ctx := context.Background()
	reader := &stubReader{caps: nineLayers()}
	f := newFixture(t, reader, "")
	svc := f.service(t, "http://example.com/wms", domain.ServiceWMS)

	if _, err := f.reg.Harvest(ctx, svc); err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	l := f.layers(t, svc.ID)["layer_2"]
	l.Active = false
	if err := f.repo.SaveLayer(ctx, l); err != nil {
		t.Fatalf("SaveLayer() error = %v", err)
	}

	reader.caps.Layers[2].Title = "Changed upstream"
	res, err := f.reg.Harvest(ctx, svc)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if got := f.layers(t, svc.ID)["layer_2"].Title; got != "Boston 1882" {
		t.Errorf("inactive layer title = %q, want unchanged", got)
	}
}

func TestHarvestInactiveService(t *testing.T) {
	f := newFixture(t, &stubReader{err: errors.New("must not be called")}, "")
	svc := f.service(t, "http://example.com/wms", domain.ServiceWMS)
	svc.Active = false

	if _, err := f.reg.Harvest(context.Background(), svc); err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
}

func TestHarvestReaderError(t *testing.T) {
	f := newFixture(t, &stubReader{err: ogc.ErrNoLayers}, "")
	svc := f.service(t, "http://example.com/wms", domain.ServiceWMS)

	_, err := f.reg.Harvest(context.Background(), svc)
	if !errors.Is(err, ogc.ErrNoLayers) {
		t.Fatalf("Harvest() error = %v, want ErrNoLayers", err)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	f := newFixture(t, &stubReader{}, "")
	if _, err := f.reg.Adapter("OGC:WFS"); !errors.Is(err, ErrUnknownServiceType) {
		t.Errorf("Adapter(OGC:WFS) error = %v", err)
	}
	for _, typ := range domain.ServiceTypes {
		if _, err := f.reg.Adapter(typ); err != nil {
			t.Errorf("Adapter(%s) error = %v", typ, err)
		}
	}
}

func TestCSWHarvestRegistersNoLayers(t *testing.T) {
	f := newFixture(t, &stubReader{caps: &ogc.Capabilities{Title: "pycsw"}}, "")
	svc := f.service(t, "http://example.com/csw", domain.ServiceCSW)

	res, err := f.reg.Harvest(context.Background(), svc)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if res.Layers != 0 || len(f.layers(t, svc.ID)) != 0 {
		t.Errorf("CSW harvest produced layers: %+v", res)
	}
	if svc.Title != "pycsw" {
		t.Errorf("Title = %q", svc.Title)
	}
}

func TestTMSMercatorExtent(t *testing.T) {
	x, y := geo.ForwardMercator(-71.0589, 42.3601)
	caps := &ogc.Capabilities{Layers: []ogc.Layer{
		{Name: "merc", CRS: []string{"EPSG:3857"}, Native: true, BBox: &geo.BBox{MinX: x, MinY: y, MaxX: x, MaxY: y}},
		{Name: "utm", CRS: []string{"EPSG:32619"}, Native: true, BBox: &geo.BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}},
	}}
	f := newFixture(t, &stubReader{caps: caps}, "")
	svc := f.service(t, "http://example.com/tms/1.0.0", domain.ServiceTMS)

	res, err := f.reg.Harvest(context.Background(), svc)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1", res.Warnings)
	}

	layers := f.layers(t, svc.ID)
	b := layers["merc"].BBox
	if d := b.MinX + 71.0589; d > 1e-6 || d < -1e-6 {
		t.Errorf("merc MinX = %v", b.MinX)
	}
	if d := b.MinY - 42.3601; d > 1e-6 || d < -1e-6 {
		t.Errorf("merc MinY = %v", b.MinY)
	}
	if *layers["utm"].BBox != geo.HarvestDefault {
		t.Errorf("utm bbox = %+v, want default", layers["utm"].BBox)
	}
}

func jsonServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if q := r.URL.RawQuery; q != "" {
			if body, ok := routes[key+"?"+q]; ok {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
				return
			}
		}
		body, ok := routes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
