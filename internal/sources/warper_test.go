package sources

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

func warperItems(from, to int) string {
	items := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		bbox := fmt.Sprintf(`"bbox": "-71.%d,42.1,-70.9,42.4",`, i)
		if i == 7 {
			bbox = ""
		}
		items = append(items, fmt.Sprintf(`{
  "id": %d,
  "title": "Plate %d",
  "description": "Atlas plate",
  %s
  "published_date": "2010-02-01T00:00:00Z",
  "depicts_year": "1880",
  "issue_year": null
}`, 100+i, i, bbox))
	}
	return strings.Join(items, ",")
}

func TestWarperHarvest(t *testing.T) {
	page := "/maps?field=title&format=json&page=%d&query=&show_warped=1"
	srv := jsonServer(t, map[string]string{
		fmt.Sprintf(page, 1): `{"total_pages": 2, "items": [` + warperItems(0, 10) + `]}`,
		fmt.Sprintf(page, 2): `{"total_pages": 2, "items": [` + warperItems(10, 15) + `]}`,
	})

	f := newFixture(t, nil, "")
	svc := f.service(t, srv.URL+"/maps", domain.ServiceWarper)

	res, err := f.reg.Harvest(context.Background(), svc)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}
	if res.Layers != 15 {
		t.Errorf("Layers = %d, want 15 (warnings %v)", res.Layers, res.Warnings)
	}

	layers := f.layers(t, svc.ID)
	if len(layers) != 15 {
		t.Fatalf("stored %d layers, want 15", len(layers))
	}

	missing := layers["107"]
	if missing.BBox != nil {
		t.Errorf("layer without bbox has %+v, want nil", missing.BBox)
	}
	if missing.WKTGeometry != geo.GlobalPolygonWKT {
		t.Errorf("WKT = %q, want global polygon", missing.WKTGeometry)
	}

	l := layers["101"]
	if l.BBox == nil || l.BBox.MinX != -71.1 {
		t.Errorf("bbox = %+v", l.BBox)
	}
	if l.URL != srv.URL+"/maps/wms/101?" || l.PageURL != srv.URL+"/maps/101" {
		t.Errorf("URL = %q PageURL = %q", l.URL, l.PageURL)
	}
	got := l.DatesOfType(domain.DateFromMetadata)
	if len(got) != 2 {
		t.Fatalf("metadata dates = %+v, want 2", got)
	}
	if got[0].Date != "2010-02-01" || got[1].Date != "1880-01-01" {
		t.Errorf("metadata dates = %+v", got)
	}
}
