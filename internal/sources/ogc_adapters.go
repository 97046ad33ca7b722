package sources

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/sources/ogc"
)

// WMSAdapter harvests OGC Web Map Services.
type WMSAdapter struct{ h *Harvester }

func (a *WMSAdapter) Type() domain.ServiceType { return domain.ServiceWMS }

func (a *WMSAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	caps, err := a.h.reader.WMS(ctx, svc.URL)
	if err != nil {
		return Result{}, err
	}
	describe(svc, caps)

	layers := make([]RemoteLayer, 0, len(caps.Layers))
	for _, l := range caps.Layers {
		layers = append(layers, RemoteLayer{
			Name:     l.Name,
			Title:    l.Title,
			Abstract: l.Abstract,
			URL:      svc.URL,
			BBox:     orDefault(l.BBox),
			SRS:      l.CRS,
			Keywords: l.Keywords,
		})
	}

	var res Result
	a.h.apply(ctx, svc, layers, &res)
	return res, nil
}

// WMTSAdapter harvests OGC Web Map Tile Services.
type WMTSAdapter struct{ h *Harvester }

func (a *WMTSAdapter) Type() domain.ServiceType { return domain.ServiceWMTS }

func (a *WMTSAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	caps, err := a.h.reader.WMTS(ctx, svc.URL)
	if err != nil {
		return Result{}, err
	}
	describe(svc, caps)

	layers := make([]RemoteLayer, 0, len(caps.Layers))
	for _, l := range caps.Layers {
		layers = append(layers, RemoteLayer{
			Name:     l.Name,
			Title:    firstNonEmpty(l.Title, l.Name),
			Abstract: l.Abstract,
			URL:      svc.URL,
			BBox:     orDefault(l.BBox),
			SRS:      l.CRS,
			Keywords: l.Keywords,
		})
	}

	var res Result
	a.h.apply(ctx, svc, layers, &res)
	return res, nil
}

// TMSAdapter harvests OSGeo Tile Map Services. Tile map extents in a
// Web Mercator SRS are projected back to WGS84.
type TMSAdapter struct{ h *Harvester }

func (a *TMSAdapter) Type() domain.ServiceType { return domain.ServiceTMS }

func (a *TMSAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	caps, err := a.h.reader.TMS(ctx, svc.URL)
	if err != nil {
		return Result{}, err
	}
	describe(svc, caps)

	var res Result
	layers := make([]RemoteLayer, 0, len(caps.Layers))
	for _, l := range caps.Layers {
		box := l.BBox
		if box != nil && l.Native && geo.AnyMercator(l.CRS) {
			ll := geo.MercatorToLLBBox(*box)
			box = &ll
		} else if box != nil && l.Native && !isGeographic(l.CRS) {
			res.warn("layer %q: extent in unsupported srs %v, using default", l.Name, l.CRS)
			box = nil
		}
		layers = append(layers, RemoteLayer{
			Name:     l.Name,
			Title:    firstNonEmpty(l.Title, l.Name),
			Abstract: l.Abstract,
			URL:      firstNonEmpty(l.URL, svc.URL),
			BBox:     orDefault(box),
			SRS:      l.CRS,
		})
	}

	a.h.apply(ctx, svc, layers, &res)
	return res, nil
}

// CSWAdapter only refreshes the service description. Catalogue services
// are registered and checked but contribute no layers.
type CSWAdapter struct{ h *Harvester }

func (a *CSWAdapter) Type() domain.ServiceType { return domain.ServiceCSW }

func (a *CSWAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	caps, err := a.h.reader.CSW(ctx, svc.URL)
	if err != nil {
		return Result{}, err
	}
	describe(svc, caps)
	return Result{}, nil
}

func describe(svc *domain.Service, caps *ogc.Capabilities) {
	if caps.Title != "" {
		svc.Title = caps.Title
	}
	if caps.Abstract != "" {
		svc.Abstract = caps.Abstract
	}
}

func isGeographic(crs []string) bool {
	for _, c := range crs {
		switch strings.ToUpper(c) {
		case "EPSG:4326", "CRS:84", "OGC:CRS84":
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
