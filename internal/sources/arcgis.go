package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// DefaultArcGISSRS is assumed when a layer declares no usable spatial reference.
const DefaultArcGISSRS = "EPSG:4326"

type arcgisSpatialRef struct {
	WKID       int    `json:"wkid"`
	LatestWKID int    `json:"latestWkid"`
	WKT        string `json:"wkt"`
}

type arcgisExtent struct {
	XMin             *float64          `json:"xmin"`
	YMin             *float64          `json:"ymin"`
	XMax             *float64          `json:"xmax"`
	YMax             *float64          `json:"ymax"`
	SpatialReference *arcgisSpatialRef `json:"spatialReference"`
}

type arcgisMapService struct {
	MapName             string `json:"mapName"`
	ServiceDescription  string `json:"serviceDescription"`
	Description         string `json:"description"`
	SupportedExtensions string `json:"supportedExtensions"`
	DocumentInfo        struct {
		Title    string `json:"Title"`
		Keywords string `json:"Keywords"`
	} `json:"documentInfo"`
	Layers []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"layers"`
}

type arcgisLayer struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Extent      *arcgisExtent `json:"extent"`
}

type arcgisImageService struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	ServiceDesc      string            `json:"serviceDescription"`
	Extent           *arcgisExtent     `json:"extent"`
	SpatialReference *arcgisSpatialRef `json:"spatialReference"`
}

// MapServerAdapter harvests ArcGIS REST MapServer endpoints. Each sub-layer
// is fetched for its extent; a service advertising the WMSServer extension
// also registers the equivalent WMS service.
type MapServerAdapter struct{ h *Harvester }

func (a *MapServerAdapter) Type() domain.ServiceType { return domain.ServiceArcGISMapServer }

func (a *MapServerAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	base := arcgisBase(svc.URL)

	var ms arcgisMapService
	if err := a.h.client.GetJSON(ctx, base+"?f=json", &ms); err != nil {
		return Result{}, err
	}
	svc.Title = firstNonEmpty(ms.DocumentInfo.Title, ms.MapName, svc.Title)
	svc.Abstract = firstNonEmpty(ms.ServiceDescription, ms.Description, svc.Abstract)

	var res Result
	if strings.Contains(ms.SupportedExtensions, "WMSServer") {
		spawned, err := a.h.spawn(ctx, svc, ArcGISWMSURL(svc.URL), domain.ServiceWMS)
		if err != nil {
			res.warn("register wms interface: %v", err)
		} else {
			res.Spawned = append(res.Spawned, spawned)
		}
	}

	keywords := splitKeywords(ms.DocumentInfo.Keywords)
	layers := make([]RemoteLayer, 0, len(ms.Layers))
	for _, ref := range ms.Layers {
		pageURL := fmt.Sprintf("%s/%d", base, ref.ID)
		rl := RemoteLayer{
			Name:     strconv.Itoa(ref.ID),
			Title:    ref.Name,
			URL:      svc.URL,
			PageURL:  pageURL,
			Keywords: keywords,
		}

		var detail arcgisLayer
		if err := a.h.client.GetJSON(ctx, pageURL+"?f=json", &detail); err != nil {
			res.warn("layer %d: %v, using defaults", ref.ID, err)
			rl.BBox = orDefault(nil)
			rl.SRS = []string{DefaultArcGISSRS}
			layers = append(layers, rl)
			continue
		}
		rl.Title = firstNonEmpty(detail.Name, ref.Name)
		rl.Abstract = detail.Description

		box, srs, warnings := a.h.arcgisExtent(ctx, detail.Extent)
		for _, w := range warnings {
			res.warn("layer %d: %s", ref.ID, w)
		}
		rl.BBox, rl.SRS = orDefault(box), []string{srs}
		layers = append(layers, rl)
	}

	a.h.apply(ctx, svc, layers, &res)
	return res, nil
}

// ImageServerAdapter harvests ArcGIS REST ImageServer endpoints as a single
// layer named after the service.
type ImageServerAdapter struct{ h *Harvester }

func (a *ImageServerAdapter) Type() domain.ServiceType { return domain.ServiceArcGISImageServer }

func (a *ImageServerAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	base := arcgisBase(svc.URL)

	var is arcgisImageService
	if err := a.h.client.GetJSON(ctx, base+"?f=json", &is); err != nil {
		return Result{}, err
	}
	if is.Name == "" {
		is.Name = lastPathSegment(strings.TrimSuffix(base, "/ImageServer"))
	}
	svc.Title = firstNonEmpty(is.Name, svc.Title)
	svc.Abstract = firstNonEmpty(is.ServiceDesc, is.Description, svc.Abstract)

	ext := is.Extent
	if ext != nil && ext.SpatialReference == nil {
		ext.SpatialReference = is.SpatialReference
	}

	var res Result
	box, srs, warnings := a.h.arcgisExtent(ctx, ext)
	for _, w := range warnings {
		res.warn("%s", w)
	}

	a.h.apply(ctx, svc, []RemoteLayer{{
		Name:     is.Name,
		Title:    is.Name,
		Abstract: firstNonEmpty(is.Description, is.ServiceDesc),
		URL:      svc.URL,
		PageURL:  base,
		BBox:     orDefault(box),
		SRS:      []string{srs},
	}}, &res)
	return res, nil
}

// arcgisExtent extracts a WGS84 bbox and an SRS code from an ArcGIS extent.
// Each field falls back independently; problems are returned as warnings.
func (h *Harvester) arcgisExtent(ctx context.Context, ext *arcgisExtent) (box *geo.BBox, srs string, warnings []string) {
	srs = DefaultArcGISSRS
	if ext == nil {
		return nil, srs, []string{"no extent, using defaults"}
	}

	if sr := ext.SpatialReference; sr != nil {
		switch {
		case sr.LatestWKID != 0:
			srs = "EPSG:" + strconv.Itoa(sr.LatestWKID)
		case sr.WKID != 0:
			srs = "EPSG:" + strconv.Itoa(sr.WKID)
		case sr.WKT != "" && h.epsg != nil:
			code, err := h.epsg.Resolve(ctx, sr.WKT)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("resolve wkt spatial reference: %v", err))
			} else {
				srs = "EPSG:" + code
			}
		default:
			warnings = append(warnings, "spatial reference unusable, assuming "+DefaultArcGISSRS)
		}
	} else {
		warnings = append(warnings, "no spatial reference, assuming "+DefaultArcGISSRS)
	}

	if ext.XMin == nil || ext.YMin == nil || ext.XMax == nil || ext.YMax == nil {
		return nil, srs, append(warnings, "incomplete extent")
	}
	b := geo.BBox{MinX: *ext.XMin, MinY: *ext.YMin, MaxX: *ext.XMax, MaxY: *ext.YMax}
	switch {
	case geo.IsMercator(srs):
		b = geo.MercatorToLLBBox(b)
	case isGeographic([]string{srs}):
	default:
		return nil, srs, append(warnings, "extent in unsupported srs "+srs)
	}
	if !geo.GoodCoords(b.Strings()) {
		return nil, srs, append(warnings, "extent is not numeric")
	}
	return &b, srs, warnings
}

// ArcGISWMSURL maps a REST MapServer URL onto its WMSServer interface:
// "/rest/services/" becomes "/services/" and "?f=json" becomes "/WMSServer?".
func ArcGISWMSURL(restURL string) string {
	u := strings.Replace(restURL, "/rest/services/", "/services/", 1)
	if strings.Contains(u, "?f=json") {
		return strings.Replace(u, "?f=json", "/WMSServer?", 1)
	}
	return strings.TrimRight(stripQuery(u), "/") + "/WMSServer?"
}

func arcgisBase(u string) string {
	return strings.TrimRight(stripQuery(u), "/")
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

func lastPathSegment(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndexByte(u, '/'); i >= 0 {
		return u[i+1:]
	}
	return u
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
