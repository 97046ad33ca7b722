package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/dates"
	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// WorldMapPageSize is the number of rows requested per search page.
const WorldMapPageSize = 10

// flexFloat accepts a JSON number, a numeric string or null. NaN and
// infinities are treated as unset.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = flexFloat{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = flexFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		// Invalid values leave the field unset rather than failing the page.
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{Value: v, Valid: true}
	return nil
}

type worldmapPage struct {
	Total int           `json:"total"`
	Rows  []worldmapRow `json:"rows"`
}

type worldmapRow struct {
	Name                string          `json:"name"`
	Title               string          `json:"title"`
	Abstract            string          `json:"abstract"`
	Detail              string          `json:"detail"`
	OwnerUsername       string          `json:"owner_username"`
	TopicCategory       string          `json:"topic_category"`
	TemporalExtentStart string          `json:"temporal_extent_start"`
	TemporalExtentEnd   string          `json:"temporal_extent_end"`
	Keywords            []string        `json:"keywords"`
	BBoxLeft            flexFloat       `json:"bbox_left"`
	BBoxRight           flexFloat       `json:"bbox_right"`
	BBoxBottom          flexFloat       `json:"bbox_bottom"`
	BBoxTop             flexFloat       `json:"bbox_top"`
	Permissions         map[string]bool `json:"_permissions"`
}

// public reports the view permission; rows without one are public.
func (r worldmapRow) public() bool {
	view, ok := r.Permissions["view"]
	return !ok || view
}

func (r worldmapRow) bbox() *geo.BBox {
	if !r.BBoxLeft.Valid || !r.BBoxRight.Valid || !r.BBoxBottom.Valid || !r.BBoxTop.Valid {
		return nil
	}
	minX, maxX := r.BBoxLeft.Value, r.BBoxRight.Value
	minY, maxY := r.BBoxBottom.Value, r.BBoxTop.Value
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return &geo.BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// WorldMapAdapter harvests the WorldMap GeoNode search API. Pages are walked
// until the total announced by the first page is reached or a page comes
// back empty.
type WorldMapAdapter struct{ h *Harvester }

func (a *WorldMapAdapter) Type() domain.ServiceType { return domain.ServiceWorldMap }

func (a *WorldMapAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	host, err := hostRoot(svc.URL)
	if err != nil {
		return Result{}, err
	}

	var (
		res   Result
		total = -1
	)
	for start := 0; total < 0 || start < total; start += WorldMapPageSize {
		q := url.Values{}
		q.Set("start", strconv.Itoa(start))
		q.Set("limit", strconv.Itoa(WorldMapPageSize))

		var page worldmapPage
		if err := a.h.client.GetJSON(ctx, host+"/data/search/api?"+q.Encode(), &page); err != nil {
			if start == 0 {
				return Result{}, err
			}
			res.warn("page at %d: %v", start, err)
			break
		}
		if total < 0 {
			total = page.Total
		}
		if len(page.Rows) == 0 {
			break
		}

		layers := make([]RemoteLayer, 0, len(page.Rows))
		for _, row := range page.Rows {
			if row.Name == "" {
				res.warn("row without name at offset %d", start)
				continue
			}
			layers = append(layers, a.remote(host, row, &res))
		}
		a.h.apply(ctx, svc, layers, &res)
	}
	return res, nil
}

func (a *WorldMapAdapter) remote(host string, row worldmapRow, res *Result) RemoteLayer {
	rl := RemoteLayer{
		Name:     row.Name,
		Title:    firstNonEmpty(row.Title, row.Name),
		Abstract: row.Abstract,
		URL:      fmt.Sprintf("%s/geoserver/geonode/%s/wms?", host, strings.TrimPrefix(row.Name, "geonode:")),
		BBox:     orDefault(row.bbox()),
		SRS:      []string{"EPSG:4326"},
		Keywords: row.Keywords,
		Public:   boolPtr(row.public()),
		WorldMap: &domain.WorldMapAttrs{
			Category: row.TopicCategory,
			Username: row.OwnerUsername,
		},
	}
	if row.Detail != "" {
		rl.PageURL = host + row.Detail
	}

	start := a.extent(row.Name, row.TemporalExtentStart, res)
	end := a.extent(row.Name, row.TemporalExtentEnd, res)
	rl.WorldMap.TemporalExtentStart, rl.WorldMap.TemporalExtentEnd = start, end
	for _, d := range []string{start, end} {
		if d != "" {
			rl.MetadataDates = append(rl.MetadataDates, d)
		}
	}
	return rl
}

func (a *WorldMapAdapter) extent(name, raw string, res *Result) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	d, ok := dates.ParseMetadataDate(raw)
	if !ok {
		res.warn("layer %q: unparseable temporal extent %q", name, raw)
		return ""
	}
	return d
}

// hostRoot returns "scheme://host" of u.
func hostRoot(u string) (string, error) {
	p, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return "", fmt.Errorf("parse service url: %w", err)
	}
	if p.Scheme == "" || p.Host == "" {
		return "", fmt.Errorf("parse service url: %q is not absolute", u)
	}
	return p.Scheme + "://" + p.Host, nil
}
