package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/dates"
	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

type warperPage struct {
	TotalPages int          `json:"total_pages"`
	Items      []warperItem `json:"items"`
}

type warperItem struct {
	ID            flexString `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	BBox          flexString `json:"bbox"`
	PublishedDate flexString `json:"published_date"`
	DateDepicted  flexString `json:"date_depicted"`
	DepictsYear   flexString `json:"depicts_year"`
	IssueYear     flexString `json:"issue_year"`
}

// bbox parses "x0,y0,x1,y1". A missing or malformed value yields nil;
// Mapwarper layers keep an absent extent instead of a default.
func (it warperItem) bbox() *geo.BBox {
	parts := strings.Split(string(it.BBox), ",")
	if len(parts) != 4 {
		return nil
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		v[i] = f
	}
	b := geo.BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if !geo.GoodCoords(b.Strings()) {
		return nil
	}
	return &b
}

func (it warperItem) dateCandidates() []string {
	return []string{
		string(it.PublishedDate),
		string(it.DateDepicted),
		string(it.DepictsYear),
		string(it.IssueYear),
	}
}

// WarperAdapter harvests a Mapwarper instance through its paginated JSON
// map listing.
type WarperAdapter struct{ h *Harvester }

func (a *WarperAdapter) Type() domain.ServiceType { return domain.ServiceWarper }

func (a *WarperAdapter) UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error) {
	base := strings.TrimRight(stripQuery(svc.URL), "/")

	var res Result
	for page, pages := 1, 1; page <= pages; page++ {
		q := url.Values{}
		q.Set("field", "title")
		q.Set("query", "")
		q.Set("show_warped", "1")
		q.Set("format", "json")
		q.Set("page", strconv.Itoa(page))

		var p warperPage
		if err := a.h.client.GetJSON(ctx, base+"?"+q.Encode(), &p); err != nil {
			if page == 1 {
				return Result{}, err
			}
			res.warn("page %d: %v", page, err)
			break
		}
		if page == 1 {
			pages = p.TotalPages
		}

		layers := make([]RemoteLayer, 0, len(p.Items))
		for _, it := range p.Items {
			if it.ID == "" {
				res.warn("item without id on page %d", page)
				continue
			}
			layers = append(layers, a.remote(base, it, &res))
		}
		a.h.apply(ctx, svc, layers, &res)
	}
	return res, nil
}

func (a *WarperAdapter) remote(base string, it warperItem, res *Result) RemoteLayer {
	id := string(it.ID)
	rl := RemoteLayer{
		Name:     id,
		Title:    firstNonEmpty(it.Title, id),
		Abstract: it.Description,
		URL:      base + "/wms/" + id + "?",
		PageURL:  base + "/" + id,
		BBox:     it.bbox(),
		SRS:      []string{"EPSG:4326"},
	}
	if rl.BBox == nil && it.BBox != "" {
		res.warn("layer %q: invalid bbox %q", id, it.BBox)
	}
	for _, raw := range it.dateCandidates() {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if d, ok := dates.ParseMetadataDate(raw); ok {
			rl.MetadataDates = append(rl.MetadataDates, d)
		} else {
			res.warn("layer %q: unparseable date %q", id, raw)
		}
	}
	return rl
}
