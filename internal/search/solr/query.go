package solr

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

// Field names the translator refers to.
const (
	FieldDate       = "LayerDate"
	FieldGeo        = "bbox"
	FieldCentroid   = "Centroid"
	FieldOriginator = "Originator"
	FieldKeywords   = "LayerKeywords"
	FieldCatalog    = "Catalog"
)

// QueryFields are searched by free text, with their edismax boosts.
const QueryFields = "LayerTitle^4 LayerAbstract LayerKeywords^2"

// TranslateRequest maps req onto Solr select parameters. A time facet
// needs a bound range: q_time itself or FacetBounds.
func TranslateRequest(req *searchapi.Request) (url.Values, error) {
	p := url.Values{}
	p.Set("wt", "json")
	p.Set("debug", "timing")

	if req.Text != "" {
		p.Set("defType", "edismax")
		p.Set("qf", QueryFields)
		p.Set("q", req.Text)
	} else {
		p.Set("q", "*:*")
	}

	if req.Catalog != "" {
		p.Add("fq", FieldCatalog+":"+quote(req.Catalog))
	}
	if req.Time != nil {
		p.Add("fq", FieldDate+":"+req.Time.String())
	}
	if req.Geo != nil {
		p.Add("fq", FieldGeo+":"+geo.FormatBox(*req.Geo))
	}
	if req.User != "" {
		p.Add("fq", FieldOriginator+":"+quote(req.User))
	}

	p.Set("rows", strconv.Itoa(req.Limit))
	p.Set("start", strconv.Itoa(req.Offset()))
	switch req.Sort {
	case searchapi.SortTime:
		p.Set("sort", FieldDate+" desc")
	case searchapi.SortDistance:
		n := geo.Normalize(req.Geo.MinX, req.Geo.MinY, req.Geo.MaxX, req.Geo.MaxY)
		p.Set("sfield", FieldCentroid)
		p.Set("pt", fmtFloat(n.CenterY)+","+fmtFloat(n.CenterX))
		p.Set("sort", "geodist() asc")
	default:
		p.Set("sort", "score desc")
	}

	facets := false
	if req.WantsTimeFacet() {
		tr, err := req.TimeFacetRange()
		if err != nil {
			return nil, err
		}
		gap, err := req.TimeGapFor(tr)
		if err != nil {
			return nil, err
		}
		facets = true
		p.Set("facet.range", FieldDate)
		p.Set("facet.range.start", tr.Start.String())
		p.Set("facet.range.end", tr.End.String())
		p.Set("facet.range.gap", gap.Solr())
		p.Set("facet.range.hardend", "true")
	}
	if req.WantsHeatmap() {
		facets = true
		p.Set("facet.heatmap", FieldGeo)
		p.Set("facet.heatmap.geom", geo.FormatBox(req.HeatmapBox()))
		p.Set("facet.heatmap.maxCells", strconv.Itoa(searchapi.MaxHeatmapCells))
		if req.HeatmapGridLevel > 0 {
			p.Set("facet.heatmap.gridLevel", strconv.Itoa(req.HeatmapGridLevel))
		} else {
			p.Set("facet.heatmap.distErr", fmtFloat(searchapi.HeatmapDistErr(req.HeatmapBox(), req.HeatmapLimit)))
		}
	}
	if req.TextLimit > 0 {
		facets = true
		addFieldFacet(p, FieldKeywords, req.TextLimit)
	}
	if req.UserLimit > 0 {
		facets = true
		addFieldFacet(p, FieldOriginator, req.UserLimit)
	}
	if facets {
		p.Set("facet", "true")
	}
	return p, nil
}

func addFieldFacet(p url.Values, field string, limit int) {
	p.Add("facet.field", field)
	p.Set("f."+field+".facet.limit", strconv.Itoa(limit))
	p.Set("f."+field+".facet.mincount", "1")
}

// quote renders v as a Solr phrase.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
