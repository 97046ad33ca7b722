// Package elastic indexes layers into one Elasticsearch index per catalog
// and translates search requests into the query DSL.
package elastic

import (
	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
)

// DocType is the mapping type of layer documents.
const DocType = "layer"

// Document is the layer source stored in Elasticsearch.
type Document struct {
	ID          int64        `json:"id"`
	Type        string       `json:"type"`
	LayerID     int64        `json:"layer_id"`
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Abstract    string       `json:"abstract,omitempty"`
	URL         string       `json:"url"`
	PageURL     string       `json:"page_url,omitempty"`
	Keywords    []string     `json:"layer_keywords"`
	Date        string       `json:"layer_date,omitempty"`
	DateEnd     string       `json:"layer_date_end,omitempty"`
	DateType    string       `json:"layer_datetype,omitempty"`
	Originator  string       `json:"layer_originator"`
	Reliability *float64     `json:"layer_reliability,omitempty"`
	IsPublic    bool         `json:"is_public"`
	Available   bool         `json:"is_available"`
	ServiceID   int64        `json:"service_id"`
	ServiceType string       `json:"service_type"`
	ServiceURL  string       `json:"service_url"`
	Catalog     string       `json:"catalog"`
	DomainName  string       `json:"domain_name"`
	SRS         []string     `json:"srs"`
	MinX        float64      `json:"min_x"`
	MinY        float64      `json:"min_y"`
	MaxX        float64      `json:"max_x"`
	MaxY        float64      `json:"max_y"`
	Area        float64      `json:"area"`
	BBox        string       `json:"bbox"`
	GeoShape    geo.Envelope `json:"layer_geoshape"`
	Centroid    [2]float64   `json:"layer_centroid"` // [lon, lat]
}

// BuildDocument maps a prepared layer onto the index mapping.
func BuildDocument(p *document.Prepared) Document {
	l, svc := p.Layer, p.Service
	d := Document{
		ID:          l.ID,
		Type:        DocType,
		LayerID:     l.ID,
		Name:        l.Name,
		Title:       l.Title,
		Abstract:    l.Abstract,
		URL:         l.URL,
		PageURL:     l.PageURL,
		Keywords:    l.Keywords,
		Originator:  p.Originator,
		IsPublic:    l.IsPublic,
		Available:   p.Available,
		ServiceID:   svc.ID,
		ServiceType: string(svc.Type),
		ServiceURL:  svc.URL,
		Catalog:     svc.Catalog,
		DomainName:  p.DomainName,
		SRS:         svc.SRS,
		MinX:        p.BBox.MinX,
		MinY:        p.BBox.MinY,
		MaxX:        p.BBox.MaxX,
		MaxY:        p.BBox.MaxY,
		Area:        p.BBox.Area,
		BBox:        p.Envelope,
		GeoShape:    p.Shape,
		Centroid:    [2]float64{p.BBox.CenterX, p.BBox.CenterY},
	}
	if d.Keywords == nil {
		d.Keywords = []string{}
	}
	if d.SRS == nil {
		d.SRS = []string{}
	}
	if p.HasDate {
		d.Date = p.Date
		d.DateEnd = p.DateEnd
		d.DateType = p.DateType.String()
	}
	if p.HasReliability {
		r := p.Reliability
		d.Reliability = &r
	}
	return d
}
