// Package solr indexes layers into a shared Solr core and translates
// search requests into Solr query parameters.
package solr

import (
	"strconv"

	"github.com/MrSnakeDoc/georegistry/internal/search/document"
)

// DocType is the value of the type field of every layer document.
const DocType = "Layer"

// Document is a flat Solr layer document.
type Document struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`

	LayerID          int64    `json:"LayerId"`
	LayerName        string   `json:"LayerName"`
	LayerTitle       string   `json:"LayerTitle"`
	LayerAbstract    string   `json:"LayerAbstract,omitempty"`
	LayerURL         string   `json:"LayerUrl"`
	LayerPageURL     string   `json:"LayerPageUrl,omitempty"`
	LayerKeywords    []string `json:"LayerKeywords,omitempty"`
	LayerDate        string   `json:"LayerDate,omitempty"`
	LayerDateRange   string   `json:"LayerDateRange,omitempty"`
	LayerDateType    string   `json:"LayerDateType,omitempty"`
	LayerReliability *float64 `json:"LayerReliability,omitempty"`
	IsPublic         bool     `json:"IsPublic"`
	Availability     string   `json:"Availability"`

	ServiceID         int64    `json:"ServiceId"`
	ServiceType       string   `json:"ServiceType"`
	ServiceURL        string   `json:"ServiceUrl"`
	Catalog           string   `json:"Catalog"`
	Originator        string   `json:"Originator"`
	DomainName        string   `json:"DomainName"`
	SrsProjectionCode []string `json:"SrsProjectionCode"`

	MinX       float64 `json:"MinX"`
	MinY       float64 `json:"MinY"`
	MaxX       float64 `json:"MaxX"`
	MaxY       float64 `json:"MaxY"`
	CenterX    float64 `json:"CenterX"`
	CenterY    float64 `json:"CenterY"`
	HalfWidth  float64 `json:"HalfWidth"`
	HalfHeight float64 `json:"HalfHeight"`
	Area       float64 `json:"Area"`
	BBox       string  `json:"bbox"`
	Centroid   string  `json:"Centroid"` // "lat,lon"
}

// BuildDocument maps a prepared layer onto the Solr schema.
func BuildDocument(p *document.Prepared) Document {
	l, svc := p.Layer, p.Service
	d := Document{
		ID:                l.ID,
		Type:              DocType,
		LayerID:           l.ID,
		LayerName:         l.Name,
		LayerTitle:        l.Title,
		LayerAbstract:     l.Abstract,
		LayerURL:          l.URL,
		LayerPageURL:      l.PageURL,
		LayerKeywords:     l.Keywords,
		LayerDateRange:    p.DateRange,
		IsPublic:          l.IsPublic,
		Availability:      availability(p.Available),
		ServiceID:         svc.ID,
		ServiceType:       string(svc.Type),
		ServiceURL:        svc.URL,
		Catalog:           svc.Catalog,
		Originator:        p.Originator,
		DomainName:        p.DomainName,
		SrsProjectionCode: svc.SRS,
		MinX:              p.BBox.MinX,
		MinY:              p.BBox.MinY,
		MaxX:              p.BBox.MaxX,
		MaxY:              p.BBox.MaxY,
		CenterX:           p.BBox.CenterX,
		CenterY:           p.BBox.CenterY,
		HalfWidth:         p.BBox.HalfWidth,
		HalfHeight:        p.BBox.HalfHeight,
		Area:              p.BBox.Area,
		BBox:              p.Envelope,
		Centroid:          fmtFloat(p.BBox.CenterY) + "," + fmtFloat(p.BBox.CenterX),
	}
	if d.SrsProjectionCode == nil {
		d.SrsProjectionCode = []string{}
	}
	if p.HasDate {
		d.LayerDate = p.Date
		d.LayerDateType = p.DateType.String()
	}
	if p.HasReliability {
		r := p.Reliability
		d.LayerReliability = &r
	}
	return d
}

func availability(ok bool) string {
	if ok {
		return "Online"
	}
	return "Offline"
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
