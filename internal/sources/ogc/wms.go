package ogc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

type wmsDoc struct {
	Version string     `xml:"version,attr"`
	Service wmsService `xml:"Service"`
	GetMap  struct {
		Online onlineResource `xml:"DCPType>HTTP>Get>OnlineResource"`
	} `xml:"Capability>Request>GetMap"`
	Layers []wmsLayer `xml:"Capability>Layer"`
}

type onlineResource struct {
	Href string `xml:"href,attr"`
}

type wmsService struct {
	Title    string   `xml:"Title"`
	Abstract string   `xml:"Abstract"`
	Keywords []string `xml:"KeywordList>Keyword"`
}

type wmsLayer struct {
	Name      string   `xml:"Name"`
	Title     string   `xml:"Title"`
	Abstract  string   `xml:"Abstract"`
	Keywords  []string `xml:"KeywordList>Keyword"`
	SRS       []string `xml:"SRS"`
	CRS       []string `xml:"CRS"`
	LatLonBox *struct {
		MinX string `xml:"minx,attr"`
		MinY string `xml:"miny,attr"`
		MaxX string `xml:"maxx,attr"`
		MaxY string `xml:"maxy,attr"`
	} `xml:"LatLonBoundingBox"`
	GeoBox *struct {
		West  string `xml:"westBoundLongitude"`
		East  string `xml:"eastBoundLongitude"`
		South string `xml:"southBoundLatitude"`
		North string `xml:"northBoundLatitude"`
	} `xml:"EX_GeographicBoundingBox"`
	Layers []wmsLayer `xml:"Layer"`
}

func (l *wmsLayer) bbox() *geo.BBox {
	var coords []string
	switch {
	case l.GeoBox != nil:
		coords = []string{l.GeoBox.West, l.GeoBox.South, l.GeoBox.East, l.GeoBox.North}
	case l.LatLonBox != nil:
		coords = []string{l.LatLonBox.MinX, l.LatLonBox.MinY, l.LatLonBox.MaxX, l.LatLonBox.MaxY}
	default:
		return nil
	}
	return parseBox(coords)
}

// ParseWMS decodes a WMS 1.1.x or 1.3.0 capabilities document. Named layers
// are flattened; CRS lists and bounding boxes are inherited from parents.
func ParseWMS(data []byte) (*Capabilities, error) {
	var doc wmsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse wms capabilities: %w", err)
	}

	caps := &Capabilities{
		Version:   doc.Version,
		Title:     strings.TrimSpace(doc.Service.Title),
		Abstract:  strings.TrimSpace(doc.Service.Abstract),
		Keywords:  cleanKeywords(doc.Service.Keywords),
		GetMapURL: doc.GetMap.Online.Href,
	}

	var walk func(layers []wmsLayer, crs []string, box *geo.BBox)
	walk = func(layers []wmsLayer, crs []string, box *geo.BBox) {
		for i := range layers {
			l := &layers[i]
			own := mergeCRS(crs, append(l.SRS, l.CRS...))
			b := l.bbox()
			if b == nil {
				b = box
			}
			if name := strings.TrimSpace(l.Name); name != "" {
				caps.Layers = append(caps.Layers, Layer{
					Name:     name,
					Title:    strings.TrimSpace(l.Title),
					Abstract: strings.TrimSpace(l.Abstract),
					Keywords: cleanKeywords(l.Keywords),
					CRS:      own,
					BBox:     b,
				})
			}
			walk(l.Layers, own, b)
		}
	}
	walk(doc.Layers, nil, nil)

	if len(caps.Layers) == 0 {
		return caps, ErrNoLayers
	}
	return caps, nil
}

func parseBox(coords []string) *geo.BBox {
	if !geo.GoodCoords(coords) {
		return nil
	}
	var v [4]float64
	for i, c := range coords {
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil
		}
		v[i] = f
	}
	return &geo.BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
}
