package ogc

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type owsIdentification struct {
	Title    string   `xml:"Title"`
	Abstract string   `xml:"Abstract"`
	Keywords []string `xml:"Keywords>Keyword"`
}

type wmtsDoc struct {
	Version  string            `xml:"version,attr"`
	Service  owsIdentification `xml:"ServiceIdentification"`
	Layers   []wmtsLayer       `xml:"Contents>Layer"`
	Matrices []struct {
		Identifier string `xml:"Identifier"`
		CRS        string `xml:"SupportedCRS"`
	} `xml:"Contents>TileMatrixSet"`
}

type wmtsLayer struct {
	Identifier string   `xml:"Identifier"`
	Title      string   `xml:"Title"`
	Abstract   string   `xml:"Abstract"`
	Keywords   []string `xml:"Keywords>Keyword"`
	WGS84      *struct {
		Lower string `xml:"LowerCorner"`
		Upper string `xml:"UpperCorner"`
	} `xml:"WGS84BoundingBox"`
	MatrixSets []string `xml:"TileMatrixSetLink>TileMatrixSet"`
	Resources  []struct {
		Template     string `xml:"template,attr"`
		ResourceType string `xml:"resourceType,attr"`
	} `xml:"ResourceURL"`
}

// ParseWMTS decodes a WMTS 1.0.0 capabilities document. A layer's CRS list
// is the set of CRS of the tile matrix sets it links to.
func ParseWMTS(data []byte) (*Capabilities, error) {
	var doc wmtsDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse wmts capabilities: %w", err)
	}

	matrixCRS := make(map[string]string, len(doc.Matrices))
	for _, m := range doc.Matrices {
		matrixCRS[strings.TrimSpace(m.Identifier)] = m.CRS
	}

	caps := &Capabilities{
		Version:  doc.Version,
		Title:    strings.TrimSpace(doc.Service.Title),
		Abstract: strings.TrimSpace(doc.Service.Abstract),
		Keywords: cleanKeywords(doc.Service.Keywords),
	}

	for _, l := range doc.Layers {
		name := strings.TrimSpace(l.Identifier)
		if name == "" {
			continue
		}

		var crs []string
		for _, set := range l.MatrixSets {
			if c, ok := matrixCRS[strings.TrimSpace(set)]; ok {
				crs = append(crs, c)
			}
		}

		layer := Layer{
			Name:     name,
			Title:    strings.TrimSpace(l.Title),
			Abstract: strings.TrimSpace(l.Abstract),
			Keywords: cleanKeywords(l.Keywords),
			CRS:      mergeCRS(nil, crs),
		}
		if l.WGS84 != nil {
			lower, upper := strings.Fields(l.WGS84.Lower), strings.Fields(l.WGS84.Upper)
			if len(lower) == 2 && len(upper) == 2 {
				layer.BBox = parseBox([]string{lower[0], lower[1], upper[0], upper[1]})
			}
		}
		for _, r := range l.Resources {
			if r.ResourceType == "tile" {
				layer.URL = r.Template
				break
			}
		}
		caps.Layers = append(caps.Layers, layer)
	}

	if len(caps.Layers) == 0 {
		return caps, ErrNoLayers
	}
	return caps, nil
}

// ParseCSW reads the service identification of a CSW capabilities document.
// CSW endpoints carry no layers.
func ParseCSW(data []byte) (*Capabilities, error) {
	var doc struct {
		Version string            `xml:"version,attr"`
		Service owsIdentification `xml:"ServiceIdentification"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse csw capabilities: %w", err)
	}
	return &Capabilities{
		Version:  doc.Version,
		Title:    strings.TrimSpace(doc.Service.Title),
		Abstract: strings.TrimSpace(doc.Service.Abstract),
		Keywords: cleanKeywords(doc.Service.Keywords),
	}, nil
}
