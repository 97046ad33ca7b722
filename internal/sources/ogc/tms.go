package ogc

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

// TileMapRef is one entry of a TileMapService document.
type TileMapRef struct {
	Title string `xml:"title,attr"`
	SRS   string `xml:"srs,attr"`
	Href  string `xml:"href,attr"`
}

// Name derives the layer name from the last path segment of Href.
func (r TileMapRef) Name() string {
	return path.Base(strings.TrimRight(r.Href, "/"))
}

// TileMapService is the root TMS document.
type TileMapService struct {
	Version  string       `xml:"version,attr"`
	Title    string       `xml:"Title"`
	Abstract string       `xml:"Abstract"`
	TileMaps []TileMapRef `xml:"TileMaps>TileMap"`
}

type tileMapDoc struct {
	Title    string `xml:"Title"`
	Abstract string `xml:"Abstract"`
	SRS      string `xml:"SRS"`
	BBox     *struct {
		MinX string `xml:"minx,attr"`
		MinY string `xml:"miny,attr"`
		MaxX string `xml:"maxx,attr"`
		MaxY string `xml:"maxy,attr"`
	} `xml:"BoundingBox"`
}

// ParseTileMapService decodes the root TMS document.
func ParseTileMapService(data []byte) (*TileMapService, error) {
	var doc TileMapService
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tms capabilities: %w", err)
	}
	return &doc, nil
}

// ParseTileMap decodes a TMS TileMap resource into a Layer named name.
// Its bounding box stays in the native SRS units.
func ParseTileMap(name string, data []byte) (Layer, error) {
	var doc tileMapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Layer{}, fmt.Errorf("parse tile map %s: %w", name, err)
	}

	l := Layer{
		Name:     name,
		Title:    strings.TrimSpace(doc.Title),
		Abstract: strings.TrimSpace(doc.Abstract),
		CRS:      mergeCRS(nil, []string{doc.SRS}),
		Native:   true,
	}
	if doc.BBox != nil {
		l.BBox = parseBox([]string{doc.BBox.MinX, doc.BBox.MinY, doc.BBox.MaxX, doc.BBox.MaxY})
	}
	return l, nil
}
