package geo

import (
	"math"
	"strings"
)

// MercatorHalfExtent is the spherical Mercator half world width in metres.
const MercatorHalfExtent = 20037508.34

// mercatorCodes lists the spatial reference codes that are Web Mercator
// under one name or another.
var mercatorCodes = map[string]struct{}{
	"102113": {},
	"102100": {},
	"3857":   {},
	"900913": {},
}

// InverseMercator converts a spherical Mercator point to WGS84 lon/lat.
func InverseMercator(x, y float64) (lon, lat float64) {
	lon = x / MercatorHalfExtent * 180
	lat = y / MercatorHalfExtent * 180
	lat = 180 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180)) - math.Pi/2)
	return lon, lat
}

// ForwardMercator converts a WGS84 lon/lat point to spherical Mercator.
// It is undefined at the poles.
func ForwardMercator(lon, lat float64) (x, y float64) {
	x = lon * MercatorHalfExtent / 180
	y = math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * MercatorHalfExtent / 180
	return x, y
}

// MercatorToLLBBox reprojects the two corners of a Mercator box.
func MercatorToLLBBox(b BBox) BBox {
	minLon, minLat := InverseMercator(b.MinX, b.MinY)
	maxLon, maxLat := InverseMercator(b.MaxX, b.MaxY)
	return BBox{MinX: minLon, MinY: minLat, MaxX: maxLon, MaxY: maxLat}
}

// IsMercator reports whether code names Web Mercator. Codes may carry an
// authority prefix ("EPSG:3857").
func IsMercator(code string) bool {
	code = strings.TrimSpace(code)
	if i := strings.LastIndexByte(code, ':'); i >= 0 {
		code = code[i+1:]
	}
	_, ok := mercatorCodes[code]
	return ok
}

// AnyMercator reports whether any of codes is Web Mercator.
func AnyMercator(codes []string) bool {
	for _, c := range codes {
		if IsMercator(c) {
			return true
		}
	}
	return false
}
