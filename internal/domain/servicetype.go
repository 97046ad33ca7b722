package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownServiceType is returned for a tag outside the supported set.
var ErrUnknownServiceType = errors.New("unknown service type")

// ServiceType tags the protocol a remote endpoint speaks.
type ServiceType string

const (
	ServiceCSW               ServiceType = "OGC:CSW"
	ServiceWMS               ServiceType = "OGC:WMS"
	ServiceWMTS              ServiceType = "OGC:WMTS"
	ServiceTMS               ServiceType = "OSGeo:TMS"
	ServiceArcGISMapServer   ServiceType = "ESRI:ArcGIS:MapServer"
	ServiceArcGISImageServer ServiceType = "ESRI:ArcGIS:ImageServer"
	ServiceWorldMap          ServiceType = "Hypermap:WorldMap"
	ServiceWarper            ServiceType = "Hypermap:WARPER"
)

// ServiceTypes is the closed set of supported types.
var ServiceTypes = []ServiceType{
	ServiceCSW,
	ServiceWMS,
	ServiceWMTS,
	ServiceTMS,
	ServiceArcGISMapServer,
	ServiceArcGISImageServer,
	ServiceWorldMap,
	ServiceWarper,
}

var serviceTypeAliases = map[string]ServiceType{
	"csw":         ServiceCSW,
	"wms":         ServiceWMS,
	"wmts":        ServiceWMTS,
	"tms":         ServiceTMS,
	"mapserver":   ServiceArcGISMapServer,
	"imageserver": ServiceArcGISImageServer,
	"worldmap":    ServiceWorldMap,
	"warper":      ServiceWarper,
	"mapwarper":   ServiceWarper,
}

// ParseServiceType accepts a canonical tag (case-insensitive) or a short alias.
func ParseServiceType(s string) (ServiceType, error) {
	s = strings.TrimSpace(s)
	for _, t := range ServiceTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	if t, ok := serviceTypeAliases[strings.ToLower(s)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownServiceType, s)
}

// Valid reports whether t belongs to ServiceTypes.
func (t ServiceType) Valid() bool {
	for _, known := range ServiceTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t ServiceType) String() string { return string(t) }
