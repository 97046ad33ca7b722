package domain

import (
	"errors"
	"testing"
)

func TestParseServiceType(t *testing.T) {
	tests := []struct {
		in      string
		want    ServiceType
		wantErr bool
	}{
		{in: "OGC:WMS", want: ServiceWMS},
		{in: "ogc:wmts", want: ServiceWMTS},
		{in: " ESRI:ArcGIS:MapServer ", want: ServiceArcGISMapServer},
		{in: "imageserver", want: ServiceArcGISImageServer},
		{in: "Hypermap:WorldMap", want: ServiceWorldMap},
		{in: "warper", want: ServiceWarper},
		{in: "OGC:CSW", want: ServiceCSW},
		{in: "OGC:WFS", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseServiceType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownServiceType) {
					t.Fatalf("ParseServiceType(%q) error = %v, want ErrUnknownServiceType", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseServiceType(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseServiceType(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("%q should be valid", got)
			}
		})
	}
}

func TestServiceAddSRS(t *testing.T) {
	s := NewService(" http://example.com/wms ", ServiceWMS, "", fixedNow)

	if s.URL != "http://example.com/wms" {
		t.Errorf("URL = %q, want trimmed", s.URL)
	}
	if s.Catalog != DefaultCatalogSlug {
		t.Errorf("Catalog = %q, want %q", s.Catalog, DefaultCatalogSlug)
	}
	if !s.AddSRS("EPSG:4326") {
		t.Error("first AddSRS should report an insert")
	}
	if s.AddSRS("EPSG:4326") {
		t.Error("duplicate AddSRS should be ignored")
	}
	s.AddSRS("EPSG:3857")
	if len(s.SRS) != 2 {
		t.Errorf("SRS = %v, want 2 entries", s.SRS)
	}
}
