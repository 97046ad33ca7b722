package domain

import (
	"strings"
	"time"
)

// Service is a harvested remote endpoint.
//
// A Service is uniquely identified by its (URL, Catalog) pair.
type Service struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	Resource

	// Type selects the adapter used to harvest the endpoint.
	Type ServiceType `json:"type"`

	// Catalog is the slug of the owning catalog.
	Catalog string `json:"catalog"`

	// ─────────────────────────────
	// Harvested description
	// ─────────────────────────────

	// SRS holds the CRS codes offered by any layer of the service.
	SRS []string `json:"srs"`

	// SpawnedFrom is set when the service was discovered through another
	// one (an ArcGIS MapServer exposing a WMS interface).
	SpawnedFrom int64 `json:"spawned_from,omitempty"`

	// LastHarvested is the end of the latest successful harvest.
	LastHarvested time.Time `json:"last_harvested,omitempty"`
}

// NewService returns an active, public service ready to be created.
func NewService(url string, typ ServiceType, catalog string, now time.Time) *Service {
	if catalog == "" {
		catalog = DefaultCatalogSlug
	}
	s := &Service{
		Resource: Resource{
			URL:      strings.TrimSpace(url),
			Active:   true,
			IsPublic: true,
		},
		Type:    typ,
		Catalog: catalog,
	}
	s.Touch(now)
	return s
}

func (s *Service) ResourceKey() ResourceKey { return ResourceKey{Kind: KindService, ID: s.ID} }
func (s *Service) IsActive() bool           { return s.Active }

// AddSRS records code on the service. Duplicates are ignored.
func (s *Service) AddSRS(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, c := range s.SRS {
		if c == code {
			return false
		}
	}
	s.SRS = append(s.SRS, code)
	return true
}

// Clone returns a deep copy.
func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	c := *s
	c.SRS = append([]string(nil), s.SRS...)
	return &c
}
