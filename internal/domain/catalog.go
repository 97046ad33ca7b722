package domain

// DefaultCatalogSlug is used when a service is registered without a catalog.
const DefaultCatalogSlug = "hypermap"

// Catalog groups services. Each catalog is published to its own search index.
type Catalog struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// SpatialReferenceSystem is a bare CRS code shared across services.
type SpatialReferenceSystem struct {
	Code string `json:"code"`
}
