package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateService = errors.New("service already registered in catalog")
)

// Repository persists the catalog: catalogs, services, layers, SRS codes and
// check history. Implementations must be safe for concurrent use.
type Repository interface {
	SaveCatalog(ctx context.Context, c *Catalog) error
	GetCatalog(ctx context.Context, slug string) (*Catalog, error)
	ListCatalogs(ctx context.Context) ([]*Catalog, error)

	// CreateService assigns an id. ErrDuplicateService is returned when the
	// (URL, Catalog) pair is taken.
	CreateService(ctx context.Context, s *Service) error
	SaveService(ctx context.Context, s *Service) error
	GetService(ctx context.Context, id int64) (*Service, error)
	FindService(ctx context.Context, catalog, url string) (*Service, error)
	ListServices(ctx context.Context) ([]*Service, error)

	// GetOrCreateLayer returns the layer keyed by (serviceID, name), creating
	// and persisting it first when absent.
	GetOrCreateLayer(ctx context.Context, serviceID int64, name string) (l *Layer, created bool, err error)
	SaveLayer(ctx context.Context, l *Layer) error
	GetLayer(ctx context.Context, id int64) (*Layer, error)
	ListLayers(ctx context.Context, serviceID int64) ([]*Layer, error)

	GetOrCreateSRS(ctx context.Context, code string) (SpatialReferenceSystem, error)
	ListSRS(ctx context.Context) ([]SpatialReferenceSystem, error)

	AppendCheck(ctx context.Context, c Check) error
	ListChecks(ctx context.Context, key ResourceKey) ([]Check, error)
}
