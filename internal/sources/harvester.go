// Package sources harvests remote map services into the catalog.
//
// Every service type has an Adapter. Adapters read the remote description
// and hand each discovered layer to the Harvester, which applies the steps
// shared by all types and upserts the layer by (service, name).
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/dates"
	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/geo"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/sources/epsg"
	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
	"github.com/MrSnakeDoc/georegistry/internal/sources/ogc"
)

// ErrUnknownServiceType is returned by the registry for an unsupported type.
var ErrUnknownServiceType = domain.ErrUnknownServiceType

// Adapter harvests one service type.
type Adapter interface {
	Type() domain.ServiceType
	UpdateLayers(ctx context.Context, svc *domain.Service) (Result, error)
}

// Result summarizes one adapter run.
type Result struct {
	Layers   int      `json:"layers"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"` // inactive layers left untouched
	Failed   int      `json:"failed"`
	Warnings []string `json:"warnings,omitempty"`

	// Spawned lists services registered as a side effect (an ArcGIS
	// MapServer exposing WMS).
	Spawned []*domain.Service `json:"spawned,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// RemoteLayer is a layer as described by the remote service, before it is
// merged into the catalog.
type RemoteLayer struct {
	Name     string
	Title    string
	Abstract string
	URL      string
	PageURL  string

	// BBox is stored as given. Adapters apply their own default.
	BBox *geo.BBox

	SRS           []string
	Keywords      []string
	MetadataDates []string
	Public        *bool
	WorldMap      *domain.WorldMapAttrs
}

// Harvester holds what adapters share: the repository, the outbound client,
// the capabilities reader and the EPSG resolver.
type Harvester struct {
	repo   domain.Repository
	client *fetch.Client
	reader ogc.Reader
	epsg   *epsg.Resolver
	log    logger.Logger
	now    func() time.Time

	detectTimeout time.Duration
}

// NewHarvester creates a Harvester.
func NewHarvester(repo domain.Repository, client *fetch.Client, reader ogc.Reader, resolver *epsg.Resolver, log logger.Logger) *Harvester {
	return &Harvester{
		repo:   repo,
		client: client,
		reader: reader,
		epsg:   resolver,
		log:    log,
		now:    time.Now,

		detectTimeout: DefaultDetectTimeout,
	}
}

// SetDetectTimeout changes the bound of the Detect request. Non-positive
// values keep the current one.
func (h *Harvester) SetDetectTimeout(d time.Duration) {
	if d > 0 {
		h.detectTimeout = d
	}
}

// Upsert merges rl into the layer keyed by (svc.ID, rl.Name) and registers
// its SRS codes on svc. An inactive layer is returned untouched with
// skipped=true.
func (h *Harvester) Upsert(ctx context.Context, svc *domain.Service, rl RemoteLayer) (l *domain.Layer, created, skipped bool, err error) {
	if rl.Name == "" {
		return nil, false, false, errors.New("remote layer without name")
	}

	l, created, err = h.repo.GetOrCreateLayer(ctx, svc.ID, rl.Name)
	if err != nil {
		return nil, false, false, fmt.Errorf("layer %q: %w", rl.Name, err)
	}
	if !l.Active {
		return l, created, true, nil
	}

	l.Title = rl.Title
	l.Abstract = rl.Abstract
	l.URL = rl.URL
	l.PageURL = rl.PageURL
	l.SetBBox(rl.BBox)

	for _, code := range rl.SRS {
		if _, err := h.repo.GetOrCreateSRS(ctx, code); err != nil {
			return nil, created, false, fmt.Errorf("srs %s: %w", code, err)
		}
		svc.AddSRS(code)
	}
	for _, k := range rl.Keywords {
		l.AddKeyword(k)
	}
	for _, d := range dates.MineLayer(rl.Title, rl.Abstract) {
		l.AddDate(d, domain.DateDetected)
	}
	for _, d := range rl.MetadataDates {
		l.AddDate(d, domain.DateFromMetadata)
	}
	if rl.Public != nil {
		l.IsPublic = *rl.Public
	}
	if rl.WorldMap != nil {
		l.WorldMap = rl.WorldMap
	}

	l.Touch(h.now())
	if err := h.repo.SaveLayer(ctx, l); err != nil {
		return nil, created, false, fmt.Errorf("save layer %q: %w", rl.Name, err)
	}
	return l, created, false, nil
}

// apply runs Upsert for every remote layer, recording failures without
// stopping.
func (h *Harvester) apply(ctx context.Context, svc *domain.Service, layers []RemoteLayer, res *Result) {
	for _, rl := range layers {
		if ctx.Err() != nil {
			res.warn("harvest interrupted: %v", ctx.Err())
			return
		}
		_, created, skipped, err := h.Upsert(ctx, svc, rl)
		switch {
		case err != nil:
			res.Failed++
			res.warn("layer %q: %v", rl.Name, err)
			h.log.Warn("layer upsert failed",
				logger.Int64("service_id", svc.ID),
				logger.String("layer", rl.Name),
				logger.Error(err))
		case skipped:
			res.Skipped++
			res.Layers++
		default:
			res.Layers++
			if created {
				res.Created++
			}
		}
	}
}

// spawn registers a derived service in the catalog of parent unless it
// exists already.
func (h *Harvester) spawn(ctx context.Context, parent *domain.Service, url string, typ domain.ServiceType) (*domain.Service, error) {
	existing, err := h.repo.FindService(ctx, parent.Catalog, url)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	s := domain.NewService(url, typ, parent.Catalog, h.now())
	s.SpawnedFrom = parent.ID
	if err := h.repo.CreateService(ctx, s); err != nil {
		if errors.Is(err, domain.ErrDuplicateService) {
			return h.repo.FindService(ctx, parent.Catalog, url)
		}
		return nil, err
	}
	return s, nil
}

func orDefault(b *geo.BBox) *geo.BBox {
	if b != nil {
		return b
	}
	d := geo.HarvestDefault
	return &d
}

func boolPtr(b bool) *bool { return &b }
