package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/sources"
)

// EnsureCatalog creates the catalog slug when it is missing.
func (r *Runner) EnsureCatalog(ctx context.Context, slug, name string) (*domain.Catalog, error) {
	if slug == "" {
		slug = domain.DefaultCatalogSlug
	}
	c, err := r.repo.GetCatalog(ctx, slug)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if name == "" {
		name = slug
	}
	c = &domain.Catalog{Slug: slug, Name: name}
	if err := r.repo.SaveCatalog(ctx, c); err != nil {
		return nil, fmt.Errorf("save catalog %s: %w", slug, err)
	}
	return c, nil
}

// RegisterService returns the service at (url, catalog), creating it when
// absent. An empty typ is detected from the endpoint.
func (r *Runner) RegisterService(ctx context.Context, url string, typ domain.ServiceType, catalog string) (svc *domain.Service, created bool, err error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false, errors.New("service url is required")
	}
	cat, err := r.EnsureCatalog(ctx, catalog, "")
	if err != nil {
		return nil, false, err
	}

	if existing, err := r.repo.FindService(ctx, cat.Slug, url); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	if typ == "" {
		if typ, err = r.harvester.Detect(ctx, url); err != nil {
			return nil, false, err
		}
	} else if !typ.Valid() {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrUnknownServiceType, typ)
	}

	svc = domain.NewService(url, typ, cat.Slug, r.now())
	if err := r.repo.CreateService(ctx, svc); err != nil {
		if errors.Is(err, domain.ErrDuplicateService) {
			existing, ferr := r.repo.FindService(ctx, cat.Slug, url)
			return existing, false, ferr
		}
		return nil, false, err
	}
	r.log.Info("service registered",
		logger.Int64("service_id", svc.ID),
		logger.String("type", string(svc.Type)),
		logger.String("catalog", svc.Catalog),
		logger.String("url", svc.URL))
	return svc, true, nil
}

// HarvestService runs the adapter of one service. Services spawned by the
// run (ArcGIS WMS interfaces) are harvested right after.
func (r *Runner) HarvestService(ctx context.Context, id int64) (sources.Result, error) {
	return r.harvestService(ctx, id, nil)
}

// harvestedSet records the services harvested by one batch run so a spawned
// service listed on its own is not harvested twice.
type harvestedSet struct {
	mu   sync.Mutex
	done map[int64]bool
}

func newHarvestedSet() *harvestedSet { return &harvestedSet{done: map[int64]bool{}} }

// claim reports whether id was not harvested yet and marks it. A nil set
// claims everything.
func (s *harvestedSet) claim(id int64) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[id] {
		return false
	}
	s.done[id] = true
	return true
}

func (r *Runner) harvestService(ctx context.Context, id int64, seen *harvestedSet) (sources.Result, error) {
	svc, err := r.repo.GetService(ctx, id)
	if err != nil {
		return sources.Result{}, fmt.Errorf("service %d: %w", id, err)
	}
	res, err := r.harvest(ctx, svc)
	if err != nil {
		return res, err
	}
	for _, spawned := range res.Spawned {
		if !seen.claim(spawned.ID) {
			continue
		}
		if _, err := r.harvest(ctx, spawned); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("spawned service %d: %v", spawned.ID, err))
		}
	}
	return res, nil
}

func (r *Runner) harvest(ctx context.Context, svc *domain.Service) (sources.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.HarvestTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.registry.Harvest(ctx, svc)
	r.metrics.ObserveHarvest(string(svc.Type), err == nil, time.Since(start))
	return res, err
}

// HarvestAll harvests every active service. A spawned service is harvested
// once per run, whether its parent or its own entry gets to it first.
func (r *Runner) HarvestAll(ctx context.Context) (*Report, error) {
	keys, err := r.serviceKeys(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := newHarvestedSet()
	return r.each(ctx, "harvest", keys, func(ctx context.Context, key domain.ResourceKey) Outcome {
		if !seen.claim(key.ID) {
			return Outcome{Resource: key, Skipped: true, Message: "already harvested as a spawned service"}
		}
		start := time.Now()
		res, err := r.harvestService(ctx, key.ID, seen)
		if err != nil {
			r.log.Warn("harvest failed", logger.Int64("service_id", key.ID), logger.Error(err))
			return failure(key, start, err)
		}
		return Outcome{
			Resource: key,
			OK:       true,
			Message:  fmt.Sprintf("%d layers, %d created, %d failed", res.Layers, res.Created, res.Failed),
			Elapsed:  time.Since(start),
		}
	}), nil
}

// CheckService harvests the service and records the attempt as a check.
// Inactive services are skipped without a check.
func (r *Runner) CheckService(ctx context.Context, id int64) Outcome {
	key := domain.ResourceKey{Kind: domain.KindService, ID: id}
	start := time.Now()

	svc, err := r.repo.GetService(ctx, id)
	if err != nil {
		return failure(key, start, err)
	}
	if !svc.Active {
		return Outcome{Resource: key, Skipped: true, Message: "inactive"}
	}

	res, herr := r.harvest(ctx, svc)
	elapsed := time.Since(start)
	msg := ""
	if herr != nil {
		msg = herr.Error()
	} else if len(res.Warnings) > 0 {
		msg = strings.Join(res.Warnings, "; ")
	}

	out := Outcome{Resource: key, OK: herr == nil, Message: msg, Elapsed: elapsed}
	if err := r.repo.AppendCheck(ctx, domain.NewCheck(key, herr == nil, elapsed, msg, r.now())); err != nil {
		r.log.Error("record check failed", logger.String("resource", key.String()), logger.Error(err))
		out.OK, out.Message = false, err.Error()
	}
	r.metrics.ObserveCheck(domain.KindService, out.OK, elapsed)
	return out
}

// CheckAll checks every service and, when layers is set, every active
// layer afterwards.
func (r *Runner) CheckAll(ctx context.Context, layers bool) ([]*Report, error) {
	keys, err := r.serviceKeys(ctx, "")
	if err != nil {
		return nil, err
	}
	reports := []*Report{r.each(ctx, "check services", keys, func(ctx context.Context, key domain.ResourceKey) Outcome {
		return r.CheckService(ctx, key.ID)
	})}
	if !layers {
		return reports, nil
	}

	lkeys, err := r.layerKeys(ctx, "")
	if err != nil {
		return reports, err
	}
	reports = append(reports, r.each(ctx, "check layers", lkeys, func(ctx context.Context, key domain.ResourceKey) Outcome {
		return r.CheckLayer(ctx, key.ID)
	}))
	return reports, nil
}

// serviceKeys lists the active services of catalog, or of every catalog
// when it is empty.
func (r *Runner) serviceKeys(ctx context.Context, catalog string) ([]domain.ResourceKey, error) {
	svcs, err := r.services(ctx, catalog)
	if err != nil {
		return nil, err
	}
	keys := make([]domain.ResourceKey, 0, len(svcs))
	for _, s := range svcs {
		keys = append(keys, s.ResourceKey())
	}
	return keys, nil
}

func (r *Runner) services(ctx context.Context, catalog string) ([]*domain.Service, error) {
	all, err := r.repo.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	var out []*domain.Service
	for _, s := range all {
		if s.Active && (catalog == "" || s.Catalog == catalog) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Runner) layerKeys(ctx context.Context, catalog string) ([]domain.ResourceKey, error) {
	svcs, err := r.services(ctx, catalog)
	if err != nil {
		return nil, err
	}
	var keys []domain.ResourceKey
	for _, s := range svcs {
		layers, err := r.repo.ListLayers(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("list layers of service %d: %w", s.ID, err)
		}
		for _, l := range layers {
			if l.Active {
				keys = append(keys, l.ResourceKey())
			}
		}
	}
	return keys, nil
}
