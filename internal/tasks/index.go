package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search/document"
)

// Index results reported to metrics.
const (
	indexOK      = "ok"
	indexInvalid = "invalid"
	indexError   = "error"
)

// IndexLayer writes one layer to the default engine. It returns false and
// the reason when the layer was not written; a layer whose bbox cannot be
// indexed is marked invalid and never sent to the engine.
func (r *Runner) IndexLayer(ctx context.Context, id int64) (bool, string) {
	l, err := r.repo.GetLayer(ctx, id)
	if err != nil {
		return false, err.Error()
	}
	if !l.Active {
		return false, "layer is inactive"
	}
	svc, err := r.repo.GetService(ctx, l.ServiceID)
	if err != nil {
		return false, err.Error()
	}

	engine := r.engines.Default()
	p, err := r.prepare(ctx, l, svc)
	if err != nil {
		r.metrics.ObserveIndex(engine.Name(), indexInvalid, 1)
		r.markIndexed(ctx, l, false)
		r.log.Warn("layer not indexed", logger.Int64("layer_id", id), logger.Error(err))
		return false, err.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.IndexTimeout)
	defer cancel()
	if err := engine.EnsureCatalog(ctx, svc.Catalog); err != nil {
		r.metrics.ObserveIndex(engine.Name(), indexError, 1)
		return false, err.Error()
	}
	if err := engine.IndexLayer(ctx, p); err != nil {
		r.metrics.ObserveIndex(engine.Name(), indexError, 1)
		r.log.Error("index layer failed", logger.Int64("layer_id", id), logger.String("engine", engine.Name()), logger.Error(err))
		return false, err.Error()
	}
	r.metrics.ObserveIndex(engine.Name(), indexOK, 1)
	r.markIndexed(ctx, l, true)
	return true, ""
}

// IndexCatalog writes every active layer of catalog in bulk. Layers that
// cannot be indexed are reported as skipped; a service whose layers cannot
// be listed and the layers the engine rejects are reported as failed while
// the rest of the catalog is still written. The error is non-nil only when
// the catalog could not be prepared or the whole bulk write failed.
func (r *Runner) IndexCatalog(ctx context.Context, catalog string) (*Report, error) {
	if catalog == "" {
		catalog = domain.DefaultCatalogSlug
	}
	engine := r.engines.Default()
	rep := &Report{Operation: "index " + catalog, Started: r.now()}

	svcs, err := r.services(ctx, catalog)
	if err != nil {
		return nil, err
	}
	if err := engine.EnsureCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("prepare %s index %s: %w", engine.Name(), catalog, err)
	}

	var (
		batch  []*document.Prepared
		layers []*domain.Layer
		slots  []int
	)
	for _, svc := range svcs {
		ls, err := r.repo.ListLayers(ctx, svc.ID)
		if err != nil {
			r.log.Error("list layers failed",
				logger.Int64("service_id", svc.ID),
				logger.String("catalog", catalog),
				logger.Error(err))
			rep.Outcomes = append(rep.Outcomes, Outcome{
				Resource: svc.ResourceKey(),
				Message:  fmt.Sprintf("list layers: %v", err),
			})
			continue
		}
		for _, l := range ls {
			if !l.Active {
				continue
			}
			key := l.ResourceKey()
			p, err := r.prepare(ctx, l, svc)
			if err != nil {
				rep.Outcomes = append(rep.Outcomes, Outcome{Resource: key, Skipped: true, Message: err.Error()})
				r.markIndexed(ctx, l, false)
				continue
			}
			slots = append(slots, len(rep.Outcomes))
			rep.Outcomes = append(rep.Outcomes, Outcome{Resource: key})
			batch = append(batch, p)
			layers = append(layers, l)
		}
	}

	start := time.Now()
	err = engine.IndexLayers(ctx, batch)
	partial, isPartial := document.AsPartial(err)
	for i, slot := range slots {
		o := &rep.Outcomes[slot]
		o.Elapsed = time.Since(start)
		switch {
		case err == nil:
		case isPartial:
			if lerr, rejected := partial.Failed[layers[i].ID]; rejected {
				o.Message = lerr.Error()
				continue
			}
		default:
			o.Message = err.Error()
			continue
		}
		o.OK = true
		r.markIndexed(ctx, layers[i], true)
	}

	ok, skipped, failed := rep.Counts()
	r.metrics.ObserveIndex(engine.Name(), indexOK, ok)
	r.metrics.ObserveIndex(engine.Name(), indexInvalid, skipped)
	r.metrics.ObserveIndex(engine.Name(), indexError, failed)
	rep.Elapsed = r.now().Sub(rep.Started)
	rep.log(r.log)
	if err != nil && !isPartial {
		return rep, fmt.Errorf("bulk index %s: %w", catalog, err)
	}
	return rep, nil
}

// IndexAll indexes every catalog that has services. A failing catalog
// does not stop the others.
func (r *Runner) IndexAll(ctx context.Context) ([]*Report, error) {
	svcs, err := r.services(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var catalogs []string
	for _, s := range svcs {
		if !seen[s.Catalog] {
			seen[s.Catalog] = true
			catalogs = append(catalogs, s.Catalog)
		}
	}
	sort.Strings(catalogs)

	var (
		reports []*Report
		errs    []error
	)
	for _, c := range catalogs {
		rep, err := r.IndexCatalog(ctx, c)
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			r.log.Error("index catalog failed", logger.String("catalog", c), logger.Error(err))
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// ClearIndex removes the documents of catalog from the default engine.
func (r *Runner) ClearIndex(ctx context.Context, catalog string) error {
	engine := r.engines.Default()
	if err := engine.Clear(ctx, catalog); err != nil {
		return fmt.Errorf("clear %s index %q: %w", engine.Name(), catalog, err)
	}
	r.log.Info("index cleared", logger.String("engine", engine.Name()), logger.String("catalog", catalog))
	return nil
}

func (r *Runner) prepare(ctx context.Context, l *domain.Layer, svc *domain.Service) (*document.Prepared, error) {
	checks, err := r.repo.ListChecks(ctx, l.ResourceKey())
	if err != nil {
		return nil, fmt.Errorf("checks of layer %d: %w", l.ID, err)
	}
	return document.Prepare(
		document.Source{Layer: l, Service: svc, Checks: checks},
		document.Options{LocalOrganization: r.opts.LocalOrganization},
	)
}

// markIndexed records the indexing attempt on the layer.
func (r *Runner) markIndexed(ctx context.Context, l *domain.Layer, ok bool) {
	l.Valid = ok
	if ok {
		l.LastIndexed = r.now()
	}
	if err := r.repo.SaveLayer(ctx, l); err != nil {
		r.log.Warn("save layer index state failed", logger.Int64("layer_id", l.ID), logger.Error(err))
	}
}
