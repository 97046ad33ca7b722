package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
)

// Registry maps each service type to its Adapter.
type Registry struct {
	harvester *Harvester
	adapters  map[domain.ServiceType]Adapter
}

// NewRegistry registers the adapters of every supported service type.
func NewRegistry(h *Harvester) *Registry {
	r := &Registry{harvester: h, adapters: make(map[domain.ServiceType]Adapter)}
	for _, a := range []Adapter{
		&WMSAdapter{h: h},
		&WMTSAdapter{h: h},
		&TMSAdapter{h: h},
		&MapServerAdapter{h: h},
		&ImageServerAdapter{h: h},
		&WorldMapAdapter{h: h},
		&WarperAdapter{h: h},
		&CSWAdapter{h: h},
	} {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter of a.Type().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Type()] = a
}

// Adapter returns the adapter for t.
func (r *Registry) Adapter(t domain.ServiceType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServiceType, t)
	}
	return a, nil
}

// Harvest runs the adapter of svc and saves the service. An inactive
// service is left untouched.
func (r *Registry) Harvest(ctx context.Context, svc *domain.Service) (Result, error) {
	if !svc.Active {
		return Result{}, nil
	}
	a, err := r.Adapter(svc.Type)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := a.UpdateLayers(ctx, svc)
	if err != nil {
		return res, fmt.Errorf("harvest %s %s: %w", svc.Type, svc.URL, err)
	}

	now := r.harvester.now()
	svc.LastHarvested = now
	svc.Touch(now)
	if err := r.harvester.repo.SaveService(ctx, svc); err != nil {
		return res, fmt.Errorf("save service %d: %w", svc.ID, err)
	}

	r.harvester.log.Info("service harvested",
		logger.Int64("service_id", svc.ID),
		logger.String("type", string(svc.Type)),
		logger.Int("layers", res.Layers),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed),
		logger.Duration("elapsed", time.Since(start)))
	for _, w := range res.Warnings {
		r.harvester.log.Debug("harvest warning", logger.Int64("service_id", svc.ID), logger.String("warning", w))
	}
	return res, nil
}
