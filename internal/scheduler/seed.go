package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/sources/seed"
)

// Registrar creates catalogs and services. It is implemented by tasks.Runner.
type Registrar interface {
	EnsureCatalog(ctx context.Context, slug, name string) (*domain.Catalog, error)
	RegisterService(ctx context.Context, url string, typ domain.ServiceType, catalog string) (*domain.Service, bool, error)
}

// SeedResult counts what a sync did.
type SeedResult struct {
	Catalogs int
	Created  int
	Existing int
	Failed   int
}

// SeedSyncer registers the catalogs and services declared in the seed file.
type SeedSyncer struct {
	loader    *seed.Loader
	mapper    *seed.Mapper
	registrar Registrar
	logger    logger.Logger
}

// NewSeedSyncer creates a syncer for seedFile.
func NewSeedSyncer(seedFile, defaultCatalog string, r Registrar, log logger.Logger) *SeedSyncer {
	return &SeedSyncer{
		loader:    seed.NewLoader(seedFile),
		mapper:    seed.NewMapper(defaultCatalog),
		registrar: r,
		logger:    log,
	}
}

// Sync registers everything the seed file declares. Services already in the
// catalog are left alone. Only an unreadable seed file fails the sync.
func (ss *SeedSyncer) Sync(ctx context.Context) (SeedResult, error) {
	var res SeedResult

	f, err := ss.loader.Load()
	if err != nil {
		return res, fmt.Errorf("failed to load seed file: %w", err)
	}

	for _, c := range ss.mapper.MapCatalogs(f) {
		if _, err := ss.registrar.EnsureCatalog(ctx, c.Slug, c.Name); err != nil {
			ss.logger.Error("failed to create catalog",
				logger.String("catalog", c.Slug),
				logger.Error(err))
			continue
		}
		res.Catalogs++
	}

	regs, err := ss.mapper.MapServices(f)
	if err != nil {
		ss.logger.Warn("invalid seed entries skipped", logger.Error(err))
	}

	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, created, err := ss.registrar.RegisterService(ctx, reg.URL, reg.Type, reg.Catalog)
		switch {
		case err != nil:
			res.Failed++
			ss.logger.Warn("failed to register seed service",
				logger.String("url", reg.URL),
				logger.String("catalog", reg.Catalog),
				logger.Error(err))
		case created:
			res.Created++
		default:
			res.Existing++
		}
	}

	ss.logger.Info("seed file synced",
		logger.String("file", ss.loader.Path()),
		logger.Int("catalogs", res.Catalogs),
		logger.Int("created", res.Created),
		logger.Int("existing", res.Existing),
		logger.Int("failed", res.Failed))
	return res, nil
}
