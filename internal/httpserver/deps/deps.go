package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/metrics"
	"github.com/MrSnakeDoc/georegistry/internal/scheduler"
	"github.com/MrSnakeDoc/georegistry/internal/search"
)

type Deps struct {
	Logger           logger.Logger
	StartTime        time.Time
	Version          string
	Commit           string
	BuildDate        string
	GoVersion        string
	TimeNow          func() time.Time            // for testing, defaults to time.Now
	AllowedCIDRS     []string                    // IPs allowed to reach admin endpoints (harvest, infra, readyz)
	TrustProxy       bool                        // true if running behind a trusted reverse proxy
	CORSOrigins      []string                    // origins allowed to call the search API, any when empty
	SearchRatePerMin int                         // per-IP refill of the search rate limiter
	SearchRateBurst  int                         // per-IP burst of the search rate limiter
	RequestTimeout   time.Duration               // per-request timeout
	Repo             domain.Repository           // catalog of services and layers
	DefaultCatalog   string                      // catalog searched by /api/search
	Backend          string                      // "redis" or "memory"
	RedisClient      *redis.Client               // nil when the catalog lives in memory
	Engines          *search.Set                 // configured search engines
	Metrics          *metrics.Metrics            // prometheus collectors
	Scheduler        *scheduler.HarvestScheduler // nil when no scheduler runs
	HarvestTrigger   chan struct{}               // Channel to trigger a manual harvest run
}
