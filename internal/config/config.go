package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/utils"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per HTTP request handled by the API

	LogLevel      string // "debug" | "info" | "warn" | "error"
	PrettyLog     bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile       string // optional rotating JSON log file
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Catalog
	SeedFile          string        // services.yaml / services.toml registered at startup (optional)
	DefaultCatalog    string        // slug used when a service names no catalog
	HarvestInterval   time.Duration // interval between scheduled harvest runs (0 = manual only)
	HarvestOnStart    bool          // run a harvest right after startup
	CheckLayers       bool          // check every layer during scheduled runs
	Concurrency       int           // resources processed at once by batch runs
	LocalOrganization string        // originator used for services on localhost

	// Outbound HTTP
	DetectTimeout  time.Duration // capabilities request when detecting a service type
	HarvestTimeout time.Duration // one harvest of one service
	CheckTimeout   time.Duration // one layer check request
	FetchRate      float64       // requests per second to remote services (0 = unlimited)
	FetchBurst     int
	UserAgent      string
	EPSGLookupURL  string // prj2epsg-compatible search endpoint (empty = disabled)

	// Search
	SearchEngine     string        // "solr" | "elasticsearch"
	SolrURL          string        // ex: http://localhost:8983/solr
	SolrCore         string        // shared core for every catalog
	ElasticURL       string        // ex: http://localhost:9200
	ElasticPrecision string        // geo_shape precision, ex: 500m
	ElasticBulkSize  int           // documents per _bulk request
	QueryTimeout     time.Duration // one search request
	IndexTimeout     time.Duration // one index write

	// Redis (empty address => in-memory catalog)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
	EPSGCacheTTL          time.Duration // lifetime of cached WKT lookups in Redis

	// Access restrictions
	AllowedCIDRS     []string // optional, restrict admin endpoints to specific IPs/CIDRs
	TrustProxy       bool     // true => trust X-Forwarded-For headers
	CORSOrigins      []string // allowed origins for the search API ("*" when empty)
	SearchRatePerMin int      // search requests refilled per client IP and minute
	SearchRateBurst  int      // search burst per client IP
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("GEOREG_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("GEOREG_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("GEOREG_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:      getenv("GEOREG_LOG_LEVEL", "info"),
		PrettyLog:     mustBool("GEOREG_PRETTY_LOG", true),
		LogFile:       getenv("GEOREG_LOG_FILE", ""),
		LogMaxSizeMB:  getenvInt("GEOREG_LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getenvInt("GEOREG_LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getenvInt("GEOREG_LOG_MAX_AGE_DAYS", 30),

		// Catalog
		SeedFile:          getenv("GEOREG_SEED_FILE", ""),
		DefaultCatalog:    getenv("GEOREG_DEFAULT_CATALOG", "hypermap"),
		HarvestInterval:   mustDuration("GEOREG_HARVEST_INTERVAL", 24*time.Hour),
		HarvestOnStart:    mustBool("GEOREG_HARVEST_ON_START", false),
		CheckLayers:       mustBool("GEOREG_CHECK_LAYERS", true),
		Concurrency:       getenvInt("GEOREG_CONCURRENCY", 4),
		LocalOrganization: getenv("GEOREG_LOCAL_ORGANIZATION", "Harvard"),

		// Outbound HTTP
		DetectTimeout:  mustDuration("GEOREG_DETECT_TIMEOUT", 10*time.Second),
		HarvestTimeout: mustDuration("GEOREG_HARVEST_TIMEOUT", 60*time.Second),
		CheckTimeout:   mustDuration("GEOREG_CHECK_TIMEOUT", 30*time.Second),
		FetchRate:      getenvFloat("GEOREG_FETCH_RATE", 10),
		FetchBurst:     getenvInt("GEOREG_FETCH_BURST", 5),
		UserAgent:      getenv("GEOREG_USER_AGENT", "georegistry"),
		EPSGLookupURL:  getenv("GEOREG_EPSG_LOOKUP_URL", "http://prj2epsg.org/search.json"),

		// Search
		SearchEngine:     strings.ToLower(getenv("GEOREG_SEARCH_ENGINE", "solr")),
		SolrURL:          getenv("GEOREG_SOLR_URL", "http://localhost:8983/solr"),
		SolrCore:         getenv("GEOREG_SOLR_CORE", "hypermap"),
		ElasticURL:       getenv("GEOREG_ES_URL", ""),
		ElasticPrecision: getenv("GEOREG_ES_PRECISION", "500m"),
		ElasticBulkSize:  getenvInt("GEOREG_ES_BULK_SIZE", 500),
		QueryTimeout:     mustDuration("GEOREG_QUERY_TIMEOUT", 20*time.Second),
		IndexTimeout:     mustDuration("GEOREG_INDEX_TIMEOUT", 30*time.Second),

		// Redis settings
		RedisAddr:             getenv("GEOREG_REDIS_ADDR", ""),
		RedisUser:             getenv("GEOREG_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("GEOREG_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("GEOREG_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("GEOREG_REDIS_DB", 0),
		RedisDT:               mustDuration("GEOREG_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("GEOREG_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("GEOREG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("GEOREG_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("GEOREG_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("GEOREG_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("GEOREG_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("GEOREG_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("GEOREG_REDIS_WARN_THRESHOLD", 3),
		EPSGCacheTTL:          mustDuration("GEOREG_EPSG_CACHE_TTL", 30*24*time.Hour),

		// Access restrictions
		AllowedCIDRS:     parseAllowedIPs(getenv("GEOREG_ALLOWED_CIDRS", "")),
		TrustProxy:       mustBool("GEOREG_TRUST_PROXY", false),
		CORSOrigins:      splitAndTrim(getenv("GEOREG_CORS_ORIGINS", "")),
		SearchRatePerMin: getenvInt("GEOREG_SEARCH_RATE_PER_MIN", 120),
		SearchRateBurst:  getenvInt("GEOREG_SEARCH_RATE_BURST", 30),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.SearchEngine {
	case "solr":
		if c.SolrURL == "" {
			return fmt.Errorf("GEOREG_SOLR_URL is required when GEOREG_SEARCH_ENGINE=solr")
		}
	case "elasticsearch", "elastic", "es":
		c.SearchEngine = "elasticsearch"
		if c.ElasticURL == "" {
			return fmt.Errorf("GEOREG_ES_URL is required when GEOREG_SEARCH_ENGINE=elasticsearch")
		}
	default:
		return fmt.Errorf("invalid GEOREG_SEARCH_ENGINE %q (want solr or elasticsearch)", c.SearchEngine)
	}
	if c.RedisAddr != "" && c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("GEOREG_REDIS_PASSWORD is required when GEOREG_REDIS_PASSWORD_REQUIRED=true")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("GEOREG_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if strings.TrimSpace(c.DefaultCatalog) == "" {
		return fmt.Errorf("GEOREG_DEFAULT_CATALOG must not be empty")
	}
	for _, entry := range c.AllowedCIDRS {
		if _, ok := utils.ParsePrefix(entry); !ok {
			return fmt.Errorf("GEOREG_ALLOWED_CIDRS: %q is neither an IP nor a CIDR", entry)
		}
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
