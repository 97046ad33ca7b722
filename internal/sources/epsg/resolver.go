// Package epsg resolves WKT spatial reference definitions to EPSG codes
// through a prj2epsg-compatible lookup service.
package epsg

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
)

// ErrNoMatch is returned when the lookup service knows no code for the WKT.
var ErrNoMatch = errors.New("no epsg code matches wkt")

// Cache stores resolved codes keyed by WKT.
type Cache interface {
	Get(ctx context.Context, wkt string) (code string, ok bool, err error)
	Put(ctx context.Context, wkt, code string) error
}

// Resolver turns WKT into an EPSG code.
type Resolver struct {
	client   *fetch.Client
	endpoint string
	cache    Cache
}

// NewResolver creates a Resolver. A nil cache keeps results in memory.
func NewResolver(client *fetch.Client, endpoint string, cache Cache) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{client: client, endpoint: endpoint, cache: cache}
}

type searchResponse struct {
	Exact bool `json:"exact"`
	Codes []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"codes"`
}

// Resolve returns the bare numeric code ("3857") for wkt.
func (r *Resolver) Resolve(ctx context.Context, wkt string) (string, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return "", ErrNoMatch
	}
	if code, ok, err := r.cache.Get(ctx, wkt); err == nil && ok {
		return code, nil
	}
	if r.endpoint == "" {
		return "", fmt.Errorf("epsg lookup disabled: %w", ErrNoMatch)
	}

	q := url.Values{}
	q.Set("mode", "wkt")
	q.Set("terms", wkt)
	sep := "?"
	if strings.Contains(r.endpoint, "?") {
		sep = "&"
	}

	var resp searchResponse
	if err := r.client.GetJSON(ctx, r.endpoint+sep+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("epsg lookup: %w", err)
	}
	if len(resp.Codes) == 0 || resp.Codes[0].Code == "" {
		return "", ErrNoMatch
	}

	code := resp.Codes[0].Code
	_ = r.cache.Put(ctx, wkt, code)
	return code, nil
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	codes map[string]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{codes: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, wkt string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	code, ok := c.codes[wkt]
	return code, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, wkt, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[wkt] = code
	return nil
}
