package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store persists the catalog in Redis.
// Records are stored as JSON strings; uniqueness of (catalog, url) and
// (service, layer name) is enforced with SETNX/HSETNX.
type Store struct {
	client *redis.Client
}

var _ domain.Repository = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Ping reports whether Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveCatalog stores a catalog in Redis
func (s *Store) SaveCatalog(ctx context.Context, c *domain.Catalog) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, CatalogKey(c.Slug), data, 0)
	pipe.SAdd(ctx, keyAllCatalogs, c.Slug)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

// GetCatalog retrieves a catalog by slug
func (s *Store) GetCatalog(ctx context.Context, slug string) (*domain.Catalog, error) {
	var c domain.Catalog
	if err := s.getJSON(ctx, CatalogKey(slug), &c); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", slug, err)
	}
	return &c, nil
}

// ListCatalogs retrieves all catalogs sorted by slug
func (s *Store) ListCatalogs(ctx context.Context) ([]*domain.Catalog, error) {
	slugs, err := s.client.SMembers(ctx, keyAllCatalogs).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog slugs: %w", err)
	}
	sort.Strings(slugs)

	out := make([]*domain.Catalog, 0, len(slugs))
	for _, slug := range slugs {
		c, err := s.GetCatalog(ctx, slug)
		if err != nil {
			// Skip catalogs that couldn't be retrieved
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetOrCreateSRS registers a CRS code
func (s *Store) GetOrCreateSRS(ctx context.Context, code string) (domain.SpatialReferenceSystem, error) {
	if err := s.client.SAdd(ctx, keySRS, code).Err(); err != nil {
		return domain.SpatialReferenceSystem{}, fmt.Errorf("failed to add srs: %w", err)
	}
	return domain.SpatialReferenceSystem{Code: code}, nil
}

// ListSRS returns every known CRS code sorted
func (s *Store) ListSRS(ctx context.Context) ([]domain.SpatialReferenceSystem, error) {
	codes, err := s.client.SMembers(ctx, keySRS).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list srs: %w", err)
	}
	sort.Strings(codes)
	out := make([]domain.SpatialReferenceSystem, len(codes))
	for i, c := range codes {
		out[i] = domain.SpatialReferenceSystem{Code: c}
	}
	return out, nil
}

// AppendCheck appends to the check history of a resource
func (s *Store) AppendCheck(ctx context.Context, c domain.Check) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal check: %w", err)
	}
	if err := s.client.RPush(ctx, ChecksKey(c.Resource), data).Err(); err != nil {
		return fmt.Errorf("failed to append check: %w", err)
	}
	return nil
}

// ListChecks returns the check history of a resource in insertion order
func (s *Store) ListChecks(ctx context.Context, key domain.ResourceKey) ([]domain.Check, error) {
	raw, err := s.client.LRange(ctx, ChecksKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	out := make([]domain.Check, 0, len(raw))
	for _, item := range raw {
		var c domain.Check
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal check: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// sortedIDs parses set members into ascending IDs, skipping garbage.
func sortedIDs(members []string) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
