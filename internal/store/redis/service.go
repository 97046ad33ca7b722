package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CreateService stores a new service and assigns its ID
func (s *Store) CreateService(ctx context.Context, service *domain.Service) error {
	id, err := s.client.Incr(ctx, keyServiceSeq).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate service id: %w", err)
	}

	ok, err := s.client.SetNX(ctx, ServiceURLKey(service.Catalog, service.URL), id, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve service url: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s in %s: %w", service.URL, service.Catalog, domain.ErrDuplicateService)
	}

	service.ID = id
	if err := s.writeService(ctx, service); err != nil {
		_ = s.client.Del(ctx, ServiceURLKey(service.Catalog, service.URL)).Err()
		return err
	}
	return nil
}

// SaveService updates an existing service
func (s *Store) SaveService(ctx context.Context, service *domain.Service) error {
	old, err := s.GetService(ctx, service.ID)
	if err != nil {
		return err
	}

	oldKey, newKey := ServiceURLKey(old.Catalog, old.URL), ServiceURLKey(service.Catalog, service.URL)
	if oldKey != newKey {
		ok, err := s.client.SetNX(ctx, newKey, service.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve service url: %w", err)
		}
		if !ok {
			return fmt.Errorf("%s in %s: %w", service.URL, service.Catalog, domain.ErrDuplicateService)
		}
		if err := s.client.Del(ctx, oldKey).Err(); err != nil {
			return fmt.Errorf("failed to release old service url: %w", err)
		}
	}

	return s.writeService(ctx, service)
}

func (s *Store) writeService(ctx context.Context, service *domain.Service) error {
	data, err := json.Marshal(service)
	if err != nil {
		return fmt.Errorf("failed to marshal service: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, ServiceKey(service.ID), data, 0)
	pipe.SAdd(ctx, keyAllServices, service.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

// GetService retrieves a service from Redis by ID
func (s *Store) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	var service domain.Service
	if err := s.getJSON(ctx, ServiceKey(id), &service); err != nil {
		return nil, fmt.Errorf("service %d: %w", id, err)
	}
	return &service, nil
}

// FindService retrieves a service by its (catalog, url) pair
func (s *Store) FindService(ctx context.Context, catalog, url string) (*domain.Service, error) {
	id, err := s.client.Get(ctx, ServiceURLKey(catalog, url)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("service %s in %s: %w", url, catalog, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up service url: %w", err)
	}
	return s.GetService(ctx, id)
}

// ListServices retrieves all services ordered by ID
func (s *Store) ListServices(ctx context.Context) ([]*domain.Service, error) {
	members, err := s.client.SMembers(ctx, keyAllServices).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get service IDs: %w", err)
	}

	ids := sortedIDs(members)
	services := make([]*domain.Service, 0, len(ids))
	for _, id := range ids {
		service, err := s.GetService(ctx, id)
		if err != nil {
			// Skip services that couldn't be retrieved
			continue
		}
		services = append(services, service)
	}
	return services, nil
}
