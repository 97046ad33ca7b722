package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/redis/go-redis/v9"
)

// GetOrCreateLayer returns the layer keyed by (serviceID, name).
// A new layer is written before its name is claimed so a concurrent reader
// never resolves a name to a missing record; the loser of a race deletes
// its orphan.
func (s *Store) GetOrCreateLayer(ctx context.Context, serviceID int64, name string) (*domain.Layer, bool, error) {
	exists, err := s.client.Exists(ctx, ServiceKey(serviceID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check service: %w", err)
	}
	if exists == 0 {
		return nil, false, fmt.Errorf("service %d: %w", serviceID, domain.ErrNotFound)
	}

	if l, err := s.layerByName(ctx, serviceID, name); err == nil {
		return l, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	id, err := s.client.Incr(ctx, keyLayerSeq).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to allocate layer id: %w", err)
	}
	l := domain.NewLayer(serviceID, name, time.Now())
	l.ID = id
	if err := s.writeLayer(ctx, l); err != nil {
		return nil, false, err
	}

	claimed, err := s.client.HSetNX(ctx, ServiceLayersKey(serviceID), name, id).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim layer name: %w", err)
	}
	if !claimed {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, LayerKey(id))
		pipe.SRem(ctx, keyAllLayers, id)
		_, _ = pipe.Exec(ctx)

		existing, err := s.layerByName(ctx, serviceID, name)
		return existing, false, err
	}
	return l, true, nil
}

func (s *Store) layerByName(ctx context.Context, serviceID int64, name string) (*domain.Layer, error) {
	id, err := s.client.HGet(ctx, ServiceLayersKey(serviceID), name).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up layer name: %w", err)
	}
	return s.GetLayer(ctx, id)
}

// SaveLayer updates an existing layer
func (s *Store) SaveLayer(ctx context.Context, l *domain.Layer) error {
	exists, err := s.client.Exists(ctx, LayerKey(l.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check layer: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("layer %d: %w", l.ID, domain.ErrNotFound)
	}
	return s.writeLayer(ctx, l)
}

func (s *Store) writeLayer(ctx context.Context, l *domain.Layer) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal layer: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, LayerKey(l.ID), data, 0)
	pipe.SAdd(ctx, keyAllLayers, l.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save layer: %w", err)
	}
	return nil
}

// GetLayer retrieves a layer by ID
func (s *Store) GetLayer(ctx context.Context, id int64) (*domain.Layer, error) {
	var l domain.Layer
	if err := s.getJSON(ctx, LayerKey(id), &l); err != nil {
		return nil, fmt.Errorf("layer %d: %w", id, err)
	}
	return &l, nil
}

// ListLayers returns the layers of a service ordered by ID.
// A zero serviceID lists every layer.
func (s *Store) ListLayers(ctx context.Context, serviceID int64) ([]*domain.Layer, error) {
	var (
		members []string
		err     error
	)
	if serviceID == 0 {
		members, err = s.client.SMembers(ctx, keyAllLayers).Result()
	} else {
		members, err = s.client.HVals(ctx, ServiceLayersKey(serviceID)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get layer IDs: %w", err)
	}

	ids := sortedIDs(members)
	layers := make([]*domain.Layer, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetLayer(ctx, id)
		if err != nil {
			// Skip layers that couldn't be retrieved
			continue
		}
		layers = append(layers, l)
	}
	return layers, nil
}
