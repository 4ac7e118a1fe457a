package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freeeve/policy-arena/internal/model"
)

// DefaultTTL bounds how long a cached lookup is served.
const DefaultTTL = 10 * time.Minute

// StatsCache stores position and move lookups as JSON. A cached "null"
// records that the dataset had no data.
type StatsCache struct {
	c   *Client
	ttl time.Duration
}

// NewStatsCache creates a cache on c. A non-positive ttl uses DefaultTTL.
func NewStatsCache(c *Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatsCache{c: c, ttl: ttl}
}

// GetPosition returns the cached aggregate and whether the key was present.
func (s *StatsCache) GetPosition(ctx context.Context, dataset, id string) (*model.PositionAggregate, bool, error) {
	var p *model.PositionAggregate
	found, err := s.get(ctx, s.c.key(dataset, "pos", id), &p)
	if err != nil {
		return nil, false, fmt.Errorf("get cached position: %w", err)
	}
	return p, found, nil
}

// SetPosition caches an aggregate; nil caches the absence of data.
func (s *StatsCache) SetPosition(ctx context.Context, dataset, id string, p *model.PositionAggregate) error {
	if err := s.set(ctx, s.c.key(dataset, "pos", id), p); err != nil {
		return fmt.Errorf("set cached position: %w", err)
	}
	return nil
}

// GetMoves returns the cached successor list and whether the key was present.
func (s *StatsCache) GetMoves(ctx context.Context, dataset, id string) ([]model.MoveAggregate, bool, error) {
	var moves []model.MoveAggregate
	found, err := s.get(ctx, s.c.key(dataset, "moves", id), &moves)
	if err != nil {
		return nil, false, fmt.Errorf("get cached moves: %w", err)
	}
	return moves, found, nil
}

// SetMoves caches a successor list; nil caches the absence of data.
func (s *StatsCache) SetMoves(ctx context.Context, dataset, id string, moves []model.MoveAggregate) error {
	if err := s.set(ctx, s.c.key(dataset, "moves", id), moves); err != nil {
		return fmt.Errorf("set cached moves: %w", err)
	}
	return nil
}

// Invalidate drops every cached entry for a dataset.
func (s *StatsCache) Invalidate(ctx context.Context, dataset string) error {
	iter := s.c.rdb.Scan(ctx, 0, s.c.key(dataset, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("invalidate %s: %w", dataset, err)
		}
	}
	return iter.Err()
}

func (s *StatsCache) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StatsCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.c.rdb.Set(ctx, key, data, s.ttl).Err()
}
