package repository

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/positionid"
)

// CachedStore serves a StatsStore through a StatsCache. Cache failures are
// logged and fall through to the store; store errors are never cached.
type CachedStore struct {
	dataset string
	store   StatsStore
	cache   StatsCache
}

// NewCachedStore wraps store, keying cache entries under dataset.
func NewCachedStore(dataset string, store StatsStore, cache StatsCache) *CachedStore {
	return &CachedStore{dataset: dataset, store: store, cache: cache}
}

func (c *CachedStore) Position(ctx context.Context, q model.Query) (*model.PositionAggregate, error) {
	id, ok := ResolveID(q)
	if !ok {
		return c.store.Position(ctx, q)
	}
	if p, found, err := c.cache.GetPosition(ctx, c.dataset, id); err != nil {
		log.Warn().Err(err).Str("dataset", c.dataset).Str("query", q.String()).Msg("Stats cache read failed")
	} else if found {
		return p, nil
	}

	p, err := c.store.Position(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetPosition(ctx, c.dataset, id, p); err != nil {
		log.Warn().Err(err).Str("dataset", c.dataset).Msg("Stats cache write failed")
	}
	return p, nil
}

func (c *CachedStore) Moves(ctx context.Context, q model.Query) ([]model.MoveAggregate, error) {
	id, ok := ResolveID(q)
	if !ok {
		return c.store.Moves(ctx, q)
	}
	if moves, found, err := c.cache.GetMoves(ctx, c.dataset, id); err != nil {
		log.Warn().Err(err).Str("dataset", c.dataset).Str("query", q.String()).Msg("Stats cache read failed")
	} else if found {
		return moves, nil
	}

	moves, err := c.store.Moves(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetMoves(ctx, c.dataset, id, moves); err != nil {
		log.Warn().Err(err).Str("dataset", c.dataset).Msg("Stats cache write failed")
	}
	return moves, nil
}

// ResolveID returns the canonical identifier a query refers to, so FEN and
// identifier queries for the same position key alike. ok is false when the
// query cannot name any position.
func ResolveID(q model.Query) (string, bool) {
	if q.PositionID != "" {
		id, err := positionid.Parse(q.PositionID)
		if err != nil {
			return "", false
		}
		return id.String(), true
	}
	id, err := positionid.String(q.FEN, q.Level)
	if err != nil {
		return "", false
	}
	return id, true
}
