package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/positionid"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type countingStore struct {
	pos      *model.PositionAggregate
	moves    []model.MoveAggregate
	err      error
	posCalls int
	mvCalls  int
}

func (s *countingStore) Position(context.Context, model.Query) (*model.PositionAggregate, error) {
	s.posCalls++
	return s.pos, s.err
}

func (s *countingStore) Moves(context.Context, model.Query) ([]model.MoveAggregate, error) {
	s.mvCalls++
	return s.moves, s.err
}

type memCache struct {
	pos     map[string]*model.PositionAggregate
	moves   map[string][]model.MoveAggregate
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{pos: map[string]*model.PositionAggregate{}, moves: map[string][]model.MoveAggregate{}}
}

func (m *memCache) GetPosition(_ context.Context, dataset, id string) (*model.PositionAggregate, bool, error) {
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	p, ok := m.pos[dataset+"/"+id]
	return p, ok, nil
}

func (m *memCache) SetPosition(_ context.Context, dataset, id string, p *model.PositionAggregate) error {
	m.pos[dataset+"/"+id] = p
	return nil
}

func (m *memCache) GetMoves(_ context.Context, dataset, id string) ([]model.MoveAggregate, bool, error) {
	if m.failGet {
		return nil, false, errors.New("cache down")
	}
	mv, ok := m.moves[dataset+"/"+id]
	return mv, ok, nil
}

func (m *memCache) SetMoves(_ context.Context, dataset, id string, moves []model.MoveAggregate) error {
	m.moves[dataset+"/"+id] = moves
	return nil
}

func TestCachedStoreServesRepeatsFromCache(t *testing.T) {
	store := &countingStore{pos: &model.PositionAggregate{TimesPlayed: 10}}
	cache := newMemCache()
	cs := NewCachedStore("primary", store, cache)
	ctx := context.Background()

	for range 3 {
		p, err := cs.Position(ctx, model.ByFEN(startFEN, 1))
		require.NoError(t, err)
		assert.Equal(t, int64(10), p.TimesPlayed)
	}
	assert.Equal(t, 1, store.posCalls)

	// The identifier form of the same position hits the same entry.
	id, err := positionid.String(startFEN, 1)
	require.NoError(t, err)
	_, err = cs.Position(ctx, model.ByID(id))
	require.NoError(t, err)
	assert.Equal(t, 1, store.posCalls)
}

func TestCachedStoreCachesAbsence(t *testing.T) {
	store := &countingStore{}
	cs := NewCachedStore("secondary", store, newMemCache())
	ctx := context.Background()

	for range 2 {
		moves, err := cs.Moves(ctx, model.ByFEN(startFEN, 0))
		require.NoError(t, err)
		assert.Nil(t, moves)
	}
	assert.Equal(t, 1, store.mvCalls)
}

func TestCachedStoreDoesNotCacheErrors(t *testing.T) {
	store := &countingStore{err: errors.New("db down")}
	cache := newMemCache()
	cs := NewCachedStore("primary", store, cache)

	_, err := cs.Position(context.Background(), model.ByFEN(startFEN, 0))
	assert.Error(t, err)
	assert.Empty(t, cache.pos)
}

func TestCachedStoreFallsThroughOnCacheFailure(t *testing.T) {
	store := &countingStore{pos: &model.PositionAggregate{TimesPlayed: 4}}
	cache := newMemCache()
	cache.failGet = true
	cs := NewCachedStore("primary", store, cache)

	for range 2 {
		p, err := cs.Position(context.Background(), model.ByFEN(startFEN, 0))
		require.NoError(t, err)
		assert.Equal(t, int64(4), p.TimesPlayed)
	}
	assert.Equal(t, 2, store.posCalls)
}

func TestCachedStoreBypassesUnkeyableQueries(t *testing.T) {
	store := &countingStore{}
	cache := newMemCache()
	cs := NewCachedStore("primary", store, cache)

	_, err := cs.Position(context.Background(), model.ByID("garbage"))
	require.NoError(t, err)
	assert.Empty(t, cache.pos)
	assert.Equal(t, 1, store.posCalls)
}
