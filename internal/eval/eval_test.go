package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/notnil/chess/uci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/search"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

type fakeStats struct {
	pos   *model.PositionAggregate
	moves []model.MoveAggregate
	err   error
}

func (f *fakeStats) Position(context.Context, model.Query) (*model.PositionAggregate, error) {
	return f.pos, f.err
}

func (f *fakeStats) Moves(context.Context, model.Query) ([]model.MoveAggregate, error) {
	return f.moves, f.err
}

func startBoard(t *testing.T) *chessrules.Board {
	t.Helper()
	b, err := chessrules.NewBoard("")
	require.NoError(t, err)
	return b
}

func TestAggregateScore(t *testing.T) {
	tests := []struct {
		name  string
		stats *fakeStats
		want  float64
		ok    bool
	}{
		{"white favoured", &fakeStats{pos: &model.PositionAggregate{TimesPlayed: 200, WhiteWins: 120}}, 0.1, true},
		{"even", &fakeStats{pos: &model.PositionAggregate{TimesPlayed: 10, WhiteWins: 5}}, 0, true},
		{"never played", &fakeStats{pos: &model.PositionAggregate{TimesPlayed: 0}}, 0, false},
		{"no data", &fakeStats{}, 0, false},
		{"store error", &fakeStats{err: errors.New("down")}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(NameAggregate, tt.stats, nil)
			require.NoError(t, err)
			got, ok := e.Evaluate(context.Background(), startBoard(t), 2)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

type fakeSession struct {
	info   uci.Info
	err    error
	closed int
}

func (f *fakeSession) Run(...uci.Cmd) error             { return f.err }
func (f *fakeSession) SearchResults() uci.SearchResults { return uci.SearchResults{Info: f.info} }
func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

func TestSearchScore(t *testing.T) {
	s := &fakeSession{info: uci.Info{Depth: 1, Score: uci.Score{CP: -42}}}
	engine := search.New("stockfish", search.WithLauncher(func(string) (search.Session, error) { return s, nil }))
	e, err := New(NameSearch, nil, engine)
	require.NoError(t, err)

	got, ok := e.Evaluate(context.Background(), startBoard(t), 0)
	assert.True(t, ok)
	assert.Equal(t, -42.0, got)
	assert.Equal(t, 1, s.closed)

	s.err = errors.New("engine crashed")
	_, ok = e.Evaluate(context.Background(), startBoard(t), 0)
	assert.False(t, ok)
	assert.Equal(t, 2, s.closed)
}

func TestNewErrors(t *testing.T) {
	_, err := New("material", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownEvaluator)
	_, err = New(NameSearch, nil, nil)
	assert.Error(t, err)
	_, err = New(NameAggregate, nil, nil)
	assert.Error(t, err)
}

func TestFrequency(t *testing.T) {
	moves := []model.MoveAggregate{
		{Notation: "e4", MoveTimesPlayed: 30},
		{Notation: "d4", MoveTimesPlayed: 50},
		{Notation: "c4", MoveTimesPlayed: 20},
	}

	got, ok := Frequency(moves, "e4", 120)
	require.True(t, ok)
	assert.InDelta(t, 0.25, got, 1e-9)

	got, ok = Frequency(moves, "e4", 0)
	require.True(t, ok)
	assert.InDelta(t, 0.3, got, 1e-9)

	_, ok = Frequency(moves, "Nf3", 120)
	assert.False(t, ok)

	_, ok = Frequency([]model.MoveAggregate{{Notation: "e4"}}, "e4", 0)
	assert.False(t, ok)
}

func TestMeasureMatchesBySAN(t *testing.T) {
	b := startBoard(t)
	m, err := b.ParseUCI("g1f3")
	require.NoError(t, err)

	stats := &fakeStats{
		pos:   &model.PositionAggregate{TimesPlayed: 120},
		moves: []model.MoveAggregate{{Notation: "e4", MoveTimesPlayed: 90}, {Notation: "Nf3", MoveTimesPlayed: 30}},
	}
	got, ok := NewMoveFrequency(stats).Measure(context.Background(), b, 2, m)
	require.True(t, ok)
	assert.InDelta(t, 0.25, got, 1e-9)

	stats.pos = nil
	got, ok = NewMoveFrequency(stats).Measure(context.Background(), b, 2, m)
	require.True(t, ok)
	assert.InDelta(t, 0.25, got, 1e-9)

	stats.moves = nil
	_, ok = NewMoveFrequency(stats).Measure(context.Background(), b, 2, m)
	assert.False(t, ok)
}
