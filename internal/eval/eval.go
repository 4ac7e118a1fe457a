// Package eval scores positions during simulation. Scores are from White's
// perspective; a false ok means "no value" and nothing is recorded.
package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/internal/search"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// Registry names.
const (
	NameSearch    = "sf"
	NameAggregate = "avg"
)

// ErrUnknownEvaluator is returned by New for unregistered names.
var ErrUnknownEvaluator = errors.New("unknown evaluator")

// Evaluator scores a position. Level is ignored by evaluators that do not
// use statistics.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, b *chessrules.Board, level int) (float64, bool)
}

// New returns the evaluator registered under name.
func New(name string, stats repository.StatsStore, engine *search.Engine) (Evaluator, error) {
	switch name {
	case NameSearch:
		if engine == nil {
			return nil, fmt.Errorf("evaluator %q needs a search engine", name)
		}
		return &SearchScore{engine: engine}, nil
	case NameAggregate:
		if stats == nil {
			return nil, fmt.Errorf("evaluator %q needs a statistics store", name)
		}
		return &AggregateScore{stats: stats}, nil
	default:
		return nil, fmt.Errorf("%w %q (known: [%s %s])", ErrUnknownEvaluator, name, NameAggregate, NameSearch)
	}
}

// SearchScore is the engine's centipawn score at a fixed shallow depth.
type SearchScore struct {
	engine *search.Engine
}

func (e *SearchScore) Name() string { return NameSearch }

func (e *SearchScore) Evaluate(ctx context.Context, b *chessrules.Board, _ int) (float64, bool) {
	score, ok, err := e.engine.Score(ctx, b)
	if err != nil {
		log.Warn().Err(err).Str("fen", b.FEN()).Msg("Engine evaluation failed")
		return 0, false
	}
	return float64(score), ok
}

// AggregateScore is whiteWins/timesPlayed - 0.5 at the given level.
type AggregateScore struct {
	stats repository.StatsStore
}

func (e *AggregateScore) Name() string { return NameAggregate }

func (e *AggregateScore) Evaluate(ctx context.Context, b *chessrules.Board, level int) (float64, bool) {
	p, err := e.stats.Position(ctx, model.ByFEN(b.FEN(), level))
	if err != nil || p == nil {
		return 0, false
	}
	rate, ok := p.WhiteWinRate()
	if !ok {
		return 0, false
	}
	return rate - 0.5, true
}
