// Package policy implements the move-selection policies compared by the
// simulator. Statistics-backed policies read from a repository.StatsStore
// (normally the dataset arbiter); the search policy delegates to a UCI engine.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/internal/search"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// Registry names, also accepted on the command line.
const (
	NameFrequency      = "avg_player"
	NameMostCommon     = "avg_player_deterministic"
	NameBestWinRate    = "avg_best"
	NameRecursiveBest  = "recursive_best"
	NameRecursiveWorst = "recursive_worst"
	NameSearch         = "sf"
)

var (
	// ErrNoMove means the policy could not produce a move.
	ErrNoMove = errors.New("no move")
	// ErrUnknownPolicy is returned by New for unregistered names.
	ErrUnknownPolicy = errors.New("unknown policy")
)

// Request is everything a policy may look at when choosing a move. Policies
// must not mutate Board.
type Request struct {
	Board *chessrules.Board
	Level int
	Color chessrules.Color
}

// Policy selects a move in the requested position. The returned string is
// either UCI or SAN notation. A failure wraps ErrNoMove.
type Policy interface {
	Name() string
	SelectMove(ctx context.Context, req Request) (string, error)
}

// Deps are the collaborators policies may need.
type Deps struct {
	Stats  repository.StatsStore
	Engine *search.Engine
}

// New returns the policy registered under name.
func New(name string, deps Deps) (Policy, error) {
	switch name {
	case NameFrequency, NameMostCommon, NameBestWinRate, NameRecursiveBest, NameRecursiveWorst:
		if deps.Stats == nil {
			return nil, fmt.Errorf("policy %q needs a statistics store", name)
		}
	case NameSearch:
		if deps.Engine == nil {
			return nil, fmt.Errorf("policy %q needs a search engine", name)
		}
	}

	switch name {
	case NameFrequency:
		return &FrequencyWeighted{stats: deps.Stats}, nil
	case NameMostCommon:
		return &MostCommon{stats: deps.Stats}, nil
	case NameBestWinRate:
		return &BestWinRate{stats: deps.Stats}, nil
	case NameRecursiveBest:
		return &Recursive{stats: deps.Stats}, nil
	case NameRecursiveWorst:
		return &Recursive{stats: deps.Stats, worst: true}, nil
	case NameSearch:
		return &Search{engine: deps.Engine}, nil
	default:
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownPolicy, name, Names())
	}
}

// Names lists the registered policy names in sorted order.
func Names() []string {
	names := []string{NameFrequency, NameMostCommon, NameBestWinRate, NameRecursiveBest, NameRecursiveWorst, NameSearch}
	sort.Strings(names)
	return names
}

// candidates fetches the successor aggregates for the requested position.
func candidates(ctx context.Context, stats repository.StatsStore, req Request) ([]model.MoveAggregate, error) {
	if req.Board == nil {
		return nil, fmt.Errorf("%w: nil board", ErrNoMove)
	}
	moves, err := stats.Moves(ctx, model.ByFEN(req.Board.FEN(), req.Level))
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", ErrNoMove, err)
	}
	if len(moves) == 0 {
		return nil, fmt.Errorf("%w: no candidates at level %d", ErrNoMove, req.Level)
	}
	return moves, nil
}

// argmax returns the index of the first maximal score among eligible
// candidates, or -1 when none are eligible.
func argmax(moves []model.MoveAggregate, score func(m model.MoveAggregate) (float64, bool)) int {
	best := -1
	var bestScore float64
	for i, m := range moves {
		s, ok := score(m)
		if !ok {
			continue
		}
		if best == -1 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
