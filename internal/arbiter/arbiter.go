// Package arbiter picks, per query, which of two statistics datasets should
// answer it. The primary dataset is preferred unless its data for the
// position is missing or its successor counts look incomplete.
package arbiter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
)

// Choice names the selected dataset.
type Choice int

const (
	Primary Choice = iota
	Secondary
)

func (c Choice) String() string {
	if c == Secondary {
		return "secondary"
	}
	return "primary"
}

// FailurePolicy decides which dataset answers when the primary lookup itself
// fails (a store error or a panic), as opposed to returning no data.
type FailurePolicy int

const (
	// FailoverPrimary keeps the primary dataset on failure.
	FailoverPrimary FailurePolicy = iota
	// FailoverSecondary switches to the secondary dataset on failure,
	// the same as the no-data case.
	FailoverSecondary
)

func (p FailurePolicy) String() string {
	if p == FailoverSecondary {
		return "secondary"
	}
	return "primary"
}

// ParseFailurePolicy accepts "primary" or "secondary".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary":
		return FailoverPrimary, nil
	case "secondary":
		return FailoverSecondary, nil
	}
	return FailoverPrimary, fmt.Errorf("unknown arbiter failure policy %q", s)
}

// Arbiter selects between a primary and a secondary StatsStore. It keeps no
// state between calls and is safe for concurrent use if the stores are.
type Arbiter struct {
	primary   repository.StatsStore
	secondary repository.StatsStore
	onFailure FailurePolicy
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithFailurePolicy sets the dataset used when the primary lookup fails.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(a *Arbiter) { a.onFailure = p }
}

// New creates an Arbiter over two stores.
func New(primary, secondary repository.StatsStore, opts ...Option) *Arbiter {
	a := &Arbiter{primary: primary, secondary: secondary, onFailure: FailoverPrimary}
	for _, o := range opts {
		o(a)
	}
	return a
}

// FailurePolicy returns the configured failure policy.
func (a *Arbiter) FailurePolicy() FailurePolicy { return a.onFailure }

// Select runs the completeness heuristic against the primary dataset.
func (a *Arbiter) Select(ctx context.Context, q model.Query) (choice Choice) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("query", q.String()).Str("fallback", a.onFailure.String()).Msg("Arbiter lookup panicked")
			choice = a.failover()
		}
	}()

	pos, err := a.primary.Position(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("query", q.String()).Str("fallback", a.onFailure.String()).Msg("Arbiter position lookup failed")
		return a.failover()
	}
	moves, err := a.primary.Moves(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("query", q.String()).Str("fallback", a.onFailure.String()).Msg("Arbiter moves lookup failed")
		return a.failover()
	}
	return Decide(pos, moves)
}

// Decide applies the heuristic to primary data already fetched:
//   - no position or no moves: secondary
//   - timesPlayed == 0: secondary
//   - timesPlayed > 2 * sum(moveTimesPlayed): secondary
//   - otherwise primary
func Decide(pos *model.PositionAggregate, moves []model.MoveAggregate) Choice {
	if pos == nil || len(moves) == 0 {
		return Secondary
	}
	if pos.TimesPlayed == 0 {
		return Secondary
	}
	var childSum int64
	for _, m := range moves {
		childSum += m.MoveTimesPlayed
	}
	if pos.TimesPlayed > 2*childSum {
		return Secondary
	}
	return Primary
}

func (a *Arbiter) failover() Choice {
	if a.onFailure == FailoverSecondary {
		return Secondary
	}
	return Primary
}

// For returns the store behind a choice.
func (a *Arbiter) For(c Choice) repository.StatsStore {
	if c == Secondary {
		return a.secondary
	}
	return a.primary
}

// Store returns the store selected for q.
func (a *Arbiter) Store(ctx context.Context, q model.Query) repository.StatsStore {
	return a.For(a.Select(ctx, q))
}

// Position answers from the selected store.
func (a *Arbiter) Position(ctx context.Context, q model.Query) (*model.PositionAggregate, error) {
	return a.Store(ctx, q).Position(ctx, q)
}

// Moves answers from the selected store.
func (a *Arbiter) Moves(ctx context.Context, q model.Query) ([]model.MoveAggregate, error) {
	return a.Store(ctx, q).Moves(ctx, q)
}
