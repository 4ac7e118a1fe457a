// Package arena plays single games between an evaluated policy and a
// baseline policy and records a metric series from the evaluated side's
// point of view.
package arena

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/eval"
	"github.com/freeeve/policy-arena/internal/policy"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// Reason is why a game stopped.
type Reason string

const (
	ReasonNaturalGameEnd Reason = "natural_game_end"
	ReasonMoveLimit      Reason = "move_limit_reached"
	ReasonPolicyFailure  Reason = "policy_failure"
	ReasonInvalidMove    Reason = "invalid_move"
)

// Side is one player: a policy and the skill level it queries at.
type Side struct {
	Policy policy.Policy
	Level  int
}

// GameConfig configures a single game.
type GameConfig struct {
	StartFEN       string // "" = standard start position
	Evaluated      Side
	Baseline       Side
	EvaluatedColor chessrules.Color
	MaxMoves       int // plies; 0 = no cutoff

	// Exactly one recording mode applies: position scores from Evaluator, or
	// the frequency of the evaluated side's moves when RecordMoveFrequency is set.
	Evaluator           eval.Evaluator
	RecordMoveFrequency bool
	Frequency           *eval.MoveFrequency
}

// GameResult describes a finished game.
type GameResult struct {
	Values   []float64 `json:"values"`
	Reason   Reason    `json:"reason"`
	Plies    int       `json:"plies"`
	FinalFEN string    `json:"final_fen"`
	Outcome  string    `json:"outcome"`
}

func (cfg GameConfig) validate() error {
	if cfg.Evaluated.Policy == nil || cfg.Baseline.Policy == nil {
		return errors.New("both evaluated and baseline policies are required")
	}
	if cfg.RecordMoveFrequency {
		if cfg.Frequency == nil {
			return errors.New("move-frequency recording needs a frequency metric")
		}
	} else if cfg.Evaluator == nil {
		return errors.New("position recording needs an evaluator")
	}
	if cfg.MaxMoves < 0 {
		return fmt.Errorf("max moves must be >= 0, got %d", cfg.MaxMoves)
	}
	return nil
}

// RunGame plays one game to completion or cutoff. Policy and notation
// failures end the game with the matching Reason; only configuration errors
// and context cancellation are returned as errors.
func RunGame(ctx context.Context, cfg GameConfig) (*GameResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}
	b, err := chessrules.NewBoard(cfg.StartFEN)
	if err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}

	result := &GameResult{Values: []float64{}}
	finish := func(reason Reason) *GameResult {
		result.Reason = reason
		result.FinalFEN = b.FEN()
		result.Outcome = b.Outcome()
		log.Debug().
			Str("evaluated", cfg.Evaluated.Policy.Name()).
			Str("baseline", cfg.Baseline.Policy.Name()).
			Str("color", cfg.EvaluatedColor.String()).
			Str("reason", string(reason)).
			Int("plies", result.Plies).
			Int("values", len(result.Values)).
			Msg("Game finished")
		return result
	}

	if b.IsGameOver(true) {
		return finish(ReasonNaturalGameEnd), nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if cfg.MaxMoves > 0 && result.Plies >= cfg.MaxMoves {
			return finish(ReasonMoveLimit), nil
		}

		if !cfg.RecordMoveFrequency {
			if v, ok := cfg.Evaluator.Evaluate(ctx, b, cfg.Evaluated.Level); ok {
				if cfg.EvaluatedColor == chessrules.Black {
					v = -v
				}
				result.Values = append(result.Values, v)
			}
		}

		turn := b.Turn()
		evaluatedToMove := turn == cfg.EvaluatedColor
		mover := cfg.Baseline
		if evaluatedToMove {
			mover = cfg.Evaluated
		}

		text, err := mover.Policy.SelectMove(ctx, policy.Request{Board: b, Level: mover.Level, Color: turn})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Debug().Err(err).Str("policy", mover.Policy.Name()).Str("fen", b.FEN()).Msg("Policy produced no move")
			return finish(ReasonPolicyFailure), nil
		}

		m, err := b.ParseMove(text)
		if err != nil {
			log.Debug().Err(err).Str("policy", mover.Policy.Name()).Str("move", text).Str("fen", b.FEN()).Msg("Policy move rejected")
			return finish(ReasonInvalidMove), nil
		}

		if cfg.RecordMoveFrequency && evaluatedToMove {
			if v, ok := cfg.Frequency.Measure(ctx, b, cfg.Evaluated.Level, m); ok {
				result.Values = append(result.Values, v)
			}
		}

		if err := b.Push(m); err != nil {
			log.Debug().Err(err).Str("move", text).Msg("Move push failed")
			return finish(ReasonInvalidMove), nil
		}
		result.Plies++

		if b.IsGameOver(true) {
			return finish(ReasonNaturalGameEnd), nil
		}
	}
}
