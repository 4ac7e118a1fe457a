// Package search runs a UCI chess engine (e.g. Stockfish) for move selection
// and position scoring. Every query starts its own engine process and
// shuts it down before returning.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notnil/chess/uci"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// MateScore is the magnitude reported for forced mates; mate in n scores
// MateScore-n for the mating side.
const MateScore = 10000

// Defaults for the fixed search budgets.
const (
	DefaultMoveTime  = 50 * time.Millisecond
	DefaultEvalDepth = 1
)

// ErrNoResult is returned when the engine finishes without a best move.
var ErrNoResult = errors.New("engine returned no result")

// Session is one running engine process.
type Session interface {
	Run(cmds ...uci.Cmd) error
	SearchResults() uci.SearchResults
	Close() error
}

// Launcher starts an engine process at path.
type Launcher func(path string) (Session, error)

func launchUCI(path string) (Session, error) {
	e, err := uci.New(path)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Engine describes how to launch and budget the external engine.
type Engine struct {
	path      string
	moveTime  time.Duration
	evalDepth int
	launch    Launcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithMoveTime sets the per-move search time for BestMove.
func WithMoveTime(d time.Duration) Option {
	return func(e *Engine) { e.moveTime = d }
}

// WithEvalDepth sets the fixed depth used by Score.
func WithEvalDepth(depth int) Option {
	return func(e *Engine) { e.evalDepth = depth }
}

// WithLauncher replaces process startup, mainly for tests.
func WithLauncher(l Launcher) Option {
	return func(e *Engine) { e.launch = l }
}

// New creates an Engine for the binary at path. No process is started until
// a query runs.
func New(path string, opts ...Option) *Engine {
	e := &Engine{
		path:      path,
		moveTime:  DefaultMoveTime,
		evalDepth: DefaultEvalDepth,
		launch:    launchUCI,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// withSession starts a process, performs the UCI handshake, runs fn and
// closes the process on every return path.
func (e *Engine) withSession(ctx context.Context, fn func(Session) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := e.launch(e.path)
	if err != nil {
		return fmt.Errorf("start engine %q: %w", e.path, err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine session panic: %v", r)
		}
		if cerr := s.Close(); cerr != nil {
			log.Debug().Err(cerr).Str("engine", e.path).Msg("Engine close failed")
		}
	}()

	if err := s.Run(uci.CmdUCI, uci.CmdIsReady, uci.CmdUCINewGame); err != nil {
		return fmt.Errorf("engine handshake: %w", err)
	}
	return fn(s)
}

// BestMove searches the position for the configured move time and returns the
// engine's choice in UCI notation.
func (e *Engine) BestMove(ctx context.Context, b *chessrules.Board) (string, error) {
	var move string
	err := e.withSession(ctx, func(s Session) error {
		if err := s.Run(uci.CmdPosition{Position: b.Position()}, uci.CmdGo{MoveTime: e.moveTime}); err != nil {
			return fmt.Errorf("engine search: %w", err)
		}
		res := s.SearchResults()
		if res.BestMove == nil {
			return ErrNoResult
		}
		move = res.BestMove.String()
		return nil
	})
	return move, err
}

// Score searches the position to the fixed eval depth and returns the score
// in centipawns from White's perspective. ok is false when the engine
// reported no score.
func (e *Engine) Score(ctx context.Context, b *chessrules.Board) (score int, ok bool, err error) {
	err = e.withSession(ctx, func(s Session) error {
		if err := s.Run(uci.CmdPosition{Position: b.Position()}, uci.CmdGo{Depth: e.evalDepth}); err != nil {
			return fmt.Errorf("engine eval: %w", err)
		}
		info := s.SearchResults().Info
		if info.Depth == 0 && info.Score == (uci.Score{}) {
			return nil
		}
		score, ok = WhiteScore(info.Score, b.Turn()), true
		return nil
	})
	return score, ok, err
}

// WhiteScore converts a side-to-move engine score to White's perspective,
// folding mate distances into +/-(MateScore - n).
func WhiteScore(s uci.Score, turn chessrules.Color) int {
	var v int
	switch {
	case s.Mate > 0:
		v = MateScore - s.Mate
	case s.Mate < 0:
		v = -MateScore - s.Mate
	default:
		v = s.CP
	}
	if turn == chessrules.Black {
		v = -v
	}
	return v
}
