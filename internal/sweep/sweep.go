// Package sweep runs the evaluated policy against the baseline policy over
// the cross-product of their skill levels and writes one result table per
// (evaluatedLevel, baselineLevel) cell.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/policy-arena/internal/arena"
	"github.com/freeeve/policy-arena/internal/eval"
	"github.com/freeeve/policy-arena/internal/policy"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// Event types sent to a Broadcaster.
const (
	EventGameFinished  = "game_finished"
	EventCellWritten   = "cell_written"
	EventSweepFinished = "sweep_finished"
)

var (
	// ErrNoOpenings is returned when a sweep has nothing to play.
	ErrNoOpenings = errors.New("no openings")
	// ErrNoLevels is returned when either level set is empty.
	ErrNoLevels = errors.New("empty level set")
)

// Config configures a sweep.
type Config struct {
	SweepID         string // generated when empty
	Openings        []string
	Evaluated       policy.Policy
	Baseline        policy.Policy
	EvaluatedLevels []int
	BaselineLevels  []int

	// GenerateOpenings replaces each opening with one played by OpeningPolicy
	// at the baseline level for OpeningPlies plies.
	GenerateOpenings bool
	OpeningPolicy    policy.Policy
	OpeningPlies     int

	MaxMoves            int
	Evaluator           eval.Evaluator
	RecordMoveFrequency bool
	Frequency           *eval.MoveFrequency

	// Workers > 1 runs that many cells concurrently. Output is identical to
	// the sequential run.
	Workers int
}

// Sink persists a finished cell.
type Sink interface {
	WriteCell(ctx context.Context, sweepID string, cell *Cell) error
}

// Broadcaster receives progress events.
type Broadcaster interface {
	BroadcastSweepEvent(sweepID, eventType string, data any)
}

// CellSpec is one unit of work: a level pairing.
type CellSpec struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	EvaluatedLevel int    `json:"evaluated_level"`
	BaselineLevel  int    `json:"baseline_level"`
}

// Game is one played game inside a cell.
type Game struct {
	Index          int               `json:"index"`
	EvaluatedColor chessrules.Color  `json:"evaluated_color"`
	StartFEN       string            `json:"start_fen"`
	Result         *arena.GameResult `json:"result"`
}

// Cell holds every game of one level pairing, in opening order.
type Cell struct {
	CellSpec
	Games []Game
}

// Rows returns the recorded series, one per game.
func (c *Cell) Rows() [][]float64 {
	rows := make([][]float64, len(c.Games))
	for i, g := range c.Games {
		rows[i] = g.Result.Values
	}
	return rows
}

// Summary counts what a sweep produced.
type Summary struct {
	SweepID string               `json:"sweep_id"`
	Cells   int                  `json:"cells"`
	Games   int                  `json:"games"`
	Reasons map[arena.Reason]int `json:"reasons"`
}

// Runner executes a sweep.
type Runner struct {
	cfg    Config
	sink   Sink
	events Broadcaster
}

// Option configures a Runner.
type Option func(*Runner)

// WithBroadcaster sends progress events to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(r *Runner) { r.events = b }
}

// NewRunner validates cfg and returns a Runner writing to sink.
func NewRunner(cfg Config, sink Sink, opts ...Option) (*Runner, error) {
	if len(cfg.Openings) == 0 {
		return nil, ErrNoOpenings
	}
	if len(cfg.EvaluatedLevels) == 0 || len(cfg.BaselineLevels) == 0 {
		return nil, ErrNoLevels
	}
	if cfg.Evaluated == nil || cfg.Baseline == nil {
		return nil, errors.New("evaluated and baseline policies are required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if cfg.GenerateOpenings && cfg.OpeningPolicy == nil {
		return nil, errors.New("generated openings need an opening policy")
	}
	if cfg.RecordMoveFrequency && cfg.Frequency == nil {
		return nil, errors.New("move-frequency recording needs a frequency metric")
	}
	if !cfg.RecordMoveFrequency && cfg.Evaluator == nil {
		return nil, errors.New("position recording needs an evaluator")
	}
	if !cfg.GenerateOpenings {
		for i, fen := range cfg.Openings {
			if _, err := chessrules.NewBoard(fen); err != nil {
				return nil, fmt.Errorf("opening %d: %w", i+1, err)
			}
		}
	}
	if cfg.OpeningPlies == 0 {
		cfg.OpeningPlies = arena.DefaultOpeningPlies
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SweepID == "" {
		cfg.SweepID = uuid.NewString()
	}

	r := &Runner{cfg: cfg, sink: sink}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// SweepID identifies this run in sinks and events.
func (r *Runner) SweepID() string { return r.cfg.SweepID }

// CellName is the deterministic output name of a level pairing.
func CellName(evaluated string, evaluatedLevel int, baseline string, baselineLevel int) string {
	return fmt.Sprintf("%s_%d_%s_%d", evaluated, evaluatedLevel, baseline, baselineLevel)
}

// Cells lists the work units: evaluated levels outer, baseline levels inner.
func (r *Runner) Cells() []CellSpec {
	specs := make([]CellSpec, 0, len(r.cfg.EvaluatedLevels)*len(r.cfg.BaselineLevels))
	for _, el := range r.cfg.EvaluatedLevels {
		for _, bl := range r.cfg.BaselineLevels {
			specs = append(specs, CellSpec{
				Index:          len(specs),
				Name:           CellName(r.cfg.Evaluated.Name(), el, r.cfg.Baseline.Name(), bl),
				EvaluatedLevel: el,
				BaselineLevel:  bl,
			})
		}
	}
	return specs
}

// RunCell plays every opening for one level pairing. Even-indexed openings
// give the evaluated policy White, odd-indexed give it Black.
func (r *Runner) RunCell(ctx context.Context, spec CellSpec) (*Cell, error) {
	cell := &Cell{CellSpec: spec, Games: make([]Game, 0, len(r.cfg.Openings))}
	total := len(r.cfg.Openings)

	for i, fen := range r.cfg.Openings {
		color := chessrules.White
		if i%2 == 1 {
			color = chessrules.Black
		}

		start := fen
		if r.cfg.GenerateOpenings {
			var err error
			start, err = arena.GenerateOpening(ctx, r.cfg.OpeningPolicy, spec.BaselineLevel, r.cfg.OpeningPlies)
			if err != nil {
				return nil, fmt.Errorf("cell %s game %d: generate opening: %w", spec.Name, i+1, err)
			}
		}

		log.Info().
			Str("cell", spec.Name).
			Int("game", i+1).
			Int("of", total).
			Str("evaluatedColor", color.String()).
			Msg("Playing game")

		res, err := arena.RunGame(ctx, arena.GameConfig{
			StartFEN:            start,
			Evaluated:           arena.Side{Policy: r.cfg.Evaluated, Level: spec.EvaluatedLevel},
			Baseline:            arena.Side{Policy: r.cfg.Baseline, Level: spec.BaselineLevel},
			EvaluatedColor:      color,
			MaxMoves:            r.cfg.MaxMoves,
			Evaluator:           r.cfg.Evaluator,
			RecordMoveFrequency: r.cfg.RecordMoveFrequency,
			Frequency:           r.cfg.Frequency,
		})
		if err != nil {
			return nil, fmt.Errorf("cell %s game %d: %w", spec.Name, i+1, err)
		}

		game := Game{Index: i, EvaluatedColor: color, StartFEN: start, Result: res}
		cell.Games = append(cell.Games, game)
		r.broadcast(EventGameFinished, map[string]any{
			"cell":            spec.Name,
			"game":            i,
			"evaluated_color": color.String(),
			"reason":          res.Reason,
			"plies":           res.Plies,
			"values":          res.Values,
		})
	}
	return cell, nil
}

// Run executes every cell and writes each one as soon as it completes.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	specs := r.Cells()
	summary := &Summary{SweepID: r.cfg.SweepID, Reasons: make(map[arena.Reason]int)}
	var mu sync.Mutex

	runOne := func(ctx context.Context, spec CellSpec) error {
		cell, err := r.RunCell(ctx, spec)
		if err != nil {
			return err
		}
		if err := r.sink.WriteCell(ctx, r.cfg.SweepID, cell); err != nil {
			return fmt.Errorf("write cell %s: %w", spec.Name, err)
		}

		mu.Lock()
		summary.Cells++
		summary.Games += len(cell.Games)
		for _, g := range cell.Games {
			summary.Reasons[g.Result.Reason]++
		}
		mu.Unlock()

		log.Info().Str("cell", spec.Name).Int("games", len(cell.Games)).Msg("Cell written")
		r.broadcast(EventCellWritten, map[string]any{"cell": spec.Name, "games": len(cell.Games)})
		return nil
	}

	log.Info().
		Str("sweepId", r.cfg.SweepID).
		Int("cells", len(specs)).
		Int("gamesPerCell", len(r.cfg.Openings)).
		Int("workers", r.cfg.Workers).
		Msg("Sweep started")

	if r.cfg.Workers == 1 {
		for _, spec := range specs {
			if err := runOne(ctx, spec); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for _, spec := range specs {
			g.Go(func() error { return runOne(gctx, spec) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	r.broadcast(EventSweepFinished, summary)
	log.Info().Str("sweepId", r.cfg.SweepID).Int("cells", summary.Cells).Int("games", summary.Games).Msg("Sweep finished")
	return summary, nil
}

func (r *Runner) broadcast(eventType string, data any) {
	if r.events != nil {
		r.events.BroadcastSweepEvent(r.cfg.SweepID, eventType, data)
	}
}
