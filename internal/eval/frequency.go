package eval

import (
	"context"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// MoveFrequency measures how often a played move was chosen from its
// position at a level, as a fraction in [0,1].
type MoveFrequency struct {
	stats repository.StatsStore
}

// NewMoveFrequency returns the metric over stats.
func NewMoveFrequency(stats repository.StatsStore) *MoveFrequency {
	return &MoveFrequency{stats: stats}
}

// Measure returns moveTimesPlayed / parent timesPlayed for m, which must be
// legal on b and not yet applied. When the parent aggregate is missing the
// denominator is the sum over all candidates instead.
func (f *MoveFrequency) Measure(ctx context.Context, b *chessrules.Board, level int, m *chessrules.Move) (float64, bool) {
	san := b.SAN(m)
	q := model.ByFEN(b.FEN(), level)

	var parentTimes int64
	if p, err := f.stats.Position(ctx, q); err == nil && p != nil {
		parentTimes = p.TimesPlayed
	}

	moves, err := f.stats.Moves(ctx, q)
	if err != nil || len(moves) == 0 {
		return 0, false
	}
	return Frequency(moves, san, parentTimes)
}

// Frequency is the pure part of Measure.
func Frequency(moves []model.MoveAggregate, san string, parentTimes int64) (float64, bool) {
	chosen := -1
	for i, c := range moves {
		if c.Notation == san {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return 0, false
	}
	if parentTimes <= 0 {
		parentTimes = 0
		for _, c := range moves {
			parentTimes += c.MoveTimesPlayed
		}
	}
	if parentTimes <= 0 {
		return 0, false
	}
	return float64(moves[chosen].MoveTimesPlayed) / float64(parentTimes), true
}
