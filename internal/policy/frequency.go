package policy

import (
	"context"
	"fmt"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
)

// FrequencyWeighted plays like the average player at a level: it draws a move
// with probability proportional to how often it was played.
type FrequencyWeighted struct {
	stats repository.StatsStore
}

func (p *FrequencyWeighted) Name() string { return NameFrequency }

func (p *FrequencyWeighted) SelectMove(ctx context.Context, req Request) (string, error) {
	moves, err := candidates(ctx, p.stats, req)
	if err != nil {
		return "", err
	}
	return weightedPick(moves)
}

func weightedPick(moves []model.MoveAggregate) (string, error) {
	var total int64
	for _, m := range moves {
		if m.MoveTimesPlayed > 0 {
			total += m.MoveTimesPlayed
		}
	}
	if total <= 0 {
		return "", fmt.Errorf("%w: no candidate with positive weight", ErrNoMove)
	}
	r := rngInt63n(total)
	for _, m := range moves {
		if m.MoveTimesPlayed <= 0 {
			continue
		}
		if r < m.MoveTimesPlayed {
			return m.Notation, nil
		}
		r -= m.MoveTimesPlayed
	}
	// unreachable while total is the sum of positive weights
	return "", fmt.Errorf("%w: weighted draw out of range", ErrNoMove)
}

// MostCommon always plays the most frequently played move, taking the first
// one in service order on ties.
type MostCommon struct {
	stats repository.StatsStore
}

func (p *MostCommon) Name() string { return NameMostCommon }

func (p *MostCommon) SelectMove(ctx context.Context, req Request) (string, error) {
	moves, err := candidates(ctx, p.stats, req)
	if err != nil {
		return "", err
	}
	i := argmax(moves, func(m model.MoveAggregate) (float64, bool) {
		return float64(m.MoveTimesPlayed), true
	})
	return moves[i].Notation, nil
}
