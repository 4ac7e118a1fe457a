package policy

import (
	"context"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// Recursive ranks candidates by their propagated recursive score. The best
// variant maximizes the mover's score; the worst variant maximizes the
// opponent's score, i.e. picks the move historically worst for the mover.
type Recursive struct {
	stats repository.StatsStore
	worst bool
}

func (p *Recursive) Name() string {
	if p.worst {
		return NameRecursiveWorst
	}
	return NameRecursiveBest
}

func (p *Recursive) SelectMove(ctx context.Context, req Request) (string, error) {
	moves, err := candidates(ctx, p.stats, req)
	if err != nil {
		return "", err
	}
	scoreFor := req.Color
	if p.worst {
		scoreFor = scoreFor.Other()
	}
	i := argmax(moves, func(m model.MoveAggregate) (float64, bool) {
		if scoreFor == chessrules.White {
			return m.RecursiveScoreWhite, true
		}
		return m.RecursiveScoreBlack, true
	})
	return moves[i].Notation, nil
}
