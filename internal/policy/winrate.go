package policy

import (
	"context"
	"fmt"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// BestWinRate picks the move whose resulting position scored best for the
// side to move. Moves whose resulting position was never played are skipped.
type BestWinRate struct {
	stats repository.StatsStore
}

func (p *BestWinRate) Name() string { return NameBestWinRate }

func (p *BestWinRate) SelectMove(ctx context.Context, req Request) (string, error) {
	moves, err := candidates(ctx, p.stats, req)
	if err != nil {
		return "", err
	}
	black := req.Board.Turn() == chessrules.Black
	i := argmax(moves, func(m model.MoveAggregate) (float64, bool) {
		rate, ok := m.WhiteWinRate()
		if !ok {
			return 0, false
		}
		if black {
			return 1 - rate, true
		}
		return rate, true
	})
	if i < 0 {
		return "", fmt.Errorf("%w: every candidate has timesPlayed == 0", ErrNoMove)
	}
	return moves[i].Notation, nil
}
