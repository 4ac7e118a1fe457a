package policy

import (
	"context"
	"fmt"

	"github.com/freeeve/policy-arena/internal/search"
)

// Search plays the engine's best move under a fixed time budget. Skill level
// is ignored.
type Search struct {
	engine *search.Engine
}

func (p *Search) Name() string { return NameSearch }

func (p *Search) SelectMove(ctx context.Context, req Request) (string, error) {
	if req.Board == nil {
		return "", fmt.Errorf("%w: nil board", ErrNoMove)
	}
	move, err := p.engine.BestMove(ctx, req.Board)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMove, err)
	}
	return move, nil
}
