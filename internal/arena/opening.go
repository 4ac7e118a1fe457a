package arena

import (
	"context"

	"github.com/freeeve/policy-arena/internal/policy"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// DefaultOpeningPlies is the number of plies played when generating openings.
const DefaultOpeningPlies = 4

// GenerateOpening plays p for both sides from the start position for up to
// plies half-moves and returns the resulting FEN. It stops early on game over
// or when the policy fails or returns an unusable move. Nothing is recorded.
func GenerateOpening(ctx context.Context, p policy.Policy, level, plies int) (string, error) {
	b, err := chessrules.NewBoard("")
	if err != nil {
		return "", err
	}
	for i := 0; i < plies; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if b.IsGameOver(true) {
			break
		}
		text, err := p.SelectMove(ctx, policy.Request{Board: b, Level: level, Color: b.Turn()})
		if err != nil {
			break
		}
		m, err := b.ParseMove(text)
		if err != nil {
			break
		}
		if err := b.Push(m); err != nil {
			break
		}
	}
	return b.FEN(), nil
}
