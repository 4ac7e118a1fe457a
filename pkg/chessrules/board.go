// Package chessrules adapts github.com/notnil/chess to the small board
// contract the simulator needs: FEN in and out, legal moves, notation
// parsing and game-over detection.
package chessrules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove is returned when a move parses but is not legal in the position.
var ErrIllegalMove = errors.New("illegal move")

// Move is a single move in the underlying rules engine.
type Move = chess.Move

// Color is the side to move.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// MarshalText renders the color as "white" or "black".
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Board is a mutable game owned by a single caller.
type Board struct {
	game *chess.Game
}

// NewBoard returns a board at the given FEN, or the start position when fen is empty.
func NewBoard(fen string) (*Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return &Board{game: chess.NewGame()}, nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return &Board{game: chess.NewGame(opt)}, nil
}

// FEN returns the current position.
func (b *Board) FEN() string {
	return b.game.Position().String()
}

// Turn returns the side to move.
func (b *Board) Turn() Color {
	if b.game.Position().Turn() == chess.Black {
		return Black
	}
	return White
}

// Position exposes the engine position for UCI commands.
func (b *Board) Position() *chess.Position {
	return b.game.Position()
}

// LegalMoves returns all legal moves in the current position.
func (b *Board) LegalMoves() []*Move {
	return b.game.ValidMoves()
}

// HasEnPassantCapture reports whether the side to move can legally capture
// en passant.
func (b *Board) HasEnPassantCapture() bool {
	for _, m := range b.game.ValidMoves() {
		if m.HasTag(chess.EnPassant) {
			return true
		}
	}
	return false
}

// ParseUCI decodes compact coordinate notation (e.g. "e2e4", "e7e8q") and
// checks it against the legal moves.
func (b *Board) ParseUCI(text string) (*Move, error) {
	text = strings.TrimSpace(text)
	m, err := chess.UCINotation{}.Decode(b.game.Position(), text)
	if err != nil {
		return nil, fmt.Errorf("decode uci %q: %w", text, err)
	}
	want := m.String()
	for _, legal := range b.game.ValidMoves() {
		if legal.String() == want {
			return legal, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIllegalMove, text)
}

// ParseSAN decodes standard algebraic notation (e.g. "Nf3", "exd5", "O-O").
func (b *Board) ParseSAN(text string) (*Move, error) {
	text = strings.TrimSpace(text)
	m, err := chess.AlgebraicNotation{}.Decode(b.game.Position(), text)
	if err != nil {
		return nil, fmt.Errorf("%w: decode san %q: %v", ErrIllegalMove, text, err)
	}
	return m, nil
}

// ParseMove tries compact notation first and falls back to SAN.
func (b *Board) ParseMove(text string) (*Move, error) {
	if m, err := b.ParseUCI(text); err == nil {
		return m, nil
	}
	return b.ParseSAN(text)
}

// SAN renders a move in algebraic notation for the current position.
func (b *Board) SAN(m *Move) string {
	return chess.AlgebraicNotation{}.Encode(b.game.Position(), m)
}

// Push applies a legal move.
func (b *Board) Push(m *Move) error {
	if err := b.game.Move(m); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return nil
}

// IsGameOver reports checkmate, stalemate and automatic draws. With
// allowDrawClaims it also treats claimable threefold repetition and the
// fifty-move rule as the end of the game.
func (b *Board) IsGameOver(allowDrawClaims bool) bool {
	if b.game.Outcome() != chess.NoOutcome {
		return true
	}
	if !allowDrawClaims {
		return false
	}
	for _, m := range b.game.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			return true
		}
	}
	return false
}

// Outcome returns the result string ("1-0", "0-1", "1/2-1/2" or "*").
func (b *Board) Outcome() string {
	return string(b.game.Outcome())
}
