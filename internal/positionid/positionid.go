// Package positionid derives the 128-bit identifiers the statistics service
// keys positions by.
package positionid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// namespace scopes name-based identifiers to this project.
var namespace = uuid.MustParse("6f1c2a4e-9b7d-4c3e-8a51-2d0f7b9e4c11")

// Normalize keeps the FEN fields that define a position (placement, side to
// move, castling rights, en passant square) and drops the move counters. The
// en passant square is kept only when a capture onto it is legal, so a FEN
// written after every double push and one written only when the capture
// exists name the same position.
func Normalize(fen string) (string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return "", fmt.Errorf("fen %q: expected at least 4 fields, got %d", fen, len(fields))
	}
	fields = fields[:4]
	if fields[3] != "-" {
		b, err := chessrules.NewBoard(strings.Join(fields, " ") + " 0 1")
		if err != nil {
			return "", fmt.Errorf("fen %q: %w", fen, err)
		}
		if !b.HasEnPassantCapture() {
			fields[3] = "-"
		}
	}
	return strings.Join(fields, " "), nil
}

// Derive returns the identifier for a position at a skill level.
func Derive(fen string, level int) (uuid.UUID, error) {
	norm, err := Normalize(fen)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(namespace, []byte(norm+"|"+strconv.Itoa(level))), nil
}

// String is Derive rendered in canonical form.
func String(fen string, level int) (string, error) {
	id, err := Derive(fen, level)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Parse validates an identifier given on the wire.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("position id %q: %w", s, err)
	}
	return id, nil
}
