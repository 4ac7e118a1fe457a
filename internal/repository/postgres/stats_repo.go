package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
)

// StatsRepo reads and loads one statistics dataset.
type StatsRepo struct {
	db *sql.DB
}

// NewStatsRepo creates a StatsRepo.
func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Position returns the aggregate for a position, or nil if it is unknown.
func (r *StatsRepo) Position(ctx context.Context, q model.Query) (*model.PositionAggregate, error) {
	id, ok := repository.ResolveID(q)
	if !ok {
		return nil, nil
	}
	var p model.PositionAggregate
	err := r.db.QueryRowContext(ctx,
		`SELECT position_id, times_played, white_wins, black_wins,
		        recursive_score_white, recursive_score_black, elo
		 FROM chess_position WHERE position_id = $1`, id,
	).Scan(&p.PositionID, &p.TimesPlayed, &p.WhiteWins, &p.BlackWins,
		&p.RecursiveScoreWhite, &p.RecursiveScoreBlack, &p.Level)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find position: %w", err)
	}
	return &p, nil
}

// Moves returns the successors of a position that have aggregates of their
// own, most played first. No successors yields nil.
func (r *StatsRepo) Moves(ctx context.Context, q model.Query) ([]model.MoveAggregate, error) {
	id, ok := repository.ResolveID(q)
	if !ok {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.position_id, p.times_played, p.white_wins, p.black_wins,
		        p.recursive_score_white, p.recursive_score_black, p.elo,
		        m.move_san, m.times_played
		 FROM chess_move m
		 JOIN chess_position p ON m.end_position = p.position_id
		 WHERE m.start_position = $1
		 ORDER BY m.times_played DESC, m.move_san`, id)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var moves []model.MoveAggregate
	for rows.Next() {
		var m model.MoveAggregate
		if err := rows.Scan(&m.PositionID, &m.TimesPlayed, &m.WhiteWins, &m.BlackWins,
			&m.RecursiveScoreWhite, &m.RecursiveScoreBlack, &m.Level,
			&m.Notation, &m.MoveTimesPlayed); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// UpsertPosition inserts or replaces a position aggregate.
func (r *StatsRepo) UpsertPosition(ctx context.Context, p model.PositionAggregate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chess_position (position_id, times_played, white_wins, black_wins,
		                             recursive_score_white, recursive_score_black, elo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (position_id) DO UPDATE SET
		     times_played = EXCLUDED.times_played,
		     white_wins = EXCLUDED.white_wins,
		     black_wins = EXCLUDED.black_wins,
		     recursive_score_white = EXCLUDED.recursive_score_white,
		     recursive_score_black = EXCLUDED.recursive_score_black,
		     elo = EXCLUDED.elo`,
		p.PositionID, p.TimesPlayed, p.WhiteWins, p.BlackWins,
		p.RecursiveScoreWhite, p.RecursiveScoreBlack, p.Level,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// UpsertMove inserts or replaces the edge startID --san--> endID.
func (r *StatsRepo) UpsertMove(ctx context.Context, startID, endID, san string, timesPlayed int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chess_move (start_position, end_position, move_san, times_played)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (start_position, move_san) DO UPDATE SET
		     end_position = EXCLUDED.end_position,
		     times_played = EXCLUDED.times_played`,
		startID, endID, san, timesPlayed,
	)
	if err != nil {
		return fmt.Errorf("upsert move: %w", err)
	}
	return nil
}
