package model

import "strconv"

// PositionAggregate is the aggregated game record for one position at one
// skill level. whiteWins+blackWins <= timesPlayed is expected but not checked.
type PositionAggregate struct {
	PositionID          string  `json:"positionID"`
	TimesPlayed         int64   `json:"timesPlayed"`
	WhiteWins           int64   `json:"whiteWins"`
	BlackWins           int64   `json:"blackWins"`
	RecursiveScoreWhite float64 `json:"recursiveScoreWhite"`
	RecursiveScoreBlack float64 `json:"recursiveScoreBlack"`
	Level               int     `json:"elo"`
}

// WhiteWinRate returns whiteWins/timesPlayed, or false when nothing was played.
func (p PositionAggregate) WhiteWinRate() (float64, bool) {
	if p.TimesPlayed <= 0 {
		return 0, false
	}
	return float64(p.WhiteWins) / float64(p.TimesPlayed), true
}

// MoveAggregate describes one successor of a queried position: the aggregate
// of the resulting position plus how often the move itself was played.
type MoveAggregate struct {
	PositionAggregate
	Notation        string `json:"moveSAN"`
	MoveTimesPlayed int64  `json:"move_times_played"`
}

// Query identifies a position either by its identifier or by FEN plus skill level.
type Query struct {
	PositionID string
	FEN        string
	Level      int
}

// ByFEN builds a FEN-keyed query.
func ByFEN(fen string, level int) Query {
	return Query{FEN: fen, Level: level}
}

// ByID builds an identifier-keyed query.
func ByID(id string) Query {
	return Query{PositionID: id}
}

// String renders the query for logs.
func (q Query) String() string {
	if q.PositionID != "" {
		return "id:" + q.PositionID
	}
	return "fen:" + q.FEN + "@" + strconv.Itoa(q.Level)
}

// SweepRow is one persisted game of a sweep cell.
type SweepRow struct {
	SweepID        string    `json:"sweep_id"`
	Cell           string    `json:"cell"`
	EvaluatedLevel int       `json:"evaluated_level"`
	BaselineLevel  int       `json:"baseline_level"`
	GameIndex      int       `json:"game_index"`
	EvaluatedColor string    `json:"evaluated_color"`
	Reason         string    `json:"reason"`
	Plies          int       `json:"plies"`
	Values         []float64 `json:"values"`
}
