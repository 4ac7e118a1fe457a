package search

import (
	"context"
	"errors"
	"testing"

	"github.com/notnil/chess/uci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/policy-arena/pkg/chessrules"
)

type fakeSession struct {
	results uci.SearchResults
	runErr  error
	cmds    []uci.Cmd
	closed  int
}

func (f *fakeSession) Run(cmds ...uci.Cmd) error {
	f.cmds = append(f.cmds, cmds...)
	return f.runErr
}

func (f *fakeSession) SearchResults() uci.SearchResults { return f.results }

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

func launcherFor(s *fakeSession, launches *int) Launcher {
	return func(string) (Session, error) {
		*launches++
		return s, nil
	}
}

func board(t *testing.T, fen string) *chessrules.Board {
	t.Helper()
	b, err := chessrules.NewBoard(fen)
	require.NoError(t, err)
	return b
}

func TestBestMoveClosesSession(t *testing.T) {
	b := board(t, "")
	m, err := b.ParseUCI("e2e4")
	require.NoError(t, err)

	s := &fakeSession{results: uci.SearchResults{BestMove: m}}
	launches := 0
	e := New("stockfish", WithLauncher(launcherFor(s, &launches)))

	got, err := e.BestMove(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "e2e4", got)
	assert.Equal(t, 1, launches)
	assert.Equal(t, 1, s.closed)

	var sawGo bool
	for _, c := range s.cmds {
		if g, ok := c.(uci.CmdGo); ok {
			sawGo = true
			assert.Equal(t, DefaultMoveTime, g.MoveTime)
		}
	}
	assert.True(t, sawGo)
}

func TestSessionReleasedOnFailure(t *testing.T) {
	s := &fakeSession{runErr: errors.New("broken pipe")}
	launches := 0
	e := New("stockfish", WithLauncher(launcherFor(s, &launches)))

	_, err := e.BestMove(context.Background(), board(t, ""))
	assert.Error(t, err)
	assert.Equal(t, 1, s.closed)

	_, _, err = e.Score(context.Background(), board(t, ""))
	assert.Error(t, err)
	assert.Equal(t, 2, s.closed)
}

func TestBestMoveWithoutResult(t *testing.T) {
	s := &fakeSession{}
	launches := 0
	e := New("stockfish", WithLauncher(launcherFor(s, &launches)))

	_, err := e.BestMove(context.Background(), board(t, ""))
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 1, s.closed)
}

func TestLaunchFailure(t *testing.T) {
	e := New("/nonexistent", WithLauncher(func(string) (Session, error) {
		return nil, errors.New("exec: not found")
	}))
	_, err := e.BestMove(context.Background(), board(t, ""))
	assert.Error(t, err)
}

func TestCanceledContextSkipsLaunch(t *testing.T) {
	launches := 0
	e := New("stockfish", WithLauncher(launcherFor(&fakeSession{}, &launches)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.BestMove(ctx, board(t, ""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, launches)
}

func TestScoreWhitePerspective(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		info  uci.Info
		want  int
		found bool
	}{
		{"white to move cp", "", uci.Info{Depth: 1, Score: uci.Score{CP: 35}}, 35, true},
		{"black to move cp", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", uci.Info{Depth: 1, Score: uci.Score{CP: 20}}, -20, true},
		{"no score reported", "", uci.Info{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSession{results: uci.SearchResults{Info: tt.info}}
			launches := 0
			e := New("stockfish", WithEvalDepth(1), WithLauncher(launcherFor(s, &launches)))

			got, ok, err := e.Score(context.Background(), board(t, tt.fen))
			require.NoError(t, err)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, s.closed)
		})
	}
}

func TestWhiteScoreMate(t *testing.T) {
	assert.Equal(t, 9997, WhiteScore(uci.Score{Mate: 3}, chessrules.White))
	assert.Equal(t, -9998, WhiteScore(uci.Score{Mate: -2}, chessrules.White))
	assert.Equal(t, -9997, WhiteScore(uci.Score{Mate: 3}, chessrules.Black))
	assert.Equal(t, 9998, WhiteScore(uci.Score{Mate: -2}, chessrules.Black))
}
