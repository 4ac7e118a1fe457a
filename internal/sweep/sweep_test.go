package sweep

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/policy-arena/internal/arena"
	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/policy"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

type firstLegal struct{ name string }

func (p firstLegal) Name() string { return p.name }

func (p firstLegal) SelectMove(_ context.Context, req policy.Request) (string, error) {
	moves := req.Board.LegalMoves()
	if len(moves) == 0 {
		return "", policy.ErrNoMove
	}
	return moves[0].String(), nil
}

// levelEval scores every position with the queried level so cells differ.
type levelEval struct{}

func (levelEval) Name() string { return "level" }

func (levelEval) Evaluate(_ context.Context, _ *chessrules.Board, level int) (float64, bool) {
	return float64(level), true
}

type memSink struct {
	mu    sync.Mutex
	cells []*Cell
	err   error
}

func (s *memSink) WriteCell(_ context.Context, _ string, c *Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = append(s.cells, c)
	return s.err
}

type memEvents struct {
	mu     sync.Mutex
	counts map[string]int
}

func (e *memEvents) BroadcastSweepEvent(_, eventType string, _ any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counts == nil {
		e.counts = map[string]int{}
	}
	e.counts[eventType]++
}

func baseConfig(openings int) Config {
	ops := make([]string, openings)
	for i := range ops {
		ops[i] = chessrules.StartFEN
	}
	return Config{
		Openings:        ops,
		Evaluated:       firstLegal{name: "recursive_best"},
		Baseline:        firstLegal{name: "avg_player"},
		EvaluatedLevels: []int{0, 1, 2},
		BaselineLevels:  []int{3, 4},
		Evaluator:       levelEval{},
		MaxMoves:        6,
	}
}

func TestCellsOrderAndNames(t *testing.T) {
	r, err := NewRunner(baseConfig(1), &memSink{})
	require.NoError(t, err)

	var names []string
	for _, c := range r.Cells() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"recursive_best_0_avg_player_3",
		"recursive_best_0_avg_player_4",
		"recursive_best_1_avg_player_3",
		"recursive_best_1_avg_player_4",
		"recursive_best_2_avg_player_3",
		"recursive_best_2_avg_player_4",
	}, names)
}

func TestRunProducesLxMCells(t *testing.T) {
	sink := &memSink{}
	events := &memEvents{}
	r, err := NewRunner(baseConfig(5), sink, WithBroadcaster(events))
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Cells)
	assert.Equal(t, 30, summary.Games)
	assert.Equal(t, 30, summary.Reasons[arena.ReasonMoveLimit])

	require.Len(t, sink.cells, 6)
	for _, c := range sink.cells {
		rows := c.Rows()
		require.Len(t, rows, 5)
		for _, row := range rows {
			require.Len(t, row, 6)
			for _, v := range row {
				assert.Equal(t, float64(c.EvaluatedLevel), v*sign(v))
			}
		}
	}
	assert.Equal(t, 30, events.counts[EventGameFinished])
	assert.Equal(t, 6, events.counts[EventCellWritten])
	assert.Equal(t, 1, events.counts[EventSweepFinished])
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func TestEvaluatedColorAlternates(t *testing.T) {
	cfg := baseConfig(4)
	cfg.EvaluatedLevels = []int{2}
	cfg.BaselineLevels = []int{1}
	r, err := NewRunner(cfg, &memSink{})
	require.NoError(t, err)

	cell, err := r.RunCell(context.Background(), r.Cells()[0])
	require.NoError(t, err)
	require.Len(t, cell.Games, 4)

	wantColors := []chessrules.Color{chessrules.White, chessrules.Black, chessrules.White, chessrules.Black}
	for i, g := range cell.Games {
		assert.Equal(t, i, g.Index)
		assert.Equal(t, wantColors[i], g.EvaluatedColor)
	}
	// Black games record negated scores.
	assert.Equal(t, 2.0, cell.Games[0].Result.Values[0])
	assert.Equal(t, -2.0, cell.Games[1].Result.Values[0])
}

func TestWorkersMatchSequentialOutput(t *testing.T) {
	render := func(workers int) map[string]string {
		dir := t.TempDir()
		cfg := baseConfig(3)
		cfg.Workers = workers
		r, err := NewRunner(cfg, DirSink{Dir: dir})
		require.NoError(t, err)
		_, err = r.Run(context.Background())
		require.NoError(t, err)

		out := map[string]string{}
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			b, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			out[e.Name()] = string(b)
		}
		return out
	}

	seq := render(1)
	par := render(4)
	assert.Len(t, seq, 6)
	assert.Equal(t, seq, par)

	var files []string
	for name := range seq {
		files = append(files, name)
	}
	sort.Strings(files)
	assert.Equal(t, "recursive_best_0_avg_player_3.csv", files[0])

	rows, err := ReadCSV(bytes.NewBufferString(seq[files[0]]))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

type levelRecorder struct {
	mu     sync.Mutex
	levels []int
}

func (p *levelRecorder) Name() string { return "avg_player" }

func (p *levelRecorder) SelectMove(_ context.Context, req policy.Request) (string, error) {
	p.mu.Lock()
	p.levels = append(p.levels, req.Level)
	p.mu.Unlock()
	return req.Board.LegalMoves()[0].String(), nil
}

func TestGeneratedOpeningsUseBaselineLevel(t *testing.T) {
	opener := &levelRecorder{}
	cfg := baseConfig(2)
	cfg.EvaluatedLevels = []int{0}
	cfg.BaselineLevels = []int{3}
	cfg.GenerateOpenings = true
	cfg.OpeningPolicy = opener
	sink := &memSink{}

	r, err := NewRunner(cfg, sink)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, opener.levels, 2*arena.DefaultOpeningPlies)
	for _, l := range opener.levels {
		assert.Equal(t, 3, l)
	}
	require.Len(t, sink.cells, 1)
	assert.NotEqual(t, chessrules.StartFEN, sink.cells[0].Games[0].StartFEN)
}

func TestNewRunnerErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no openings", func(c *Config) { c.Openings = nil }, ErrNoOpenings},
		{"no evaluated levels", func(c *Config) { c.EvaluatedLevels = nil }, ErrNoLevels},
		{"no baseline levels", func(c *Config) { c.BaselineLevels = nil }, ErrNoLevels},
		{"bad opening", func(c *Config) { c.Openings = []string{"bogus"} }, nil},
		{"no evaluator", func(c *Config) { c.Evaluator = nil }, nil},
		{"generate without policy", func(c *Config) { c.GenerateOpenings = true }, nil},
		{"frequency without metric", func(c *Config) { c.RecordMoveFrequency = true }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(1)
			tt.mutate(&cfg)
			_, err := NewRunner(cfg, &memSink{})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSinkErrorStopsSweep(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	r, err := NewRunner(baseConfig(1), sink)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	assert.Error(t, err)
	assert.Len(t, sink.cells, 1)
}

type memRepo struct {
	rows []model.SweepRow
}

func (m *memRepo) SaveRows(_ context.Context, rows []model.SweepRow) error {
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memRepo) ListRows(context.Context, string, string) ([]model.SweepRow, error) {
	return m.rows, nil
}

func TestRepoAndMultiSink(t *testing.T) {
	repo := &memRepo{}
	dir := t.TempDir()
	cfg := baseConfig(2)
	cfg.EvaluatedLevels = []int{1}
	cfg.BaselineLevels = []int{2}
	cfg.SweepID = "sweep-1"

	r, err := NewRunner(cfg, MultiSink{RepoSink{Repo: repo}, DirSink{Dir: dir}})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, repo.rows, 2)
	assert.Equal(t, "sweep-1", repo.rows[0].SweepID)
	assert.Equal(t, "recursive_best_1_avg_player_2", repo.rows[0].Cell)
	assert.Equal(t, "white", repo.rows[0].EvaluatedColor)
	assert.Equal(t, "black", repo.rows[1].EvaluatedColor)
	assert.Equal(t, string(arena.ReasonMoveLimit), repo.rows[1].Reason)

	_, err = os.Stat(filepath.Join(dir, "recursive_best_1_avg_player_2.csv"))
	assert.NoError(t, err)
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	cfg := baseConfig(3)
	cfg.EvaluatedLevels = []int{2}
	cfg.BaselineLevels = []int{2}
	r, err := NewRunner(cfg, FileSink{Path: path})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCSVRoundTripKeepsRaggedAndEmptyRows(t *testing.T) {
	rows := [][]float64{{35, -12.5, 0.25}, {}, {1}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Equal(t, "35,-12.5,0.25\n\n1\n", buf.String())

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = ReadCSV(bytes.NewBufferString("1,abc\n"))
	assert.Error(t, err)
}
