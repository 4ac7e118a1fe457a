package sweep

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
)

// DirSink writes each cell to <Dir>/<cell name>.csv.
type DirSink struct {
	Dir string
}

func (s DirSink) WriteCell(_ context.Context, _ string, cell *Cell) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return writeFile(filepath.Join(s.Dir, cell.Name+".csv"), cell.Rows())
}

// FileSink writes a cell to one CSV file at Path, replacing any previous
// content. Used for single-pairing runs.
type FileSink struct {
	Path string
}

func (s FileSink) WriteCell(_ context.Context, _ string, cell *Cell) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return writeFile(s.Path, cell.Rows())
}

// RepoSink stores every game of a cell as a row in a ResultRepository.
type RepoSink struct {
	Repo repository.ResultRepository
}

func (s RepoSink) WriteCell(ctx context.Context, sweepID string, cell *Cell) error {
	rows := make([]model.SweepRow, len(cell.Games))
	for i, g := range cell.Games {
		rows[i] = model.SweepRow{
			SweepID:        sweepID,
			Cell:           cell.Name,
			EvaluatedLevel: cell.EvaluatedLevel,
			BaselineLevel:  cell.BaselineLevel,
			GameIndex:      g.Index,
			EvaluatedColor: g.EvaluatedColor.String(),
			Reason:         string(g.Result.Reason),
			Plies:          g.Result.Plies,
			Values:         g.Result.Values,
		}
	}
	return s.Repo.SaveRows(ctx, rows)
}

// MultiSink writes to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) WriteCell(ctx context.Context, sweepID string, cell *Cell) error {
	for _, s := range m {
		if err := s.WriteCell(ctx, sweepID, cell); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV writes one comma-separated row per series. Rows may differ in
// length; an empty series is an empty line.
func WriteCSV(w io.Writer, rows [][]float64) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads series written by WriteCSV. Unlike encoding/csv it keeps
// empty lines, which are games that recorded nothing.
func ReadCSV(r io.Reader) ([][]float64, error) {
	var rows [][]float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			rows = append(rows, []float64{})
			continue
		}
		fields := strings.Split(text, ",")
		row := make([]float64, 0, len(fields))
		for _, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
