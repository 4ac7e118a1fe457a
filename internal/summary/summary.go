// Package summary reduces sweep result tables to per-ply statistics and
// level-pairing grids.
package summary

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/freeeve/policy-arena/internal/sweep"
)

// Report describes one result table. Per-ply slices are indexed by ply and
// run to the length of the longest game.
type Report struct {
	Games              int       `json:"games"`
	MeanLength         float64   `json:"mean_length"`
	PerPlyMean         []float64 `json:"per_ply_mean"`
	TopQuartileMean    []float64 `json:"top_quartile_mean"`
	BottomQuartileMean []float64 `json:"bottom_quartile_mean"`
	Survival           []float64 `json:"survival"`
}

// Summarize builds a Report. Games that recorded no values are ignored.
func Summarize(rows [][]float64) Report {
	games := nonEmpty(rows)
	var r Report
	r.Games = len(games)
	if r.Games == 0 {
		return r
	}

	lengths := make([]float64, len(games))
	maxLen := 0
	for i, g := range games {
		lengths[i] = float64(len(g))
		if len(g) > maxLen {
			maxLen = len(g)
		}
	}
	r.MeanLength = stat.Mean(lengths, nil)

	for ply := 0; ply < maxLen; ply++ {
		col := column(games, ply)
		r.PerPlyMean = append(r.PerPlyMean, stat.Mean(col, nil))
		r.Survival = append(r.Survival, float64(len(col))/float64(len(games)))

		sort.Float64s(col)
		q := max(1, len(col)/4)
		r.BottomQuartileMean = append(r.BottomQuartileMean, stat.Mean(col[:q], nil))
		r.TopQuartileMean = append(r.TopQuartileMean, stat.Mean(col[len(col)-q:], nil))
	}
	return r
}

// FinalQuantile returns the p-quantile of each game's last value.
func FinalQuantile(rows [][]float64, p float64) (float64, bool) {
	games := nonEmpty(rows)
	if len(games) == 0 {
		return 0, false
	}
	finals := make([]float64, len(games))
	for i, g := range games {
		finals[i] = g[len(g)-1]
	}
	sort.Float64s(finals)
	return stat.Quantile(p, stat.Empirical, finals, nil), true
}

// CellValue reduces a table to one number: the mean over games of the value
// at the 1-based ply, or with maxPrefix the mean of each game's maximum over
// its first ply values. Games without a value at that ply are skipped.
func CellValue(rows [][]float64, ply int, maxPrefix bool) (float64, bool) {
	if ply < 1 {
		return 0, false
	}
	var samples []float64
	for _, g := range rows {
		if maxPrefix {
			prefix := g[:min(ply, len(g))]
			if len(prefix) > 0 {
				samples = append(samples, floats.Max(prefix))
			}
			continue
		}
		if ply <= len(g) {
			samples = append(samples, g[ply-1])
		}
	}
	if len(samples) == 0 {
		return 0, false
	}
	return stat.Mean(samples, nil), true
}

// CellKey is a parsed cell name.
type CellKey struct {
	Evaluated      string
	EvaluatedLevel int
	Baseline       string
	BaselineLevel  int
}

// ParseCellName splits "<evaluated>_<level>_<baseline>_<level>". Policy names
// may contain underscores but not purely numeric segments.
func ParseCellName(name string) (CellKey, error) {
	name = strings.TrimSuffix(name, ".csv")
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return CellKey{}, fmt.Errorf("cell name %q: too few segments", name)
	}
	bl, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return CellKey{}, fmt.Errorf("cell name %q: baseline level: %w", name, err)
	}
	for k := len(parts) - 3; k >= 1; k-- {
		el, err := strconv.Atoi(parts[k])
		if err != nil {
			continue
		}
		return CellKey{
			Evaluated:      strings.Join(parts[:k], "_"),
			EvaluatedLevel: el,
			Baseline:       strings.Join(parts[k+1:len(parts)-1], "_"),
			BaselineLevel:  bl,
		}, nil
	}
	return CellKey{}, fmt.Errorf("cell name %q: no evaluated level", name)
}

// Grid is a matrix of cell values, evaluated levels by row and baseline
// levels by column. Missing cells are NaN.
type Grid struct {
	EvaluatedLevels []int       `json:"evaluated_levels"`
	BaselineLevels  []int       `json:"baseline_levels"`
	Values          [][]float64 `json:"values"`
}

// BuildGrid reduces every named table with CellValue and lays the results
// out by level. All cells must share one policy pairing.
func BuildGrid(cells map[string][][]float64, ply int, maxPrefix bool) (*Grid, error) {
	keys := make(map[CellKey][][]float64, len(cells))
	var pair string
	evSet, blSet := map[int]bool{}, map[int]bool{}
	for name, rows := range cells {
		k, err := ParseCellName(name)
		if err != nil {
			return nil, err
		}
		p := k.Evaluated + "/" + k.Baseline
		if pair == "" {
			pair = p
		} else if p != pair {
			return nil, fmt.Errorf("mixed policy pairings %s and %s", pair, p)
		}
		keys[k] = rows
		evSet[k.EvaluatedLevel] = true
		blSet[k.BaselineLevel] = true
	}

	g := &Grid{EvaluatedLevels: sortedKeys(evSet), BaselineLevels: sortedKeys(blSet)}
	for _, el := range g.EvaluatedLevels {
		row := make([]float64, len(g.BaselineLevels))
		for j, bl := range g.BaselineLevels {
			row[j] = math.NaN()
			for k, rows := range keys {
				if k.EvaluatedLevel != el || k.BaselineLevel != bl {
					continue
				}
				if v, ok := CellValue(rows, ply, maxPrefix); ok {
					row[j] = v
				}
			}
		}
		g.Values = append(g.Values, row)
	}
	return g, nil
}

// Scale maps every value to max(0, slope*v+intercept), keeping NaN.
func (g *Grid) Scale(slope, intercept float64) *Grid {
	out := &Grid{EvaluatedLevels: g.EvaluatedLevels, BaselineLevels: g.BaselineLevels}
	for _, row := range g.Values {
		scaled := make([]float64, len(row))
		for i, v := range row {
			if math.IsNaN(v) {
				scaled[i] = v
				continue
			}
			scaled[i] = math.Max(0, slope*v+intercept)
		}
		out.Values = append(out.Values, scaled)
	}
	return out
}

// LoadDir reads every *.csv in dir, keyed by file name without extension.
func LoadDir(dir string) (map[string][][]float64, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	cells := make(map[string][][]float64, len(paths))
	for _, p := range paths {
		rows, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		cells[strings.TrimSuffix(filepath.Base(p), ".csv")] = rows
	}
	return cells, nil
}

// LoadFile reads one result table.
func LoadFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	rows, err := sweep.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func nonEmpty(rows [][]float64) [][]float64 {
	out := make([][]float64, 0, len(rows))
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func column(rows [][]float64, ply int) []float64 {
	var col []float64
	for _, r := range rows {
		if ply < len(r) {
			col = append(col, r[ply])
		}
	}
	return col
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
