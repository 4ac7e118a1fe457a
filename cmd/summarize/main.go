// Command summarize reduces sweep result tables to per-ply statistics or a
// level-pairing grid.
//
// Usage:
//
//	go run ./cmd/summarize/ --input results.csv
//	go run ./cmd/summarize/ --grid-dir grid/ --ply 50 --max-prefix
//	go run ./cmd/summarize/ --sweep-id <id> --results-db postgres://...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/logger"
	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository/postgres"
	"github.com/freeeve/policy-arena/internal/summary"
)

type options struct {
	input          string
	gridDir        string
	sweepID        string
	cell           string
	resultsDB      string
	ply            int
	maxPrefix      bool
	scaleSlope     float64
	scaleIntercept float64
	jsonOut        bool
}

func main() {
	var o options
	flag.StringVar(&o.input, "input", "", "Single result CSV to summarize")
	flag.StringVar(&o.gridDir, "grid-dir", "", "Directory of per-cell CSVs to reduce to a grid")
	flag.StringVar(&o.sweepID, "sweep-id", "", "Load rows of this sweep from the results database")
	flag.StringVar(&o.cell, "cell", "", "With --sweep-id, summarize only this cell")
	flag.StringVar(&o.resultsDB, "results-db", os.Getenv("RESULTS_DATABASE_URL"), "Results database URL")
	flag.IntVar(&o.ply, "ply", 50, "Grid value at this 1-based ply")
	flag.BoolVar(&o.maxPrefix, "max-prefix", false, "Grid value is the per-game max over the first --ply plies")
	flag.Float64Var(&o.scaleSlope, "scale-slope", 0, "Rescale grid values as max(0, slope*v+intercept) when non-zero")
	flag.Float64Var(&o.scaleIntercept, "scale-intercept", 0, "Intercept for --scale-slope")
	flag.BoolVar(&o.jsonOut, "json", false, "Print JSON instead of tables")
	flag.Parse()

	logger.InitCLI("")

	if err := run(context.Background(), o, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Summarize failed")
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	switch {
	case o.input != "":
		rows, err := summary.LoadFile(o.input)
		if err != nil {
			return err
		}
		return emitReport(out, o, summary.Summarize(rows))

	case o.gridDir != "":
		cells, err := summary.LoadDir(o.gridDir)
		if err != nil {
			return err
		}
		if len(cells) == 0 {
			return fmt.Errorf("no CSV files in %s", o.gridDir)
		}
		return emitGrid(out, o, cells)

	case o.sweepID != "":
		if o.resultsDB == "" {
			return fmt.Errorf("--results-db or RESULTS_DATABASE_URL is required with --sweep-id")
		}
		db, err := postgres.Connect(o.resultsDB)
		if err != nil {
			return err
		}
		defer db.Close()
		rows, err := postgres.NewResultRepo(db).ListRows(ctx, o.sweepID, o.cell)
		if err != nil {
			return err
		}
		cells := groupByCell(rows)
		log.Debug().Str("sweep_id", o.sweepID).Int("rows", len(rows)).Int("cells", len(cells)).Msg("Loaded sweep rows")
		switch len(cells) {
		case 0:
			return fmt.Errorf("sweep %s has no rows", o.sweepID)
		case 1:
			for _, rows := range cells {
				return emitReport(out, o, summary.Summarize(rows))
			}
		}
		return emitGrid(out, o, cells)
	}
	return fmt.Errorf("one of --input, --grid-dir or --sweep-id is required")
}

// groupByCell turns stored rows back into per-cell tables. Rows arrive
// ordered by cell and game index.
func groupByCell(rows []model.SweepRow) map[string][][]float64 {
	cells := make(map[string][][]float64)
	for _, r := range rows {
		cells[r.Cell] = append(cells[r.Cell], r.Values)
	}
	return cells
}

func emitReport(out io.Writer, o options, r summary.Report) error {
	if o.jsonOut {
		return writeJSON(out, r)
	}
	fmt.Fprintf(out, "games: %d  mean length: %.1f plies\n\n", r.Games, r.MeanLength)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ply\tmean\ttop25\tbottom25\tsurvival\t")
	for i := range r.PerPlyMean {
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%.2f\t\n",
			i+1, r.PerPlyMean[i], r.TopQuartileMean[i], r.BottomQuartileMean[i], r.Survival[i])
	}
	return tw.Flush()
}

func emitGrid(out io.Writer, o options, cells map[string][][]float64) error {
	g, err := summary.BuildGrid(cells, o.ply, o.maxPrefix)
	if err != nil {
		return err
	}
	if o.scaleSlope != 0 {
		g = g.Scale(o.scaleSlope, o.scaleIntercept)
	}
	if o.jsonOut {
		return writeJSON(out, jsonGrid(g))
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	header := []string{"eval\\base"}
	for _, bl := range g.BaselineLevels {
		header = append(header, fmt.Sprint(bl))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for i, el := range g.EvaluatedLevels {
		line := []string{fmt.Sprint(el)}
		for _, v := range g.Values[i] {
			if math.IsNaN(v) {
				line = append(line, "-")
			} else {
				line = append(line, fmt.Sprintf("%.2f", v))
			}
		}
		fmt.Fprintln(tw, strings.Join(line, "\t")+"\t")
	}
	return tw.Flush()
}

// jsonGrid replaces NaN, which encoding/json rejects, with null.
func jsonGrid(g *summary.Grid) map[string]any {
	values := make([][]*float64, len(g.Values))
	for i, row := range g.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				values[i][j] = &v
			}
		}
	}
	return map[string]any{
		"evaluated_levels": g.EvaluatedLevels,
		"baseline_levels":  g.BaselineLevels,
		"values":           values,
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
