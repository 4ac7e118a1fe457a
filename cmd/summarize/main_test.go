package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freeeve/policy-arena/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "results.csv", "10,20\n30\n")

	var buf bytes.Buffer
	if err := run(context.Background(), options{input: path}, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "games: 2") {
		t.Errorf("expected game count in output, got:\n%s", out)
	}
	if !strings.Contains(out, "20.000") {
		t.Errorf("expected ply-1 mean 20.000 in output, got:\n%s", out)
	}
}

func TestRunGridJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "avg_0_avg_player_1.csv", "1,2,3\n3,4,5\n")
	writeFile(t, dir, "avg_1_avg_player_0.csv", "10,10\n")

	var buf bytes.Buffer
	o := options{gridDir: dir, ply: 2, jsonOut: true}
	if err := run(context.Background(), o, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got struct {
		EvaluatedLevels []int        `json:"evaluated_levels"`
		BaselineLevels  []int        `json:"baseline_levels"`
		Values          [][]*float64 `json:"values"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if len(got.Values) != 2 || len(got.Values[0]) != 2 {
		t.Fatalf("expected 2x2 grid, got %v", got.Values)
	}
	// evaluated 0 vs baseline 0 was never played
	if got.Values[0][0] != nil {
		t.Errorf("expected null for missing cell, got %v", *got.Values[0][0])
	}
	if got.Values[0][1] == nil || *got.Values[0][1] != 3 {
		t.Errorf("expected mean 3 at ply 2, got %v", got.Values[0][1])
	}
	if got.Values[1][0] == nil || *got.Values[1][0] != 10 {
		t.Errorf("expected 10, got %v", got.Values[1][0])
	}
}

func TestRunGridTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "avg_2_avg_player_2.csv", "4,8\n")

	var buf bytes.Buffer
	o := options{gridDir: dir, ply: 2, scaleSlope: 0.5, scaleIntercept: 1}
	if err := run(context.Background(), o, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "5.00") {
		t.Errorf("expected scaled value 5.00, got:\n%s", buf.String())
	}
}

func TestRunRequiresSource(t *testing.T) {
	if err := run(context.Background(), options{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without an input")
	}
	if err := run(context.Background(), options{sweepID: "x"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without a results database")
	}
	if err := run(context.Background(), options{gridDir: t.TempDir()}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for an empty grid directory")
	}
}

func TestGroupByCell(t *testing.T) {
	rows := []model.SweepRow{
		{Cell: "a_1_b_1", GameIndex: 0, Values: []float64{1}},
		{Cell: "a_1_b_1", GameIndex: 1, Values: []float64{2}},
		{Cell: "a_1_b_2", GameIndex: 0, Values: nil},
	}
	cells := groupByCell(rows)
	if len(cells) != 2 || len(cells["a_1_b_1"]) != 2 || len(cells["a_1_b_2"]) != 1 {
		t.Errorf("unexpected grouping: %v", cells)
	}
}
