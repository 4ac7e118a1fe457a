package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// resolveOpenings picks the start positions: generated and all-startpos runs
// use the initial position games times, otherwise the first games lines of
// the openings file.
func resolveOpenings(o options) ([]string, error) {
	if o.games < 1 {
		return nil, fmt.Errorf("--games must be >= 1, got %d", o.games)
	}
	if o.generate || o.allStartpos {
		openings := make([]string, o.games)
		for i := range openings {
			openings[i] = chessrules.StartFEN
		}
		return openings, nil
	}
	openings, err := readOpenings(o.openingsPath)
	if err != nil {
		return nil, err
	}
	if len(openings) > o.games {
		openings = openings[:o.games]
	}
	return openings, nil
}

// readOpenings returns the non-blank lines of path. Lines starting with #
// are comments.
func readOpenings(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("openings file: %w", err)
	}
	defer f.Close()

	var fens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fens = append(fens, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read openings: %w", err)
	}
	return fens, nil
}

// parseLevels parses a comma-separated list such as "0,1,2".
func parseLevels(s string) ([]int, error) {
	var levels []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", part, err)
		}
		levels = append(levels, n)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no levels in %q", s)
	}
	return levels, nil
}
