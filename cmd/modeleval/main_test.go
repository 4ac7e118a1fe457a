package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/freeeve/policy-arena/pkg/chessrules"
)

func TestParseLevels(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"0,1,2,3,4", []int{0, 1, 2, 3, 4}, false},
		{" 3 , 1 ", []int{3, 1}, false},
		{"2,", []int{2}, false},
		{"", nil, true},
		{"1,x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevels(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestResolveOpeningsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openings.txt")
	content := "# sample\n" + chessrules.StartFEN + "\n\n" +
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1\n" +
		"rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq - 0 1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveOpenings(options{openingsPath: path, games: 2})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 || got[0] != chessrules.StartFEN {
		t.Errorf("expected first two openings, got %v", got)
	}

	got, _ = resolveOpenings(options{openingsPath: path, games: 10})
	if len(got) != 3 {
		t.Errorf("expected all 3 openings, got %d", len(got))
	}
}

func TestResolveOpeningsStartpos(t *testing.T) {
	for _, o := range []options{{allStartpos: true, games: 3}, {generate: true, games: 3, openingsPath: "missing.txt"}} {
		got, err := resolveOpenings(o)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if len(got) != 3 || got[2] != chessrules.StartFEN {
			t.Errorf("expected 3 start positions, got %v", got)
		}
	}
}

func TestResolveOpeningsErrors(t *testing.T) {
	if _, err := resolveOpenings(options{openingsPath: filepath.Join(t.TempDir(), "none.txt"), games: 1}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := resolveOpenings(options{allStartpos: true, games: 0}); err == nil {
		t.Error("expected error for zero games")
	}
}
