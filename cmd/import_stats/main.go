// Command import_stats loads position and move aggregates from JSONL into
// one statistics dataset.
//
// Usage:
//
//	go run ./cmd/import_stats/ --input positions.jsonl --dataset secondary
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/config"
	"github.com/freeeve/policy-arena/internal/logger"
	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/positionid"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/internal/repository/postgres"
	"github.com/freeeve/policy-arena/pkg/chessrules"
)

// jsonPositionRecord is one aggregated position with its successor moves.
type jsonPositionRecord struct {
	FEN                 string          `json:"fen"`
	Level               int             `json:"level"`
	TimesPlayed         int64           `json:"timesPlayed"`
	WhiteWins           int64           `json:"whiteWins"`
	BlackWins           int64           `json:"blackWins"`
	RecursiveScoreWhite float64         `json:"recursiveScoreWhite"`
	RecursiveScoreBlack float64         `json:"recursiveScoreBlack"`
	Moves               []jsonMoveEntry `json:"moves"`
}

// jsonMoveEntry is how often a move was played from the record's position.
type jsonMoveEntry struct {
	SAN         string `json:"san"`
	TimesPlayed int64  `json:"timesPlayed"`
}

func main() {
	inputFile := flag.String("input", "", "Path to JSONL file")
	dataset := flag.String("dataset", "primary", "Target dataset (primary or secondary)")
	dbURL := flag.String("db", "", "Postgres connection URL (defaults to the dataset's configured URL)")
	configPath := flag.String("config", "", "Optional config file")
	migrations := flag.String("migrations", "", "Apply *.up.sql from this directory before importing")
	flag.Parse()

	logger.InitCLI("")

	if *inputFile == "" {
		log.Fatal().Msg("--input is required")
	}
	url := *dbURL
	if url == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Config load failed")
		}
		switch *dataset {
		case "primary":
			url = cfg.PrimaryDatabaseURL
		case "secondary":
			url = cfg.SecondaryDatabaseURL
		default:
			log.Fatal().Str("dataset", *dataset).Msg("Unknown dataset")
		}
	}
	if url == "" {
		log.Fatal().Str("dataset", *dataset).Msg("--db or the dataset's DATABASE_URL is required")
	}

	db, err := postgres.Connect(url)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()
	ctx := context.Background()
	if *migrations != "" {
		n, err := postgres.Migrate(ctx, db, *migrations)
		if err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		log.Info().Int("applied", n).Msg("Migrations applied")
	}
	repo := postgres.NewStatsRepo(db)

	f, err := os.Open(*inputFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Open input failed")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	imported, moves, lineNo := 0, 0, 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rec jsonPositionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			log.Warn().Err(err).Int("line", lineNo).Msg("Skipping line (bad JSON)")
			continue
		}

		n, err := importRecord(ctx, repo, rec)
		if err != nil {
			log.Error().Err(err).Int("line", lineNo).Msg("Import failed")
			continue
		}
		imported++
		moves += n
	}

	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("Read input failed")
	}

	log.Info().Str("dataset", *dataset).Int("positions", imported).Int("moves", moves).Msg("Import done")
}

// importRecord upserts the position and one edge per move, returning the
// number of edges written. Moves that are illegal in the position are
// skipped with a warning.
func importRecord(ctx context.Context, w repository.StatsWriter, rec jsonPositionRecord) (int, error) {
	id, err := positionid.String(rec.FEN, rec.Level)
	if err != nil {
		return 0, err
	}
	err = w.UpsertPosition(ctx, model.PositionAggregate{
		PositionID:          id,
		TimesPlayed:         rec.TimesPlayed,
		WhiteWins:           rec.WhiteWins,
		BlackWins:           rec.BlackWins,
		RecursiveScoreWhite: rec.RecursiveScoreWhite,
		RecursiveScoreBlack: rec.RecursiveScoreBlack,
		Level:               rec.Level,
	})
	if err != nil {
		return 0, err
	}

	written := 0
	for _, mv := range rec.Moves {
		childID, san, err := successor(rec.FEN, rec.Level, mv.SAN)
		if err != nil {
			log.Warn().Err(err).Str("fen", rec.FEN).Str("move", mv.SAN).Msg("Skipping move")
			continue
		}
		if err := w.UpsertMove(ctx, id, childID, san, mv.TimesPlayed); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// successor applies a move to fen and returns the resulting position's
// identifier and the move in canonical SAN.
func successor(fen string, level int, move string) (string, string, error) {
	b, err := chessrules.NewBoard(fen)
	if err != nil {
		return "", "", err
	}
	m, err := b.ParseMove(move)
	if err != nil {
		return "", "", err
	}
	san := b.SAN(m)
	if err := b.Push(m); err != nil {
		return "", "", err
	}
	childID, err := positionid.String(b.FEN(), level)
	if err != nil {
		return "", "", fmt.Errorf("child of %s: %w", move, err)
	}
	return childID, san, nil
}
