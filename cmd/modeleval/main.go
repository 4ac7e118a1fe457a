package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/arbiter"
	"github.com/freeeve/policy-arena/internal/arena"
	"github.com/freeeve/policy-arena/internal/config"
	"github.com/freeeve/policy-arena/internal/eval"
	"github.com/freeeve/policy-arena/internal/handler"
	"github.com/freeeve/policy-arena/internal/logger"
	"github.com/freeeve/policy-arena/internal/middleware"
	"github.com/freeeve/policy-arena/internal/policy"
	"github.com/freeeve/policy-arena/internal/repository/postgres"
	"github.com/freeeve/policy-arena/internal/search"
	"github.com/freeeve/policy-arena/internal/stats"
	"github.com/freeeve/policy-arena/internal/sweep"
)

type options struct {
	evaluated       string
	baseline        string
	evalName        string
	games           int
	output          string
	evaluatedLevel  int
	baselineLevel   int
	openingsPath    string
	allStartpos     bool
	generate        bool
	recordFrequency bool
	maxMoves        int
	gridDir         string
	evaluatedLevels string
	baselineLevels  string
	workers         int
	seed            int64
	configPath      string
	resultsDB       string
	migrations      string
	watch           string
	jsonOut         bool
	logLevel        string
}

func main() {
	var o options
	flag.StringVar(&o.evaluated, "evaluated", "", "Policy being evaluated ("+strings.Join(policy.Names(), ", ")+")")
	flag.StringVar(&o.baseline, "baseline", policy.NameFrequency, "Baseline policy")
	flag.StringVar(&o.evalName, "eval", eval.NameSearch, "Evaluator for recorded scores (sf, avg)")
	flag.IntVar(&o.games, "games", 10, "Number of games per level pairing")
	flag.StringVar(&o.output, "output", "results.csv", "Output CSV for a single pairing")
	flag.IntVar(&o.evaluatedLevel, "evaluated-level", 2, "Skill level of the evaluated policy")
	flag.IntVar(&o.baselineLevel, "baseline-level", 2, "Skill level of the baseline policy")
	flag.StringVar(&o.openingsPath, "openings", "openings.txt", "File with one FEN per line")
	flag.BoolVar(&o.allStartpos, "all-startpos", false, "Start every game from the initial position (ignores --openings)")
	flag.BoolVar(&o.generate, "generate-openings", false, "Play 4 plies with avg_player at the baseline level before each game")
	flag.BoolVar(&o.recordFrequency, "record-move-frequency", false, "Record the evaluated policy's move frequency instead of scores")
	flag.IntVar(&o.maxMoves, "max-moves", 0, "Stop games after this many plies (0 = no limit)")
	flag.StringVar(&o.gridDir, "grid-dir", "", "Run every level pairing and write one CSV per cell into this directory")
	flag.StringVar(&o.evaluatedLevels, "evaluated-levels", "0,1,2,3,4", "Evaluated levels for --grid-dir")
	flag.StringVar(&o.baselineLevels, "baseline-levels", "0,1,2,3,4", "Baseline levels for --grid-dir")
	flag.IntVar(&o.workers, "workers", 1, "Cells played concurrently")
	flag.Int64Var(&o.seed, "seed", 0, "Seed for avg_player sampling (0 = random)")
	flag.StringVar(&o.configPath, "config", "", "Optional config file")
	flag.StringVar(&o.resultsDB, "results-db", "", "Also store rows in this PostgreSQL database (or RESULTS_DATABASE_URL)")
	flag.StringVar(&o.migrations, "migrations", "", "Apply *.up.sql from this directory to the results database first")
	flag.StringVar(&o.watch, "watch", "", "Serve progress over WebSocket on this address (e.g. :5555)")
	flag.BoolVar(&o.jsonOut, "json", false, "Print the sweep summary as JSON")
	flag.StringVar(&o.logLevel, "log-level", "", "Log level (default LOG_LEVEL or info)")
	flag.Parse()

	logger.InitCLI(o.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	summary, err := run(ctx, o)
	if err != nil {
		log.Fatal().Err(err).Msg("Sweep failed")
	}
	if o.jsonOut {
		printJSON(summary)
	} else {
		printSummary(summary)
	}
}

func run(ctx context.Context, o options) (*sweep.Summary, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	grid := o.gridDir != ""
	if o.evaluated == "" {
		if !grid {
			return nil, fmt.Errorf("--evaluated is required (one of %s)", strings.Join(policy.Names(), ", "))
		}
		o.evaluated = policy.NameRecursiveBest
	}
	if o.seed != 0 {
		policy.SeedRng(o.seed)
	}

	failover, err := arbiter.ParseFailurePolicy(cfg.ArbiterFailover)
	if err != nil {
		return nil, err
	}
	statsStore := arbiter.New(
		stats.NewClient(cfg.StatsPrimaryURL, stats.WithTimeout(cfg.StatsTimeout), stats.WithName("primary")),
		stats.NewClient(cfg.StatsSecondaryURL, stats.WithTimeout(cfg.StatsTimeout), stats.WithName("secondary")),
		arbiter.WithFailurePolicy(failover),
	)
	engine := search.New(cfg.StockfishPath, search.WithMoveTime(cfg.SearchMoveTime), search.WithEvalDepth(cfg.EvalDepth))
	deps := policy.Deps{Stats: statsStore, Engine: engine}

	evaluated, err := policy.New(o.evaluated, deps)
	if err != nil {
		return nil, err
	}
	baseline, err := policy.New(o.baseline, deps)
	if err != nil {
		return nil, err
	}
	evaluator, err := eval.New(o.evalName, statsStore, engine)
	if err != nil {
		return nil, err
	}

	openings, err := resolveOpenings(o)
	if err != nil {
		return nil, err
	}

	sc := sweep.Config{
		Openings:            openings,
		Evaluated:           evaluated,
		Baseline:            baseline,
		EvaluatedLevels:     []int{o.evaluatedLevel},
		BaselineLevels:      []int{o.baselineLevel},
		GenerateOpenings:    o.generate,
		OpeningPlies:        arena.DefaultOpeningPlies,
		MaxMoves:            o.maxMoves,
		Evaluator:           evaluator,
		RecordMoveFrequency: o.recordFrequency,
		Frequency:           eval.NewMoveFrequency(statsStore),
		Workers:             o.workers,
	}
	if o.generate {
		if sc.OpeningPolicy, err = policy.New(policy.NameFrequency, deps); err != nil {
			return nil, err
		}
	}

	var sinks sweep.MultiSink
	if grid {
		if sc.EvaluatedLevels, err = parseLevels(o.evaluatedLevels); err != nil {
			return nil, fmt.Errorf("--evaluated-levels: %w", err)
		}
		if sc.BaselineLevels, err = parseLevels(o.baselineLevels); err != nil {
			return nil, fmt.Errorf("--baseline-levels: %w", err)
		}
		sinks = append(sinks, sweep.DirSink{Dir: o.gridDir})
	} else {
		sinks = append(sinks, sweep.FileSink{Path: o.output})
	}

	resultsDB := o.resultsDB
	if resultsDB == "" {
		resultsDB = cfg.ResultsDatabaseURL
	}
	if resultsDB != "" {
		db, err := postgres.Connect(resultsDB)
		if err != nil {
			return nil, fmt.Errorf("results database: %w", err)
		}
		defer db.Close()
		if o.migrations != "" {
			if _, err := postgres.Migrate(ctx, db, o.migrations); err != nil {
				return nil, fmt.Errorf("results database: %w", err)
			}
		}
		sinks = append(sinks, sweep.RepoSink{Repo: postgres.NewResultRepo(db)})
	}

	var runnerOpts []sweep.Option
	if o.watch != "" {
		hub := handler.NewHub()
		srv := watchServer(o.watch, hub)
		go func() {
			log.Info().Str("addr", o.watch).Msg("Watch server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Watch server error")
			}
		}()
		defer func() {
			// Shutdown leaves hijacked sockets open; the hub closes them.
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		runnerOpts = append(runnerOpts, sweep.WithBroadcaster(hub))
	}

	runner, err := sweep.NewRunner(sc, sinks, runnerOpts...)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("evaluated", o.evaluated).
		Str("baseline", o.baseline).
		Str("eval", o.evalName).
		Int("openings", len(openings)).
		Bool("grid", grid).
		Msg("Starting sweep")
	return runner.Run(ctx)
}

func watchServer(addr string, hub *handler.Hub) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /ws", handler.NewWSHandler(hub).ServeWS)
	return &http.Server{
		Addr:        addr,
		Handler:     middleware.Chain(mux, middleware.Logger, middleware.Recover),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

func printSummary(s *sweep.Summary) {
	fmt.Printf("\nSweep %s: %d cells, %d games\n", s.SweepID, s.Cells, s.Games)
	reasons := make([]string, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  %-20s %d\n", r, s.Reasons[arena.Reason(r)])
	}
}

func printJSON(s *sweep.Summary) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(s)
}
