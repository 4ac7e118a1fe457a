// Command sweepwatch prints progress events from a running modeleval --watch.
//
// Usage:
//
//	go run ./cmd/sweepwatch/ --addr :5555 --sweep-id '*'
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/logger"
	"github.com/freeeve/policy-arena/internal/sweep"
	"github.com/freeeve/policy-arena/internal/watch"
)

func main() {
	addr := flag.String("addr", "localhost:5555", "Watch server address or ws:// URL")
	sweepID := flag.String("sweep-id", "*", "Sweep to follow (* for all)")
	untilDone := flag.Bool("until-done", true, "Exit after the first sweep_finished event")
	flag.Parse()

	logger.InitCLI("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	c, err := watch.Dial(ctx, *addr)
	if err != nil {
		log.Fatal().Err(err).Msg("Connect failed")
	}
	defer c.Close()

	if err := c.Subscribe(*sweepID); err != nil {
		log.Fatal().Err(err).Msg("Subscribe failed")
	}
	log.Info().Str("addr", watch.WSURL(*addr)).Str("sweep_id", *sweepID).Msg("Watching")

	follow(ctx, c.Events(), os.Stdout, *untilDone)
}

// follow prints events until the stream ends, ctx is cancelled or, with
// untilDone, a sweep finishes.
func follow(ctx context.Context, events <-chan watch.Event, out io.Writer, untilDone bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				log.Info().Msg("Connection closed")
				return
			}
			fmt.Fprintln(out, formatEvent(ev))
			if untilDone && ev.Type == sweep.EventSweepFinished {
				return
			}
		}
	}
}

func formatEvent(ev watch.Event) string {
	if ev.SweepID == "" {
		return fmt.Sprintf("%-16s %s", ev.Type, ev.Data)
	}
	return fmt.Sprintf("%-16s %s %s", ev.Type, ev.SweepID, ev.Data)
}
