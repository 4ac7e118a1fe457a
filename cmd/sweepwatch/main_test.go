package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/freeeve/policy-arena/internal/sweep"
	"github.com/freeeve/policy-arena/internal/watch"
)

func TestFollowStopsAtSweepFinished(t *testing.T) {
	events := make(chan watch.Event, 3)
	events <- watch.Event{Type: sweep.EventCellWritten, SweepID: "s1", Data: json.RawMessage(`{"cell":"a_1_b_1"}`)}
	events <- watch.Event{Type: sweep.EventSweepFinished, SweepID: "s1", Data: json.RawMessage(`{}`)}
	events <- watch.Event{Type: sweep.EventCellWritten, SweepID: "s2"}

	var buf bytes.Buffer
	follow(context.Background(), events, &buf, true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `{"cell":"a_1_b_1"}`) {
		t.Errorf("expected cell payload, got %q", lines[0])
	}
	if len(events) != 1 {
		t.Error("expected follow to stop before the third event")
	}
}

func TestFollowEndsWhenChannelCloses(t *testing.T) {
	events := make(chan watch.Event, 1)
	events <- watch.Event{Type: "connected", Data: json.RawMessage(`{}`)}
	close(events)

	var buf bytes.Buffer
	follow(context.Background(), events, &buf, true)
	if !strings.HasPrefix(buf.String(), "connected") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
