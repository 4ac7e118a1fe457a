package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freeeve/policy-arena/internal/model"
)

func TestWriteJSONAggregate(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, model.PositionAggregate{PositionID: "abc", TimesPlayed: 7, WhiteWins: 3, Level: 2})

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", ct)
	}

	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["positionID"] != "abc" || result["timesPlayed"] != float64(7) || result["elo"] != float64(2) {
		t.Errorf("unexpected body: %v", result)
	}
}

func TestWriteJSONMoveList(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, []model.MoveAggregate{
		{Notation: "Qxf7#", MoveTimesPlayed: 1},
	})

	body := rec.Body.String()
	if !strings.Contains(body, `"moveSAN":"Qxf7#"`) || !strings.Contains(body, `"move_times_played":1`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "Position not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	var result map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["error"] != "Position not found" {
		t.Errorf("expected error=Position not found, got %s", result["error"])
	}
}

func TestWriteLookupFailureHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(DatasetHeader, "secondary")
	req := httptest.NewRequest(http.MethodGet, "/position/abc/moves", nil)
	writeLookupFailure(rec, req, "moves", errors.New("pq: password authentication failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "password") {
		t.Errorf("store error leaked into response: %s", body)
	}
	if !strings.Contains(body, "moves lookup failed") {
		t.Errorf("unexpected body: %s", body)
	}
}
