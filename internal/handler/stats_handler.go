package handler

import (
	"net/http"
	"strconv"

	"github.com/freeeve/policy-arena/internal/arbiter"
	"github.com/freeeve/policy-arena/internal/model"
	"github.com/freeeve/policy-arena/internal/repository"
	"github.com/freeeve/policy-arena/internal/stats"
)

// DatasetHeader reports which dataset answered an arbitrated request.
const DatasetHeader = "X-Dataset"

// StatsHandler serves position and successor-move aggregates, either
// arbitrated between the two datasets or from a named one.
type StatsHandler struct {
	arbiter  *arbiter.Arbiter
	datasets map[string]repository.StatsStore
}

// NewStatsHandler creates a StatsHandler. The arbiter answers root routes;
// datasets answers /datasets/{dataset}/... routes.
func NewStatsHandler(a *arbiter.Arbiter) *StatsHandler {
	return &StatsHandler{
		arbiter: a,
		datasets: map[string]repository.StatsStore{
			arbiter.Primary.String():   a.For(arbiter.Primary),
			arbiter.Secondary.String(): a.For(arbiter.Secondary),
		},
	}
}

// Register mounts every statistics route on mux.
func (h *StatsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /position/{id}", h.Position)
	mux.HandleFunc("GET /position/{id}/moves", h.Moves)
	mux.HandleFunc("GET /fen/{fen}/{rating}/position", h.Position)
	mux.HandleFunc("GET /fen/{fen}/{rating}/moves", h.Moves)

	mux.HandleFunc("GET /datasets/{dataset}/position/{id}", h.Position)
	mux.HandleFunc("GET /datasets/{dataset}/position/{id}/moves", h.Moves)
	mux.HandleFunc("GET /datasets/{dataset}/fen/{fen}/{rating}/position", h.Position)
	mux.HandleFunc("GET /datasets/{dataset}/fen/{fen}/{rating}/moves", h.Moves)
}

// Position handles GET .../position/{id} and .../fen/{fen}/{rating}/position
func (h *StatsHandler) Position(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	store, ok := h.store(w, r, q)
	if !ok {
		return
	}
	pos, err := store.Position(r.Context(), q)
	if err != nil {
		writeLookupFailure(w, r, "position", err)
		return
	}
	if pos == nil {
		writeError(w, http.StatusNotFound, "Position not found")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// Moves handles GET .../position/{id}/moves and .../fen/{fen}/{rating}/moves
func (h *StatsHandler) Moves(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	store, ok := h.store(w, r, q)
	if !ok {
		return
	}
	moves, err := store.Moves(r.Context(), q)
	if err != nil {
		writeLookupFailure(w, r, "moves", err)
		return
	}
	if len(moves) == 0 {
		writeError(w, http.StatusNotFound, "No moves found for this position")
		return
	}
	writeJSON(w, http.StatusOK, moves)
}

// store resolves the dataset named in the path, or arbitrates when none is.
func (h *StatsHandler) store(w http.ResponseWriter, r *http.Request, q model.Query) (repository.StatsStore, bool) {
	if name := r.PathValue("dataset"); name != "" {
		s, ok := h.datasets[name]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown dataset "+name)
			return nil, false
		}
		w.Header().Set(DatasetHeader, name)
		return s, true
	}
	choice := h.arbiter.Select(r.Context(), q)
	w.Header().Set(DatasetHeader, choice.String())
	return h.arbiter.For(choice), true
}

func parseQuery(w http.ResponseWriter, r *http.Request) (model.Query, bool) {
	if id := r.PathValue("id"); id != "" {
		return model.ByID(id), true
	}
	fen, err := stats.DecodeFEN(r.PathValue("fen"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.Query{}, false
	}
	level, err := strconv.Atoi(r.PathValue("rating"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rating must be an integer")
		return model.Query{}, false
	}
	return model.ByFEN(fen, level), true
}
