package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes {"error": msg}. Not-found bodies are part of the
// statistics contract, so msg is sent verbatim.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLookupFailure logs a failed store read and answers 500 without
// leaking the store error to the caller.
func writeLookupFailure(w http.ResponseWriter, r *http.Request, what string, err error) {
	log.Error().Err(err).
		Str("path", r.URL.Path).
		Str("dataset", w.Header().Get(DatasetHeader)).
		Msgf("%s lookup failed", what)
	writeError(w, http.StatusInternalServerError, what+" lookup failed")
}
