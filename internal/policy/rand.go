package policy

import (
	"math/rand"
	"sync"
)

// rng is the random source for the frequency-weighted policy. When nil the
// global math/rand source is used. Guarded by rngMu so parallel sweep cells
// can share it.
var (
	rngMu sync.Mutex
	rng   *rand.Rand
)

// SeedRng sets a deterministic random source for reproducible runs.
func SeedRng(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewSource(seed))
}

// resetRng reverts to the default (non-deterministic) global source.
func resetRng() {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = nil
}

func rngInt63n(n int64) int64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	if rng != nil {
		return rng.Int63n(n)
	}
	return rand.Int63n(n)
}
