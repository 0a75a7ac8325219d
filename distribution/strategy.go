// Package distribution implements the phase-offset strategies an FxEngine
// uses to spread a single effect across a group's members.
package distribution

import (
	"math/rand"
	"sync"
)

// Strategy assigns each member of an N-member group a phase offset in
// [0,1) and describes how many distinct offsets it actually produces.
type Strategy interface {
	// OffsetFor returns the phase offset for member index (0-based) of N.
	OffsetFor(index, n int) float64
	// HasSpread reports whether members receive different offsets at all.
	HasSpread() bool
	// UsesTrianglePhase reports whether the FxEngine should remap the base
	// clock phase into a triangle (ping-pong) sweep before applying offsets.
	UsesTrianglePhase() bool
	// DistinctSlots returns the number of unique offsets produced for N
	// members; always <= N.
	DistinctSlots(n int) int
}

// edgeDistance is how many positions index is from the nearer edge of an
// N-member line: 0 for the first/last member, increasing toward the center.
func edgeDistance(index, n int) int {
	fromStart := index
	fromEnd := n - 1 - index
	if fromStart < fromEnd {
		return fromStart
	}
	return fromEnd
}

func halfSlots(n int) int {
	return (n + 1) / 2
}

func normalizedPosition(index, n int) float64 {
	if n <= 1 {
		return 0.5
	}
	return float64(index) / float64(n-1)
}

type unified struct{}

// Unified returns a strategy where every member shares the same phase.
func Unified() Strategy { return unified{} }

func (unified) OffsetFor(int, int) float64   { return 0 }
func (unified) HasSpread() bool              { return false }
func (unified) UsesTrianglePhase() bool      { return false }
func (unified) DistinctSlots(int) int        { return 1 }

type linear struct{}

// Linear spreads members evenly across the cycle in index order.
func Linear() Strategy { return linear{} }

func (linear) OffsetFor(i, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(i) / float64(n)
}
func (linear) HasSpread() bool         { return true }
func (linear) UsesTrianglePhase() bool { return false }
func (linear) DistinctSlots(n int) int { return n }

type reverse struct{}

// Reverse spreads members evenly across the cycle in reverse index order.
func Reverse() Strategy { return reverse{} }

func (reverse) OffsetFor(i, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(n-1-i) / float64(n)
}
func (reverse) HasSpread() bool         { return true }
func (reverse) UsesTrianglePhase() bool { return false }
func (reverse) DistinctSlots(n int) int { return n }

type centerOut struct{}

// CenterOut ranks members by distance from the center outward: the
// center member(s) get offset 0, the edges get the highest offset.
func CenterOut() Strategy { return centerOut{} }

func (centerOut) OffsetFor(i, n int) float64 {
	slots := halfSlots(n)
	if slots == 0 {
		return 0
	}
	rank := slots - 1 - edgeDistance(i, n)
	return float64(rank) / float64(slots)
}
func (centerOut) HasSpread() bool         { return true }
func (centerOut) UsesTrianglePhase() bool { return false }
func (centerOut) DistinctSlots(n int) int { return halfSlots(n) }

type edgesIn struct{}

// EdgesIn is the inverse of CenterOut: the edges get offset 0, the center
// member(s) get the highest offset.
func EdgesIn() Strategy { return edgesIn{} }

func (edgesIn) OffsetFor(i, n int) float64 {
	slots := halfSlots(n)
	if slots == 0 {
		return 0
	}
	return float64(edgeDistance(i, n)) / float64(slots)
}
func (edgesIn) HasSpread() bool         { return true }
func (edgesIn) UsesTrianglePhase() bool { return false }
func (edgesIn) DistinctSlots(n int) int { return halfSlots(n) }

type split struct{}

// Split mirrors halves of the group: position pair (k, N-1-k) share the
// same offset, k/ceil(N/2).
func Split() Strategy { return split{} }

func (split) OffsetFor(i, n int) float64 {
	slots := halfSlots(n)
	if slots == 0 {
		return 0
	}
	return float64(edgeDistance(i, n)) / float64(slots)
}
func (split) HasSpread() bool         { return true }
func (split) UsesTrianglePhase() bool { return false }
func (split) DistinctSlots(n int) int { return halfSlots(n) }

type pingPong struct{ linear }

// PingPong uses Linear offsets but instructs the engine to remap the base
// clock phase into a triangle sweep (forward then back).
func PingPong() Strategy { return pingPong{} }

func (pingPong) UsesTrianglePhase() bool { return true }

type positional struct{}

// Positional assigns each member its normalized position (i/(N-1), or 0.5
// for a single-member group) as its offset.
func Positional() Strategy { return positional{} }

func (positional) OffsetFor(i, n int) float64 { return normalizedPosition(i, n) }
func (positional) HasSpread() bool            { return true }
func (positional) UsesTrianglePhase() bool     { return false }
func (positional) DistinctSlots(n int) int     { return n }

// randomStrategy assigns a deterministic Fisher-Yates shuffle of
// {i/N : i<N} to the group, seeded so repeated calls for the same N are
// stable.
type randomStrategy struct {
	seed int64

	mu    sync.Mutex
	cache map[int][]float64
}

// Random returns a deterministic shuffle-based strategy. The same seed
// always produces the same permutation for a given group size.
func Random(seed int64) Strategy {
	return &randomStrategy{seed: seed, cache: make(map[int][]float64)}
}

func (r *randomStrategy) permutation(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[n]; ok {
		return p
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(r.seed))
	rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

	offsets := make([]float64, n)
	for i, v := range indices {
		offsets[i] = float64(v) / float64(n)
	}
	r.cache[n] = offsets
	return offsets
}

func (r *randomStrategy) OffsetFor(i, n int) float64 {
	if n == 0 {
		return 0
	}
	return r.permutation(n)[i]
}
func (r *randomStrategy) HasSpread() bool         { return true }
func (r *randomStrategy) UsesTrianglePhase() bool { return false }
func (r *randomStrategy) DistinctSlots(n int) int { return n }
