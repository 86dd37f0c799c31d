// Package match provides nearest-neighbour queries over coordinate lists.
//
// The Index interface abstracts the scan strategy so the reconciler can
// swap the brute-force Linear scan for the cell-bucketed Grid index on
// large ground-truth sets without any change to its own contract.
package match

import (
	"math"

	"github.com/sentinelmap/signaudit/internal/geo"
)

// Record is the outcome of one nearest-neighbour query.
//
// When the candidate set is empty, Nearest is nil, Meters is +Inf and
// Index is -1. That is a normal outcome, not an error: the reconciler
// interprets it as "nothing anywhere near".
type Record struct {
	Query   geo.Coordinate  `json:"query"`
	Nearest *geo.Coordinate `json:"nearest,omitempty"`
	Meters  float64         `json:"distance_meters"`
	Index   int             `json:"index"`
}

// Index answers nearest-candidate queries against a fixed candidate list.
//
// Implementations must be deterministic: a tie on distance resolves to
// the lowest candidate index, so results are stable on input order.
type Index interface {
	Nearest(q geo.Coordinate) Record
}

// Factory builds an Index over a candidate list. The reconciler takes a
// Factory rather than an Index because it queries in both directions and
// needs one index per side.
type Factory func(candidates []geo.Coordinate) Index

// Linear is the brute-force index: one haversine evaluation per
// candidate, O(n) per query. It is the correctness reference for other
// implementations and entirely adequate into the tens of thousands of
// points.
type Linear struct {
	candidates []geo.Coordinate
}

// NewLinear creates a Linear index. The candidate slice is captured, not
// copied; callers must not mutate it while the index is in use.
func NewLinear(candidates []geo.Coordinate) *Linear {
	return &Linear{candidates: candidates}
}

// Nearest scans every candidate and keeps the minimum. The strict <
// comparison makes the first candidate at the minimum distance win.
func (ix *Linear) Nearest(q geo.Coordinate) Record {
	rec := Record{Query: q, Meters: math.Inf(1), Index: -1}
	for i := range ix.candidates {
		if d := geo.Distance(q, ix.candidates[i]); d < rec.Meters {
			c := ix.candidates[i]
			rec.Nearest = &c
			rec.Meters = d
			rec.Index = i
		}
	}
	return rec
}
