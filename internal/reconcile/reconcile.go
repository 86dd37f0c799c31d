package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/match"
)

// ErrInvalidThreshold reports a threshold that is not a positive finite
// number of meters.
var ErrInvalidThreshold = errors.New("invalid threshold")

// Classification labels one match record in a result.
type Classification string

const (
	// Confirmed: a detection with a ground-truth point inside the verify
	// threshold.
	Confirmed Classification = "confirmed"
	// Novel: a detection with no ground-truth point inside the verify
	// threshold.
	Novel Classification = "novel"
	// Absent: a ground-truth point with no detection inside the missing
	// threshold.
	Absent Classification = "absent"
)

// Match pairs one side of a comparison with its nearest counterpart.
// Depending on the classification, either side's coordinate and index may
// be missing (nil / -1) when the opposing list was empty.
type Match struct {
	Classification   Classification  `json:"classification"`
	Detection        *geo.Coordinate `json:"detection,omitempty"`
	GroundTruth      *geo.Coordinate `json:"ground_truth,omitempty"`
	DistanceMeters   float64         `json:"distance_meters"`
	DetectionIndex   int             `json:"detection_index"`
	GroundTruthIndex int             `json:"ground_truth_index"`
}

// MarshalJSON encodes a non-finite distance (empty opposing list) as
// null, which encoding/json cannot represent as a float.
func (m Match) MarshalJSON() ([]byte, error) {
	type alias Match
	out := struct {
		alias
		DistanceMeters *float64 `json:"distance_meters"`
	}{alias: alias(m)}
	if !math.IsInf(m.DistanceMeters, 0) && !math.IsNaN(m.DistanceMeters) {
		out.DistanceMeters = &m.DistanceMeters
	}
	return json.Marshal(out)
}

// Params controls one reconciliation call. Thresholds are always
// caller-supplied: defaults live in the config layer, never here.
//
// The expected configuration has VerifyThresholdMeters <=
// MissingThresholdMeters. A ground-truth point whose nearest detection
// falls between the two is neither confirmed nor absent; that gap band is
// accepted behavior, not enforced away.
type Params struct {
	VerifyThresholdMeters  float64
	MissingThresholdMeters float64

	// StrictCoverage drops ground-truth points that were matched during
	// the detection pass from the absent list. The default (false) keeps
	// the two passes fully independent: absence is decided purely by the
	// ground-truth side re-query, even for points a detection confirmed.
	StrictCoverage bool

	// NewIndex overrides the nearest-neighbour strategy for both passes.
	// Nil means a linear scan.
	NewIndex match.Factory
}

func (p Params) validate() error {
	for _, th := range []struct {
		name string
		v    float64
	}{
		{"verify", p.VerifyThresholdMeters},
		{"missing", p.MissingThresholdMeters},
	} {
		if math.IsNaN(th.v) || math.IsInf(th.v, 0) || th.v <= 0 {
			return fmt.Errorf("%w: %s threshold %v, want positive finite meters", ErrInvalidThreshold, th.name, th.v)
		}
	}
	return nil
}

// Result is the classified outcome of one reconciliation. Each slice is
// ordered by source index. A result is built fresh per call and never
// mutated afterwards.
type Result struct {
	Confirmed []Match `json:"confirmed"`
	Novel     []Match `json:"novel"`
	Absent    []Match `json:"absent"`

	// Covered[i] reports whether ground-truth point i was matched by some
	// detection during the detection pass. Informational unless
	// StrictCoverage was set.
	Covered []bool `json:"-"`
}

// Counts returns the size of each classification bucket.
func (r *Result) Counts() (confirmed, novel, absent int) {
	return len(r.Confirmed), len(r.Novel), len(r.Absent)
}

// Reconcile classifies detections against ground truth in two independent
// passes.
//
// Detection pass: each detection is matched to its nearest ground-truth
// point; inside the verify threshold it is confirmed (and the ground-truth
// index marked covered), otherwise novel. Ground-truth pass: each
// ground-truth point is matched to its nearest detection over the full
// detection list; at or beyond the missing threshold it is absent.
//
// The asymmetry is deliberate: the ground-truth pass re-queries rather
// than consuming the detection pass's covered flags, so a confirmed
// ground-truth point can still be absent when its own nearest detection
// lies beyond the missing threshold. Params.StrictCoverage switches to
// the stricter policy.
//
// Empty inputs are normal: with no ground truth every detection is novel,
// with no detections every ground-truth point is absent.
func Reconcile(detections, groundTruth []geo.Coordinate, p Params) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := geo.ValidateAll(detections); err != nil {
		return nil, fmt.Errorf("detections: %w", err)
	}
	if err := geo.ValidateAll(groundTruth); err != nil {
		return nil, fmt.Errorf("ground truth: %w", err)
	}

	newIndex := p.NewIndex
	if newIndex == nil {
		newIndex = func(c []geo.Coordinate) match.Index { return match.NewLinear(c) }
	}

	res := &Result{Covered: make([]bool, len(groundTruth))}

	// The passes share no mutable state, so the ground-truth pass runs on
	// its own goroutine while the detection pass runs here.
	var wg sync.WaitGroup
	var absent []Match
	wg.Add(1)
	go func() {
		defer wg.Done()
		detIndex := newIndex(detections)
		for i := range groundTruth {
			rec := detIndex.Nearest(groundTruth[i])
			if rec.Meters < p.MissingThresholdMeters {
				continue
			}
			gt := groundTruth[i]
			absent = append(absent, Match{
				Classification:   Absent,
				Detection:        rec.Nearest,
				GroundTruth:      &gt,
				DistanceMeters:   rec.Meters,
				DetectionIndex:   rec.Index,
				GroundTruthIndex: i,
			})
		}
	}()

	gtIndex := newIndex(groundTruth)
	for i := range detections {
		rec := gtIndex.Nearest(detections[i])
		det := detections[i]
		m := Match{
			Detection:        &det,
			GroundTruth:      rec.Nearest,
			DistanceMeters:   rec.Meters,
			DetectionIndex:   i,
			GroundTruthIndex: rec.Index,
		}
		if rec.Meters < p.VerifyThresholdMeters {
			m.Classification = Confirmed
			res.Covered[rec.Index] = true
			res.Confirmed = append(res.Confirmed, m)
		} else {
			m.Classification = Novel
			res.Novel = append(res.Novel, m)
		}
	}
	wg.Wait()

	if p.StrictCoverage {
		kept := absent[:0]
		for _, m := range absent {
			if !res.Covered[m.GroundTruthIndex] {
				kept = append(kept, m)
			}
		}
		absent = kept
	}
	res.Absent = absent

	return res, nil
}
