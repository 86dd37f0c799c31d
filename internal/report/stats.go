package report

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/sentinelmap/signaudit/internal/reconcile"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the nearest-neighbor distances of a run. Only
// finite distances participate; records matched against an empty
// opposing list are excluded.
type Summary struct {
	Count          int     `json:"count"`
	MeanMeters     float64 `json:"mean_meters"`
	MedianMeters   float64 `json:"median_meters"`
	StdDevMeters   float64 `json:"std_dev_meters"`
	MinMeters      float64 `json:"min_meters"`
	MaxMeters      float64 `json:"max_meters"`
	P90Meters      float64 `json:"p90_meters"`
	ConfirmedCount int     `json:"confirmed_count"`
	NovelCount     int     `json:"novel_count"`
	AbsentCount    int     `json:"absent_count"`
}

// Summarize computes distance statistics over every classified record
// of a result. A result with no finite distances yields a zero-count
// summary with NaN statistics.
func Summarize(res *reconcile.Result) Summary {
	confirmed, novel, absent := res.Counts()
	s := Summary{
		ConfirmedCount: confirmed,
		NovelCount:     novel,
		AbsentCount:    absent,
	}

	distances := finiteDistances(res)
	s.Count = len(distances)
	if len(distances) == 0 {
		s.MeanMeters = math.NaN()
		s.MedianMeters = math.NaN()
		s.StdDevMeters = math.NaN()
		s.MinMeters = math.NaN()
		s.MaxMeters = math.NaN()
		s.P90Meters = math.NaN()
		return s
	}

	sort.Float64s(distances)
	s.MeanMeters = stat.Mean(distances, nil)
	s.MedianMeters = stat.Quantile(0.5, stat.Empirical, distances, nil)
	s.StdDevMeters = stat.StdDev(distances, nil)
	s.MinMeters = distances[0]
	s.MaxMeters = distances[len(distances)-1]
	s.P90Meters = stat.Quantile(0.9, stat.Empirical, distances, nil)
	return s
}

// MarshalJSON encodes NaN statistics (an empty sample) as null, which
// encoding/json cannot represent as a float.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	nullable := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		alias
		MeanMeters   *float64 `json:"mean_meters"`
		MedianMeters *float64 `json:"median_meters"`
		StdDevMeters *float64 `json:"std_dev_meters"`
		MinMeters    *float64 `json:"min_meters"`
		MaxMeters    *float64 `json:"max_meters"`
		P90Meters    *float64 `json:"p90_meters"`
	}{
		alias:        alias(s),
		MeanMeters:   nullable(s.MeanMeters),
		MedianMeters: nullable(s.MedianMeters),
		StdDevMeters: nullable(s.StdDevMeters),
		MinMeters:    nullable(s.MinMeters),
		MaxMeters:    nullable(s.MaxMeters),
		P90Meters:    nullable(s.P90Meters),
	})
}

func finiteDistances(res *reconcile.Result) []float64 {
	var out []float64
	for _, bucket := range [][]reconcile.Match{res.Confirmed, res.Novel, res.Absent} {
		for _, m := range bucket {
			if !math.IsInf(m.DistanceMeters, 0) && !math.IsNaN(m.DistanceMeters) {
				out = append(out, m.DistanceMeters)
			}
		}
	}
	return out
}
