package reconcile

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/match"
)

// Survey fixture: four detections against four mapped signals around the
// same San Francisco block. Three detections sit within a few meters of a
// mapped point, one detection is ~55 m from anything, and one mapped
// point has no detection within 111 m.
func surveyFixture() (detections, groundTruth []geo.Coordinate) {
	detections = []geo.Coordinate{
		{Lat: 37.7749, Lon: -122.4194},
		{Lat: 37.7750, Lon: -122.4195},
		{Lat: 37.7755, Lon: -122.4200},
		{Lat: 37.7760, Lon: -122.4205},
	}
	groundTruth = []geo.Coordinate{
		{Lat: 37.77492, Lon: -122.41938},
		{Lat: 37.77501, Lon: -122.41952},
		{Lat: 37.77595, Lon: -122.42048},
		{Lat: 37.7770, Lon: -122.4210},
	}
	return detections, groundTruth
}

func surveyParams() Params {
	return Params{VerifyThresholdMeters: 10, MissingThresholdMeters: 15}
}

func TestReconcile_SurveyFixture(t *testing.T) {
	detections, groundTruth := surveyFixture()

	res, err := Reconcile(detections, groundTruth, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	confirmed, novel, absent := res.Counts()
	if confirmed != 3 || novel != 1 || absent != 1 {
		t.Fatalf("counts = %d confirmed, %d novel, %d absent; want 3/1/1", confirmed, novel, absent)
	}

	if res.Novel[0].DetectionIndex != 2 {
		t.Errorf("novel detection index = %d, want 2", res.Novel[0].DetectionIndex)
	}
	if res.Novel[0].DistanceMeters < 10 {
		t.Errorf("novel distance = %v m, want beyond verify threshold", res.Novel[0].DistanceMeters)
	}

	if res.Absent[0].GroundTruthIndex != 3 {
		t.Errorf("absent ground-truth index = %d, want 3", res.Absent[0].GroundTruthIndex)
	}
	if res.Absent[0].DistanceMeters < 15 {
		t.Errorf("absent distance = %v m, want beyond missing threshold", res.Absent[0].DistanceMeters)
	}

	for _, m := range res.Confirmed {
		if m.DistanceMeters >= 10 {
			t.Errorf("confirmed match %d at %v m, want < 10 m", m.DetectionIndex, m.DistanceMeters)
		}
		if m.GroundTruth == nil || m.Detection == nil {
			t.Errorf("confirmed match %d missing a side: %+v", m.DetectionIndex, m)
		}
	}

	wantCovered := []bool{true, true, true, false}
	if diff := cmp.Diff(wantCovered, res.Covered); diff != "" {
		t.Errorf("covered flags mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	detections, groundTruth := surveyFixture()

	first, err := Reconcile(detections, groundTruth, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	second, err := Reconcile(detections, groundTruth, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("identical inputs gave different results (-first +second):\n%s", diff)
	}
}

func TestReconcile_EmptyGroundTruth(t *testing.T) {
	detections, _ := surveyFixture()

	res, err := Reconcile(detections, nil, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	confirmed, novel, absent := res.Counts()
	if confirmed != 0 || novel != len(detections) || absent != 0 {
		t.Fatalf("counts = %d/%d/%d, want every detection novel", confirmed, novel, absent)
	}
	for _, m := range res.Novel {
		if m.GroundTruth != nil || m.GroundTruthIndex != -1 {
			t.Errorf("novel match against empty ground truth carries a counterpart: %+v", m)
		}
		if !math.IsInf(m.DistanceMeters, 1) {
			t.Errorf("distance = %v, want +Inf", m.DistanceMeters)
		}
	}
}

func TestReconcile_EmptyDetections(t *testing.T) {
	_, groundTruth := surveyFixture()

	res, err := Reconcile(nil, groundTruth, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	confirmed, novel, absent := res.Counts()
	if confirmed != 0 || novel != 0 || absent != len(groundTruth) {
		t.Fatalf("counts = %d/%d/%d, want every ground-truth point absent", confirmed, novel, absent)
	}
	for i, m := range res.Absent {
		if m.GroundTruthIndex != i {
			t.Errorf("absent[%d] ground-truth index = %d", i, m.GroundTruthIndex)
		}
		if m.Detection != nil || m.DetectionIndex != -1 {
			t.Errorf("absent match against empty detections carries a counterpart: %+v", m)
		}
	}
}

func TestReconcile_BothEmpty(t *testing.T) {
	res, err := Reconcile(nil, nil, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	confirmed, novel, absent := res.Counts()
	if confirmed != 0 || novel != 0 || absent != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", confirmed, novel, absent)
	}
}

// TestReconcile_IndependentPasses pins the deliberate asymmetry: absence
// is decided by the ground-truth side's own re-query, not by whether the
// detection pass consumed the point. gtB is within nothing's verify reach
// and its nearest detection is beyond the missing threshold, so it is
// absent even though the sole detection was happily confirmed elsewhere.
func TestReconcile_IndependentPasses(t *testing.T) {
	// One detection ~4.4 m from gtA. gtB is ~17 m from the detection, but
	// the detection's nearest is gtA, so gtB gets no confirmation and its
	// re-query finds the detection at ~17 m >= missing threshold.
	detections := []geo.Coordinate{{Lat: 0, Lon: 0}}
	groundTruth := []geo.Coordinate{
		{Lat: 0.00004, Lon: 0},  // ~4.4 m north
		{Lat: -0.00016, Lon: 0}, // ~17.8 m south
	}

	res, err := Reconcile(detections, groundTruth, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	confirmed, novel, absent := res.Counts()
	if confirmed != 1 || novel != 0 || absent != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1 confirmed and 1 absent", confirmed, novel, absent)
	}
	if res.Absent[0].GroundTruthIndex != 1 {
		t.Errorf("absent index = %d, want 1", res.Absent[0].GroundTruthIndex)
	}
}

func TestReconcile_StrictCoverage(t *testing.T) {
	// Both detections confirm gtA at ~4.4 m. With the missing threshold
	// forced below that, the literal policy reports gtA absent despite the
	// confirmations; StrictCoverage suppresses it.
	detections := []geo.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0.00008, Lon: 0},
	}
	groundTruth := []geo.Coordinate{
		{Lat: 0.00004, Lon: 0}, // gtA, between the detections
	}

	p := surveyParams()
	p.MissingThresholdMeters = 2 // force gtA absent under the literal policy

	res, err := Reconcile(detections, groundTruth, p)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Absent) != 1 {
		t.Fatalf("literal policy: absent = %d, want 1", len(res.Absent))
	}

	p.StrictCoverage = true
	res, err = Reconcile(detections, groundTruth, p)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Absent) != 0 {
		t.Fatalf("strict coverage: absent = %d, want 0", len(res.Absent))
	}
	if len(res.Confirmed) != 2 {
		t.Errorf("confirmed = %d, want 2", len(res.Confirmed))
	}
}

func TestReconcile_GapBand(t *testing.T) {
	// A pair 12 m apart with verify=10, missing=15: the detection is
	// novel, but the ground-truth point is not absent. The gap band is
	// accepted behavior.
	detections := []geo.Coordinate{{Lat: 0, Lon: 0}}
	groundTruth := []geo.Coordinate{{Lat: 0.000108, Lon: 0}} // ~12 m

	res, err := Reconcile(detections, groundTruth, surveyParams())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	confirmed, novel, absent := res.Counts()
	if confirmed != 0 || novel != 1 || absent != 0 {
		t.Errorf("counts = %d/%d/%d, want 0/1/0 (gap band)", confirmed, novel, absent)
	}
}

func TestReconcile_GridIndexMatchesLinear(t *testing.T) {
	detections, groundTruth := surveyFixture()

	p := surveyParams()
	want, err := Reconcile(detections, groundTruth, p)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	p.NewIndex = func(c []geo.Coordinate) match.Index { return match.NewGrid(c, 20) }
	got, err := Reconcile(detections, groundTruth, p)
	if err != nil {
		t.Fatalf("Reconcile with grid index: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grid index diverged from linear (-linear +grid):\n%s", diff)
	}
}

func TestReconcile_InvalidInputs(t *testing.T) {
	detections, groundTruth := surveyFixture()

	tests := []struct {
		name string
		dets []geo.Coordinate
		gt   []geo.Coordinate
		p    Params
	}{
		{"zero verify threshold", detections, groundTruth, Params{VerifyThresholdMeters: 0, MissingThresholdMeters: 15}},
		{"NaN missing threshold", detections, groundTruth, Params{VerifyThresholdMeters: 10, MissingThresholdMeters: math.NaN()}},
		{"negative threshold", detections, groundTruth, Params{VerifyThresholdMeters: -5, MissingThresholdMeters: 15}},
		{"bad detection", []geo.Coordinate{{Lat: 95, Lon: 0}}, groundTruth, surveyParams()},
		{"bad ground truth", detections, []geo.Coordinate{{Lat: 0, Lon: 999}}, surveyParams()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Reconcile(tt.dets, tt.gt, tt.p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMatch_MarshalJSON_InfiniteDistance(t *testing.T) {
	m := Match{
		Classification: Novel,
		DistanceMeters: math.Inf(1),
		DetectionIndex: 0, GroundTruthIndex: -1,
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["distance_meters"] != nil {
		t.Errorf("distance_meters = %v, want null", decoded["distance_meters"])
	}
}
