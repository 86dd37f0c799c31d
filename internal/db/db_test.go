package db

import (
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/osm"
	"github.com/sentinelmap/signaudit/internal/reconcile"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp())
	return database
}

func TestMigrateUp(t *testing.T) {
	database := newTestDB(t)

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	// Re-running against an up-to-date schema is a no-op.
	require.NoError(t, database.MigrateUp())
}

func TestInsertAndGetRun(t *testing.T) {
	database := newTestDB(t)

	res := &reconcile.Result{
		Confirmed: []reconcile.Match{
			{
				Classification:   reconcile.Confirmed,
				Detection:        &geo.Coordinate{Lat: 43.8561, Lon: -79.3370},
				GroundTruth:      &geo.Coordinate{Lat: 43.8562, Lon: -79.3371},
				DistanceMeters:   13.7,
				DetectionIndex:   0,
				GroundTruthIndex: 1,
			},
		},
		Novel: []reconcile.Match{
			{
				Classification:   reconcile.Novel,
				Detection:        &geo.Coordinate{Lat: 43.8600, Lon: -79.3400},
				DistanceMeters:   math.Inf(1),
				DetectionIndex:   1,
				GroundTruthIndex: -1,
			},
		},
		Absent: []reconcile.Match{
			{
				Classification:   reconcile.Absent,
				GroundTruth:      &geo.Coordinate{Lat: 43.8700, Lon: -79.3500},
				DistanceMeters:   412.5,
				DetectionIndex:   0,
				GroundTruthIndex: 0,
			},
		},
	}
	params := reconcile.Params{
		VerifyThresholdMeters:  10,
		MissingThresholdMeters: 15,
		StrictCoverage:         true,
	}

	runID, err := database.InsertRun(res, params, 2, 2)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	summary, err := database.GetRun(runID)
	require.NoError(t, err)
	require.Equal(t, runID, summary.RunID)
	require.Equal(t, 10.0, summary.VerifyThresholdMeters)
	require.Equal(t, 15.0, summary.MissingThresholdMeters)
	require.True(t, summary.StrictCoverage)
	require.Equal(t, 2, summary.DetectionCount)
	require.Equal(t, 2, summary.GroundTruthCount)
	require.Equal(t, 1, summary.ConfirmedCount)
	require.Equal(t, 1, summary.NovelCount)
	require.Equal(t, 1, summary.AbsentCount)
	require.False(t, summary.CreatedAt.IsZero())

	got, err := database.GetRunRecords(runID)
	require.NoError(t, err)
	if diff := cmp.Diff(res, got, cmp.Comparer(floatOrBothInf)); diff != "" {
		t.Errorf("round-tripped records mismatch (-want +got):\n%s", diff)
	}
}

// floatOrBothInf treats two +Inf distances as equal; cmp rejects naive
// float comparison of infinities inside Diff with default options.
func floatOrBothInf(a, b float64) bool {
	if math.IsInf(a, 1) && math.IsInf(b, 1) {
		return true
	}
	return a == b
}

func TestGetRunNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.GetRun("no-such-run")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestListRuns(t *testing.T) {
	database := newTestDB(t)

	params := reconcile.Params{VerifyThresholdMeters: 10, MissingThresholdMeters: 15}
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := database.InsertRun(&reconcile.Result{}, params, 0, 0)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := database.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, r := range runs {
		require.Contains(t, ids, r.RunID)
	}

	limited, err := database.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestGroundTruthRoundTrip(t *testing.T) {
	database := newTestDB(t)

	nodes := []osm.Node{
		{ID: "101", Lat: 43.8561, Lon: -79.3370, Tag: "stop"},
		{ID: "102", Lat: 43.8562, Lon: -79.3371, Tag: "stop"},
		{ID: "103", Lat: 43.8600, Lon: -79.3400, Tag: ""},
	}
	require.NoError(t, database.ReplaceGroundTruth(nodes))

	got, err := database.LoadGroundTruth()
	require.NoError(t, err)
	if diff := cmp.Diff(nodes, got); diff != "" {
		t.Errorf("ground truth mismatch (-want +got):\n%s", diff)
	}

	count, err := database.CountGroundTruth()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// Replace is a full swap, not an append.
	replacement := []osm.Node{{ID: "201", Lat: 43.9000, Lon: -79.4000, Tag: "stop"}}
	require.NoError(t, database.ReplaceGroundTruth(replacement))

	got, err = database.LoadGroundTruth()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "201", got[0].ID)
}

func TestLoadGroundTruthEmpty(t *testing.T) {
	database := newTestDB(t)

	nodes, err := database.LoadGroundTruth()
	require.NoError(t, err)
	require.Empty(t, nodes)
}
