package db

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/reconcile"
)

// RunSummary describes one stored reconciliation run.
type RunSummary struct {
	RunID                  string    `json:"run_id"`
	CreatedAt              time.Time `json:"created_at"`
	VerifyThresholdMeters  float64   `json:"verify_threshold_meters"`
	MissingThresholdMeters float64   `json:"missing_threshold_meters"`
	StrictCoverage         bool      `json:"strict_coverage"`
	DetectionCount         int       `json:"detection_count"`
	GroundTruthCount       int       `json:"ground_truth_count"`
	ConfirmedCount         int       `json:"confirmed_count"`
	NovelCount             int       `json:"novel_count"`
	AbsentCount            int       `json:"absent_count"`
}

// InsertRun stores a reconciliation result and its parameters, returning
// the generated run ID. Non-finite distances (matches against an empty
// opposing list) are stored as NULL.
func (db *DB) InsertRun(res *reconcile.Result, p reconcile.Params, detectionCount, groundTruthCount int) (string, error) {
	runID := uuid.NewString()
	confirmed, novel, absent := res.Counts()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			run_id, verify_threshold_m, missing_threshold_m, strict_coverage,
			detection_count, ground_truth_count,
			confirmed_count, novel_count, absent_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, p.VerifyThresholdMeters, p.MissingThresholdMeters, p.StrictCoverage,
		detectionCount, groundTruthCount, confirmed, novel, absent,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO match_records (
			run_id, classification, det_lat, det_lon, gt_lat, gt_lon,
			distance_m, det_index, gt_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, bucket := range [][]reconcile.Match{res.Confirmed, res.Novel, res.Absent} {
		for _, m := range bucket {
			if _, err := stmt.Exec(
				runID, string(m.Classification),
				coordLat(m.Detection), coordLon(m.Detection),
				coordLat(m.GroundTruth), coordLon(m.GroundTruth),
				nullableDistance(m.DistanceMeters),
				m.DetectionIndex, m.GroundTruthIndex,
			); err != nil {
				return "", fmt.Errorf("insert match record: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT run_id, created_at, verify_threshold_m, missing_threshold_m,
		       strict_coverage, detection_count, ground_truth_count,
		       confirmed_count, novel_count, absent_count
		FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunID, &r.CreatedAt, &r.VerifyThresholdMeters, &r.MissingThresholdMeters,
			&r.StrictCoverage, &r.DetectionCount, &r.GroundTruthCount,
			&r.ConfirmedCount, &r.NovelCount, &r.AbsentCount,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run summary. Returns sql.ErrNoRows when the run does
// not exist.
func (db *DB) GetRun(runID string) (*RunSummary, error) {
	var r RunSummary
	err := db.QueryRow(`
		SELECT run_id, created_at, verify_threshold_m, missing_threshold_m,
		       strict_coverage, detection_count, ground_truth_count,
		       confirmed_count, novel_count, absent_count
		FROM runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.CreatedAt, &r.VerifyThresholdMeters, &r.MissingThresholdMeters,
		&r.StrictCoverage, &r.DetectionCount, &r.GroundTruthCount,
		&r.ConfirmedCount, &r.NovelCount, &r.AbsentCount,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunRecords rebuilds the classified match records of a run, grouped
// back into a Result. NULL distances come back as +Inf, matching the
// in-memory representation for empty opposing lists.
func (db *DB) GetRunRecords(runID string) (*reconcile.Result, error) {
	rows, err := db.Query(`
		SELECT classification, det_lat, det_lon, gt_lat, gt_lon,
		       distance_m, det_index, gt_index
		FROM match_records WHERE run_id = ? ORDER BY record_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query match records: %w", err)
	}
	defer rows.Close()

	res := &reconcile.Result{}
	for rows.Next() {
		var (
			class             string
			detLat, detLon    sql.NullFloat64
			gtLat, gtLon      sql.NullFloat64
			distance          sql.NullFloat64
			detIndex, gtIndex int
		)
		if err := rows.Scan(&class, &detLat, &detLon, &gtLat, &gtLon, &distance, &detIndex, &gtIndex); err != nil {
			return nil, fmt.Errorf("scan match record: %w", err)
		}

		m := reconcile.Match{
			Classification:   reconcile.Classification(class),
			Detection:        coordFromNullable(detLat, detLon),
			GroundTruth:      coordFromNullable(gtLat, gtLon),
			DistanceMeters:   math.Inf(1),
			DetectionIndex:   detIndex,
			GroundTruthIndex: gtIndex,
		}
		if distance.Valid {
			m.DistanceMeters = distance.Float64
		}

		switch m.Classification {
		case reconcile.Confirmed:
			res.Confirmed = append(res.Confirmed, m)
		case reconcile.Novel:
			res.Novel = append(res.Novel, m)
		case reconcile.Absent:
			res.Absent = append(res.Absent, m)
		default:
			return nil, fmt.Errorf("unknown classification %q in run %s", class, runID)
		}
	}
	return res, rows.Err()
}

func coordLat(c *geo.Coordinate) any {
	if c == nil {
		return nil
	}
	return c.Lat
}

func coordLon(c *geo.Coordinate) any {
	if c == nil {
		return nil
	}
	return c.Lon
}

func coordFromNullable(lat, lon sql.NullFloat64) *geo.Coordinate {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &geo.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
}

func nullableDistance(meters float64) any {
	if math.IsInf(meters, 0) || math.IsNaN(meters) {
		return nil
	}
	return meters
}
