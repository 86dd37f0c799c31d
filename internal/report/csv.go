// Package report renders reconciliation results as CSV, summary
// statistics, and charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/reconcile"
)

var csvHeader = []string{
	"status",
	"detected_lat", "detected_lon",
	"ground_truth_lat", "ground_truth_lon",
	"distance_m",
}

// WriteCSV writes every classified match as one CSV row. Coordinates a
// record does not carry (the ground truth of a novel detection, the
// detection of an absent sign) are written as N/A, as is a non-finite
// distance.
func WriteCSV(w io.Writer, res *reconcile.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, bucket := range [][]reconcile.Match{res.Confirmed, res.Novel, res.Absent} {
		for _, m := range bucket {
			row := []string{
				string(m.Classification),
				csvCoord(m.Detection, latOf),
				csvCoord(m.Detection, lonOf),
				csvCoord(m.GroundTruth, latOf),
				csvCoord(m.GroundTruth, lonOf),
				csvDistance(m.DistanceMeters),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the result to path, creating or truncating it.
func WriteCSVFile(path string, res *reconcile.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func latOf(c *geo.Coordinate) float64 { return c.Lat }
func lonOf(c *geo.Coordinate) float64 { return c.Lon }

func csvCoord(c *geo.Coordinate, field func(*geo.Coordinate) float64) string {
	if c == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.7f", field(c))
}

func csvDistance(meters float64) string {
	if math.IsInf(meters, 0) || math.IsNaN(meters) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", meters)
}
