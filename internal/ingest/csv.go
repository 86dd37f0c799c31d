// Package ingest streams detection rows out of the CSV files the
// perception stage writes, one row per detected sign.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/sentinelmap/signaudit/internal/camera"
	"github.com/sentinelmap/signaudit/internal/locate"
)

// Row is one detection as written by the detector: pixel centroid (or
// bounding box), confidence, class, and the vehicle fix at that frame.
type Row struct {
	FrameNumber  int     `json:"frame_number"`
	TimestampSec float64 `json:"timestamp_sec"`
	PixelU       float64 `json:"pixel_u"`
	PixelV       float64 `json:"pixel_v"`
	Confidence   float64 `json:"confidence"`
	ClassName    string  `json:"class_name"`
	VehicleLat   float64 `json:"vehicle_lat"`
	VehicleLon   float64 `json:"vehicle_lon"`
	Heading      float64 `json:"heading"`
}

// Sample converts the row into a locator sample. The image height comes
// from configuration, not the CSV: the detector records only pixel
// positions.
func (r Row) Sample(imageHeight float64) locate.Sample {
	return locate.Sample{
		Pose:        locate.Pose{Lat: r.VehicleLat, Lon: r.VehicleLon, Heading: r.Heading},
		Measurement: camera.Measurement{Row: r.PixelV, ImageHeight: imageHeight},
	}
}

// Samples converts rows in order.
func Samples(rows []Row, imageHeight float64) []locate.Sample {
	samples := make([]locate.Sample, len(rows))
	for i, r := range rows {
		samples[i] = r.Sample(imageHeight)
	}
	return samples
}

// Reader reads detection CSVs. Columns are located by header name, so
// column order does not matter. Either u/v centroid columns or
// bbox_x1..bbox_y2 corners are accepted; with corners, the centroid is
// computed.
type Reader struct {
	path string
}

// NewReader creates a reader for the given CSV file.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// ReadAll reads every row. Malformed rows are skipped with a log line
// rather than aborting the file: one corrupt frame should not discard a
// whole drive's detections.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	err := r.read(func(row Row) { rows = append(rows, row) })
	return rows, err
}

// Stream sends rows to out as they are parsed. The channel is not closed;
// that is the caller's job once Stream returns.
func (r *Reader) Stream(out chan<- Row) error {
	return r.read(func(row Row) { out <- row })
}

func (r *Reader) read(emit func(Row)) error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open detections CSV: %w", err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"frame_number", "vehicle_lat", "vehicle_lon", "heading"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("detections CSV missing column %q", required)
		}
	}
	_, hasUV := cols["v"]
	_, hasBBox := cols["bbox_y1"]
	if !hasUV && !hasBBox {
		return fmt.Errorf("detections CSV needs either u/v or bbox_x1..bbox_y2 columns")
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("detections CSV line %d: %v (skipped)", line, err)
			continue
		}
		row, err := parseRow(record, cols)
		if err != nil {
			log.Printf("detections CSV line %d: %v (skipped)", line, err)
			continue
		}
		emit(row)
	}
	return nil
}

func parseRow(record []string, cols map[string]int) (Row, error) {
	var row Row
	var err error

	field := func(name string) (string, bool) {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return "", false
		}
		return record[idx], true
	}
	parseFloat := func(name string) (float64, error) {
		s, ok := field(name)
		if !ok {
			return 0, fmt.Errorf("missing %s", name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", name, err)
		}
		return v, nil
	}

	frameStr, _ := field("frame_number")
	if row.FrameNumber, err = strconv.Atoi(frameStr); err != nil {
		return Row{}, fmt.Errorf("invalid frame_number: %w", err)
	}

	if _, ok := field("timestamp_sec"); ok {
		if row.TimestampSec, err = parseFloat("timestamp_sec"); err != nil {
			return Row{}, err
		}
	}

	if _, ok := field("v"); ok {
		if row.PixelU, err = parseFloat("u"); err != nil {
			return Row{}, err
		}
		if row.PixelV, err = parseFloat("v"); err != nil {
			return Row{}, err
		}
	} else {
		// Centroid from bounding-box corners.
		x1, err := parseFloat("bbox_x1")
		if err != nil {
			return Row{}, err
		}
		y1, err := parseFloat("bbox_y1")
		if err != nil {
			return Row{}, err
		}
		x2, err := parseFloat("bbox_x2")
		if err != nil {
			return Row{}, err
		}
		y2, err := parseFloat("bbox_y2")
		if err != nil {
			return Row{}, err
		}
		row.PixelU = (x1 + x2) / 2
		row.PixelV = (y1 + y2) / 2
	}

	if _, ok := field("confidence"); ok {
		if row.Confidence, err = parseFloat("confidence"); err != nil {
			return Row{}, err
		}
	}
	if s, ok := field("class_name"); ok {
		row.ClassName = s
	}

	if row.VehicleLat, err = parseFloat("vehicle_lat"); err != nil {
		return Row{}, err
	}
	if row.VehicleLon, err = parseFloat("vehicle_lon"); err != nil {
		return Row{}, err
	}
	if row.Heading, err = parseFloat("heading"); err != nil {
		return Row{}, err
	}

	return row, nil
}
