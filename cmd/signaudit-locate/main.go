// Command signaudit-locate projects a detection CSV onto the ground and
// writes the resulting coordinates as CSV.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sentinelmap/signaudit/internal/config"
	"github.com/sentinelmap/signaudit/internal/ingest"
	"github.com/sentinelmap/signaudit/internal/locate"
)

var (
	detectionsPath = flag.String("detections", "", "Detection CSV file (required)")
	configPath     = flag.String("config", "", "Tuning config JSON (optional)")
	outPath        = flag.String("out", "", "Output CSV path (default stdout)")
)

func main() {
	flag.Parse()

	if *detectionsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	tuning := config.EmptyTuning()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuning(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	rows, err := ingest.NewReader(*detectionsPath).ReadAll()
	if err != nil {
		log.Fatalf("failed to read detections: %v", err)
	}

	locator, err := locate.NewLocator(tuning.CameraConfig())
	if err != nil {
		log.Fatalf("invalid camera config: %v", err)
	}
	objects, err := locator.LocateAll(ingest.Samples(rows, tuning.GetImageHeight()))
	if err != nil {
		log.Fatalf("failed to locate detections: %v", err)
	}
	if skipped := len(rows) - len(objects); skipped > 0 {
		log.Printf("skipped %d detections at or above the horizon", skipped)
	}

	out := os.Stdout
	if *outPath != "" {
		out, err = os.Create(*outPath)
		if err != nil {
			log.Fatalf("failed to create output file: %v", err)
		}
		defer out.Close()
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"index", "lat", "lon", "ground_distance_m"}); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
	for _, obj := range objects {
		record := []string{
			fmt.Sprintf("%d", obj.Index),
			fmt.Sprintf("%.7f", obj.Position.Lat),
			fmt.Sprintf("%.7f", obj.Position.Lon),
			fmt.Sprintf("%.2f", obj.GroundDistance),
		}
		if err := w.Write(record); err != nil {
			log.Fatalf("failed to write output: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("failed to flush output: %v", err)
	}
}
