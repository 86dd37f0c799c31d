// Command signaudit-reconcile runs a full survey audit from the command
// line: it loads a detection CSV and an OSM ground-truth extract,
// projects each detection onto the ground, classifies the results, and
// writes CSV, chart, and histogram outputs.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sentinelmap/signaudit/internal/config"
	"github.com/sentinelmap/signaudit/internal/db"
	"github.com/sentinelmap/signaudit/internal/ingest"
	"github.com/sentinelmap/signaudit/internal/locate"
	"github.com/sentinelmap/signaudit/internal/osm"
	"github.com/sentinelmap/signaudit/internal/publish"
	"github.com/sentinelmap/signaudit/internal/reconcile"
	"github.com/sentinelmap/signaudit/internal/report"
)

var (
	detectionsPath = flag.String("detections", "", "Detection CSV file (required)")
	osmPath        = flag.String("osm", "", "OSM XML ground-truth file (required)")
	tagKey         = flag.String("tag-key", "highway", "OSM tag key to filter nodes on")
	tagValue       = flag.String("tag-value", "stop", "OSM tag value to filter nodes on (empty for any)")
	configPath     = flag.String("config", "", "Tuning config JSON (optional)")
	outCSV         = flag.String("out-csv", "results.csv", "Output CSV path")
	outChart       = flag.String("out-chart", "", "Output HTML scatter chart path (optional)")
	outHist        = flag.String("out-hist", "", "Output PNG distance histogram path (optional)")
	dbFile         = flag.String("db", "", "SQLite database to persist the run (optional)")
	natsURL        = flag.String("nats", "", "NATS server URL to publish the run event (optional)")
)

func main() {
	flag.Parse()

	if *detectionsPath == "" || *osmPath == "" {
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

	var (
		rows  []ingest.Row
		nodes []osm.Node
	)
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		rows, err = ingest.NewReader(*detectionsPath).ReadAll()
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = osm.ParseFile(*osmPath, *tagKey, *tagValue)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("failed to load inputs: %v", err)
	}
	log.Printf("loaded %d detection rows, %d ground-truth nodes", len(rows), len(nodes))

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

	detections := locate.Coordinates(objects)
	groundTruth := osm.Coordinates(nodes)

	res, err := reconcile.Reconcile(detections, groundTruth, tuning.ReconcileParams())
	if err != nil {
		log.Fatalf("reconciliation failed: %v", err)
	}

	confirmed, novel, absent := res.Counts()
	log.Printf("confirmed=%d novel=%d absent=%d", confirmed, novel, absent)

	summary := report.Summarize(res)
	if summary.Count > 0 {
		log.Printf("distance mean=%.2fm median=%.2fm p90=%.2fm max=%.2fm",
			summary.MeanMeters, summary.MedianMeters, summary.P90Meters, summary.MaxMeters)
	}

	if err := report.WriteCSVFile(*outCSV, res); err != nil {
		log.Fatalf("failed to write CSV: %v", err)
	}
	log.Printf("wrote %s", *outCSV)

	if *outChart != "" {
		f, err := os.Create(*outChart)
		if err != nil {
			log.Fatalf("failed to create chart file: %v", err)
		}
		if err := report.RenderScatter(f, res, "Survey Audit"); err != nil {
			log.Fatalf("failed to render chart: %v", err)
		}
		f.Close()
		log.Printf("wrote %s", *outChart)
	}

	if *outHist != "" {
		if err := report.SaveHistogram(*outHist, res, 20); err != nil {
			log.Printf("skipping histogram: %v", err)
		} else {
			log.Printf("wrote %s", *outHist)
		}
	}

	runID := ""
	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		runID, err = database.InsertRun(res, tuning.ReconcileParams(), len(detections), len(groundTruth))
		if err != nil {
			log.Fatalf("failed to persist run: %v", err)
		}
		log.Printf("persisted run %s", runID)
	}

	if *natsURL != "" {
		pub, err := publish.NewPublisher(*natsURL)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer pub.Close()
		if err := pub.PublishRun(runID, res, len(detections), len(groundTruth)); err != nil {
			log.Fatalf("failed to publish run event: %v", err)
		}
		log.Printf("published run event to %s", *natsURL)
	}
}
