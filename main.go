package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sentinelmap/signaudit/internal/api"
	"github.com/sentinelmap/signaudit/internal/config"
	"github.com/sentinelmap/signaudit/internal/db"
	"github.com/sentinelmap/signaudit/internal/osm"
	"github.com/sentinelmap/signaudit/internal/units"
	"github.com/sentinelmap/signaudit/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbFile      = flag.String("db", "signaudit.db", "SQLite database path")
	configPath  = flag.String("config", "", "Tuning config JSON (optional)")
	unitsFlag   = flag.String("units", units.M, "Default distance units (m, km, ft, mi)")
	importOSM   = flag.String("import-osm", "", "OSM XML file to import as ground truth, then exit")
	osmTagKey   = flag.String("osm-tag-key", "highway", "OSM tag key to filter nodes on")
	osmTagValue = flag.String("osm-tag-value", "stop", "OSM tag value to filter nodes on (empty for any)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("signaudit %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("invalid units %q, valid units: %s", *unitsFlag, units.GetValidUnitsString())
	}

	tuning := config.EmptyTuning()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuning(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	if *importOSM != "" {
		nodes, err := osm.ParseFile(*importOSM, *osmTagKey, *osmTagValue)
		if err != nil {
			log.Fatalf("failed to parse OSM file: %v", err)
		}
		if err := database.ReplaceGroundTruth(nodes); err != nil {
			log.Fatalf("failed to import ground truth: %v", err)
		}
		log.Printf("imported %d ground-truth nodes from %s", len(nodes), *importOSM)
		return
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, tuning, *unitsFlag).ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	os.Exit(0)
}
