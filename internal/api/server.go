package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/sentinelmap/signaudit/internal/config"
	"github.com/sentinelmap/signaudit/internal/db"
	"github.com/sentinelmap/signaudit/internal/httputil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db     *db.DB
	tuning *config.Tuning
	units  string
}

func NewServer(database *db.DB, tuning *config.Tuning, units string) *Server {
	return &Server{
		db:     database,
		tuning: tuning,
		units:  units,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/locate", s.locateObjects)
	mux.HandleFunc("POST /api/reconcile", s.reconcileRun)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("GET /api/runs/{id}/chart", s.showRunChart)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /healthz", s.healthz)
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"units":                    s.units,
		"verify_threshold_meters":  s.tuning.GetVerifyThresholdMeters(),
		"missing_threshold_meters": s.tuning.GetMissingThresholdMeters(),
		"strict_coverage":          s.tuning.GetStrictCoverage(),
		"camera_height_meters":     s.tuning.GetCameraHeightMeters(),
		"vertical_fov_degrees":     s.tuning.GetVerticalFOVDegrees(),
		"horizon_row":              s.tuning.GetHorizonRow(),
		"image_height":             s.tuning.GetImageHeight(),
		"grid_cell_size_meters":    s.tuning.GetGridCellSizeMeters(),
	})
}
