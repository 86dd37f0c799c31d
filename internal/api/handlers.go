package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/sentinelmap/signaudit/internal/camera"
	"github.com/sentinelmap/signaudit/internal/db"
	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/httputil"
	"github.com/sentinelmap/signaudit/internal/locate"
	"github.com/sentinelmap/signaudit/internal/reconcile"
	"github.com/sentinelmap/signaudit/internal/report"
	"github.com/sentinelmap/signaudit/internal/units"
)

type locateRequest struct {
	Samples []locateSample `json:"samples"`

	// Optional camera override; nil uses the configured geometry.
	Camera *cameraJSON `json:"camera,omitempty"`
}

type cameraJSON struct {
	HeightMeters       float64 `json:"height_meters"`
	VerticalFOVDegrees float64 `json:"vertical_fov_degrees"`
	HorizonRow         float64 `json:"horizon_row,omitempty"`
}

type locateSample struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Heading     float64 `json:"heading"`
	Row         float64 `json:"row"`
	ImageHeight float64 `json:"image_height,omitempty"`
}

type locatedObject struct {
	Index          int     `json:"index"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	GroundDistance float64 `json:"ground_distance"`
}

type locateResponse struct {
	Objects      []locatedObject `json:"objects"`
	SampleCount  int             `json:"sample_count"`
	AboveHorizon int             `json:"above_horizon"`
	Units        string          `json:"units"`
}

// locateObjects projects pixel detections onto the ground and returns
// their coordinates. Samples whose pixel row sits at or above the
// horizon produce no object and are counted separately.
func (s *Server) locateObjects(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Samples) == 0 {
		httputil.WriteJSONError(w, http.StatusBadRequest, "no samples provided")
		return
	}

	targetUnits, ok := s.requestUnits(w, r)
	if !ok {
		return
	}

	cameraCfg := s.tuning.CameraConfig()
	if req.Camera != nil {
		cameraCfg = camera.Config{
			HeightMeters:       req.Camera.HeightMeters,
			VerticalFOVDegrees: req.Camera.VerticalFOVDegrees,
			HorizonRow:         req.Camera.HorizonRow,
		}
	}
	locator, err := locate.NewLocator(cameraCfg)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("camera config: %v", err))
		return
	}

	samples := make([]locate.Sample, len(req.Samples))
	for i, in := range req.Samples {
		imageHeight := in.ImageHeight
		if imageHeight == 0 {
			imageHeight = s.tuning.GetImageHeight()
		}
		samples[i] = locate.Sample{
			Pose:        locate.Pose{Lat: in.Lat, Lon: in.Lon, Heading: in.Heading},
			Measurement: camera.Measurement{Row: in.Row, ImageHeight: imageHeight},
		}
	}

	objects, err := locator.LocateAll(samples)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("locate: %v", err))
		return
	}

	resp := locateResponse{
		Objects:      make([]locatedObject, len(objects)),
		SampleCount:  len(samples),
		AboveHorizon: len(samples) - len(objects),
		Units:        targetUnits,
	}
	for i, obj := range objects {
		resp.Objects[i] = locatedObject{
			Index:          obj.Index,
			Lat:            obj.Position.Lat,
			Lon:            obj.Position.Lon,
			GroundDistance: units.ConvertDistance(obj.GroundDistance, targetUnits),
		}
	}
	httputil.WriteJSONOK(w, resp)
}

type reconcileRequest struct {
	Detections  []coordinateJSON `json:"detections"`
	GroundTruth []coordinateJSON `json:"ground_truth,omitempty"`

	// Optional threshold overrides; zero means use the configured value.
	VerifyThresholdMeters  float64 `json:"verify_threshold_meters,omitempty"`
	MissingThresholdMeters float64 `json:"missing_threshold_meters,omitempty"`
	StrictCoverage         *bool   `json:"strict_coverage,omitempty"`
}

type coordinateJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type reconcileResponse struct {
	RunID   string            `json:"run_id"`
	Result  *reconcile.Result `json:"result"`
	Summary report.Summary    `json:"summary"`
	Units   string            `json:"units"`
}

// reconcileRun classifies detections against ground truth and persists
// the run. When the request omits ground truth, the stored map import is
// used instead.
func (s *Server) reconcileRun(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	targetUnits, ok := s.requestUnits(w, r)
	if !ok {
		return
	}

	detections := toCoordinates(req.Detections)
	groundTruth := toCoordinates(req.GroundTruth)
	if req.GroundTruth == nil {
		nodes, err := s.db.LoadGroundTruth()
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("load ground truth: %v", err))
			return
		}
		groundTruth = make([]geo.Coordinate, len(nodes))
		for i, n := range nodes {
			groundTruth[i] = geo.Coordinate{Lat: n.Lat, Lon: n.Lon}
		}
	}

	params := s.tuning.ReconcileParams()
	if req.VerifyThresholdMeters > 0 {
		params.VerifyThresholdMeters = req.VerifyThresholdMeters
	}
	if req.MissingThresholdMeters > 0 {
		params.MissingThresholdMeters = req.MissingThresholdMeters
	}
	if req.StrictCoverage != nil {
		params.StrictCoverage = *req.StrictCoverage
	}

	res, err := reconcile.Reconcile(detections, groundTruth, params)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("reconcile: %v", err))
		return
	}

	runID, err := s.db.InsertRun(res, params, len(detections), len(groundTruth))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("persist run: %v", err))
		return
	}

	summary := report.Summarize(res)
	convertResultDistances(res, targetUnits)
	convertSummaryDistances(&summary, targetUnits)

	httputil.WriteJSONOK(w, reconcileResponse{
		RunID:   runID,
		Result:  res,
		Summary: summary,
		Units:   targetUnits,
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.RunSummary{}
	}
	httputil.WriteJSONOK(w, runs)
}

type runDetailResponse struct {
	Run     *db.RunSummary    `json:"run"`
	Result  *reconcile.Result `json:"result"`
	Summary report.Summary    `json:"summary"`
	Units   string            `json:"units"`
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	targetUnits, ok := s.requestUnits(w, r)
	if !ok {
		return
	}

	run, err := s.db.GetRun(runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run: %v", err))
		return
	}

	res, err := s.db.GetRunRecords(runID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run records: %v", err))
		return
	}

	summary := report.Summarize(res)
	convertResultDistances(res, targetUnits)
	convertSummaryDistances(&summary, targetUnits)

	httputil.WriteJSONOK(w, runDetailResponse{
		Run:     run,
		Result:  res,
		Summary: summary,
		Units:   targetUnits,
	})
}

func (s *Server) showRunChart(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if _, err := s.db.GetRun(runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.WriteJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run: %v", err))
		return
	}

	res, err := s.db.GetRunRecords(runID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run records: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderScatter(w, res, "Run "+runID); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, "render chart failed")
	}
}

// requestUnits resolves the effective distance units for a request,
// writing a 400 and returning ok=false on an unknown unit.
func (s *Server) requestUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	target := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		target = u
	}
	if !units.IsValid(target) {
		httputil.WriteJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid units %q, valid units: %s", target, units.GetValidUnitsString()))
		return "", false
	}
	return target, true
}

func toCoordinates(in []coordinateJSON) []geo.Coordinate {
	out := make([]geo.Coordinate, len(in))
	for i, c := range in {
		out[i] = geo.Coordinate{Lat: c.Lat, Lon: c.Lon}
	}
	return out
}

func convertResultDistances(res *reconcile.Result, targetUnits string) {
	for _, bucket := range [][]reconcile.Match{res.Confirmed, res.Novel, res.Absent} {
		for i := range bucket {
			if !math.IsInf(bucket[i].DistanceMeters, 0) {
				bucket[i].DistanceMeters = units.ConvertDistance(bucket[i].DistanceMeters, targetUnits)
			}
		}
	}
}

func convertSummaryDistances(s *report.Summary, targetUnits string) {
	s.MeanMeters = units.ConvertDistance(s.MeanMeters, targetUnits)
	s.MedianMeters = units.ConvertDistance(s.MedianMeters, targetUnits)
	s.StdDevMeters = units.ConvertDistance(s.StdDevMeters, targetUnits)
	s.MinMeters = units.ConvertDistance(s.MinMeters, targetUnits)
	s.MaxMeters = units.ConvertDistance(s.MaxMeters, targetUnits)
	s.P90Meters = units.ConvertDistance(s.P90Meters, targetUnits)
}
