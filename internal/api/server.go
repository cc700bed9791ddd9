// Package api exposes the local read API over HTTP. Everything is served
// on the LAN only; there is no auth layer.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agriscan/agriscan-go/internal/config"
	"github.com/agriscan/agriscan-go/internal/diag"
	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/pipeline"
	"github.com/agriscan/agriscan-go/internal/storage"
)

// Server wires the HTTP surface: current state, history, diagnostics,
// preferences, operator events, and Prometheus metrics.
type Server struct {
	pipe      *pipeline.Pipeline
	store     storage.Store
	log       *zap.Logger
	registry  *prometheus.Registry
	prefsPath string

	mu    sync.Mutex
	prefs config.Preferences
}

// NewServer creates the API server.
func NewServer(pipe *pipeline.Pipeline, store storage.Store, prefs config.Preferences, prefsPath string, registry *prometheus.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		pipe:      pipe,
		store:     store,
		log:       log,
		registry:  registry,
		prefsPath: prefsPath,
		prefs:     prefs,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/current", s.getCurrent).Methods("GET")
	r.HandleFunc("/api/series", s.getSeries).Methods("GET")
	r.HandleFunc("/api/events", s.getEvents).Methods("GET")
	r.HandleFunc("/api/calibration", s.getCalibration).Methods("GET")
	r.HandleFunc("/api/outlook", s.getOutlook).Methods("GET")
	r.HandleFunc("/api/diagnostics", s.getDiagnostics).Methods("GET")
	r.HandleFunc("/api/config", s.getConfig).Methods("GET")
	r.HandleFunc("/api/config", s.postConfig).Methods("POST")
	r.HandleFunc("/api/log_event", s.postLogEvent).Methods("POST")
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

type currentResponse struct {
	Timestamp   int64   `json:"timestamp"`
	Theta       float64 `json:"theta"`
	PsiKPa      float64 `json:"psi_kpa"`
	AWmm        float64 `json:"aw_mm"`
	Status      string  `json:"status"`
	Urgency     string  `json:"urgency"`
	Message     string  `json:"message"`
	Confidence  float64 `json:"confidence"`
	ThetaFC     float64 `json:"theta_fc"`
	ThetaRefill float64 `json:"theta_refill"`
	Crop        string  `json:"crop"`
	Stage       string  `json:"stage,omitempty"`
}

func (s *Server) getCurrent(w http.ResponseWriter, r *http.Request) {
	sample, decision, ok := s.pipe.Latest()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no samples yet")
		return
	}
	resp := currentResponse{
		Timestamp:   sample.Timestamp,
		Theta:       sample.Theta,
		PsiKPa:      sample.PsiKPa,
		AWmm:        sample.AWmm,
		Status:      string(sample.Status),
		Urgency:     string(sample.Urgency),
		Message:     decision.Message,
		Confidence:  sample.Confidence,
		ThetaFC:     sample.ThetaFC,
		ThetaRefill: sample.ThetaRefill,
		Crop:        s.pipe.Crop(),
	}
	if stage, ok := s.pipe.Stage(); ok {
		resp.Stage = stage.Name
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// seriesPoint is the fixed two-field row shape of /api/series.
type seriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Theta     float64 `json:"theta"`
}

// getSeries streams the sample range as a JSON array without holding the
// whole result in memory. The store caps the row count.
func (s *Server) getSeries(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.parseRange(w, r)
	if !ok {
		return
	}

	enc := json.NewEncoder(w)
	opened := false
	err := s.store.StreamRange(r.Context(), start, end, func(sm domain.Sample) error {
		if !opened {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("["))
			opened = true
		} else {
			w.Write([]byte(","))
		}
		return enc.Encode(seriesPoint{Timestamp: sm.Timestamp, Theta: sm.Theta})
	})
	if err != nil && !opened {
		s.writeStoreError(w, err)
		return
	}
	if err != nil {
		// Headers are out; log and truncate.
		s.log.Warn("series stream failed", zap.Error(err))
	}
	if !opened {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("["))
	}
	w.Write([]byte("]"))
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	events, err := s.store.EventsInRange(r.Context(), start, end)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

type calibrationResponse struct {
	State       string  `json:"state"`
	StatusLabel string  `json:"status_label"`
	Confidence  float64 `json:"confidence"`
	ThetaFC     float64 `json:"theta_fc"`
	ThetaRefill float64 `json:"theta_refill"`
	NEvents     int     `json:"n_events"`
	Params      string  `json:"params_json"`
}

func (s *Server) getCalibration(w http.ResponseWriter, r *http.Request) {
	snap := s.pipe.CalSnapshot()
	s.writeJSON(w, http.StatusOK, calibrationResponse{
		State:       string(snap.State),
		StatusLabel: diag.StatusLabel(snap.Confidence),
		Confidence:  snap.Confidence,
		ThetaFC:     snap.ThetaFC,
		ThetaRefill: snap.ThetaRefill,
		NEvents:     snap.NEvents,
		Params:      snap.ParamsJSON(),
	})
}

func (s *Server) getOutlook(w http.ResponseWriter, r *http.Request) {
	outlook, ok := s.pipe.ComputeOutlook()
	if !ok {
		s.writeError(w, http.StatusNotFound, "dynamics not fitted yet")
		return
	}
	s.writeJSON(w, http.StatusOK, outlook)
}

func (s *Server) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipe.Diagnostics())
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	prefs := s.prefs
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, prefs)
}

// postConfig updates the operator preferences. Engine knobs are not
// runtime-mutable; crop and root depth changes take effect at next boot.
func (s *Server) postConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := s.prefs
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed preferences body")
		return
	}
	if prefs.RootDepthCm <= 0 {
		s.writeError(w, http.StatusBadRequest, "root_depth_cm must be positive")
		return
	}
	if s.prefsPath != "" {
		if err := config.SavePreferences(s.prefsPath, prefs); err != nil {
			s.log.Error("preferences save failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "could not save preferences")
			return
		}
	}
	s.prefs = prefs
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type logEventRequest struct {
	EventType  string  `json:"event_type"`
	TsStart    int64   `json:"ts_start"`
	TsEnd      int64   `json:"ts_end"`
	DeltaTheta float64 `json:"delta_theta"`
	Note       string  `json:"note"`
}

// postLogEvent records an operator-observed episode, e.g. a manual
// irrigation the probe missed.
func (s *Server) postLogEvent(w http.ResponseWriter, r *http.Request) {
	var req logEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed event body")
		return
	}
	switch domain.EventType(req.EventType) {
	case domain.EventWetting, domain.EventDrainage, domain.EventDrydown:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown event_type")
		return
	}
	if req.TsStart <= 0 {
		req.TsStart = time.Now().Unix()
	}
	if req.TsEnd < req.TsStart {
		req.TsEnd = req.TsStart
	}

	metadata := "{}"
	if req.Note != "" {
		b, _ := json.Marshal(map[string]string{"note": req.Note, "source": "operator"})
		metadata = string(b)
	}
	ev := domain.Event{
		TsStart:    req.TsStart,
		TsEnd:      req.TsEnd,
		EventType:  domain.EventType(req.EventType),
		DeltaTheta: req.DeltaTheta,
		Metadata:   metadata,
	}
	id, err := s.store.WriteEvent(r.Context(), &ev)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	ev.ID = id
	s.writeJSON(w, http.StatusCreated, ev)
}

// parseRange reads start/end query params as epoch seconds. A missing end
// defaults to now; a missing start to 24h before end.
func (s *Server) parseRange(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	q := r.URL.Query()
	end := time.Now().Unix()
	if v := q.Get("end"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "end must be epoch seconds")
			return 0, 0, false
		}
		end = n
	}
	start := end - 86400
	if v := q.Get("start"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "start must be epoch seconds")
			return 0, 0, false
		}
		start = n
	}
	if start > end {
		s.writeError(w, http.StatusBadRequest, "start must not exceed end")
		return 0, 0, false
	}
	return start, end, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if storage.IsBusy(err) {
		s.writeError(w, http.StatusServiceUnavailable, "store busy, retry shortly")
		return
	}
	s.log.Error("store error", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
