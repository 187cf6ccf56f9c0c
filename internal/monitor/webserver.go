// Package monitor serves the operator HTTP interface: status and pose
// inspection, live settings edits, the tracking commands and debug charts.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/db"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/network"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/recorder"
	"github.com/banshee-data/headtrack/internal/security"
	"github.com/banshee-data/headtrack/internal/tracker"
	"github.com/banshee-data/headtrack/internal/version"
)

// maxSettingsBody bounds PUT /api/settings request bodies.
const maxSettingsBody = 1 << 20

// WebServer handles the HTTP interface of the head tracking daemon.
type WebServer struct {
	address  string
	tracker  *tracker.Tracker
	stats    *network.PacketStats
	db       *db.DB
	started  time.Time
	server   *http.Server
	listener string

	// aircraftRoot, when set, bounds the directories /api/aircraft accepts.
	aircraftRoot string
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Tracker *tracker.Tracker

	// Stats and DB are optional.
	Stats *network.PacketStats
	DB    *db.DB

	// Listener describes the tracker input, for the status page.
	Listener string

	// AircraftRoot is the simulator's aircraft folder. Empty accepts any
	// directory.
	AircraftRoot string
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("monitor: tracker is required")
	}
	ws := &WebServer{
		address:  cfg.Address,
		tracker:  cfg.Tracker,
		stats:    cfg.Stats,
		db:       cfg.DB,
		started:  time.Now(),
		listener: cfg.Listener,

		aircraftRoot: cfg.AircraftRoot,
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves HTTP until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/pose", ws.handlePose)
	mux.HandleFunc("/api/settings", ws.handleSettings)
	mux.HandleFunc("/api/settings/save", ws.handleSettingsSave)
	mux.HandleFunc("/api/settings/limit", ws.handleSettingsLimit)
	mux.HandleFunc("/api/toggle", ws.handleToggle)
	mux.HandleFunc("/api/center/head", ws.handleCenterHead)
	mux.HandleFunc("/api/center/sim", ws.handleCenterSim)
	mux.HandleFunc("/api/restart", ws.handleRestart)
	mux.HandleFunc("/api/aircraft", ws.handleAircraft)
	mux.HandleFunc("/charts/pose", ws.handlePoseChart)
	mux.HandleFunc("/plots/pose.png", ws.handlePosePlot)

	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

// allow rejects requests whose method is not one of methods.
func (ws *WebServer) allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "headtrack", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	tracker.Status
	Version  string                 `json:"version"`
	GitSHA   string                 `json:"git_sha"`
	Uptime   string                 `json:"uptime"`
	Listener string                 `json:"listener,omitempty"`
	Packets  *network.StatsSnapshot `json:"packets,omitempty"`
	Jitter   *recorder.Stats        `json:"jitter,omitempty"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodGet) {
		return
	}
	resp := StatusResponse{
		Status:   ws.tracker.Status(),
		Version:  version.Version,
		GitSHA:   version.GitSHA,
		Uptime:   time.Since(ws.started).Round(time.Second).String(),
		Listener: ws.listener,
	}
	if ws.stats != nil {
		snap := ws.stats.Snapshot()
		resp.Packets = &snap
	}
	if rec := ws.tracker.Recorder(); rec != nil {
		st := rec.Stats()
		resp.Jitter = &st
	}
	ws.writeJSON(w, http.StatusOK, resp)
}

// handlePose returns the current input pose and the recorded history,
// oldest first.
// Query params:
//   - n (optional; default 100) number of samples
func (ws *WebServer) handlePose(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodGet) {
		return
	}
	n := 100
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'n' parameter")
			return
		}
		n = v
	}
	resp := map[string]any{"current": ws.tracker.Buffer().Snapshot()}
	if rec := ws.tracker.Recorder(); rec != nil {
		resp["history"] = rec.History(n)
	}
	ws.writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	store := ws.tracker.Settings()
	if r.Method == http.MethodGet {
		ws.writeJSON(w, http.StatusOK, store.Snapshot())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody+1))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	if len(body) > maxSettingsBody {
		ws.writeJSONError(w, http.StatusRequestEntityTooLarge, "settings body too large")
		return
	}
	// Partial bodies only change the fields they name.
	next, err := store.Edit(func(st *config.Settings) error {
		if err := json.Unmarshal(body, st); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		return nil
	})
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, next)
}

func (ws *WebServer) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	scope, err := config.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	store := ws.tracker.Settings()
	if err := store.Save(scope); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{
		"scope": string(scope),
		"path":  store.Path(scope),
	})
}

// handleSettingsLimit sets the input range of one axis, the way a range
// slider would. The sensitivity is derived from it and clamped rather than
// rejected.
// Query params:
//   - axis (required) x, y, z, yaw, pitch or roll
//   - limit (required) positive input range in tracker units
func (ws *WebServer) handleSettingsLimit(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	q := r.URL.Query()
	axis, err := pose.ParseAxis(q.Get("axis"))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := strconv.ParseFloat(q.Get("limit"), 64)
	if err != nil || !(limit > 0) || math.IsInf(limit, 0) {
		ws.writeJSONError(w, http.StatusBadRequest, "invalid 'limit' parameter")
		return
	}
	s := ws.tracker.Settings().Update(func(st *config.Settings) {
		st.SetInputLimit(axis, limit)
	})
	ws.writeJSON(w, http.StatusOK, map[string]any{
		"axis":        axis.String(),
		"limit":       s.InputLimits()[axis],
		"sensitivity": s.AxesSensitivity[axis],
	})
}

// handleToggle flips tracking, or sets it when ?enabled= is given.
func (ws *WebServer) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	var enabled bool
	if s := r.URL.Query().Get("enabled"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'enabled' parameter")
			return
		}
		ws.tracker.SetTracking(v)
		enabled = v
	} else {
		enabled = ws.tracker.ToggleTracking()
	}
	ws.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (ws *WebServer) handleCenterHead(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	neutral := ws.tracker.CenterHead()
	ws.writeJSON(w, http.StatusOK, map[string]any{"neutral": neutral})
}

func (ws *WebServer) handleCenterSim(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	ref, err := ws.tracker.CenterSimView()
	if err != nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]any{"viewport_reference": ref})
}

func (ws *WebServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	if err := ws.tracker.RestartInput(); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

// handleAircraft tells the tracker a new aircraft was loaded. The next tick
// reloads settings from the aircraft directory and captures its eye point.
// Query params:
//   - dir (optional) the aircraft directory; empty means none, which restores
//     the global settings
func (ws *WebServer) handleAircraft(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodPost) {
		return
	}
	dir := r.URL.Query().Get("dir")
	if dir != "" && ws.aircraftRoot != "" {
		resolved, err := security.ResolveWithin(dir, ws.aircraftRoot)
		if errors.Is(err, security.ErrOutsideRoot) {
			ws.writeJSONError(w, http.StatusForbidden, err.Error())
			return
		}
		if err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		dir = resolved
	}
	ws.tracker.ReloadContext(dir)
	ws.writeJSON(w, http.StatusOK, map[string]string{"aircraft_dir": dir})
}
