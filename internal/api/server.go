package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/logger"
	"github.com/AaronLay10/ReelEngine/internal/mqtt"
	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/scenario"
	"github.com/AaronLay10/ReelEngine/internal/sessions"
)

const (
	maxBodyBytes    = 1 << 20
	maxPackageBytes = 256 << 20
)

// Presence reports which sessions have a connected player.
type Presence interface {
	Player(sessionID string) *mqtt.PlayerState
	ConnectedPlayers() []string
}

// Server is the playback HTTP API.
type Server struct {
	mgr      *sessions.Manager
	metrics  *Metrics
	log      *logger.Logger
	presence Presence

	readiness readiness
}

type readiness struct {
	mu             sync.RWMutex
	catalogReady   bool
	storeConnected bool
	storeOptional  bool
	mqttConnected  bool
	mqttOptional   bool
}

// NewServer creates a server for mgr. metrics may be nil.
func NewServer(mgr *sessions.Manager, metrics *Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{mgr: mgr, metrics: metrics, log: log}
	s.readiness.storeOptional = true
	s.readiness.mqttOptional = true
	return s
}

// SetCatalogReady marks the scenario catalog as loaded.
func (s *Server) SetCatalogReady(ready bool) {
	s.readiness.mu.Lock()
	s.readiness.catalogReady = ready
	s.readiness.mu.Unlock()
}

// SetStoreStatus records store connectivity. A required store that is down
// makes the server not ready.
func (s *Server) SetStoreStatus(connected, optional bool) {
	s.readiness.mu.Lock()
	s.readiness.storeConnected = connected
	s.readiness.storeOptional = optional
	s.readiness.mu.Unlock()
}

// SetPresence enables the /players routes.
func (s *Server) SetPresence(p Presence) {
	s.presence = p
}

// SetMQTTStatus records broker connectivity.
func (s *Server) SetMQTTStatus(connected, optional bool) {
	s.readiness.mu.Lock()
	s.readiness.mqttConnected = connected
	s.readiness.mqttOptional = optional
	s.readiness.mu.Unlock()
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.HandleFunc("GET /events", eventsHandler)
	mux.HandleFunc("GET /ws/events", s.wsEventsHandler)

	mux.HandleFunc("GET /scenarios", s.listScenariosHandler)
	mux.HandleFunc("GET /scenarios/{id}", s.getScenarioHandler)
	mux.HandleFunc("POST /scenarios", RequireAdmin(s.uploadScenarioHandler))

	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions", s.listSessionsHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", RequireAdmin(s.deleteSessionHandler))
	mux.HandleFunc("POST /sessions/{id}/time", s.timeHandler)
	mux.HandleFunc("POST /sessions/{id}/ended", s.endedHandler)
	mux.HandleFunc("POST /sessions/{id}/choice", s.choiceHandler)

	mux.HandleFunc("POST /operator/jump", RequireAnyRole(s.operatorJumpHandler))

	mux.HandleFunc("GET /players", s.listPlayersHandler)
	mux.HandleFunc("GET /players/{id}", s.getPlayerHandler)

	if s.metrics == nil {
		return mux
	}
	mux.Handle("GET /metrics", s.metrics.Handler())
	return s.metrics.instrument(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// TLS is used when InitTLS found a certificate.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API listening", "addr", srv.Addr, "tls", tlsCfg != nil)
		if tlsCfg != nil {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events.CloseAllSubscribers()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "reelserver",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type CheckResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.readiness.mu.RLock()
	catalogReady := s.readiness.catalogReady
	storeConnected, storeOptional := s.readiness.storeConnected, s.readiness.storeOptional
	mqttConnected, mqttOptional := s.readiness.mqttConnected, s.readiness.mqttOptional
	s.readiness.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckResult)}
	check := func(name string, ok, optional bool) {
		switch {
		case ok:
			resp.Checks[name] = CheckResult{Status: "ok"}
		case optional:
			resp.Checks[name] = CheckResult{Status: "degraded", Detail: "optional"}
		default:
			resp.Checks[name] = CheckResult{Status: "fail"}
			resp.Ready = false
		}
	}
	check("catalog", catalogReady, false)
	check("store", storeConnected, storeOptional)
	check("mqtt", mqttConnected, mqttOptional)
	if IsAuthEnabled() {
		resp.Checks["auth"] = CheckResult{Status: "ok"}
	} else {
		resp.Checks["auth"] = CheckResult{Status: "disabled", Detail: "operator endpoints are open"}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// eventsHandler serves the in-memory event buffer, optionally narrowed to one
// session with ?session=, or the persistent event log with ?source=store.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if r.URL.Query().Get("source") == "store" {
		store := events.GetStore()
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "no_store", "no event store configured")
			return
		}
		rows, err := store.Query(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rows)
		return
	}

	writeJSON(w, http.StatusOK, events.RecentSessionEvents(r.URL.Query().Get("session"), limit))
}

type ScenarioResponse struct {
	sessions.Summary
	Edges    []scenario.Edge        `json:"edges"`
	Dangling []scenario.DanglingRef `json:"dangling,omitempty"`
	Scenario *scenario.Scenario     `json:"scenario"`
}

func (s *Server) listScenariosHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Catalog().List())
}

func (s *Server) getScenarioHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sc, ok := s.mgr.Catalog().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("scenario %q not found", id))
		return
	}

	resp := ScenarioResponse{
		Edges:    sc.Edges(),
		Dangling: sc.Dangling(),
		Scenario: sc,
	}
	for _, sum := range s.mgr.Catalog().List() {
		if sum.ID == id {
			resp.Summary = sum
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// uploadScenarioHandler adds a .reel package sent as the request body to the
// catalog.
func (s *Server) uploadScenarioHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPackageBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
		return
	}
	source := "upload"
	if name := r.URL.Query().Get("name"); name != "" {
		source = "upload:" + name
	}

	sc, err := s.mgr.Catalog().AddPackage(bytes.NewReader(body), int64(len(body)), source)
	var dup *sessions.DuplicateScenarioError
	switch {
	case errors.As(err, &dup):
		writeError(w, http.StatusConflict, "duplicate", err.Error())
		return
	case errors.Is(err, scenario.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "invalid_scenario", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "bad_package", err.Error())
		return
	}
	s.log.Info("scenario uploaded", "scenario_id", sc.ID, "source", source)

	resp := ScenarioResponse{Edges: sc.Edges(), Dangling: sc.Dangling(), Scenario: sc}
	for _, sum := range s.mgr.Catalog().List() {
		if sum.ID == sc.ID {
			resp.Summary = sum
			break
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

type PlayersResponse struct {
	Enabled   bool     `json:"enabled"`
	Connected []string `json:"connected"`
}

func (s *Server) listPlayersHandler(w http.ResponseWriter, r *http.Request) {
	resp := PlayersResponse{Connected: []string{}}
	if s.presence != nil {
		resp.Enabled = true
		if ids := s.presence.ConnectedPlayers(); ids != nil {
			resp.Connected = ids
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPlayerHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.presence == nil {
		writeError(w, http.StatusNotFound, "not_found", "player tracking is disabled")
		return
	}
	p := s.presence.Player(id)
	if p == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no player seen for session %q", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type CreateSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
	StartNode  string `json:"start_node,omitempty"`
}

type SessionResponse struct {
	ID    string         `json:"id"`
	Frame playback.Frame `json:"frame"`
}

type TimeRequest struct {
	Elapsed *float64 `json:"elapsed"`
}

type ChoiceRequest struct {
	ChoiceID string `json:"choice_id"`
}

type JumpRequest struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ScenarioID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "scenario_id required")
		return
	}

	id, f, err := s.mgr.Create(r.Context(), req.ScenarioID, req.StartNode)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: id, Frame: f})
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.List())
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) timeHandler(w http.ResponseWriter, r *http.Request) {
	var req TimeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Elapsed == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "elapsed required")
		return
	}
	s.respondFrame(w, r, func(ctx context.Context, id string) (playback.Frame, error) {
		return s.mgr.TimeUpdate(ctx, id, *req.Elapsed)
	})
}

func (s *Server) endedHandler(w http.ResponseWriter, r *http.Request) {
	s.respondFrame(w, r, s.mgr.VideoEnded)
}

func (s *Server) choiceHandler(w http.ResponseWriter, r *http.Request) {
	var req ChoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ChoiceID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "choice_id required")
		return
	}
	s.respondFrame(w, r, func(ctx context.Context, id string) (playback.Frame, error) {
		return s.mgr.Select(ctx, id, req.ChoiceID)
	})
}

func (s *Server) operatorJumpHandler(w http.ResponseWriter, r *http.Request) {
	var req JumpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id and node_id required")
		return
	}

	f, err := s.mgr.Jump(r.Context(), req.SessionID, req.NodeID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	user, _, _ := r.BasicAuth()
	events.Emit("info", "operator.jump", "", map[string]interface{}{
		"session_id": req.SessionID,
		"node_id":    req.NodeID,
		"operator":   user,
	})
	writeJSON(w, http.StatusOK, SessionResponse{ID: req.SessionID, Frame: f})
}

func (s *Server) respondFrame(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (playback.Frame, error)) {
	id := r.PathValue("id")
	f, err := op(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Frame: f})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return false
	}
	return true
}

// writeSessionError maps manager and playback errors to HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, sessions.ErrCapacity):
		writeError(w, http.StatusServiceUnavailable, "capacity", err.Error())
	case errors.Is(err, playback.ErrUnknownChoice):
		writeError(w, http.StatusUnprocessableEntity, "unknown_choice", err.Error())
	case errors.Is(err, playback.ErrInvalidPhase):
		writeError(w, http.StatusConflict, "invalid_phase", err.Error())
	case errors.Is(err, playback.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, playback.ErrDanglingTarget):
		writeError(w, http.StatusConflict, "dangling_target", err.Error())
	case errors.Is(err, scenario.ErrValidation), errors.Is(err, scenario.ErrAmbiguousEntry):
		writeError(w, http.StatusUnprocessableEntity, "invalid_scenario", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Code: code, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
