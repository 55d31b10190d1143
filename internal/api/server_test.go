package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AaronLay10/ReelEngine/internal/mqtt"
	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/scenario"
	"github.com/AaronLay10/ReelEngine/internal/sessions"
)

// newTestServer builds a server over the scenario fixtures. Scenarios are
// added directly so no catalog events reach the event buffer.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	catalog := sessions.NewCatalog()
	for _, name := range []string{"branching.json", "dangling.json"} {
		path := filepath.Join("..", "scenario", "testdata", name)
		sc, err := scenario.LoadFile(path)
		if err != nil {
			t.Fatalf("failed to load %s: %v", name, err)
		}
		if err := catalog.Add(sc, path); err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
	}

	var mgr *sessions.Manager
	metrics := NewMetrics(func() int { return mgr.Count() })
	mgr = sessions.NewManager(catalog,
		sessions.WithInputObserver(metrics.ObserveInput),
		sessions.WithFrameSink(metrics.ObserveFrame),
	)
	srv := NewServer(mgr, metrics, nil)
	srv.SetCatalogReady(true)
	return srv
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	w := do(t, h, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if resp := decode[HealthResponse](t, w); resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestReadyEndpoint(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, "GET", "/ready", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 with optional deps down, got %d", w.Code)
	}
	resp := decode[ReadinessResponse](t, w)
	if resp.Checks["store"].Status != "degraded" {
		t.Errorf("expected degraded store, got %q", resp.Checks["store"].Status)
	}

	srv.SetStoreStatus(false, false)
	w = do(t, h, "GET", "/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 with required store down, got %d", w.Code)
	}

	srv.SetStoreStatus(true, false)
	srv.SetCatalogReady(false)
	w = do(t, h, "GET", "/ready", nil)
	if resp := decode[ReadinessResponse](t, w); resp.Ready || resp.Checks["catalog"].Status != "fail" {
		t.Errorf("expected catalog failure, got %+v", resp)
	}
}

func TestScenarioEndpoints(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "GET", "/scenarios", nil)
	list := decode[[]sessions.Summary](t, w)
	if len(list) != 2 || list[0].ID != "branching" {
		t.Fatalf("unexpected scenario list %+v", list)
	}

	w = do(t, h, "GET", "/scenarios/dangling", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		ID       string                 `json:"id"`
		Edges    []scenario.Edge        `json:"edges"`
		Dangling []scenario.DanglingRef `json:"dangling"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.ID != "dangling" || len(resp.Edges) != 2 || len(resp.Dangling) != 1 {
		t.Errorf("unexpected scenario response %+v", resp)
	}

	if w := do(t, h, "GET", "/scenarios/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "branching"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[SessionResponse](t, w)
	if created.Frame.NodeID != "A" || created.Frame.MediaRef != "media/opening.mp4" {
		t.Errorf("unexpected first frame %+v", created.Frame)
	}
	base := "/sessions/" + created.ID

	w = do(t, h, "POST", base+"/time", map[string]float64{"elapsed": 5.0})
	frame := decode[SessionResponse](t, w).Frame
	if frame.Phase != playback.PhaseAwaitingInteraction || !frame.Pause || frame.InteractionID != "greet" {
		t.Errorf("expected greet to pause playback, got %+v", frame)
	}

	w = do(t, h, "POST", base+"/choice", ChoiceRequest{ChoiceID: "wave"})
	if frame := decode[SessionResponse](t, w).Frame; !frame.Resume {
		t.Errorf("expected resume, got %+v", frame)
	}

	w = do(t, h, "POST", base+"/ended", nil)
	frame = decode[SessionResponse](t, w).Frame
	if frame.NodeID != "B" || !frame.AutoAdvanced || len(frame.Choices) != 3 {
		t.Errorf("expected auto-advance to B with 3 choices, got %+v", frame)
	}

	w = do(t, h, "GET", base, nil)
	info := decode[sessions.Info](t, w)
	if info.State.CurrentNodeID != "B" || !info.State.Variables["met_guide"].Truthy() {
		t.Errorf("unexpected session state %+v", info.State)
	}

	w = do(t, h, "GET", "/sessions", nil)
	if list := decode[[]sessions.Info](t, w); len(list) != 1 {
		t.Errorf("expected 1 session, got %d", len(list))
	}

	if w := do(t, h, "DELETE", base, nil); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := do(t, h, "GET", base, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestSessionErrorStatuses(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "dangling"})
	id := decode[SessionResponse](t, w).ID
	base := "/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"select while playing", "POST", base + "/choice", ChoiceRequest{ChoiceID: "good"}, http.StatusConflict, "invalid_phase"},
		{"missing elapsed", "POST", base + "/time", map[string]string{}, http.StatusBadRequest, "bad_request"},
		{"negative elapsed", "POST", base + "/time", map[string]float64{"elapsed": -1}, http.StatusBadRequest, "invalid_input"},
		{"end video", "POST", base + "/ended", nil, http.StatusOK, ""},
		{"unknown choice", "POST", base + "/choice", ChoiceRequest{ChoiceID: "nope"}, http.StatusUnprocessableEntity, "unknown_choice"},
		{"dangling choice", "POST", base + "/choice", ChoiceRequest{ChoiceID: "broken"}, http.StatusConflict, "dangling_target"},
		{"unknown session", "POST", "/sessions/nope/ended", nil, http.StatusNotFound, "not_found"},
		{"unknown scenario", "POST", "/sessions", CreateSessionRequest{ScenarioID: "nope"}, http.StatusNotFound, "not_found"},
		{"missing scenario id", "POST", "/sessions", CreateSessionRequest{}, http.StatusBadRequest, "bad_request"},
		{"bad start node", "POST", "/sessions", CreateSessionRequest{ScenarioID: "branching", StartNode: "Z"}, http.StatusUnprocessableEntity, "invalid_scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.code == "" {
				return
			}
			if resp := decode[ErrorResponse](t, w); resp.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, resp.Code)
			}
		})
	}

	// The rejected dangling choice left the session waiting for a choice.
	w = do(t, h, "GET", base, nil)
	if info := decode[sessions.Info](t, w); info.State.Phase != playback.PhaseAwaitingEndChoice {
		t.Errorf("expected session unchanged, got %s", info.State.Phase)
	}
}

func TestInvalidJSON(t *testing.T) {
	h := newTestServer(t).Handler()
	req := httptest.NewRequest("POST", "/sessions", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestOperatorJump(t *testing.T) {
	withAuth(t, &authConfig{creds: []credential{{role: RoleAdmin, user: "admin", pass: "secret"}}})
	h := newTestServer(t).Handler()

	w := do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "branching"})
	id := decode[SessionResponse](t, w).ID

	if w := do(t, h, "POST", "/operator/jump", JumpRequest{SessionID: id, NodeID: "C"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", w.Code)
	}

	body, _ := json.Marshal(JumpRequest{SessionID: id, NodeID: "C"})
	req := httptest.NewRequest("POST", "/operator/jump", bytes.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if frame := decode[SessionResponse](t, rec).Frame; frame.NodeID != "C" {
		t.Errorf("expected jump to C, got %s", frame.NodeID)
	}
}

func TestEventsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "branching"})

	w := do(t, h, "GET", "/events?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var evs []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&evs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(evs) != 2 {
		t.Errorf("expected 2 events, got %d", len(evs))
	}

	w = do(t, h, "GET", "/events?session=missing", nil)
	evs = nil
	if err := json.NewDecoder(w.Body).Decode(&evs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(evs) != 0 {
		t.Errorf("expected no events for an unknown session, got %d", len(evs))
	}

	if w := do(t, h, "GET", "/events?source=store", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a store, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	w := do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "branching"})
	id := decode[SessionResponse](t, w).ID
	do(t, h, "POST", "/sessions/"+id+"/ended", nil)
	do(t, h, "POST", "/sessions/"+id+"/ended", nil)

	w = do(t, h, "GET", "/metrics", nil)
	body := w.Body.String()
	for _, want := range []string{
		"reel_sessions_active 1",
		`reel_session_inputs_total{outcome="ok",type="ended"} 1`,
		`reel_session_inputs_total{outcome="rejected",type="ended"} 1`,
		`reel_frames_total{auto_advanced="true",phase="at_node"} 1`,
		`reel_http_requests_total{method="POST",path="POST /sessions",status="201"} 1`,
		"reel_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestDeleteSessionRequiresAdmin(t *testing.T) {
	withAuth(t, &authConfig{creds: []credential{
		{role: RoleAdmin, user: "admin", pass: "secret"},
		{role: RoleOperator, user: "op", pass: "opsecret"},
	}})
	h := newTestServer(t).Handler()
	id := decode[SessionResponse](t, do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "branching"})).ID

	send := func(user, pass string) int {
		req := httptest.NewRequest("DELETE", "/sessions/"+id, nil)
		req.SetBasicAuth(user, pass)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}
	if code := send("op", "opsecret"); code != http.StatusForbidden {
		t.Errorf("expected 403 for operator, got %d", code)
	}
	if code := send("admin", "secret"); code != http.StatusNoContent {
		t.Errorf("expected 204 for admin, got %d", code)
	}
}

func TestReadyReportsAuth(t *testing.T) {
	withAuth(t, nil)
	h := newTestServer(t).Handler()
	if resp := decode[ReadinessResponse](t, do(t, h, "GET", "/ready", nil)); resp.Checks["auth"].Status != "disabled" {
		t.Errorf("expected auth disabled, got %+v", resp.Checks["auth"])
	}

	withAuth(t, &authConfig{creds: []credential{{role: RoleAdmin, user: "admin", pass: "secret"}}})
	if resp := decode[ReadinessResponse](t, do(t, h, "GET", "/ready", nil)); resp.Checks["auth"].Status != "ok" {
		t.Errorf("expected auth ok, got %+v", resp.Checks["auth"])
	}
}

func packageBody(t *testing.T, id string) []byte {
	t.Helper()
	sc, err := scenario.LoadFile(filepath.Join("..", "scenario", "testdata", "branching.json"))
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}
	sc.ID = id
	var buf bytes.Buffer
	if err := scenario.WritePackage(&buf, sc, ""); err != nil {
		t.Fatalf("failed to write package: %v", err)
	}
	return buf.Bytes()
}

func TestUploadScenario(t *testing.T) {
	h := newTestServer(t).Handler()
	upload := func(body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/scenarios?name=uploaded.reel", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := upload(packageBody(t, "uploaded"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[ScenarioResponse](t, w); resp.ID != "uploaded" || resp.Source != "upload:uploaded.reel" {
		t.Errorf("unexpected summary %+v", resp.Summary)
	}

	if w := do(t, h, "POST", "/sessions", CreateSessionRequest{ScenarioID: "uploaded"}); w.Code != http.StatusCreated {
		t.Errorf("expected a session of the uploaded scenario, got %d", w.Code)
	}
	if w := upload(packageBody(t, "uploaded")); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate upload, got %d", w.Code)
	}
	if w := upload([]byte("not a zip")); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for garbage, got %d", w.Code)
	}
}

type fakePresence map[string]*mqtt.PlayerState

func (f fakePresence) Player(id string) *mqtt.PlayerState { return f[id] }

func (f fakePresence) ConnectedPlayers() []string {
	var ids []string
	for id, p := range f {
		if p.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestPlayersEndpoints(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	if resp := decode[PlayersResponse](t, do(t, h, "GET", "/players", nil)); resp.Enabled || len(resp.Connected) != 0 {
		t.Errorf("expected disabled presence, got %+v", resp)
	}

	srv.SetPresence(fakePresence{"s1": {SessionID: "s1", Connected: true}})
	if resp := decode[PlayersResponse](t, do(t, h, "GET", "/players", nil)); !resp.Enabled || len(resp.Connected) != 1 || resp.Connected[0] != "s1" {
		t.Errorf("unexpected players %+v", resp)
	}

	w := do(t, h, "GET", "/players/s1", nil)
	if p := decode[mqtt.PlayerState](t, w); w.Code != http.StatusOK || !p.Connected {
		t.Errorf("unexpected player %d %+v", w.Code, p)
	}
	if w := do(t, h, "GET", "/players/s2", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown player, got %d", w.Code)
	}
}
