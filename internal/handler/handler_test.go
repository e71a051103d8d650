package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridscope/internal/backend"
	"gridscope/internal/domain"
	"gridscope/internal/hub"
	"gridscope/internal/interaction"
	"gridscope/internal/repository"
	"gridscope/internal/repository/sqlite"
	"gridscope/internal/session"
)

type stubBackend struct {
	mu      sync.Mutex
	cases   map[string]map[string]any
	flow    *backend.FlowResponse
	flowErr error
	gate    chan struct{}
	entered chan struct{}
}

func (b *stubBackend) GridData(ctx context.Context) (map[string]any, error) {
	return nil, &domain.NetworkError{Op: "grid-data", Status: http.StatusServiceUnavailable}
}

func (b *stubBackend) LoadCase(ctx context.Context, name string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.cases[name]
	if !ok {
		return nil, &domain.NetworkError{Op: "load-case", Status: http.StatusNotFound}
	}
	return doc, nil
}

func (b *stubBackend) CalculateFlow(ctx context.Context, req backend.FlowRequest) (*backend.FlowResponse, error) {
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.gate != nil {
		<-b.gate
	}
	return b.flow, b.flowErr
}

func converged() *backend.FlowResponse {
	return &backend.FlowResponse{
		Converged: true,
		Stats:     &domain.Stats{Voltage: domain.VoltageStats{Max: 1.04, Min: 0.97, Avg: 1.0}},
		Raw: map[string]any{
			"converged": true,
			"nodes": []any{
				map[string]any{"id": "bus1", "type": "slack", "voltage": 1.04},
				map[string]any{"id": "bus2", "type": "load", "voltage": 0.97},
			},
			"links": []any{
				map[string]any{"source": "bus1", "target": "bus2", "from_active": 0.8, "to_active": -0.79},
			},
		},
	}
}

type fixture struct {
	runner *session.Runner
	srv    *httptest.Server
}

func newFixture(t *testing.T, b *stubBackend, history repository.HistoryRepository) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := session.Deps{History: history, Logger: log}
	if b != nil {
		deps.Backend = b
	}
	runner := session.NewRunner(deps)
	events := hub.New(log)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); _ = runner.Run(ctx) }()
	go func() { defer wg.Done(); _ = events.Run(ctx) }()
	go func() { defer wg.Done(); _ = events.Forward(ctx, runner.Session().Bus()) }()

	require.NoError(t, runner.Do(ctx, func(s *session.Session) error { return s.Init(ctx) }))

	srv := httptest.NewServer(New(runner, events, log).Routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		wg.Wait()
	})
	return &fixture{runner: runner, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGetState(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[StateResponse](t, resp)
	assert.Equal(t, "sample", state.Case)
	assert.Equal(t, 4, state.Nodes)
	assert.Equal(t, 4, state.Links)
	assert.Equal(t, interaction.ModeIdle, state.State.Mode)
	assert.Equal(t, session.DefaultWidth, state.Width)
	assert.False(t, state.InFlight)
}

func TestGetTopologyAndFrame(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodGet, "/api/topology", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[domain.Payload](t, resp)
	assert.Len(t, p.Nodes, 4)
	for _, n := range p.Nodes {
		assert.NotNil(t, n.X, n.ID)
	}

	resp = f.do(t, http.MethodGet, "/api/frame", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestPostGesture(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodPost, "/api/gestures", interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[interaction.State](t, resp)
	assert.Equal(t, interaction.ModeNodeSelected, state.Mode)
	assert.Equal(t, "bus2", state.NodeID)
}

func TestGestureErrors(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodPost, "/api/gestures", interaction.Gesture{Kind: "wave"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/gestures", interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// bus1 and bus2 are already connected
	f.do(t, http.MethodPost, "/api/gestures", interaction.Gesture{Kind: interaction.GestureStartLink})
	f.do(t, http.MethodPost, "/api/gestures", interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus1"})
	resp = f.do(t, http.MethodPost, "/api/gestures", interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Contains(t, body.Details, "already exists")

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/gestures", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestUpdateNode(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodPut, "/api/nodes/bus2", NodeEditRequest{Fields: map[string]float64{"active_power": -95}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[domain.NodeRecord](t, resp)
	assert.Equal(t, -95.0, rec.ActivePower)

	resp = f.do(t, http.MethodPut, "/api/nodes/bus2", NodeEditRequest{Fields: map[string]float64{"voltage": 1.1}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/nodes/bus2", NodeEditRequest{Type: "pv", Fields: map[string]float64{"voltage": 1.02}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec = decode[domain.NodeRecord](t, resp)
	assert.Equal(t, domain.NodeTypePV, rec.Type)
	assert.Equal(t, 1.02, rec.Voltage)

	resp = f.do(t, http.MethodPut, "/api/nodes/bus9", NodeEditRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateLink(t *testing.T) {
	f := newFixture(t, nil, nil)

	p := decode[domain.Payload](t, f.do(t, http.MethodGet, "/api/topology", nil))
	id := p.Links[0].ID
	require.NotEmpty(t, id)

	r := 0.05
	resp := f.do(t, http.MethodPut, "/api/links/"+id, LinkEditRequest{Resistance: &r})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[domain.LinkRecord](t, resp)
	assert.Equal(t, 0.05, rec.Resistance)
	assert.Equal(t, p.Links[0].Reactance, rec.Reactance)

	resp = f.do(t, http.MethodPut, "/api/links/line-99", LinkEditRequest{Resistance: &r})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetViewport(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodPost, "/api/viewport", ViewportRequest{Width: 1300, Height: 700})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/viewport", ViewportRequest{Width: 0, Height: 700})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoadCase(t *testing.T) {
	b := &stubBackend{cases: map[string]map[string]any{
		"case3": {
			"case": "case3",
			"nodes": []any{
				map[string]any{"id": "bus1", "type": "slack"},
				map[string]any{"id": "bus2"},
				map[string]any{"id": "bus3"},
			},
			"links": []any{
				map[string]any{"source": "bus1", "target": "bus2"},
				map[string]any{"source": "bus2", "target": "bus3"},
			},
		},
	}}
	f := newFixture(t, b, nil)

	resp := f.do(t, http.MethodPost, "/api/cases/load", LoadCaseRequest{Case: "case3"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[session.TopologyInfo](t, resp)
	assert.Equal(t, "case3", info.Case)
	assert.Equal(t, 3, info.Nodes)
	assert.Equal(t, 2, info.Links)

	resp = f.do(t, http.MethodPost, "/api/cases/load", LoadCaseRequest{Case: "case2000"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/cases/load", LoadCaseRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoadCaseWithoutBackend(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.do(t, http.MethodPost, "/api/cases/load", LoadCaseRequest{Case: "case9"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCalculateRecordsHistory(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	f := newFixture(t, &stubBackend{flow: converged()}, repo)

	resp := f.do(t, http.MethodPost, "/api/calculate", CalculateRequest{Method: "fast-decoupled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	calc := decode[CalculateResponse](t, resp)
	assert.True(t, calc.Converged)
	require.NotNil(t, calc.Stats)
	assert.Equal(t, 1.04, calc.Stats.Voltage.Max)

	resp = f.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decode[[]repository.Run](t, resp)
	require.Len(t, runs, 1)
	assert.Equal(t, "fast-decoupled", runs[0].Method)
	assert.True(t, runs[0].Converged)

	resp = f.do(t, http.MethodGet, "/api/history/"+runs[0].ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/history/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalculateWithEmptyBody(t *testing.T) {
	f := newFixture(t, &stubBackend{flow: converged()}, nil)
	resp := f.do(t, http.MethodPost, "/api/calculate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]repository.Run](t, resp))
}

func TestCalculateFailures(t *testing.T) {
	cases := []struct {
		name   string
		b      *stubBackend
		status int
	}{
		{"unreachable", &stubBackend{flowErr: &domain.NetworkError{Op: "calculate-flow"}}, http.StatusBadGateway},
		{"diverged", &stubBackend{flow: &backend.FlowResponse{}, flowErr: &domain.CalculationError{Message: "singular"}}, http.StatusUnprocessableEntity},
		{"no backend", nil, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.b, nil)
			resp := f.do(t, http.MethodPost, "/api/calculate", CalculateRequest{})
			assert.Equal(t, tc.status, resp.StatusCode)

			state := decode[StateResponse](t, f.do(t, http.MethodGet, "/api/state", nil))
			assert.False(t, state.InFlight)
			assert.Equal(t, 4, state.Nodes)
		})
	}
}

func TestCalculateInFlightConflict(t *testing.T) {
	b := &stubBackend{
		flow:    converged(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	f := newFixture(t, b, nil)

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(f.srv.URL+"/api/calculate", "application/json", strings.NewReader(`{}`))
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()
	<-b.entered

	resp := f.do(t, http.MethodPost, "/api/calculate", CalculateRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(b.gate)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.do(t, http.MethodGet, "/api/export/yaml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="sample.yaml"`, resp.Header.Get("Content-Disposition"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "id: bus1")

	resp = f.do(t, http.MethodGet, "/api/export/json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[domain.Payload](t, resp)
	assert.Equal(t, "sample", p.Case)

	resp = f.do(t, http.MethodGet, "/api/export/csv", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImport(t *testing.T) {
	f := newFixture(t, nil, nil)

	doc := `{"case": "tiny", "nodes": [{"id": "a", "type": "slack"}, {"id": "b"}], "links": [{"source": "a", "target": "b"}]}`
	resp, err := http.Post(f.srv.URL+"/api/import/json", "application/json", strings.NewReader(doc))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[session.TopologyInfo](t, resp)
	assert.Equal(t, "tiny", info.Case)
	assert.Equal(t, 2, info.Nodes)

	bad, err := http.Post(f.srv.URL+"/api/import/json", "application/json", strings.NewReader(`{"nodes": 3}`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestOversizedBodies(t *testing.T) {
	f := newFixture(t, nil, nil)
	routes := New(f.runner, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes()

	huge := `{"kind": "` + strings.Repeat("a", maxBodyBytes+1<<20) + `"}`
	for _, path := range []string{"/api/gestures", "/api/import/json", "/api/import/yaml", "/api/calculate"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(huge))
			rec := httptest.NewRecorder()
			routes.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		})
	}

	// The topology is untouched
	resp := f.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, "sample", decode[StateResponse](t, resp).Case)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gridscope_store_nodes")
}

func TestWebsocketGestures(t *testing.T) {
	f := newFixture(t, nil, nil)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first session.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, session.EventFrame, first.Type)

	require.NoError(t, conn.WriteJSON(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "ghost"}))

	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != "error" {
			continue
		}
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(msg.Payload, &body))
		assert.Equal(t, "Gesture rejected", body.Error)
		assert.Contains(t, body.Details, "ghost")
		break
	}

	require.NoError(t, conn.WriteJSON(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus3"}))
	require.Eventually(t, func() bool {
		resp, err := http.Get(f.srv.URL + "/api/state")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var state StateResponse
		if json.NewDecoder(resp.Body).Decode(&state) != nil {
			return false
		}
		return state.State.NodeID == "bus3"
	}, 5*time.Second, 20*time.Millisecond)
}
