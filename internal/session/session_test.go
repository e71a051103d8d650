package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridscope/internal/backend"
	"gridscope/internal/domain"
	"gridscope/internal/interaction"
	"gridscope/internal/layout"
	"gridscope/internal/repository"
	"gridscope/internal/scheduler"
	"gridscope/internal/view"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeBackend struct {
	grid    map[string]any
	gridErr error
	cases   map[string]map[string]any
	flow    *backend.FlowResponse
	flowErr error

	mu       sync.Mutex
	requests []backend.FlowRequest
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeBackend) GridData(context.Context) (map[string]any, error) {
	return f.grid, f.gridErr
}

func (f *fakeBackend) LoadCase(_ context.Context, name string) (map[string]any, error) {
	doc, ok := f.cases[name]
	if !ok {
		return nil, &domain.NetworkError{Op: "load-case", Status: 404}
	}
	return doc, nil
}

func (f *fakeBackend) CalculateFlow(ctx context.Context, req backend.FlowRequest) (*backend.FlowResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.flow, f.flowErr
}

type recordingHistory struct {
	runs []repository.Run
}

func (h *recordingHistory) RecordRun(_ context.Context, run *repository.Run) error {
	h.runs = append(h.runs, *run)
	return nil
}

func (h *recordingHistory) ListRuns(context.Context, int) ([]repository.Run, error) {
	return h.runs, nil
}

func (h *recordingHistory) GetRun(context.Context, string) (*repository.Run, error) {
	return nil, domain.ErrRunNotFound
}

func (h *recordingHistory) Close() error { return nil }

// ============================================================================
// Helpers
// ============================================================================

type harness struct {
	s      *Session
	clock  *scheduler.FakeClock
	events chan Event
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, b Backend, history repository.HistoryRepository) *harness {
	t.Helper()
	clock := scheduler.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := NewEventBus()
	events := make(chan Event, 8192)
	bus.Subscribe(events)
	s := New(Deps{
		Backend: b,
		History: history,
		Bus:     bus,
		Clock:   clock,
		Logger:  quietLogger(),
	})
	t.Cleanup(s.Teardown)
	return &harness{s: s, clock: clock, events: events}
}

func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func (h *harness) settle() {
	h.clock.Advance(time.Minute)
}

func ofType(events []Event, t EventType) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func flowResult() *backend.FlowResponse {
	flow := map[string]any{"from_active": 0.5, "from_reactive": 0.1, "to_active": -0.49, "to_reactive": -0.09, "loss_active": 0.01, "loss_reactive": 0.01}
	link := func(src, tgt string) map[string]any {
		l := map[string]any{"source": src, "target": tgt, "resistance": 0.02, "reactance": 0.06}
		for k, v := range flow {
			l[k] = v
		}
		return l
	}
	return &backend.FlowResponse{
		Converged: true,
		Stats:     &domain.Stats{Voltage: domain.VoltageStats{Max: 1.05, Min: 0.98, Avg: 1.01}},
		Raw: map[string]any{
			"converged": true,
			"nodes": []any{
				map[string]any{"id": "bus1", "type": "slack", "voltage": 1.05},
				map[string]any{"id": "bus2", "type": "load", "voltage": 0.98, "angle": -2.1},
				map[string]any{"id": "bus3", "type": "load", "voltage": 0.99, "angle": -1.7},
				map[string]any{"id": "bus4", "type": "generator", "voltage": 1.02, "angle": 1.2},
			},
			"links": []any{link("bus1", "bus2"), link("bus1", "bus3"), link("bus2", "bus4"), link("bus3", "bus4")},
		},
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestInitFallsBackToSample(t *testing.T) {
	cases := []struct {
		name string
		b    Backend
	}{
		{"network error", &fakeBackend{gridErr: &domain.NetworkError{Op: "grid-data"}}},
		{"malformed payload", &fakeBackend{grid: map[string]any{"nodes": []any{}}}},
		{"duplicate node ids", &fakeBackend{grid: map[string]any{
			"nodes": []any{map[string]any{"id": "bus1"}, map[string]any{"id": "bus1"}},
			"links": []any{},
		}}},
		{"dangling link", &fakeBackend{grid: map[string]any{
			"nodes": []any{map[string]any{"id": "bus1"}, map[string]any{"id": "bus2"}},
			"links": []any{map[string]any{"source": "bus1", "target": "bus9"}},
		}}},
		{"no backend", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.b, nil)
			require.NoError(t, h.s.Init(context.Background()))

			nodes, links := h.s.Store().Len()
			assert.Equal(t, 4, nodes)
			assert.Equal(t, 4, links)
			label, scale := h.s.Case()
			assert.Equal(t, "sample", label)
			assert.Equal(t, domain.ScaleCase9, scale)

			notices := ofType(h.drain(), EventNotice)
			require.Len(t, notices, 1)
			assert.Equal(t, LevelWarn, notices[0].Payload.(Notice).Level)
		})
	}
}

func TestInitFromBackend(t *testing.T) {
	b := &fakeBackend{grid: map[string]any{
		"case": "feeder",
		"nodes": []any{
			map[string]any{"id": "bus1", "type": "slack"},
			map[string]any{"id": "bus2", "type": "load"},
			map[string]any{"id": "bus3", "type": "pv"},
		},
		"links": []any{
			map[string]any{"source": "bus1", "target": "bus2"},
			map[string]any{"source": "bus2", "target": "bus3"},
		},
	}}
	h := newHarness(t, b, nil)
	require.NoError(t, h.s.Init(context.Background()))

	label, _ := h.s.Case()
	assert.Equal(t, "feeder", label)
	nodes, links := h.s.Store().Len()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, links)

	events := h.drain()
	assert.Empty(t, ofType(events, EventNotice))
	topo := ofType(events, EventTopology)
	require.Len(t, topo, 1)
	assert.Equal(t, TopologyInfo{Case: "feeder", Scale: "case9", Nodes: 3, Links: 2}, topo[0].Payload)
}

func TestTeardownStopsEverything(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	require.True(t, h.s.frames.Pending())

	h.s.Teardown()
	assert.False(t, h.s.frames.Pending())
	assert.False(t, h.s.Active())

	h.drain()
	h.clock.Advance(time.Minute)
	assert.Empty(t, h.drain())

	// Idempotent
	h.s.Teardown()
}

// ============================================================================
// Frame loop
// ============================================================================

func TestFrameLoopRunsUntilSettled(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	h.drain()

	h.clock.Advance(scheduler.DefaultFrameInterval)
	frames := ofType(h.drain(), EventFrame)
	require.Len(t, frames, 1)
	first, ok := frames[0].Payload.(view.Frame)
	require.True(t, ok)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, first, h.s.Frame())
	assert.Len(t, h.s.Frame().Nodes, 4)
	assert.Len(t, h.s.Frame().Links, 4)

	h.settle()
	assert.False(t, h.s.Active())
	assert.False(t, h.s.frames.Pending())
	settledSeq := h.s.Frame().Seq
	assert.Greater(t, settledSeq, uint64(100))

	// Nothing more happens once settled
	h.drain()
	h.clock.Advance(time.Second)
	assert.Empty(t, ofType(h.drain(), EventFrame))
	assert.Equal(t, settledSeq, h.s.Frame().Seq)
}

func TestMutationsCoalesceIntoOneFrame(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	h.settle()
	h.drain()

	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureAddNode, Type: "load", X: 10, Y: 10}))
	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureAddNode, Type: "pv", X: 20, Y: 20}))
	require.NoError(t, h.s.CommitNodeEdit("bus2", map[string]float64{"active_power": -90}, ""))

	h.clock.Advance(scheduler.DefaultFrameInterval)
	frames := ofType(h.drain(), EventFrame)
	require.Len(t, frames, 1)
	assert.Len(t, h.s.Frame().Nodes, 6)
}

func TestFrameReflectsSelection(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	h.settle()

	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus3"}))
	h.clock.Advance(scheduler.DefaultFrameInterval)

	f := h.s.Frame()
	assert.Equal(t, interaction.ModeNodeSelected, f.Mode)
	assert.Equal(t, "bus3", f.SelectedNode)
}

// ============================================================================
// Gestures and edits
// ============================================================================

func TestGuardViolationPublishesNotice(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	h.drain()

	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureStartLink}))
	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus1"}))

	err := h.s.Gesture(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus1"})
	var loop *domain.SelfLoopError
	require.ErrorAs(t, err, &loop)
	assert.Equal(t, interaction.State{Mode: interaction.ModeAwaitingLinkTarget, SourceID: "bus1"}, h.s.State())

	err = h.s.Gesture(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus2"})
	var dup *domain.DuplicateLinkError
	require.ErrorAs(t, err, &dup)

	notices := ofType(h.drain(), EventNotice)
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, LevelWarn, n.Payload.(Notice).Level)
	}
	_, links := h.s.Store().Len()
	assert.Equal(t, 4, links)
}

func TestNonGuardErrorsAreNotNoticed(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	h.drain()

	err := h.s.Gesture(interaction.Gesture{Kind: interaction.GestureAddNode, Type: "battery"})
	var shape *domain.InvalidShapeError
	require.ErrorAs(t, err, &shape)
	assert.Empty(t, ofType(h.drain(), EventNotice))
}

func TestCommitNodeEdit(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	store := h.s.Store()

	require.NoError(t, h.s.CommitNodeEdit("bus1", map[string]float64{"voltage": 1.04, "angle": 0.5}, ""))
	assert.Equal(t, 1.04, store.Node("bus1").Voltage)
	assert.Equal(t, 0.5, store.Node("bus1").Angle)

	err := h.s.CommitNodeEdit("bus1", map[string]float64{"active_power": 10}, "")
	var ro *domain.ReadOnlyFieldError
	require.ErrorAs(t, err, &ro)
	assert.Equal(t, domain.NodeTypeSlack, ro.Type)
	assert.Equal(t, 0.0, store.Node("bus1").ActivePower)

	// Editability follows the new type
	require.NoError(t, h.s.CommitNodeEdit("bus4", map[string]float64{"voltage": 1.01, "active_power": 120}, "pv"))
	assert.Equal(t, domain.NodeTypePV, store.Node("bus4").Type)
	assert.Equal(t, 120.0, store.Node("bus4").ActivePower)

	var shape *domain.InvalidShapeError
	assert.ErrorAs(t, h.s.CommitNodeEdit("bus2", map[string]float64{"frequency": 50}, ""), &shape)
	assert.ErrorAs(t, h.s.CommitNodeEdit("bus2", nil, "battery"), &shape)
	assert.ErrorIs(t, h.s.CommitNodeEdit("bus99", nil, ""), domain.ErrNodeNotFound)
}

func TestCommitLinkEdit(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))

	r := 0.05
	require.NoError(t, h.s.CommitLinkEdit("line-2", &r, nil))
	l := h.s.Store().Link("line-2")
	assert.Equal(t, 0.05, l.Resistance)
	assert.Equal(t, 0.08, l.Reactance)

	assert.ErrorIs(t, h.s.CommitLinkEdit("line-9", &r, nil), domain.ErrLinkNotFound)
}

// ============================================================================
// Cases
// ============================================================================

func TestLoadCase(t *testing.T) {
	b := &fakeBackend{cases: map[string]map[string]any{
		"case14": {
			"nodes": func() []any {
				var out []any
				for i := 1; i <= 14; i++ {
					out = append(out, map[string]any{"bus_i": i, "bus_type": 1})
				}
				return out
			}(),
			"links": []any{map[string]any{"fbus": 1, "tbus": 2}},
		},
	}}
	h := newHarness(t, b, nil)
	require.NoError(t, h.s.Init(context.Background()))
	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus1"}))

	require.NoError(t, h.s.InstallCase("case14", b.cases["case14"]))
	label, scale := h.s.Case()
	assert.Equal(t, "case14", label)
	assert.Equal(t, domain.ScaleCase14, scale)
	assert.Equal(t, layout.DefaultProfiles().For(domain.ScaleCase14), h.s.engine.Profile())
	assert.Equal(t, interaction.ModeIdle, h.s.State().Mode)
	nodes, _ := h.s.Store().Len()
	assert.Equal(t, 14, nodes)
}

func TestInstallCaseFailureKeepsTopology(t *testing.T) {
	b := &fakeBackend{gridErr: errors.New("offline")}
	h := newHarness(t, b, nil)
	require.NoError(t, h.s.Init(context.Background()))
	before := h.s.Store().Node("bus1")
	h.drain()

	err := h.s.InstallCase("empty", map[string]any{"nodes": []any{}})
	var shape *domain.InvalidShapeError
	require.ErrorAs(t, err, &shape)

	broken := map[string]any{"nodes": []any{map[string]any{"id": "a"}}, "links": []any{map[string]any{"source": "a", "target": "zz"}}}
	err = h.s.InstallCase("broken", broken)
	var ref *domain.ReferenceResolutionError
	require.ErrorAs(t, err, &ref)

	assert.Same(t, before, h.s.Store().Node("bus1"))
	label, _ := h.s.Case()
	assert.Equal(t, "sample", label)

	notices := ofType(h.drain(), EventNotice)
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, LevelError, n.Payload.(Notice).Level)
	}
}

// ============================================================================
// Calculation
// ============================================================================

func TestCalculationInstallsFreshInstances(t *testing.T) {
	history := &recordingHistory{}
	h := newHarness(t, &fakeBackend{}, history)
	require.NoError(t, h.s.Init(context.Background()))
	require.NoError(t, h.s.Gesture(interaction.Gesture{Kind: interaction.GestureClickNode, NodeID: "bus2"}))
	old := h.s.Store().Node("bus2")

	req, err := h.s.BeginCalculation("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMethod, req.Method)
	assert.Len(t, req.Nodes, 4)
	assert.Len(t, req.Links, 4)
	assert.True(t, h.s.InFlight())

	resp := flowResult()
	require.NoError(t, h.s.CompleteCalculation(context.Background(), req, resp, nil))
	assert.False(t, h.s.InFlight())

	store := h.s.Store()
	fresh := store.Node("bus2")
	require.NotNil(t, fresh)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 0.98, fresh.Voltage)

	for _, l := range store.Links() {
		assert.Same(t, store.Node(l.Source.ID()), l.Source.Node(), l.ID)
		assert.Same(t, store.Node(l.Target.ID()), l.Target.Node(), l.ID)
		require.NotNil(t, l.Flow)
		assert.Equal(t, 0.5, l.Flow.FromActive)
	}

	assert.Equal(t, interaction.ModeIdle, h.s.State().Mode)
	label, _ := h.s.Case()
	assert.Equal(t, "sample", label)
	assert.Equal(t, resp.Stats, h.s.Stats())

	calc := ofType(h.drain(), EventCalculation)
	require.Len(t, calc, 1)
	assert.Equal(t, resp.Stats, calc[0].Payload)

	require.Len(t, history.runs, 1)
	run := history.runs[0]
	assert.True(t, run.Converged)
	assert.Equal(t, "sample", run.Case)
	assert.Equal(t, 4, run.Nodes)
	assert.Empty(t, run.Error)
}

func TestCalculationGuards(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, nil)
	require.NoError(t, h.s.Init(context.Background()))

	req, err := h.s.BeginCalculation("gauss-seidel")
	require.NoError(t, err)
	assert.Equal(t, "gauss-seidel", req.Method)

	_, err = h.s.BeginCalculation("")
	assert.ErrorIs(t, err, domain.ErrCalculationInFlight)

	noBackend := newHarness(t, nil, nil)
	require.NoError(t, noBackend.s.Init(context.Background()))
	_, err = noBackend.s.BeginCalculation("")
	assert.ErrorIs(t, err, domain.ErrNoBackend)
	assert.False(t, noBackend.s.InFlight())
}

func TestCalculationFailureKeepsTopology(t *testing.T) {
	history := &recordingHistory{}
	h := newHarness(t, &fakeBackend{}, history)
	require.NoError(t, h.s.Init(context.Background()))
	before := h.s.Store().Node("bus1")

	dangling := flowResult()
	dangling.Raw["links"] = append(dangling.Raw["links"].([]any), map[string]any{"source": "bus1", "target": "bus9"})

	cases := []struct {
		name    string
		resp    *backend.FlowResponse
		callErr error
	}{
		{"network", nil, &domain.NetworkError{Op: "calculate-flow", Status: 502}},
		{"not converged", &backend.FlowResponse{}, &domain.CalculationError{Message: "singular"}},
		{"dangling endpoint", dangling, nil},
		{"empty response", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h.drain()
			req, err := h.s.BeginCalculation("")
			require.NoError(t, err)

			err = h.s.CompleteCalculation(context.Background(), req, tc.resp, tc.callErr)
			assert.Error(t, err)
			assert.False(t, h.s.InFlight())
			assert.Same(t, before, h.s.Store().Node("bus1"))

			notices := ofType(h.drain(), EventNotice)
			require.Len(t, notices, 1)
			assert.Equal(t, LevelError, notices[0].Payload.(Notice).Level)
		})
	}

	require.Len(t, history.runs, len(cases))
	for _, run := range history.runs {
		assert.False(t, run.Converged)
		assert.NotEmpty(t, run.Error)
	}
	assert.Nil(t, h.s.Stats())
}

// ============================================================================
// Viewport and config
// ============================================================================

func TestResizeIsDebounced(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	start := h.s.Center()
	assert.Equal(t, domain.Point{X: 400, Y: 300}, start)

	for _, w := range []float64{900, 1000, 1100, 1200, 1300} {
		require.NoError(t, h.s.Resize(w, 700))
		h.clock.Advance(50 * time.Millisecond)
		assert.Equal(t, start, h.s.Center())
	}

	h.clock.Advance(scheduler.DefaultQuietPeriod)
	assert.Equal(t, domain.Point{X: 650, Y: 350}, h.s.Center())

	var shape *domain.InvalidShapeError
	assert.ErrorAs(t, h.s.Resize(0, 100), &shape)
}

func TestApplyConfigReheats(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.s.Init(context.Background()))
	h.settle()
	require.False(t, h.s.Active())

	distance := 200.0
	profiles := layout.DefaultProfiles().WithOverrides(map[domain.Scale]layout.Override{
		domain.ScaleCase9: {LinkDistance: &distance},
	})
	h.s.ApplyConfig(profiles, layout.DefaultParams())

	assert.True(t, h.s.Active())
	assert.Equal(t, 200.0, h.s.engine.Profile().LinkDistance)
	assert.True(t, h.s.frames.Pending())
}

// ============================================================================
// Event bus
// ============================================================================

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	fast := make(chan Event, 4)
	slow := make(chan Event)
	bus.Subscribe(fast)
	bus.Subscribe(slow)

	bus.Publish(Event{Type: EventNotice})
	assert.Len(t, fast, 1)

	bus.Unsubscribe(fast)
	bus.Publish(Event{Type: EventNotice})
	assert.Len(t, fast, 1)

	bus.Close()
	bus.Subscribe(fast)
	bus.Publish(Event{Type: EventNotice})
	assert.Len(t, fast, 1)
}
