// Package session holds the live editing session: the topology store, the
// layout engine, the interaction machine and the frame loop that ties them
// together. A Session is single-threaded; the Runner owns it on one goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gridscope/internal/adapter"
	"gridscope/internal/backend"
	"gridscope/internal/domain"
	"gridscope/internal/interaction"
	"gridscope/internal/layout"
	"gridscope/internal/metrics"
	"gridscope/internal/repository"
	"gridscope/internal/scheduler"
	"gridscope/internal/topology"
	"gridscope/internal/view"
)

// DefaultMethod is the solver requested when none is given
const DefaultMethod = "newton-raphson"

// Default viewport
const (
	DefaultWidth  = 800.0
	DefaultHeight = 600.0
)

// Backend is the subset of the computation backend the session uses
type Backend interface {
	GridData(ctx context.Context) (map[string]any, error)
	LoadCase(ctx context.Context, name string) (map[string]any, error)
	CalculateFlow(ctx context.Context, req backend.FlowRequest) (*backend.FlowResponse, error)
}

// Deps configures a Session. Zero values select defaults.
type Deps struct {
	Backend  Backend
	History  repository.HistoryRepository
	Bus      *EventBus
	Clock    scheduler.Clock
	Dispatch scheduler.Dispatch
	Logger   *slog.Logger

	Profiles layout.Profiles
	Params   *layout.Params

	Width, Height float64
	FrameInterval time.Duration
	ResizeQuiet   time.Duration
}

// Session is the explicit session state
type Session struct {
	store   *topology.Store
	engine  *layout.Engine
	machine *interaction.Machine
	frames  *scheduler.FrameScheduler
	resize  *scheduler.Debouncer

	bus      *EventBus
	backend  Backend
	history  repository.HistoryRepository
	profiles layout.Profiles
	log      *slog.Logger

	caseLabel string
	scale     domain.Scale
	stats     *domain.Stats
	inFlight  bool

	width, height float64
	seq           uint64
	frame         atomic.Pointer[view.Frame]
	closed        bool
}

// New wires a session around an empty store
func New(deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = scheduler.RealClock{}
	}
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Profiles == nil {
		deps.Profiles = layout.DefaultProfiles()
	}
	params := layout.DefaultParams()
	if deps.Params != nil {
		params = *deps.Params
	}
	if deps.Width <= 0 || deps.Height <= 0 {
		deps.Width, deps.Height = DefaultWidth, DefaultHeight
	}
	if deps.FrameInterval <= 0 {
		deps.FrameInterval = scheduler.DefaultFrameInterval
	}
	if deps.ResizeQuiet <= 0 {
		deps.ResizeQuiet = scheduler.DefaultQuietPeriod
	}

	s := &Session{
		store:    topology.New(),
		bus:      deps.Bus,
		backend:  deps.Backend,
		history:  deps.History,
		profiles: deps.Profiles,
		log:      deps.Logger,
		scale:    domain.ScaleCase9,
		width:    deps.Width,
		height:   deps.Height,
	}
	s.engine = layout.New(s.profiles.For(s.scale), params, deps.Width/2, deps.Height/2)
	s.machine = interaction.New(s.store, s.engine)
	s.frames = scheduler.NewFrameScheduler(deps.Clock, deps.FrameInterval, deps.Dispatch)
	s.resize = scheduler.NewDebouncer(deps.Clock, deps.ResizeQuiet, deps.Dispatch)

	// Registered after the machine so selection cleanup lands before the
	// frame that shows it
	s.store.Subscribe(s.onStoreChange)
	return s
}

// ============================================================================
// Lifecycle
// ============================================================================

// Init loads the startup topology from the backend, falling back to the
// built-in sample when it cannot be fetched, converted or installed
func (s *Session) Init(ctx context.Context) error {
	res, err := s.fetchInitial(ctx)
	if err == nil {
		if err = s.install(res); err == nil {
			return nil
		}
	}
	s.log.Warn("grid data unavailable, using sample topology", "err", err)
	s.notice(LevelWarn, fmt.Sprintf("backend unavailable, showing sample grid: %v", err))
	return s.install(adapter.Sample())
}

// InitFrom installs an already converted topology, for offline starts
func (s *Session) InitFrom(res *adapter.Result) error {
	return s.install(res)
}

func (s *Session) fetchInitial(ctx context.Context) (*adapter.Result, error) {
	if s.backend == nil {
		return nil, domain.ErrNoBackend
	}
	doc, err := s.backend.GridData(ctx)
	if err != nil {
		return nil, err
	}
	return adapter.Convert(doc)
}

// Teardown stops the engine, cancels pending callbacks and closes the bus
func (s *Session) Teardown() {
	if s.closed {
		return
	}
	s.closed = true
	s.engine.Stop()
	s.frames.CancelPendingTick()
	s.resize.Cancel()
	s.bus.Close()
}

// install replaces the whole topology with res and restarts the layout
func (s *Session) install(res *adapter.Result) error {
	if err := s.store.ReplaceAll(res.Nodes, res.Links); err != nil {
		return err
	}
	if err := s.store.ResolveReferences(); err != nil {
		return err
	}

	s.caseLabel = res.Case
	s.scale = res.Scale
	s.machine.Reset()
	s.engine.SetProfile(s.profiles.For(s.scale))
	s.engine.Reseed(s.store.LayoutView())
	s.requestFrame()

	nodes, links := s.store.Len()
	s.log.Info("topology installed", "case", s.caseLabel, "scale", s.scale, "nodes", nodes, "links", links)
	s.bus.Publish(Event{Type: EventTopology, Payload: TopologyInfo{
		Case:  s.caseLabel,
		Scale: string(s.scale),
		Nodes: nodes,
		Links: links,
	}})
	return nil
}

// ============================================================================
// Frame loop
// ============================================================================

func (s *Session) onStoreChange(topology.Change) {
	nodes, links := s.store.Len()
	metrics.StoreNodes.Set(float64(nodes))
	metrics.StoreLinks.Set(float64(links))
	s.requestFrame()
}

func (s *Session) requestFrame() {
	if s.closed {
		return
	}
	if s.frames.RequestTick(s.runFrame) {
		metrics.FramesCoalesced.Inc()
	}
}

// runFrame advances the simulation one step and publishes a projection
func (s *Session) runFrame() {
	if s.closed {
		return
	}
	before := s.engine.Ticks()
	s.engine.Tick()
	metrics.LayoutTicks.Add(float64(s.engine.Ticks() - before))

	s.seq++
	f := view.Project(s.store, s.machine.State(), s.seq, s.engine.Alpha())
	s.frame.Store(&f)
	s.bus.Publish(Event{Type: EventFrame, Payload: f})
	metrics.FramesPublished.Inc()

	if s.engine.Active() {
		s.requestFrame()
	}
}

// Frame returns the most recently published frame. Safe from any goroutine.
func (s *Session) Frame() view.Frame {
	if f := s.frame.Load(); f != nil {
		return *f
	}
	return view.Frame{Mode: interaction.ModeIdle, Nodes: []view.NodeGlyph{}, Links: []view.LinkGlyph{}}
}

// ============================================================================
// Gestures and edits
// ============================================================================

// Gesture applies one operator gesture. Guard violations are published as
// warn notices and returned.
func (s *Session) Gesture(g interaction.Gesture) error {
	err := s.machine.Apply(g)

	result := "ok"
	switch {
	case err == nil:
	case domain.IsGuardViolation(err):
		result = "rejected"
		s.notice(LevelWarn, err.Error())
	default:
		result = "error"
	}
	metrics.Gestures.WithLabelValues(string(g.Kind), result).Inc()

	// Selection and pins change the picture even when the store does not
	s.requestFrame()
	return err
}

// CommitNodeEdit writes operator-entered fields to a node. Only fields the
// field table marks editable for the node's (possibly new) type are accepted.
func (s *Session) CommitNodeEdit(id string, fields map[string]float64, nodeType string) error {
	n := s.store.Node(id)
	if n == nil {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}

	var patch topology.NodePatch
	t := n.Type
	if nodeType != "" {
		parsed, err := domain.ParseNodeType(nodeType)
		if err != nil {
			return &domain.InvalidShapeError{Path: "type", Reason: err.Error()}
		}
		t = parsed
		patch.Type = &t
	}

	for name, v := range fields {
		f, ok := domain.ParseField(name)
		if !ok {
			return &domain.InvalidShapeError{Path: "fields." + name, Reason: "unknown field"}
		}
		if !domain.Editable(t, f) {
			return &domain.ReadOnlyFieldError{Type: t, Field: f}
		}
		switch f {
		case domain.FieldVoltage:
			patch.Voltage = &v
		case domain.FieldAngle:
			patch.Angle = &v
		case domain.FieldActivePower:
			patch.ActivePower = &v
		case domain.FieldReactivePower:
			patch.ReactivePower = &v
		}
	}

	return s.store.UpdateNode(id, patch)
}

// CommitLinkEdit writes line parameters to a link
func (s *Session) CommitLinkEdit(id string, resistance, reactance *float64) error {
	return s.store.UpdateLink(id, topology.LinkPatch{Resistance: resistance, Reactance: reactance})
}

// ============================================================================
// Cases
// ============================================================================

// InstallCase converts and installs a fetched case document
func (s *Session) InstallCase(name string, doc map[string]any) error {
	res, err := adapter.Convert(doc)
	if err == nil {
		err = s.install(res)
	}
	if err != nil {
		return s.caseFailed(name, err)
	}
	return nil
}

// caseFailed reports a case that could not be fetched or installed. The
// current topology stays in place.
func (s *Session) caseFailed(name string, err error) error {
	s.log.Warn("case load failed", "case", name, "err", err)
	s.notice(LevelError, fmt.Sprintf("failed to load %s: %v", name, err))
	return err
}

// ============================================================================
// Calculation
// ============================================================================

// BeginCalculation marks a calculation in flight and returns the request to
// send. Only one calculation may be in flight.
func (s *Session) BeginCalculation(method string) (backend.FlowRequest, error) {
	if s.inFlight {
		return backend.FlowRequest{}, domain.ErrCalculationInFlight
	}
	if s.backend == nil {
		return backend.FlowRequest{}, domain.ErrNoBackend
	}
	if method == "" {
		method = DefaultMethod
	}
	s.inFlight = true

	p := s.store.Payload(s.caseLabel)
	return backend.FlowRequest{Nodes: p.Nodes, Links: p.Links, Method: method}, nil
}

// CompleteCalculation installs a calculation result, or keeps the current
// topology and publishes an error notice when the call or conversion failed
func (s *Session) CompleteCalculation(ctx context.Context, req backend.FlowRequest, resp *backend.FlowResponse, callErr error) error {
	s.inFlight = false

	run := &repository.Run{
		Case:   s.caseLabel,
		Method: req.Method,
		Nodes:  len(req.Nodes),
		Links:  len(req.Links),
	}
	defer s.record(ctx, run)

	err := callErr
	if err == nil {
		err = s.installResult(resp)
	}
	if err != nil {
		run.Error = err.Error()
		s.log.Warn("calculation failed", "case", s.caseLabel, "err", err)
		s.notice(LevelError, fmt.Sprintf("calculation failed: %v", err))
		return err
	}

	run.Converged = true
	run.Stats = resp.Stats
	s.stats = resp.Stats
	s.bus.Publish(Event{Type: EventCalculation, Payload: s.stats})
	return nil
}

func (s *Session) installResult(resp *backend.FlowResponse) error {
	if resp == nil {
		return &domain.InvalidShapeError{Reason: "empty calculation response"}
	}
	res, err := adapter.Convert(resp.Raw)
	if err != nil {
		return err
	}
	if !hasLabel(resp.Raw) {
		res.Case = s.caseLabel
	}
	return s.install(res)
}

func hasLabel(doc map[string]any) bool {
	for _, k := range []string{"case", "name"} {
		if v, ok := doc[k].(string); ok && v != "" {
			return true
		}
	}
	return false
}

func (s *Session) record(ctx context.Context, run *repository.Run) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordRun(ctx, run); err != nil {
		s.log.Error("failed to record calculation", "err", err)
	}
}

// ============================================================================
// Viewport and config
// ============================================================================

// Resize records the viewport size and recenters the layout once the size
// has been stable for the quiet period
func (s *Session) Resize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return &domain.InvalidShapeError{Path: "viewport", Reason: "width and height must be positive"}
	}
	s.width, s.height = width, height
	s.resize.Trigger(func() {
		s.engine.SetCenter(s.width/2, s.height/2)
		s.requestFrame()
	})
	return nil
}

// ApplyConfig swaps the layout profiles and parameters and reheats the
// simulation so the change is visible
func (s *Session) ApplyConfig(profiles layout.Profiles, params layout.Params) {
	if profiles != nil {
		s.profiles = profiles
	}
	s.engine.SetProfile(s.profiles.For(s.scale))
	s.engine.SetParams(params)
	s.engine.Restart(max(s.engine.Alpha(), params.ReheatAlpha))
	s.requestFrame()
	s.log.Info("layout config applied", "scale", s.scale)
}

// ============================================================================
// Queries
// ============================================================================

// State returns the interaction state
func (s *Session) State() interaction.State { return s.machine.State() }

// Topology exports the canonical payload with current positions
func (s *Session) Topology() domain.Payload { return s.store.Payload(s.caseLabel) }

// Stats returns the statistics of the last successful calculation
func (s *Session) Stats() *domain.Stats { return s.stats }

// Case returns the current case label and scale
func (s *Session) Case() (string, domain.Scale) { return s.caseLabel, s.scale }

// InFlight reports whether a calculation is outstanding
func (s *Session) InFlight() bool { return s.inFlight }

// Viewport returns the last requested viewport size
func (s *Session) Viewport() (width, height float64) { return s.width, s.height }

// Center returns the layout center
func (s *Session) Center() domain.Point { return s.engine.Center() }

// Active reports whether the simulation is still moving
func (s *Session) Active() bool { return s.engine.Active() }

// Store exposes the store for read-only inspection
func (s *Session) Store() *topology.Store { return s.store }

// Bus returns the session's event bus
func (s *Session) Bus() *EventBus { return s.bus }

// History returns the configured history repository, which may be nil
func (s *Session) History() repository.HistoryRepository { return s.history }

func (s *Session) notice(level, msg string) {
	s.bus.Publish(Event{Type: EventNotice, Payload: Notice{Level: level, Message: msg}})
}

// IsClosed reports whether err came from a torn down session
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
