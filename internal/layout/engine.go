package layout

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gridscope/internal/domain"
	"gridscope/internal/topology"
)

// Engine is a force-directed simulation over the store's layout view. It
// writes body positions and velocities and nothing else.
type Engine struct {
	profile Profile
	params  Params

	bodies  []*domain.Body
	springs []spring
	index   map[string]int

	alpha       float64
	alphaTarget float64
	stopped     bool
	ticks       int

	cx, cy float64
	rng    *rand.Rand
}

type spring struct {
	source, target int
	strength       float64
	bias           float64
}

// New creates a stopped engine centered on (cx, cy)
func New(profile Profile, params Params, cx, cy float64) *Engine {
	return &Engine{
		profile: profile,
		params:  params,
		index:   make(map[string]int),
		stopped: true,
		cx:      cx,
		cy:      cy,
		rng:     rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
	}
}

// Reseed adopts a new working set and restarts the simulation at full energy.
// Bodies that were never placed are spread around the center first.
func (e *Engine) Reseed(v topology.View) {
	e.bodies = v.Bodies
	e.index = make(map[string]int, len(v.Bodies))
	for i, b := range v.Bodies {
		e.index[b.NodeID] = i
	}

	degree := make([]int, len(v.Bodies))
	for _, s := range v.Springs {
		degree[s.Source]++
		degree[s.Target]++
	}
	e.springs = make([]spring, len(v.Springs))
	for i, s := range v.Springs {
		ds, dt := degree[s.Source], degree[s.Target]
		e.springs[i] = spring{
			source:   s.Source,
			target:   s.Target,
			strength: 1 / float64(min(ds, dt)),
			bias:     float64(ds) / float64(ds+dt),
		}
	}

	e.placeUnplaced()
	e.Restart(1)
}

// placeUnplaced lays new bodies on a phyllotaxis spiral around the center
func (e *Engine) placeUnplaced() {
	const initialRadius = 10.0
	angle := math.Pi * (3 - math.Sqrt(5))
	for i, b := range e.bodies {
		if b.Placed() {
			continue
		}
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * angle
		b.X = e.cx + r*math.Cos(a)
		b.Y = e.cy + r*math.Sin(a)
		b.VX, b.VY = 0, 0
		b.MarkPlaced()
	}
}

// Restart raises alpha and resumes ticking
func (e *Engine) Restart(alpha float64) {
	e.alpha = alpha
	e.stopped = false
}

// Stop halts the simulation until the next Restart or Reseed
func (e *Engine) Stop() {
	e.stopped = true
	e.alphaTarget = 0
}

// Stopped reports whether Stop was called since the last restart
func (e *Engine) Stopped() bool {
	return e.stopped
}

// Active reports whether another tick would move anything
func (e *Engine) Active() bool {
	return !e.stopped && e.alpha >= e.params.AlphaMin
}

// Alpha returns the current simulation energy
func (e *Engine) Alpha() float64 {
	return e.alpha
}

// Ticks returns the number of steps taken since creation
func (e *Engine) Ticks() int {
	return e.ticks
}

// Profile returns the active force profile
func (e *Engine) Profile() Profile {
	return e.profile
}

// SetProfile swaps the force profile
func (e *Engine) SetProfile(p Profile) {
	e.profile = p
}

// SetParams swaps the simulation constants, keeping the current PRNG
func (e *Engine) SetParams(p Params) {
	e.params = p
}

// Center returns the point the centering force pulls toward
func (e *Engine) Center() domain.Point {
	return domain.Point{X: e.cx, Y: e.cy}
}

// SetCenter moves the centering target and lets the layout drift to it
func (e *Engine) SetCenter(x, y float64) {
	e.cx, e.cy = x, y
	if !e.stopped {
		e.Restart(math.Max(e.alpha, e.params.ReheatAlpha))
	}
}

// Pin fixes a body at (x, y) and holds the simulation warm while it is held
func (e *Engine) Pin(id string, x, y float64) error {
	b, err := e.body(id)
	if err != nil {
		return err
	}
	b.Pin(x, y)
	b.X, b.Y = x, y
	e.alphaTarget = e.params.DragAlphaTarget
	if !e.Active() {
		e.Restart(math.Max(e.alpha, e.params.AlphaMin))
	}
	return nil
}

// Drag moves a pinned body's anchor
func (e *Engine) Drag(id string, x, y float64) error {
	return e.Pin(id, x, y)
}

// Unpin releases a body to free dynamics and reheats so neighbors settle
func (e *Engine) Unpin(id string) error {
	b, err := e.body(id)
	if err != nil {
		return err
	}
	b.Unpin()
	e.alphaTarget = 0
	e.Restart(math.Max(e.alpha, e.params.ReheatAlpha))
	return nil
}

func (e *Engine) body(id string) (*domain.Body, error) {
	i, ok := e.index[id]
	if !ok {
		return nil, fmt.Errorf("layout: %w: %s", domain.ErrNodeNotFound, id)
	}
	return e.bodies[i], nil
}

// Tick advances the simulation one step and reports whether it is still
// active afterwards
func (e *Engine) Tick() bool {
	if !e.Active() {
		return false
	}

	e.alpha += (e.alphaTarget - e.alpha) * e.params.AlphaDecay

	e.applyLinks()
	e.applyCharge()
	e.applyCollide()
	e.integrate()
	e.applyCenter()

	e.ticks++
	return e.Active()
}

func (e *Engine) integrate() {
	keep := 1 - e.params.VelocityDecay
	for _, b := range e.bodies {
		if b.FX != nil {
			b.X = *b.FX
			b.VX = 0
		} else {
			b.VX *= keep
			b.X += b.VX
		}
		if b.FY != nil {
			b.Y = *b.FY
			b.VY = 0
		} else {
			b.VY *= keep
			b.Y += b.VY
		}
	}
}

// jiggle returns a tiny random offset used to separate coincident bodies
func (e *Engine) jiggle() float64 {
	return (e.rng.Float64() - 0.5) * 1e-6
}
