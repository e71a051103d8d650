package domain

import "math"

// Point is a 2D coordinate in diagram space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the euclidean distance to q
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Body is the kinematic state of a node in the force simulation. The store
// hands bodies to the layout engine through its layout view; that engine is
// the only writer.
type Body struct {
	NodeID string
	X, Y   float64
	VX, VY float64

	// FX and FY pin the body while a drag is active
	FX, FY *float64

	placed bool
}

func newBody() *Body {
	return &Body{}
}

// Pin fixes the body at (x, y)
func (b *Body) Pin(x, y float64) {
	b.FX = &x
	b.FY = &y
	b.placed = true
}

// Unpin releases the body back to free dynamics
func (b *Body) Unpin() {
	b.FX = nil
	b.FY = nil
}

// Pinned reports whether the body has fixed coordinates
func (b *Body) Pinned() bool {
	return b.FX != nil && b.FY != nil
}

// MarkPlaced records that the body has a meaningful position
func (b *Body) MarkPlaced() {
	b.placed = true
}

// Placed reports whether the body has a meaningful position
func (b *Body) Placed() bool {
	return b.placed
}
