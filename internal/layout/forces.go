package layout

import "math"

// applyLinks pulls each spring toward its rest length. Low-degree ends move
// more than hub ends.
func (e *Engine) applyLinks() {
	for _, s := range e.springs {
		src, tgt := e.bodies[s.source], e.bodies[s.target]
		x := tgt.X + tgt.VX - src.X - src.VX
		y := tgt.Y + tgt.VY - src.Y - src.VY
		if x == 0 {
			x = e.jiggle()
		}
		if y == 0 {
			y = e.jiggle()
		}
		l := math.Sqrt(x*x + y*y)
		l = (l - e.profile.LinkDistance) / l * e.alpha * s.strength * e.profile.LinkStrength
		x *= l
		y *= l
		tgt.VX -= x * s.bias
		tgt.VY -= y * s.bias
		src.VX += x * (1 - s.bias)
		src.VY += y * (1 - s.bias)
	}
}

// applyCharge is the pairwise many-body force. Negative charge repels.
func (e *Engine) applyCharge() {
	minD2 := e.params.ChargeDistanceMin * e.params.ChargeDistanceMin
	for i, a := range e.bodies {
		for j, b := range e.bodies {
			if i == j {
				continue
			}
			x := b.X - a.X
			y := b.Y - a.Y
			if x == 0 {
				x = e.jiggle()
			}
			if y == 0 {
				y = e.jiggle()
			}
			l := x*x + y*y
			if l < minD2 {
				l = math.Sqrt(minD2 * l)
			}
			w := e.profile.Charge * e.alpha / l
			a.VX += x * w
			a.VY += y * w
		}
	}
}

// applyCollide pushes apart bodies closer than twice the collision radius
func (e *Engine) applyCollide() {
	r := 2 * e.profile.CollideRadius
	if r <= 0 {
		return
	}
	for i := 0; i < len(e.bodies); i++ {
		a := e.bodies[i]
		for j := i + 1; j < len(e.bodies); j++ {
			b := e.bodies[j]
			x := (a.X + a.VX) - (b.X + b.VX)
			y := (a.Y + a.VY) - (b.Y + b.VY)
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = e.jiggle()
				l += x * x
			}
			if y == 0 {
				y = e.jiggle()
				l += y * y
			}
			l = math.Sqrt(l)
			l = (r - l) / l * e.params.CollideStrength
			x *= l * 0.5
			y *= l * 0.5
			a.VX += x
			a.VY += y
			b.VX -= x
			b.VY -= y
		}
	}
}

// applyCenter translates free bodies so their centroid moves toward the
// center
func (e *Engine) applyCenter() {
	if len(e.bodies) == 0 || e.profile.CenterStrength == 0 {
		return
	}
	var sx, sy float64
	for _, b := range e.bodies {
		sx += b.X
		sy += b.Y
	}
	n := float64(len(e.bodies))
	dx := (sx/n - e.cx) * e.profile.CenterStrength
	dy := (sy/n - e.cy) * e.profile.CenterStrength
	for _, b := range e.bodies {
		if b.Pinned() {
			continue
		}
		b.X -= dx
		b.Y -= dy
	}
}
