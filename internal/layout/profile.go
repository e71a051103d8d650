package layout

import (
	"math"

	"gridscope/internal/domain"
)

// Profile configures the four forces for one network scale
type Profile struct {
	LinkDistance   float64 `json:"link_distance"`
	LinkStrength   float64 `json:"link_strength"`
	Charge         float64 `json:"charge"`
	CollideRadius  float64 `json:"collide_radius"`
	CenterStrength float64 `json:"center_strength"`
}

// Override replaces selected profile fields
type Override struct {
	LinkDistance   *float64
	LinkStrength   *float64
	Charge         *float64
	CollideRadius  *float64
	CenterStrength *float64
}

// Apply returns p with every set field of o replaced
func (p Profile) Apply(o Override) Profile {
	if o.LinkDistance != nil {
		p.LinkDistance = *o.LinkDistance
	}
	if o.LinkStrength != nil {
		p.LinkStrength = *o.LinkStrength
	}
	if o.Charge != nil {
		p.Charge = *o.Charge
	}
	if o.CollideRadius != nil {
		p.CollideRadius = *o.CollideRadius
	}
	if o.CenterStrength != nil {
		p.CenterStrength = *o.CenterStrength
	}
	return p
}

// Profiles maps a scale to its force profile
type Profiles map[domain.Scale]Profile

// DefaultProfiles returns the built-in table. Larger networks get shorter
// links, weaker charge and smaller collision radii.
func DefaultProfiles() Profiles {
	return Profiles{
		domain.ScaleCase9:   {LinkDistance: 150, LinkStrength: 0.7, Charge: -600, CollideRadius: 24, CenterStrength: 0.1},
		domain.ScaleCase14:  {LinkDistance: 120, LinkStrength: 0.6, Charge: -450, CollideRadius: 20, CenterStrength: 0.1},
		domain.ScaleCase30:  {LinkDistance: 90, LinkStrength: 0.5, Charge: -300, CollideRadius: 16, CenterStrength: 0.08},
		domain.ScaleCase39:  {LinkDistance: 80, LinkStrength: 0.45, Charge: -250, CollideRadius: 14, CenterStrength: 0.08},
		domain.ScaleCase57:  {LinkDistance: 65, LinkStrength: 0.4, Charge: -180, CollideRadius: 12, CenterStrength: 0.05},
		domain.ScaleCase118: {LinkDistance: 45, LinkStrength: 0.3, Charge: -100, CollideRadius: 10, CenterStrength: 0.05},
	}
}

// For returns the profile for scale, falling back to the smallest scale
func (p Profiles) For(scale domain.Scale) Profile {
	if prof, ok := p[scale]; ok {
		return prof
	}
	if prof, ok := p[domain.ScaleCase9]; ok {
		return prof
	}
	return DefaultProfiles()[domain.ScaleCase9]
}

// WithOverrides returns a copy of p with per-scale overrides applied
func (p Profiles) WithOverrides(overrides map[domain.Scale]Override) Profiles {
	out := make(Profiles, len(p))
	for scale, prof := range p {
		out[scale] = prof
	}
	for scale, o := range overrides {
		out[scale] = out.For(scale).Apply(o)
	}
	return out
}

// Params are the simulation constants shared by every profile
type Params struct {
	AlphaMin        float64
	AlphaDecay      float64
	VelocityDecay   float64
	DragAlphaTarget float64
	ReheatAlpha     float64

	// ChargeDistanceMin bounds the many-body force for near-coincident bodies
	ChargeDistanceMin float64

	// CollideStrength scales the collision separation per tick
	CollideStrength float64

	Seed uint64
}

// DefaultParams settles in roughly 300 ticks from alpha 1
func DefaultParams() Params {
	return Params{
		AlphaMin:          0.001,
		AlphaDecay:        1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:     0.8,
		DragAlphaTarget:   0.3,
		ReheatAlpha:       0.3,
		ChargeDistanceMin: 1,
		CollideStrength:   0.7,
		Seed:              1,
	}
}
