package domain

// Endpoint is a link's reference to a node. It starts out Unresolved (an id
// only) and becomes Resolved once the store binds it to a live node.
type Endpoint struct {
	id   string
	node *Node
}

// Unresolved returns an endpoint that names a node by id only
func Unresolved(id string) Endpoint {
	return Endpoint{id: id}
}

// Resolved returns an endpoint bound to n
func Resolved(n *Node) Endpoint {
	return Endpoint{id: n.ID, node: n}
}

// ID returns the referenced node id
func (e Endpoint) ID() string {
	return e.id
}

// Node returns the bound node, or nil if unresolved
func (e Endpoint) Node() *Node {
	return e.node
}

// IsResolved reports whether the endpoint is bound to a node instance
func (e Endpoint) IsResolved() bool {
	return e.node != nil
}

// BranchFlow holds the per-branch results of a power-flow computation
type BranchFlow struct {
	FromActive   float64 `json:"from_active" yaml:"from_active"`
	FromReactive float64 `json:"from_reactive" yaml:"from_reactive"`
	ToActive     float64 `json:"to_active" yaml:"to_active"`
	ToReactive   float64 `json:"to_reactive" yaml:"to_reactive"`
	LossActive   float64 `json:"loss_active" yaml:"loss_active"`
	LossReactive float64 `json:"loss_reactive" yaml:"loss_reactive"`
}

// Link represents a branch between two buses
type Link struct {
	ID         string
	Source     Endpoint
	Target     Endpoint
	Resistance float64
	Reactance  float64
	Flow       *BranchFlow
}

// LinkAttrs are the caller-supplied attributes of a new link
type LinkAttrs struct {
	Resistance float64
	Reactance  float64
	Flow       *BranchFlow
}

// NewLink creates a link with unresolved endpoints
func NewLink(sourceID, targetID string, attrs LinkAttrs) *Link {
	return &Link{
		Source:     Unresolved(sourceID),
		Target:     Unresolved(targetID),
		Resistance: attrs.Resistance,
		Reactance:  attrs.Reactance,
		Flow:       attrs.Flow,
	}
}

// Pair returns the unordered endpoint pair of the link
func (l *Link) Pair() PairKey {
	return MakePair(l.Source.ID(), l.Target.ID())
}

// Touches reports whether the link is incident to nodeID
func (l *Link) Touches(nodeID string) bool {
	return l.Source.ID() == nodeID || l.Target.ID() == nodeID
}

// Record converts the link to its canonical wire shape
func (l *Link) Record() LinkRecord {
	rec := LinkRecord{
		ID:         l.ID,
		Source:     l.Source.ID(),
		Target:     l.Target.ID(),
		Resistance: l.Resistance,
		Reactance:  l.Reactance,
	}
	if l.Flow != nil {
		f := *l.Flow
		rec.BranchFlow = &f
	}
	return rec
}

// PairKey is an order-independent key for a pair of node ids
type PairKey struct {
	A, B string
}

// MakePair normalizes two ids into a PairKey
func MakePair(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}
