package topology

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gridscope/internal/domain"
)

// ChangeKind identifies the kind of mutation a Change describes
type ChangeKind string

const (
	NodeAdded   ChangeKind = "node_added"
	NodeUpdated ChangeKind = "node_updated"
	NodeDeleted ChangeKind = "node_deleted"
	LinkAdded   ChangeKind = "link_added"
	LinkUpdated ChangeKind = "link_updated"
	LinkDeleted ChangeKind = "link_deleted"
	Replaced    ChangeKind = "replaced"
)

// Change describes one committed store mutation
type Change struct {
	Kind   ChangeKind
	NodeID string
	LinkID string

	// LinkIDs lists links removed together with a deleted node
	LinkIDs []string
}

// NodePatch holds optional replacements for a node's mutable attributes
type NodePatch struct {
	Type          *domain.NodeType
	Voltage       *float64
	Angle         *float64
	ActivePower   *float64
	ReactivePower *float64
}

// LinkPatch holds optional replacements for a link's line parameters
type LinkPatch struct {
	Resistance *float64
	Reactance  *float64
}

// Store owns the canonical node and link collections. It is not safe for
// concurrent use; the session goroutine is its only caller.
type Store struct {
	nodes   map[string]*domain.Node
	order   []string
	links   []*domain.Link
	linkSeq int
	version uint64

	subscribers []func(Change)
}

// New creates an empty store
func New() *Store {
	return &Store{
		nodes: make(map[string]*domain.Node),
	}
}

// Subscribe registers fn to be called after every committed mutation
func (s *Store) Subscribe(fn func(Change)) {
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) commit(c Change) {
	s.version++
	for _, fn := range s.subscribers {
		fn(c)
	}
}

// Version increments on every committed mutation
func (s *Store) Version() uint64 {
	return s.version
}

// AddNode inserts n. The id must be non-empty and unused.
func (s *Store) AddNode(n *domain.Node) error {
	if n == nil || strings.TrimSpace(n.ID) == "" {
		return domain.ErrInvalidID
	}
	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrNodeExists, n.ID)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("node %s: invalid type %q", n.ID, n.Type)
	}

	n.Body()
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	s.commit(Change{Kind: NodeAdded, NodeID: n.ID})
	return nil
}

// AddLink connects two existing nodes. It rejects self-loops and any second
// link between the same unordered pair.
func (s *Store) AddLink(sourceID, targetID string, attrs domain.LinkAttrs) (*domain.Link, error) {
	if sourceID == targetID {
		return nil, &domain.SelfLoopError{NodeID: sourceID}
	}
	for _, id := range []string{sourceID, targetID} {
		if _, ok := s.nodes[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
		}
	}
	if s.HasLink(sourceID, targetID) {
		return nil, &domain.DuplicateLinkError{SourceID: sourceID, TargetID: targetID}
	}

	link := domain.NewLink(sourceID, targetID, attrs)
	link.ID = s.nextLinkID()
	s.bind(link)
	s.links = append(s.links, link)
	s.commit(Change{Kind: LinkAdded, LinkID: link.ID})
	return link, nil
}

// UpdateNode applies patch to the node with the given id. Ids are immutable.
func (s *Store) UpdateNode(id string, patch NodePatch) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return fmt.Errorf("node %s: invalid type %q", id, *patch.Type)
		}
		n.Type = *patch.Type
	}
	if patch.Voltage != nil {
		n.Voltage = *patch.Voltage
	}
	if patch.Angle != nil {
		n.Angle = *patch.Angle
	}
	if patch.ActivePower != nil {
		n.ActivePower = *patch.ActivePower
	}
	if patch.ReactivePower != nil {
		n.ReactivePower = *patch.ReactivePower
	}
	s.commit(Change{Kind: NodeUpdated, NodeID: id})
	return nil
}

// UpdateLink applies patch to the link with the given id
func (s *Store) UpdateLink(id string, patch LinkPatch) error {
	l := s.Link(id)
	if l == nil {
		return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, id)
	}
	if patch.Resistance != nil {
		l.Resistance = *patch.Resistance
	}
	if patch.Reactance != nil {
		l.Reactance = *patch.Reactance
	}
	s.commit(Change{Kind: LinkUpdated, LinkID: id})
	return nil
}

// DeleteNode removes the node and every incident link in one step and
// returns the removed links
func (s *Store) DeleteNode(id string) ([]*domain.Link, error) {
	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}

	var removed []*domain.Link
	kept := s.links[:0:0]
	for _, l := range s.links {
		if l.Touches(id) {
			removed = append(removed, l)
			continue
		}
		kept = append(kept, l)
	}
	s.links = kept

	delete(s.nodes, id)
	for i, nid := range s.order {
		if nid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}

	ids := make([]string, len(removed))
	for i, l := range removed {
		ids[i] = l.ID
	}
	s.commit(Change{Kind: NodeDeleted, NodeID: id, LinkIDs: ids})
	return removed, nil
}

// DeleteLink removes the link joining the unordered pair {sourceID, targetID}
func (s *Store) DeleteLink(sourceID, targetID string) error {
	key := domain.MakePair(sourceID, targetID)
	for _, l := range s.links {
		if l.Pair() == key {
			return s.DeleteLinkByID(l.ID)
		}
	}
	return fmt.Errorf("%w: %s-%s", domain.ErrLinkNotFound, sourceID, targetID)
}

// DeleteLinkByID removes one specific line
func (s *Store) DeleteLinkByID(id string) error {
	for i, l := range s.links {
		if l.ID == id {
			s.links = append(s.links[:i:i], s.links[i+1:]...)
			s.commit(Change{Kind: LinkDeleted, LinkID: id})
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, id)
}

// ReplaceAll swaps in a complete node and link set, as returned by a
// computation. Every link endpoint is resolved against the new nodes before
// anything is committed; on failure the store is left untouched. Bulk sets
// may contain parallel lines. Nodes without a position inherit the position
// of the node they replace.
func (s *Store) ReplaceAll(nodes []*domain.Node, links []*domain.Link) error {
	staged := make(map[string]*domain.Node, len(nodes))
	order := make([]string, 0, len(nodes))
	for i, n := range nodes {
		if n == nil || strings.TrimSpace(n.ID) == "" {
			return &domain.InvalidShapeError{Path: fmt.Sprintf("nodes[%d].id", i), Reason: "missing id"}
		}
		if _, dup := staged[n.ID]; dup {
			return &domain.InvalidShapeError{Path: fmt.Sprintf("nodes[%d].id", i), Reason: "duplicate id " + n.ID}
		}
		if !n.Type.Valid() {
			return &domain.InvalidShapeError{Path: fmt.Sprintf("nodes[%d].type", i), Reason: "invalid type " + string(n.Type)}
		}
		staged[n.ID] = n
		order = append(order, n.ID)
	}

	var missing []domain.Unresolvable
	for i, l := range links {
		if l.Source.ID() == l.Target.ID() {
			return &domain.InvalidShapeError{Path: fmt.Sprintf("links[%d]", i), Reason: "self-loop on " + l.Source.ID()}
		}
		for _, ep := range []domain.Endpoint{l.Source, l.Target} {
			if _, ok := staged[ep.ID()]; !ok {
				missing = append(missing, domain.Unresolvable{LinkID: fmt.Sprintf("links[%d]", i), NodeID: ep.ID()})
			}
		}
	}
	if len(missing) > 0 {
		return &domain.ReferenceResolutionError{Missing: missing}
	}

	for _, n := range nodes {
		body := n.Body()
		if !body.Placed() {
			if old, ok := s.nodes[n.ID]; ok && old.Placed() {
				p := old.Position()
				n.Place(p.X, p.Y)
			}
		}
	}

	s.nodes = staged
	s.order = order
	// A fresh link set is numbered from line-1 with no collisions to probe for
	s.links = make([]*domain.Link, 0, len(links))
	for i, l := range links {
		l.ID = "line-" + strconv.Itoa(i+1)
		s.bind(l)
		s.links = append(s.links, l)
	}
	s.linkSeq = len(links)
	s.commit(Change{Kind: Replaced})
	return nil
}

// ResolveReferences rebinds every link endpoint to the live node sharing its
// id, replacing unresolved ids and stale node instances. If any endpoint
// cannot be resolved nothing is changed.
func (s *Store) ResolveReferences() error {
	var missing []domain.Unresolvable
	for _, l := range s.links {
		for _, ep := range []domain.Endpoint{l.Source, l.Target} {
			if _, ok := s.nodes[ep.ID()]; !ok {
				missing = append(missing, domain.Unresolvable{LinkID: l.ID, NodeID: ep.ID()})
			}
		}
	}
	if len(missing) > 0 {
		return &domain.ReferenceResolutionError{Missing: missing}
	}
	for _, l := range s.links {
		s.bind(l)
	}
	return nil
}

func (s *Store) bind(l *domain.Link) {
	if n := s.nodes[l.Source.ID()]; n != nil && l.Source.Node() != n {
		l.Source = domain.Resolved(n)
	}
	if n := s.nodes[l.Target.ID()]; n != nil && l.Target.Node() != n {
		l.Target = domain.Resolved(n)
	}
}

func (s *Store) nextLinkID() string {
	for {
		s.linkSeq++
		id := "line-" + strconv.Itoa(s.linkSeq)
		if s.Link(id) == nil {
			return id
		}
	}
}

// Node returns the node with the given id, or nil
func (s *Store) Node(id string) *domain.Node {
	return s.nodes[id]
}

// Link returns the link with the given id, or nil
func (s *Store) Link(id string) *domain.Link {
	for _, l := range s.links {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Nodes returns the nodes in insertion order
func (s *Store) Nodes() []*domain.Node {
	out := make([]*domain.Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// Links returns the links in insertion order
func (s *Store) Links() []*domain.Link {
	out := make([]*domain.Link, len(s.links))
	copy(out, s.links)
	return out
}

// Len returns the node and link counts
func (s *Store) Len() (nodes, links int) {
	return len(s.nodes), len(s.links)
}

// HasLink reports whether any link joins the unordered pair {a, b}
func (s *Store) HasLink(a, b string) bool {
	key := domain.MakePair(a, b)
	for _, l := range s.links {
		if l.Pair() == key {
			return true
		}
	}
	return false
}

// Incident returns the links touching the node
func (s *Store) Incident(id string) []*domain.Link {
	var out []*domain.Link
	for _, l := range s.links {
		if l.Touches(id) {
			out = append(out, l)
		}
	}
	return out
}

var idSuffix = regexp.MustCompile(`(\d+)$`)

// NextNodeID returns an unused id of the form prefix+N, one past the highest
// numeric suffix already in use
func (s *Store) NextNodeID(prefix string) string {
	highest := 0
	for id := range s.nodes {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if m := idSuffix.FindString(strings.TrimPrefix(id, prefix)); m != "" {
			if v, err := strconv.Atoi(m); err == nil && v > highest {
				highest = v
			}
		}
	}
	for n := highest + 1; ; n++ {
		id := prefix + strconv.Itoa(n)
		if _, taken := s.nodes[id]; !taken {
			return id
		}
	}
}

// Payload exports the current topology in canonical form, positions included
func (s *Store) Payload(caseLabel string) domain.Payload {
	p := domain.Payload{
		Case:  caseLabel,
		Nodes: make([]domain.NodeRecord, 0, len(s.order)),
		Links: make([]domain.LinkRecord, 0, len(s.links)),
	}
	for _, n := range s.Nodes() {
		p.Nodes = append(p.Nodes, n.Record())
	}
	for _, l := range s.links {
		p.Links = append(p.Links, l.Record())
	}
	return p
}
