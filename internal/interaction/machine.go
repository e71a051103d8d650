package interaction

import (
	"fmt"

	"gridscope/internal/domain"
	"gridscope/internal/topology"
)

// Mode is the interaction state's discriminant
type Mode string

const (
	ModeIdle               Mode = "idle"
	ModeNodeSelected       Mode = "node_selected"
	ModeLinkSelected       Mode = "link_selected"
	ModeAwaitingLinkSource Mode = "awaiting_link_source"
	ModeAwaitingLinkTarget Mode = "awaiting_link_target"
)

// State is the current mode plus the ids it carries. Only the id matching
// the mode is ever set.
type State struct {
	Mode     Mode   `json:"mode"`
	NodeID   string `json:"node_id,omitempty"`
	LinkID   string `json:"link_id,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

// SelectedNode returns the selected node id, if any
func (s State) SelectedNode() string {
	if s.Mode == ModeNodeSelected {
		return s.NodeID
	}
	return ""
}

// SelectedLink returns the selected link id, if any
func (s State) SelectedLink() string {
	if s.Mode == ModeLinkSelected {
		return s.LinkID
	}
	return ""
}

// CreatingLink reports whether a link-creation gesture is in progress
func (s State) CreatingLink() bool {
	return s.Mode == ModeAwaitingLinkSource || s.Mode == ModeAwaitingLinkTarget
}

func idle() State { return State{Mode: ModeIdle} }

// Layout is the slice of the layout engine the machine drives
type Layout interface {
	Reseed(topology.View)
	Pin(id string, x, y float64) error
	Drag(id string, x, y float64) error
	Unpin(id string) error
}

// DefaultLinkAttrs are the line parameters of a link drawn by hand
var DefaultLinkAttrs = domain.LinkAttrs{Resistance: 0.02, Reactance: 0.06}

// NodeIDPrefix prefixes ids of nodes added by hand
const NodeIDPrefix = "bus"

// Machine arbitrates operator gestures against the topology store
type Machine struct {
	store  *topology.Store
	layout Layout
	state  State
}

// New creates an idle machine. It subscribes to store changes so a
// selection never outlives its entity.
func New(store *topology.Store, layout Layout) *Machine {
	m := &Machine{store: store, layout: layout, state: idle()}
	store.Subscribe(m.onChange)
	return m
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Reset returns to Idle, discarding any selection or half-drawn link
func (m *Machine) Reset() {
	m.state = idle()
}

// ClickNode handles a click on a node
func (m *Machine) ClickNode(id string) error {
	if m.store.Node(id) == nil {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}

	switch m.state.Mode {
	case ModeNodeSelected:
		if m.state.NodeID == id {
			m.state = idle()
			return nil
		}
		m.state = State{Mode: ModeNodeSelected, NodeID: id}
	case ModeAwaitingLinkSource:
		m.state = State{Mode: ModeAwaitingLinkTarget, SourceID: id}
	case ModeAwaitingLinkTarget:
		if _, err := m.store.AddLink(m.state.SourceID, id, DefaultLinkAttrs); err != nil {
			return err
		}
		m.state = idle()
		m.reseed()
	default:
		m.state = State{Mode: ModeNodeSelected, NodeID: id}
	}
	return nil
}

// ClickLink selects a link. Clicking the selected link keeps it selected.
// Link clicks are ignored while a link is being drawn.
func (m *Machine) ClickLink(id string) error {
	if m.state.CreatingLink() {
		return nil
	}
	if m.store.Link(id) == nil {
		return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, id)
	}
	m.state = State{Mode: ModeLinkSelected, LinkID: id}
	return nil
}

// ClickCanvas clears the selection. It has no effect while drawing a link.
func (m *Machine) ClickCanvas() {
	if m.state.CreatingLink() {
		return
	}
	m.state = idle()
}

// StartLinkCreation begins drawing a link, dropping any selection
func (m *Machine) StartLinkCreation() {
	m.state = State{Mode: ModeAwaitingLinkSource}
}

// CancelLinkCreation returns to Idle from any state
func (m *Machine) CancelLinkCreation() {
	m.state = idle()
}

// Delete removes the selected node (with its links) or the selected link.
// Without a selection it does nothing.
func (m *Machine) Delete() error {
	switch m.state.Mode {
	case ModeNodeSelected:
		if _, err := m.store.DeleteNode(m.state.NodeID); err != nil {
			return err
		}
	case ModeLinkSelected:
		if err := m.store.DeleteLinkByID(m.state.LinkID); err != nil {
			return err
		}
	default:
		return nil
	}
	m.state = idle()
	m.reseed()
	return nil
}

// AddNode creates a node of type t at (x, y) with the next free id
func (m *Machine) AddNode(t domain.NodeType, x, y float64) (*domain.Node, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid node type %q", t)
	}
	n := domain.NewNode(m.store.NextNodeID(NodeIDPrefix), t)
	n.Place(x, y)
	if err := m.store.AddNode(n); err != nil {
		return nil, err
	}
	m.reseed()
	return n, nil
}

// DragStart pins a node under the pointer. Drags never change the state.
func (m *Machine) DragStart(id string, x, y float64) error {
	if m.layout == nil {
		return nil
	}
	return m.layout.Pin(id, x, y)
}

// DragMove moves a pinned node
func (m *Machine) DragMove(id string, x, y float64) error {
	if m.layout == nil {
		return nil
	}
	return m.layout.Drag(id, x, y)
}

// DragEnd releases a pinned node
func (m *Machine) DragEnd(id string) error {
	if m.layout == nil {
		return nil
	}
	return m.layout.Unpin(id)
}

func (m *Machine) reseed() {
	if m.layout != nil {
		m.layout.Reseed(m.store.LayoutView())
	}
}

// onChange drops state that refers to entities the store no longer holds
func (m *Machine) onChange(c topology.Change) {
	switch c.Kind {
	case topology.Replaced:
		m.state = idle()
	case topology.NodeDeleted:
		if m.state.NodeID == c.NodeID || m.state.SourceID == c.NodeID {
			m.state = idle()
			return
		}
		for _, id := range c.LinkIDs {
			if m.state.LinkID == id {
				m.state = idle()
				return
			}
		}
	case topology.LinkDeleted:
		if m.state.LinkID == c.LinkID {
			m.state = idle()
		}
	}
}
