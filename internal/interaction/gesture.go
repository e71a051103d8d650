package interaction

import (
	"fmt"

	"gridscope/internal/domain"
)

// GestureKind names an operator gesture
type GestureKind string

const (
	GestureClickNode   GestureKind = "click_node"
	GestureClickLink   GestureKind = "click_link"
	GestureClickCanvas GestureKind = "click_canvas"
	GestureStartLink   GestureKind = "start_link"
	GestureCancelLink  GestureKind = "cancel_link"
	GestureDelete      GestureKind = "delete"
	GestureDragStart   GestureKind = "drag_start"
	GestureDragMove    GestureKind = "drag_move"
	GestureDragEnd     GestureKind = "drag_end"
	GestureAddNode     GestureKind = "add_node"
	GestureReset       GestureKind = "reset"
)

// Gesture is one operator input as it arrives over the wire
type Gesture struct {
	Kind   GestureKind `json:"kind"`
	NodeID string      `json:"node_id,omitempty"`
	LinkID string      `json:"link_id,omitempty"`
	X      float64     `json:"x,omitempty"`
	Y      float64     `json:"y,omitempty"`
	Type   string      `json:"type,omitempty"`
}

// Changes reports whether the gesture can mutate the topology
func (g Gesture) Changes() bool {
	switch g.Kind {
	case GestureClickNode, GestureDelete, GestureAddNode:
		return true
	}
	return false
}

// Moves reports whether the gesture drives the layout engine
func (g Gesture) Moves() bool {
	switch g.Kind {
	case GestureDragStart, GestureDragMove, GestureDragEnd:
		return true
	}
	return false
}

// Apply dispatches a gesture to the matching machine method
func (m *Machine) Apply(g Gesture) error {
	switch g.Kind {
	case GestureClickNode:
		return m.ClickNode(g.NodeID)
	case GestureClickLink:
		return m.ClickLink(g.LinkID)
	case GestureClickCanvas:
		m.ClickCanvas()
	case GestureStartLink:
		m.StartLinkCreation()
	case GestureCancelLink:
		m.CancelLinkCreation()
	case GestureDelete:
		return m.Delete()
	case GestureDragStart:
		return m.DragStart(g.NodeID, g.X, g.Y)
	case GestureDragMove:
		return m.DragMove(g.NodeID, g.X, g.Y)
	case GestureDragEnd:
		return m.DragEnd(g.NodeID)
	case GestureAddNode:
		t, err := domain.ParseNodeType(g.Type)
		if err != nil {
			return &domain.InvalidShapeError{Path: "type", Reason: err.Error()}
		}
		_, err = m.AddNode(t, g.X, g.Y)
		return err
	case GestureReset:
		m.Reset()
	default:
		return &domain.InvalidShapeError{Path: "kind", Reason: fmt.Sprintf("unknown gesture %q", g.Kind)}
	}
	return nil
}
