package domain

import (
	"fmt"
	"strings"
)

// NodeType represents the electrical role of a bus
type NodeType string

const (
	NodeTypeSlack     NodeType = "slack"
	NodeTypePV        NodeType = "pv"
	NodeTypeGenerator NodeType = "generator"
	NodeTypeLoad      NodeType = "load"
)

// NodeTypes lists every node type in display order
var NodeTypes = []NodeType{NodeTypeSlack, NodeTypePV, NodeTypeGenerator, NodeTypeLoad}

// Valid reports whether t is one of the four known types
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeSlack, NodeTypePV, NodeTypeGenerator, NodeTypeLoad:
		return true
	}
	return false
}

// ParseNodeType parses a type name, accepting the common bus-role aliases
func ParseNodeType(s string) (NodeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slack", "ref", "swing":
		return NodeTypeSlack, nil
	case "pv":
		return NodeTypePV, nil
	case "generator", "gen":
		return NodeTypeGenerator, nil
	case "load", "pq":
		return NodeTypeLoad, nil
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

// Node represents a bus in the network
type Node struct {
	ID            string   `json:"id"`
	Type          NodeType `json:"type"`
	Voltage       float64  `json:"voltage"`
	Angle         float64  `json:"angle"`
	ActivePower   float64  `json:"active_power"`
	ReactivePower float64  `json:"reactive_power"`

	body *Body
}

// NewNode creates a node with the default electrical values for its type
func NewNode(id string, nodeType NodeType) *Node {
	n := &Node{
		ID:      id,
		Type:    nodeType,
		Voltage: 1.0,
		body:    newBody(),
	}
	switch nodeType {
	case NodeTypePV:
		n.Voltage = 1.02
		n.ActivePower = 100
	case NodeTypeGenerator:
		n.ActivePower = 100
		n.ReactivePower = 50
	case NodeTypeLoad:
		n.ActivePower = -50
		n.ReactivePower = -20
	}
	return n
}

// Place seeds the node's position. Once the node is in a store, only the
// layout engine moves it.
func (n *Node) Place(x, y float64) {
	n.ensureBody()
	n.body.X = x
	n.body.Y = y
	n.body.placed = true
}

// Placed reports whether the node has ever been given a position
func (n *Node) Placed() bool {
	return n.body != nil && n.body.placed
}

// Position returns the node's current layout position
func (n *Node) Position() Point {
	if n.body == nil {
		return Point{}
	}
	return Point{X: n.body.X, Y: n.body.Y}
}

// Pinned reports whether the node is currently held in place
func (n *Node) Pinned() bool {
	return n.body != nil && n.body.Pinned()
}

// Body returns the node's layout body, creating it if needed. Only the
// topology store calls this; everyone else reads Position.
func (n *Node) Body() *Body {
	n.ensureBody()
	return n.body
}

func (n *Node) ensureBody() {
	if n.body == nil {
		n.body = newBody()
	}
	n.body.NodeID = n.ID
}

// Get returns the value of one of the four electrical fields
func (n *Node) Get(f Field) float64 {
	switch f {
	case FieldVoltage:
		return n.Voltage
	case FieldAngle:
		return n.Angle
	case FieldActivePower:
		return n.ActivePower
	case FieldReactivePower:
		return n.ReactivePower
	}
	return 0
}

// Set assigns one of the four electrical fields
func (n *Node) Set(f Field, v float64) {
	switch f {
	case FieldVoltage:
		n.Voltage = v
	case FieldAngle:
		n.Angle = v
	case FieldActivePower:
		n.ActivePower = v
	case FieldReactivePower:
		n.ReactivePower = v
	}
}

// Record converts the node to its canonical wire shape
func (n *Node) Record() NodeRecord {
	rec := NodeRecord{
		ID:            n.ID,
		Type:          n.Type,
		Voltage:       n.Voltage,
		Angle:         n.Angle,
		ActivePower:   n.ActivePower,
		ReactivePower: n.ReactivePower,
	}
	if n.Placed() {
		p := n.Position()
		rec.X = &p.X
		rec.Y = &p.Y
	}
	return rec
}
