// Package view projects the topology and selection into drawable frames.
package view

import (
	"gridscope/internal/domain"
	"gridscope/internal/interaction"
	"gridscope/internal/topology"
)

// NodeRadius is the drawn radius of every node glyph
const NodeRadius = 12.0

// Stroke is an outline color and width
type Stroke struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

var (
	nodeStroke         = Stroke{Color: "#333333", Width: 1.5}
	selectedNodeStroke = Stroke{Color: "#ffcc00", Width: 3}
	linkStroke         = Stroke{Color: "#999999", Width: 2}
	selectedLinkStroke = Stroke{Color: "#ff9900", Width: 4}
)

var fills = map[domain.NodeType]string{
	domain.NodeTypeSlack:     "#d9534f",
	domain.NodeTypePV:        "#f0ad4e",
	domain.NodeTypeGenerator: "#5cb85c",
	domain.NodeTypeLoad:      "#337ab7",
}

// Fill returns the fill color for a node type
func Fill(t domain.NodeType) string {
	if c, ok := fills[t]; ok {
		return c
	}
	return "#777777"
}

// NodeGlyph is a drawable node
type NodeGlyph struct {
	ID       string          `json:"id"`
	Type     domain.NodeType `json:"type"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Radius   float64         `json:"r"`
	Fill     string          `json:"fill"`
	Stroke   Stroke          `json:"stroke"`
	Selected bool            `json:"selected"`
	Pinned   bool            `json:"pinned"`
}

// LinkGlyph is a drawable link with endpoints trimmed to the node outlines
type LinkGlyph struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
	Stroke   Stroke  `json:"stroke"`
	Selected bool    `json:"selected"`
}

// Frame is one renderable snapshot
type Frame struct {
	Seq          uint64           `json:"seq"`
	Alpha        float64          `json:"alpha"`
	Mode         interaction.Mode `json:"mode"`
	SelectedNode string           `json:"selected_node,omitempty"`
	SelectedLink string           `json:"selected_link,omitempty"`
	LinkSource   string           `json:"link_source,omitempty"`
	Nodes        []NodeGlyph      `json:"nodes"`
	Links        []LinkGlyph      `json:"links"`
}

// Project renders the store and selection into a frame. It reads only.
func Project(store *topology.Store, state interaction.State, seq uint64, alpha float64) Frame {
	f := Frame{
		Seq:          seq,
		Alpha:        alpha,
		Mode:         state.Mode,
		SelectedNode: state.SelectedNode(),
		SelectedLink: state.SelectedLink(),
		LinkSource:   state.SourceID,
	}

	nodes := store.Nodes()
	f.Nodes = make([]NodeGlyph, 0, len(nodes))
	for _, n := range nodes {
		p := n.Position()
		g := NodeGlyph{
			ID:     n.ID,
			Type:   n.Type,
			X:      p.X,
			Y:      p.Y,
			Radius: NodeRadius,
			Fill:   Fill(n.Type),
			Stroke: nodeStroke,
			Pinned: n.Pinned(),
		}
		if n.ID == f.SelectedNode {
			g.Selected = true
			g.Stroke = selectedNodeStroke
		}
		f.Nodes = append(f.Nodes, g)
	}

	links := store.Links()
	f.Links = make([]LinkGlyph, 0, len(links))
	for _, l := range links {
		src, tgt := l.Source.Node(), l.Target.Node()
		if src == nil || tgt == nil {
			continue
		}
		a, b := Trim(src.Position(), tgt.Position(), NodeRadius)
		g := LinkGlyph{
			ID:     l.ID,
			Source: src.ID,
			Target: tgt.ID,
			X1:     a.X,
			Y1:     a.Y,
			X2:     b.X,
			Y2:     b.Y,
			Stroke: linkStroke,
		}
		if l.ID == f.SelectedLink {
			g.Selected = true
			g.Stroke = selectedLinkStroke
		}
		f.Links = append(f.Links, g)
	}
	return f
}

// Trim shortens segment a-b by r at both ends. Segments shorter than 2r
// collapse to their midpoint.
func Trim(a, b domain.Point, r float64) (domain.Point, domain.Point) {
	d := a.Distance(b)
	if d <= 2*r {
		mid := domain.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
		return mid, mid
	}
	ux, uy := (b.X-a.X)/d, (b.Y-a.Y)/d
	return domain.Point{X: a.X + ux*r, Y: a.Y + uy*r},
		domain.Point{X: b.X - ux*r, Y: b.Y - uy*r}
}
