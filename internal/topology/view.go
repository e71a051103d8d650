package topology

import "gridscope/internal/domain"

// Spring joins two bodies of a View by index
type Spring struct {
	Source int
	Target int
}

// View is the layout engine's working set: the live bodies of every node in
// store order and one spring per link. Bodies are shared with the store's
// nodes, so positions written through a View are what every reader sees.
type View struct {
	Bodies  []*domain.Body
	Springs []Spring
}

// LayoutView returns the current working set for the layout engine. It must
// be taken again after any node or link set change.
func (s *Store) LayoutView() View {
	index := make(map[string]int, len(s.order))
	v := View{
		Bodies:  make([]*domain.Body, 0, len(s.order)),
		Springs: make([]Spring, 0, len(s.links)),
	}
	for i, id := range s.order {
		index[id] = i
		v.Bodies = append(v.Bodies, s.nodes[id].Body())
	}
	for _, l := range s.links {
		src, okS := index[l.Source.ID()]
		tgt, okT := index[l.Target.ID()]
		if okS && okT {
			v.Springs = append(v.Springs, Spring{Source: src, Target: tgt})
		}
	}
	return v
}
