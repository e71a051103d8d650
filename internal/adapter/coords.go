package adapter

import (
	"math"
	"regexp"
	"strconv"

	"gridscope/internal/domain"
)

// Circle placement for nodes without a table entry
const (
	CircleCenterX = 400.0
	CircleCenterY = 300.0
	CircleRadius  = 250.0
)

// caseCoords are hand-authored positions keyed by bus number
var caseCoords = map[domain.Scale]map[int]domain.Point{
	domain.ScaleCase9: {
		1: {X: 100, Y: 150}, 2: {X: 200, Y: 100}, 3: {X: 300, Y: 150},
		4: {X: 400, Y: 200}, 5: {X: 500, Y: 250}, 6: {X: 600, Y: 200},
		7: {X: 700, Y: 150}, 8: {X: 800, Y: 100}, 9: {X: 900, Y: 150},
	},
	domain.ScaleCase14: {
		1: {X: 100, Y: 150}, 2: {X: 150, Y: 120}, 3: {X: 200, Y: 100},
		4: {X: 250, Y: 80}, 5: {X: 300, Y: 60}, 6: {X: 350, Y: 80},
		7: {X: 400, Y: 100}, 8: {X: 450, Y: 120}, 9: {X: 500, Y: 150},
		10: {X: 100, Y: 200}, 11: {X: 150, Y: 220}, 12: {X: 200, Y: 240},
		13: {X: 250, Y: 260}, 14: {X: 300, Y: 280},
	},
}

var numericSuffix = regexp.MustCompile(`(\d+)$`)

// suffix parses the trailing number of an id
func suffix(id string) (int, bool) {
	m := numericSuffix.FindString(id)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// CirclePoint returns slot k of n on the placement circle, starting at the top
func CirclePoint(k, n int) domain.Point {
	if n <= 0 {
		n = 1
	}
	k %= n
	if k < 0 {
		k += n
	}
	theta := 2*math.Pi*float64(k)/float64(n) - math.Pi/2
	return domain.Point{
		X: CircleCenterX + CircleRadius*math.Cos(theta),
		Y: CircleCenterY + CircleRadius*math.Sin(theta),
	}
}

// synthesize picks a position for the node at ordinal index i
func synthesize(id string, i, n int, scale domain.Scale) domain.Point {
	num, hasNum := suffix(id)
	if hasNum {
		if p, ok := caseCoords[scale][num]; ok {
			return p
		}
	}
	k := i
	if hasNum {
		k = num - 1
	}
	return CirclePoint(k, n)
}

// placeNodes seeds every node's position, keeping any coordinate the payload
// supplied
func placeNodes(nodes []*domain.Node, entries []map[string]any, scale domain.Scale) {
	for i, n := range nodes {
		x, hasX := number(entries[i], []string{"x"})
		y, hasY := number(entries[i], []string{"y"})
		if !hasX || !hasY {
			p := synthesize(n.ID, i, len(nodes), scale)
			if !hasX {
				x = p.X
			}
			if !hasY {
				y = p.Y
			}
		}
		n.Place(x, y)
	}
}
