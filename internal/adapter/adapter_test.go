package adapter

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"gridscope/internal/domain"
)

func mustConvertJSON(t *testing.T, doc string) *Result {
	t.Helper()
	res, err := ConvertJSON([]byte(doc))
	require.NoError(t, err)
	return res
}

func TestConvertSynthesizesMissingCoordinates(t *testing.T) {
	res := mustConvertJSON(t, `{
		"nodes": [
			{"id": "bus1", "type": "generator", "active_power": 120},
			{"id": "bus2", "type": "generator", "active_power": 80},
			{"id": "bus3", "type": "load", "active_power": -60},
			{"id": "bus4", "type": "load", "active_power": -90}
		],
		"links": [
			{"source": "bus1", "target": "bus2"},
			{"source": "bus2", "target": "bus3"},
			{"source": "bus3", "target": "bus4"},
			{"source": "bus4", "target": "bus1"}
		]
	}`)

	require.Len(t, res.Nodes, 4)
	require.Len(t, res.Links, 4)
	assert.Equal(t, domain.ScaleCase9, res.Scale)
	assert.Equal(t, "case9", res.Case)

	// bus1..bus4 hit the 9-bus table
	want := []domain.Point{{X: 100, Y: 150}, {X: 200, Y: 100}, {X: 300, Y: 150}, {X: 400, Y: 200}}
	for i, n := range res.Nodes {
		assert.True(t, n.Placed(), n.ID)
		assert.Equal(t, want[i], n.Position(), n.ID)
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	doc := `{"nodes": [{"id": "a"}, {"id": "b"}, {"id": "n7"}], "links": []}`
	first := mustConvertJSON(t, doc)
	second := mustConvertJSON(t, doc)
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].Position(), second.Nodes[i].Position())
	}
}

func TestCirclePlacement(t *testing.T) {
	nodes := make([]any, 20)
	for i := range nodes {
		nodes[i] = map[string]any{"id": "x" + string(rune('a'+i))}
	}
	res, err := Convert(map[string]any{"nodes": nodes, "links": []any{}})
	require.NoError(t, err)
	assert.Equal(t, domain.ScaleCase30, res.Scale)

	// ordinal 0 sits at the top of the circle
	top := res.Nodes[0].Position()
	assert.InDelta(t, CircleCenterX, top.X, 1e-9)
	assert.InDelta(t, CircleCenterY-CircleRadius, top.Y, 1e-9)

	for _, n := range res.Nodes {
		d := n.Position().Distance(domain.Point{X: CircleCenterX, Y: CircleCenterY})
		assert.InDelta(t, CircleRadius, d, 1e-9)
	}
}

func TestCirclePlacementUsesSuffix(t *testing.T) {
	nodes := make([]any, 0, 16)
	for i := 16; i >= 1; i-- {
		nodes = append(nodes, map[string]any{"id": json.Number(strconv.Itoa(i))})
	}
	res, err := Convert(map[string]any{"nodes": nodes, "links": []any{}})
	require.NoError(t, err)

	// id "16" is slot 15 of 16
	assert.Equal(t, "16", res.Nodes[0].ID)
	assert.Equal(t, CirclePoint(15, 16), res.Nodes[0].Position())
	assert.Equal(t, CirclePoint(0, 16), res.Nodes[15].Position())
}

func TestConvertKeepsSingleCoordinate(t *testing.T) {
	res := mustConvertJSON(t, `{"nodes": [{"id": "bus2", "x": 5}, {"id": "bus3", "y": 7}], "links": []}`)
	assert.Equal(t, domain.Point{X: 5, Y: 100}, res.Nodes[0].Position())
	assert.Equal(t, domain.Point{X: 300, Y: 7}, res.Nodes[1].Position())
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name  string
		entry map[string]any
		want  domain.NodeType
	}{
		{"explicit", map[string]any{"type": "slack", "active_power": 50}, domain.NodeTypeSlack},
		{"explicit alias", map[string]any{"node_type": "PQ"}, domain.NodeTypeLoad},
		{"bus code slack", map[string]any{"bus_type": 3}, domain.NodeTypeSlack},
		{"bus code pv string", map[string]any{"busType": "2"}, domain.NodeTypePV},
		{"bus code load", map[string]any{"bus_code": 1.0, "p": 40}, domain.NodeTypeLoad},
		{"bad explicit falls through", map[string]any{"type": "turbine", "bus_type": 3}, domain.NodeTypeSlack},
		{"unknown code falls through", map[string]any{"bus_type": 4, "pg": 10}, domain.NodeTypeGenerator},
		{"positive voltage controlled", map[string]any{"active_power": 100, "vm": 1.02}, domain.NodeTypePV},
		{"positive only", map[string]any{"active_power": 100}, domain.NodeTypeGenerator},
		{"negative", map[string]any{"P": -10, "v": 1.0}, domain.NodeTypeLoad},
		{"zero", map[string]any{"active_power": 0}, domain.NodeTypeLoad},
		{"empty", map[string]any{}, domain.NodeTypeLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.entry))
		})
	}
}

func TestConvertAliasesAndDefaults(t *testing.T) {
	res := mustConvertJSON(t, `{
		"name": "field-import",
		"nodes": [
			{"bus_i": 1, "bus_type": 3, "Vm": "1.04", "Va": 0},
			{"bus_id": "7", "pg": 35.5, "qg": 12}
		],
		"links": [
			{"fbus": 1, "tbus": {"id": 7}, "r": 0.01, "X": "0.085", "from_active": 12.5}
		]
	}`)

	assert.Equal(t, "field-import", res.Case)

	n1 := res.Nodes[0]
	assert.Equal(t, "1", n1.ID)
	assert.Equal(t, domain.NodeTypeSlack, n1.Type)
	assert.Equal(t, 1.04, n1.Voltage)

	n7 := res.Nodes[1]
	assert.Equal(t, "7", n7.ID)
	assert.Equal(t, domain.NodeTypeGenerator, n7.Type)
	assert.Equal(t, 1.0, n7.Voltage)
	assert.Equal(t, 0.0, n7.Angle)
	assert.Equal(t, 35.5, n7.ActivePower)
	assert.Equal(t, 12.0, n7.ReactivePower)

	l := res.Links[0]
	assert.Equal(t, "1", l.Source.ID())
	assert.Equal(t, "7", l.Target.ID())
	assert.False(t, l.Source.IsResolved())
	assert.Equal(t, 0.01, l.Resistance)
	assert.Equal(t, 0.085, l.Reactance)
	require.NotNil(t, l.Flow)
	assert.Equal(t, 12.5, l.Flow.FromActive)
}

func TestConvertShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"missing links", `{"nodes": []}`, "links"},
		{"nodes not array", `{"nodes": {}, "links": []}`, "nodes"},
		{"node without id", `{"nodes": [{"id": "a"}, {"voltage": 1}], "links": []}`, "nodes[1].id"},
		{"node not object", `{"nodes": ["a"], "links": []}`, "nodes[0]"},
		{"link without target", `{"nodes": [{"id": "a"}], "links": [{"source": "a"}]}`, "links[0].target"},
		{"link without source", `{"nodes": [{"id": "a"}], "links": [{"to": "a"}]}`, "links[0].source"},
		{"link not object", `{"nodes": [], "links": [3]}`, "links[0]"},
		{"not an object", `[1, 2]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertJSON([]byte(tt.doc))
			var shape *domain.InvalidShapeError
			require.True(t, errors.As(err, &shape), "got %v", err)
			assert.Equal(t, tt.path, shape.Path)
		})
	}
}

func TestConvertCanonicalIsIdempotent(t *testing.T) {
	first := Sample()
	first.Links[0].Flow = &domain.BranchFlow{FromActive: 1, ToActive: -0.98, LossActive: 0.02}
	canonical := first.Payload()

	data, err := json.Marshal(canonical)
	require.NoError(t, err)
	second, err := ConvertJSON(data)
	require.NoError(t, err)

	assert.Equal(t, canonical, second.Payload())
}

func TestConvertYAMLDocument(t *testing.T) {
	doc := `
case: yaml-case
nodes:
  - {id: bus1, type: slack, x: 10, y: 20}
  - {id: bus2, p: -40, q: -10}
links:
  - {source: bus1, target: bus2, r: 0.02, x: 0.06}
`
	var raw any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	res, err := Convert(raw)
	require.NoError(t, err)

	assert.Equal(t, "yaml-case", res.Case)
	assert.Equal(t, domain.Point{X: 10, Y: 20}, res.Nodes[0].Position())
	assert.Equal(t, domain.NodeTypeLoad, res.Nodes[1].Type)
	assert.Equal(t, -40.0, res.Nodes[1].ActivePower)
	assert.Equal(t, 0.06, res.Links[0].Reactance)
}

func TestSample(t *testing.T) {
	res := Sample()
	require.Len(t, res.Nodes, 4)
	require.Len(t, res.Links, 4)
	assert.Equal(t, "sample", res.Case)

	counts := res.CountByType()
	assert.Equal(t, 1, counts[domain.NodeTypeSlack])
	assert.Equal(t, 1, counts[domain.NodeTypeGenerator])
	assert.Equal(t, 2, counts[domain.NodeTypeLoad])

	// every call is independent
	res.Nodes[0].Voltage = 9
	assert.Equal(t, 1.0, Sample().Nodes[0].Voltage)
}

func TestCirclePoint(t *testing.T) {
	p := CirclePoint(1, 4)
	assert.InDelta(t, CircleCenterX+CircleRadius, p.X, 1e-9)
	assert.InDelta(t, CircleCenterY, p.Y, 1e-9)

	wrapped := CirclePoint(5, 4)
	assert.InDelta(t, p.X, wrapped.X, 1e-9)
	assert.False(t, math.IsNaN(CirclePoint(0, 0).X))
}
