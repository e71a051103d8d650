package adapter

import (
	"encoding/json"
	"fmt"

	"gridscope/internal/domain"
)

// Result is a converted payload ready for Store.ReplaceAll
type Result struct {
	Nodes []*domain.Node
	Links []*domain.Link
	Case  string
	Scale domain.Scale
}

// Payload renders the result in canonical wire form
func (r *Result) Payload() domain.Payload {
	p := domain.Payload{
		Case:  r.Case,
		Nodes: make([]domain.NodeRecord, 0, len(r.Nodes)),
		Links: make([]domain.LinkRecord, 0, len(r.Links)),
	}
	for _, n := range r.Nodes {
		p.Nodes = append(p.Nodes, n.Record())
	}
	for _, l := range r.Links {
		p.Links = append(p.Links, l.Record())
	}
	return p
}

// CountByType tallies nodes per type
func (r *Result) CountByType() map[domain.NodeType]int {
	out := make(map[domain.NodeType]int, len(domain.NodeTypes))
	for _, n := range r.Nodes {
		out[n.Type]++
	}
	return out
}

// ConvertJSON decodes a JSON document and converts it
func ConvertJSON(data []byte) (*Result, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.InvalidShapeError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	return Convert(raw)
}

// Convert turns a decoded JSON or YAML document into canonical entities
func Convert(raw any) (*Result, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, &domain.InvalidShapeError{Reason: "payload is not an object"}
	}

	rawNodes, ok := doc["nodes"].([]any)
	if !ok {
		return nil, &domain.InvalidShapeError{Path: "nodes", Reason: "missing or not an array"}
	}
	rawLinks, ok := doc["links"].([]any)
	if !ok {
		return nil, &domain.InvalidShapeError{Path: "links", Reason: "missing or not an array"}
	}

	res := &Result{
		Nodes: make([]*domain.Node, 0, len(rawNodes)),
		Links: make([]*domain.Link, 0, len(rawLinks)),
		Scale: domain.ScaleFor(len(rawNodes)),
	}
	res.Case = string(res.Scale)
	if label, ok := text(doc, []string{"case", "name"}); ok {
		res.Case = label
	}

	entries := make([]map[string]any, len(rawNodes))
	for i, item := range rawNodes {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, &domain.InvalidShapeError{Path: fmt.Sprintf("nodes[%d]", i), Reason: "not an object"}
		}
		node, err := convertNode(entry)
		if err != nil {
			return nil, &domain.InvalidShapeError{Path: fmt.Sprintf("nodes[%d].id", i), Reason: err.Error()}
		}
		entries[i] = entry
		res.Nodes = append(res.Nodes, node)
	}
	placeNodes(res.Nodes, entries, res.Scale)

	for i, item := range rawLinks {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, &domain.InvalidShapeError{Path: fmt.Sprintf("links[%d]", i), Reason: "not an object"}
		}
		link, err := convertLink(entry, fmt.Sprintf("links[%d]", i))
		if err != nil {
			return nil, err
		}
		res.Links = append(res.Links, link)
	}

	return res, nil
}

func convertNode(entry map[string]any) (*domain.Node, error) {
	rawID, ok := lookup(entry, idKeys)
	if !ok {
		return nil, fmt.Errorf("missing id")
	}
	id, ok := toID(rawID)
	if !ok {
		return nil, fmt.Errorf("unusable id %v", rawID)
	}

	n := domain.NewNode(id, inferType(entry))
	n.Voltage = numberOr(entry, voltageKeys, 1.0)
	n.Angle = numberOr(entry, angleKeys, 0)
	n.ActivePower = numberOr(entry, activePowerKeys, 0)
	n.ReactivePower = numberOr(entry, reactivePowerKeys, 0)
	return n, nil
}

var busTypeCodes = map[int]domain.NodeType{
	3: domain.NodeTypeSlack,
	2: domain.NodeTypePV,
	1: domain.NodeTypeLoad,
}

var fieldKeys = map[domain.Field][]string{
	domain.FieldVoltage:       voltageKeys,
	domain.FieldAngle:         angleKeys,
	domain.FieldActivePower:   activePowerKeys,
	domain.FieldReactivePower: reactivePowerKeys,
}

// inferType resolves a node's type from its explicit type, then its bus type
// code, then the sign of its active power
func inferType(entry map[string]any) domain.NodeType {
	if s, ok := text(entry, typeKeys); ok {
		if t, err := domain.ParseNodeType(s); err == nil {
			return t
		}
	}

	if code, ok := number(entry, busTypeKeys); ok {
		if t, ok := busTypeCodes[int(code)]; ok && float64(int(code)) == code {
			return t
		}
	}

	p, _ := number(entry, activePowerKeys)
	switch {
	case p > 0 && hasInputs(entry, domain.NodeTypePV):
		return domain.NodeTypePV
	case p > 0:
		return domain.NodeTypeGenerator
	default:
		return domain.NodeTypeLoad
	}
}

// hasInputs reports whether entry carries every operator input of t
func hasInputs(entry map[string]any, t domain.NodeType) bool {
	for _, f := range domain.InputFields(t) {
		if _, ok := number(entry, fieldKeys[f]); !ok {
			return false
		}
	}
	return true
}

func convertLink(entry map[string]any, path string) (*domain.Link, error) {
	src, ok := endpoint(entry, sourceKeys)
	if !ok {
		return nil, &domain.InvalidShapeError{Path: path + ".source", Reason: "missing endpoint"}
	}
	tgt, ok := endpoint(entry, targetKeys)
	if !ok {
		return nil, &domain.InvalidShapeError{Path: path + ".target", Reason: "missing endpoint"}
	}

	attrs := domain.LinkAttrs{
		Resistance: numberOr(entry, resistanceKeys, 0),
		Reactance:  numberOr(entry, reactanceKeys, 0),
		Flow:       convertFlow(entry),
	}
	return domain.NewLink(src, tgt, attrs), nil
}

func endpoint(entry map[string]any, keys []string) (string, bool) {
	v, ok := lookup(entry, keys)
	if !ok {
		return "", false
	}
	return toID(v)
}

// convertFlow reads computed branch flows. Only canonical names are accepted.
func convertFlow(entry map[string]any) *domain.BranchFlow {
	var (
		f     domain.BranchFlow
		found bool
	)
	for key, dst := range map[string]*float64{
		"from_active":   &f.FromActive,
		"from_reactive": &f.FromReactive,
		"to_active":     &f.ToActive,
		"to_reactive":   &f.ToReactive,
		"loss_active":   &f.LossActive,
		"loss_reactive": &f.LossReactive,
	} {
		if v, ok := entry[key]; ok {
			if n, ok := toFloat(v); ok {
				*dst = n
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return &f
}
