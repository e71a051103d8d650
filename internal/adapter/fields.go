package adapter

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field aliases, first present wins
var (
	idKeys            = []string{"id", "bus_id", "bus_i", "name"}
	typeKeys          = []string{"type", "node_type"}
	busTypeKeys       = []string{"bus_type", "busType", "bus_code"}
	voltageKeys       = []string{"voltage", "vm", "Vm", "v"}
	angleKeys         = []string{"angle", "va", "Va", "theta"}
	activePowerKeys   = []string{"active_power", "activePower", "p", "P", "pg"}
	reactivePowerKeys = []string{"reactive_power", "reactivePower", "q", "Q", "qg"}

	sourceKeys     = []string{"source", "from", "fbus", "from_bus"}
	targetKeys     = []string{"target", "to", "tbus", "to_bus"}
	resistanceKeys = []string{"resistance", "r", "R"}
	reactanceKeys  = []string{"reactance", "x", "X"}
)

// lookup returns the value of the first alias present in m
func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// number reads the first alias that holds a numeric value
func number(m map[string]any, keys []string) (float64, bool) {
	v, ok := lookup(m, keys)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// numberOr reads a numeric alias, falling back to def
func numberOr(m map[string]any, keys []string, def float64) float64 {
	if f, ok := number(m, keys); ok {
		return f
	}
	return def
}

// toFloat accepts JSON numbers, YAML ints and numeric strings
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// toID renders a string or numeric id as a string
func toID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case map[string]any:
		inner, ok := id["id"]
		if !ok {
			return "", false
		}
		return toID(inner)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

// text reads the first alias holding a non-empty string
func text(m map[string]any, keys []string) (string, bool) {
	v, ok := lookup(m, keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
