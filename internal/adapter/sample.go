package adapter

// samplePayload is the built-in four bus network used when no backend
// answers
func samplePayload() map[string]any {
	return map[string]any{
		"case": "sample",
		"nodes": []any{
			map[string]any{"id": "bus1", "type": "slack", "x": 100.0, "y": 150.0, "voltage": 1.0, "angle": 0.0, "active_power": 0.0, "reactive_power": 0.0},
			map[string]any{"id": "bus2", "type": "load", "x": 200.0, "y": 100.0, "voltage": 1.0, "angle": 0.0, "active_power": -80.0, "reactive_power": -30.0},
			map[string]any{"id": "bus3", "type": "load", "x": 300.0, "y": 150.0, "voltage": 1.0, "angle": 0.0, "active_power": -60.0, "reactive_power": -20.0},
			map[string]any{"id": "bus4", "type": "generator", "x": 200.0, "y": 200.0, "voltage": 1.0, "angle": 0.0, "active_power": 150.0, "reactive_power": 75.0},
		},
		"links": []any{
			map[string]any{"source": "bus1", "target": "bus2", "resistance": 0.02, "reactance": 0.06},
			map[string]any{"source": "bus1", "target": "bus3", "resistance": 0.03, "reactance": 0.08},
			map[string]any{"source": "bus2", "target": "bus4", "resistance": 0.01, "reactance": 0.03},
			map[string]any{"source": "bus3", "target": "bus4", "resistance": 0.02, "reactance": 0.05},
		},
	}
}

// Sample returns a fresh copy of the built-in topology
func Sample() *Result {
	res, err := Convert(samplePayload())
	if err != nil {
		panic("adapter: built-in sample does not convert: " + err.Error())
	}
	return res
}
