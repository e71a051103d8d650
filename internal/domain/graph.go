package domain

// Payload is the canonical topology shape exchanged with the computation
// backend, codecs and renderers
type Payload struct {
	Case  string       `json:"case,omitempty" yaml:"case,omitempty"`
	Nodes []NodeRecord `json:"nodes" yaml:"nodes"`
	Links []LinkRecord `json:"links" yaml:"links"`
}

// NodeRecord is a node in canonical wire form
type NodeRecord struct {
	ID            string   `json:"id" yaml:"id"`
	Type          NodeType `json:"type" yaml:"type"`
	X             *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y             *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Voltage       float64  `json:"voltage" yaml:"voltage"`
	Angle         float64  `json:"angle" yaml:"angle"`
	ActivePower   float64  `json:"active_power" yaml:"active_power"`
	ReactivePower float64  `json:"reactive_power" yaml:"reactive_power"`
}

// LinkRecord is a link in canonical wire form
type LinkRecord struct {
	ID         string  `json:"id,omitempty" yaml:"id,omitempty"`
	Source     string  `json:"source" yaml:"source"`
	Target     string  `json:"target" yaml:"target"`
	Resistance float64 `json:"resistance" yaml:"resistance"`
	Reactance  float64 `json:"reactance" yaml:"reactance"`

	// Flow fields appear inline in JSON once a computation has run. YAML
	// output flattens them in the codec.
	*BranchFlow `yaml:"-"`
}

// Stats carries the aggregates returned with a power-flow result. The
// values are displayed, never computed here.
type Stats struct {
	Voltage    VoltageStats    `json:"voltage"`
	Losses     LossStats       `json:"losses"`
	Generation GenerationStats `json:"generation"`
	Branch     BranchStats     `json:"branch"`
	Topology   TopologyStats   `json:"topology"`
}

type VoltageStats struct {
	Max float64 `json:"max"`
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
}

type LossStats struct {
	P float64 `json:"P"`
	Q float64 `json:"Q"`
}

type GenerationStats struct {
	Total float64 `json:"total"`
}

type BranchStats struct {
	MaxLoad       float64 `json:"max_load"`
	MaxID         any     `json:"max_id"`
	AvgLoad       float64 `json:"avg_load"`
	OverloadCount int     `json:"overload_count"`
}

type TopologyStats struct {
	TotalBranches       int     `json:"total_branches"`
	TotalBuses          int     `json:"total_buses"`
	NetworkDensity      float64 `json:"network_density"`
	AverageConnectivity float64 `json:"average_connectivity"`
}
