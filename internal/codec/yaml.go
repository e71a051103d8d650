package codec

import (
	"fmt"
	"io"

	"gridscope/internal/adapter"
	"gridscope/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of exported documents
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// yamlPayload is the exported YAML document. Flow values sit beside the line
// parameters, as they do in JSON.
type yamlPayload struct {
	Case  string              `yaml:"case,omitempty"`
	Nodes []domain.NodeRecord `yaml:"nodes"`
	Links []yamlLink          `yaml:"links"`
}

type yamlLink struct {
	ID           string   `yaml:"id,omitempty"`
	Source       string   `yaml:"source"`
	Target       string   `yaml:"target"`
	Resistance   float64  `yaml:"resistance"`
	Reactance    float64  `yaml:"reactance"`
	FromActive   *float64 `yaml:"from_active,omitempty"`
	FromReactive *float64 `yaml:"from_reactive,omitempty"`
	ToActive     *float64 `yaml:"to_active,omitempty"`
	ToReactive   *float64 `yaml:"to_reactive,omitempty"`
	LossActive   *float64 `yaml:"loss_active,omitempty"`
	LossReactive *float64 `yaml:"loss_reactive,omitempty"`
}

// Parse imports topology data from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*adapter.Result, error) {
	var doc map[string]any
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return adapter.Convert(doc)
}

// Export exports the payload as YAML
func (c *YAMLCodec) Export(p domain.Payload, w io.Writer) error {
	yp := yamlPayload{
		Case:  p.Case,
		Nodes: p.Nodes,
		Links: make([]yamlLink, 0, len(p.Links)),
	}
	if yp.Nodes == nil {
		yp.Nodes = []domain.NodeRecord{}
	}

	for _, l := range p.Links {
		yl := yamlLink{
			ID:         l.ID,
			Source:     l.Source,
			Target:     l.Target,
			Resistance: l.Resistance,
			Reactance:  l.Reactance,
		}
		if f := l.BranchFlow; f != nil {
			yl.FromActive = &f.FromActive
			yl.FromReactive = &f.FromReactive
			yl.ToActive = &f.ToActive
			yl.ToReactive = &f.ToReactive
			yl.LossActive = &f.LossActive
			yl.LossReactive = &f.LossReactive
		}
		yp.Links = append(yp.Links, yl)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(yp); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
