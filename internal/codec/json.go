package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"gridscope/internal/adapter"
	"gridscope/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of exported documents
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse imports topology data from JSON
func (c *JSONCodec) Parse(r io.Reader) (*adapter.Result, error) {
	var doc any
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return adapter.Convert(doc)
}

// Export exports the payload as indented JSON
func (c *JSONCodec) Export(p domain.Payload, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(p); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
