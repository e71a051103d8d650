// Package codec reads and writes topology payloads in JSON and YAML.
//
// Import accepts any shape the adapter understands (aliases, MATPOWER-style
// numeric ids, missing coordinates); export always writes the canonical
// payload.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gridscope/internal/adapter"
	"gridscope/internal/domain"
)

// Importer interface for importing topology data from various formats
type Importer interface {
	Parse(r io.Reader) (*adapter.Result, error)
	Format() string
}

// Exporter interface for exporting topology data to various formats
type Exporter interface {
	Export(p domain.Payload, w io.Writer) error
	Format() string
	ContentType() string
}

// Codec both imports and exports one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec registered under name
func ForFormat(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unsupported format %q", name)
}

// ForPath picks a codec by file extension
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("cannot infer format of %s", path)
	}
	return ForFormat(ext)
}
