// Package loader reads case files from disk and writes laid-out payloads
// back. The format is chosen by file extension.
package loader

import (
	"bytes"
	"fmt"
	"os"

	"gridscope/internal/adapter"
	"gridscope/internal/codec"
	"gridscope/internal/domain"
)

// LoadFile reads and converts the case file at path
func LoadFile(path string) (*adapter.Result, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	res, err := c.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// WriteFile exports p to path in the format its extension names
func WriteFile(path string, p domain.Payload) error {
	c, err := codec.ForPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := c.Export(p, &buf); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
