// Package interchange serializes the model types to JSON and YAML.
package interchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	fm "github.com/gofhir/model"
)

// Format is an interchange representation.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown interchange format %q", s)
}

// Codec converts model values to and from one format. A Codec is
// stateless and safe for concurrent use.
type Codec struct {
	format Format
}

// NewCodec creates a codec for f.
func NewCodec(f Format) (*Codec, error) {
	if f != JSON && f != YAML {
		return nil, fmt.Errorf("unknown interchange format %q", f)
	}
	return &Codec{format: f}, nil
}

// Format returns the codec's format.
func (c *Codec) Format() Format {
	return c.format
}

// Marshal encodes v.
func (c *Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes v to w.
func (c *Codec) Encode(w io.Writer, v any) error {
	switch c.format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}

// Unmarshal decodes data into v. Unknown fields are rejected.
func (c *Codec) Unmarshal(data []byte, v any) error {
	return c.Decode(bytes.NewReader(data), v)
}

// Decode reads one value from r into v.
func (c *Codec) Decode(r io.Reader, v any) error {
	switch c.format {
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: decoding yaml: %v", fm.ErrMalformedInput, err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: decoding json: %v", fm.ErrMalformedInput, err)
		}
	}
	return nil
}

// Decode is a typed form of Codec.Unmarshal.
func Decode[T any](c *Codec, data []byte) (T, error) {
	var v T
	err := c.Unmarshal(data, &v)
	return v, err
}
