package fhirmodel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
)

// Resource is a parsed FHIR resource instance.
//
// A Resource is read-only once constructed: providers evaluate the same
// instance from several goroutines.
type Resource struct {
	ResourceType string
	ID           string
	VersionID    string

	// FHIRVersion is the version the resource was written for, when known.
	FHIRVersion FHIRVersion

	data map[string]any
	raw  []byte
}

// ParseResource parses a JSON resource. It fails with ErrMalformedInput when
// data is not a JSON object with a string resourceType.
func ParseResource(data []byte) (*Resource, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: resource must be a JSON object", ErrMalformedInput)
	}

	resourceType, err := jsonparser.GetString(data, "resourceType")
	if err != nil || resourceType == "" {
		return nil, fmt.Errorf("%w: missing or invalid resourceType", ErrMalformedInput)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after resource", ErrMalformedInput)
	}

	r := &Resource{
		ResourceType: resourceType,
		data:         m,
		raw:          append([]byte(nil), data...),
	}
	r.ID, _ = jsonparser.GetString(data, "id")
	r.VersionID, _ = jsonparser.GetString(data, "meta", "versionId")
	return r, nil
}

// NewResource builds a Resource from an already decoded JSON object. The map
// is copied.
func NewResource(data map[string]any) (*Resource, error) {
	resourceType, _ := data["resourceType"].(string)
	if resourceType == "" {
		return nil, fmt.Errorf("%w: missing or invalid resourceType", ErrMalformedInput)
	}
	m, _ := deepCopy(data).(map[string]any)
	r := &Resource{ResourceType: resourceType, data: m}
	r.ID, _ = m["id"].(string)
	if meta, ok := m["meta"].(map[string]any); ok {
		r.VersionID, _ = meta["versionId"].(string)
	}
	return r, nil
}

// WithVersion returns a copy of r tagged with v.
func (r *Resource) WithVersion(v FHIRVersion) *Resource {
	c := *r
	c.FHIRVersion = v
	return &c
}

// Data returns the decoded JSON object. Callers must not modify it.
func (r *Resource) Data() map[string]any {
	return r.data
}

// Get returns a top-level element.
func (r *Resource) Get(name string) (any, bool) {
	v, ok := r.data[name]
	return v, ok
}

// JSON returns the resource as JSON.
func (r *Resource) JSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	return json.Marshal(r.data)
}

// Key returns "Type/id", or the type alone when the resource has no id.
func (r *Resource) Key() string {
	if r.ID == "" {
		return r.ResourceType
	}
	return r.ResourceType + "/" + r.ID
}

// Contained returns the contained resources. Entries without a
// resourceType are skipped.
func (r *Resource) Contained() []*Resource {
	list, _ := r.data["contained"].([]any)
	out := make([]*Resource, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if c, err := NewResource(m); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// deepCopy copies decoded JSON values so that the copy shares no maps or
// slices with the original.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = deepCopy(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = deepCopy(e)
		}
		return s
	default:
		return v
	}
}
