package reference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"

	fm "github.com/gofhir/model"
)

// Bundle is an in-memory resolution context. It is safe for concurrent use.
type Bundle struct {
	mu        sync.RWMutex
	byURL     map[string]*fm.Resource
	byKey     map[string]*fm.Resource
	contained map[string]*fm.Resource
	container *fm.Resource
}

// NewBundle indexes resources under generated urn:uuid full URLs and their
// Type/id keys.
func NewBundle(resources ...*fm.Resource) *Bundle {
	b := newBundle()
	for _, r := range resources {
		b.Add("urn:uuid:"+uuid.NewString(), r)
	}
	return b
}

func newBundle() *Bundle {
	return &Bundle{
		byURL:     make(map[string]*fm.Resource),
		byKey:     make(map[string]*fm.Resource),
		contained: make(map[string]*fm.Resource),
	}
}

// FromBundleJSON indexes the entries of a FHIR Bundle. Entries without a
// resource are skipped; an entry whose resource cannot be parsed fails the
// whole call.
func FromBundleJSON(data []byte) (*Bundle, error) {
	rt, err := jsonparser.GetString(data, "resourceType")
	if err != nil {
		return nil, fmt.Errorf("%w: reading resourceType: %v", fm.ErrMalformedInput, err)
	}
	if rt != "Bundle" {
		return nil, fmt.Errorf("%w: expected Bundle, got %s", fm.ErrMalformedInput, rt)
	}

	b := newBundle()
	var entryErr error
	index := -1
	_, err = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		index++
		if entryErr != nil || dataType != jsonparser.Object {
			return
		}
		raw, typ, _, err := jsonparser.Get(value, "resource")
		if err != nil || typ != jsonparser.Object {
			return
		}
		res, err := fm.ParseResource(raw)
		if err != nil {
			entryErr = fmt.Errorf("entry %d: %w", index, err)
			return
		}
		fullURL, _ := jsonparser.GetString(value, "fullUrl")
		b.Add(fullURL, res)
	}, "entry")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("%w: reading entries: %v", fm.ErrMalformedInput, err)
	}
	if entryErr != nil {
		return nil, entryErr
	}
	return b, nil
}

// Add indexes r under fullURL (when not empty) and its Type/id key.
func (b *Bundle) Add(fullURL string, r *fm.Resource) {
	if r == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if fullURL != "" {
		b.byURL[fullURL] = r
	}
	if r.ID != "" {
		b.byKey[r.Key()] = r
	}
}

// WithContainer makes the contained resources of r resolvable by fragment
// and r itself resolvable as "#".
func (b *Bundle) WithContainer(r *fm.Resource) *Bundle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.container = r
	b.contained = make(map[string]*fm.Resource)
	if r == nil {
		return b
	}
	for _, c := range r.Contained() {
		if c.ID != "" {
			b.contained[c.ID] = c
		}
	}
	return b
}

// Len returns the number of distinct indexed resources, contained ones
// excluded.
func (b *Bundle) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[*fm.Resource]bool, len(b.byURL)+len(b.byKey))
	for _, r := range b.byURL {
		seen[r] = true
	}
	for _, r := range b.byKey {
		seen[r] = true
	}
	return len(seen)
}

// Resolve looks ref up in the bundle. A version-specific reference only
// matches a resource carrying that meta.versionId.
func (b *Bundle) Resolve(ref fm.Reference) (*fm.Resource, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var res *fm.Resource
	switch ref.Kind {
	case fm.ReferenceFragment:
		if ref.Fragment == "" {
			res = b.container
		} else {
			res = b.contained[ref.Fragment]
		}

	case fm.ReferenceUUID, fm.ReferenceOID:
		res = b.byURL[ref.Raw]

	case fm.ReferenceAbsolute:
		res = b.byURL[ref.Raw]
		if res == nil && ref.ResourceType != "" {
			res = b.byURL[ref.BaseURL+"/"+ref.Key()]
		}

	case fm.ReferenceRelative:
		res = b.byKey[ref.Key()]
	}

	if res == nil {
		return nil, false
	}
	if ref.VersionID != "" && res.VersionID != ref.VersionID {
		return nil, false
	}
	return res, true
}

// Fetch implements fm.AsyncResolutionContext over Resolve.
func (b *Bundle) Fetch(ctx context.Context, ref fm.Reference) (*fm.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res, ok := b.Resolve(ref); ok {
		return res, nil
	}
	return nil, fm.ErrNotFound
}

var (
	_ fm.ResolutionContext      = (*Bundle)(nil)
	_ fm.AsyncResolutionContext = (*Bundle)(nil)
)
