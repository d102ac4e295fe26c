package fhirmodel

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ReferenceKind classifies the textual form of a reference.
type ReferenceKind string

const (
	// ReferenceRelative is "Type/id" or "Type/id/_history/vid"
	ReferenceRelative ReferenceKind = "relative"
	// ReferenceAbsolute is an http(s) URL
	ReferenceAbsolute ReferenceKind = "absolute"
	// ReferenceFragment is "#id", pointing at a contained resource
	ReferenceFragment ReferenceKind = "fragment"
	// ReferenceUUID is "urn:uuid:..."
	ReferenceUUID ReferenceKind = "urn:uuid"
	// ReferenceOID is "urn:oid:..."
	ReferenceOID ReferenceKind = "urn:oid"
)

var (
	relativeRefPattern = regexp.MustCompile(`^([A-Za-z]+)/([A-Za-z0-9\-.]{1,64})(?:/_history/([A-Za-z0-9\-.]{1,64}))?$`)
	absoluteRefPattern = regexp.MustCompile(`^(https?://\S+)/([A-Z][A-Za-z]+)/([A-Za-z0-9\-.]{1,64})(?:/_history/([A-Za-z0-9\-.]{1,64}))?$`)
	fragmentRefPattern = regexp.MustCompile(`^#[A-Za-z0-9\-.]*$`)
	urnOIDPattern      = regexp.MustCompile(`^urn:oid:[012](\.(0|[1-9]\d*))+$`)
)

// Reference is a parsed reference string.
type Reference struct {
	// Raw is the reference exactly as written
	Raw  string
	Kind ReferenceKind

	// ResourceType, ID and VersionID are set for relative references and for
	// absolute URLs that follow the RESTful [base]/Type/id form
	ResourceType string
	ID           string
	VersionID    string

	// BaseURL is the service base of an absolute RESTful URL
	BaseURL string

	// Fragment is the contained resource id without "#"; empty for "#" alone
	Fragment string
}

// ParseReference classifies and splits a reference string.
func ParseReference(s string) (Reference, error) {
	ref := Reference{Raw: s}
	switch {
	case s == "":
		return ref, fmt.Errorf("empty reference")

	case strings.HasPrefix(s, "#"):
		if !fragmentRefPattern.MatchString(s) {
			return ref, fmt.Errorf("invalid fragment reference %q", s)
		}
		ref.Kind = ReferenceFragment
		ref.Fragment = s[1:]

	case strings.HasPrefix(s, "urn:uuid:"):
		if _, err := uuid.Parse(s); err != nil {
			return ref, fmt.Errorf("invalid uuid reference %q: %w", s, err)
		}
		ref.Kind = ReferenceUUID

	case strings.HasPrefix(s, "urn:oid:"):
		if !urnOIDPattern.MatchString(s) {
			return ref, fmt.Errorf("invalid oid reference %q", s)
		}
		ref.Kind = ReferenceOID

	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		ref.Kind = ReferenceAbsolute
		if m := absoluteRefPattern.FindStringSubmatch(s); m != nil {
			ref.BaseURL, ref.ResourceType, ref.ID, ref.VersionID = m[1], m[2], m[3], m[4]
		}

	default:
		m := relativeRefPattern.FindStringSubmatch(s)
		if m == nil {
			return ref, fmt.Errorf("unrecognized reference format %q", s)
		}
		ref.Kind = ReferenceRelative
		ref.ResourceType, ref.ID, ref.VersionID = m[1], m[2], m[3]
	}
	return ref, nil
}

// Key returns "Type/id" when both parts are known, otherwise Raw.
func (r Reference) Key() string {
	if r.ResourceType != "" && r.ID != "" {
		return r.ResourceType + "/" + r.ID
	}
	return r.Raw
}

// IsLocal reports whether the reference can only be resolved inside the
// containing resource or bundle.
func (r Reference) IsLocal() bool {
	return r.Kind == ReferenceFragment || r.Kind == ReferenceUUID || r.Kind == ReferenceOID
}

// ResolvedReference is the shared result type of synchronous and
// asynchronous resolution. An unresolved reference is a nil
// *ResolvedReference.
type ResolvedReference struct {
	Reference Reference
	Resource  *Resource
}

// ResolutionContext resolves references against data that is immediately
// available, such as a Bundle held in memory.
type ResolutionContext interface {
	Resolve(ref Reference) (*Resource, bool)
}

// AsyncResolutionContext resolves references that may require storage or
// network access. Implementations return (nil, nil) or ErrNotFound when the
// target does not exist and must honour ctx cancellation.
type AsyncResolutionContext interface {
	Fetch(ctx context.Context, ref Reference) (*Resource, error)
}
