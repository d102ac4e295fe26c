package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/gofhir/fhir/r4"
	"go.uber.org/zap"

	fm "github.com/gofhir/model"
	"github.com/gofhir/model/schema"
)

// Loader fills a schema.Table. It is safe for concurrent use, though
// definitions that depend on each other should be loaded in one call so
// that bases are registered before their profiles.
type Loader struct {
	table *schema.Table
	log   *zap.Logger

	mu     sync.Mutex
	loaded int
}

// New creates a loader writing into table.
func New(table *schema.Table, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{table: table, log: log}
}

// Table returns the table being filled.
func (l *Loader) Table() *schema.Table {
	return l.table
}

// Count returns the number of definitions loaded so far.
func (l *Loader) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// LoadR4 loads an R4 model. The table must be an R4 table.
func (l *Loader) LoadR4(sds ...*r4.StructureDefinition) error {
	if v := l.table.Version(); v != fm.R4 {
		return &fm.VersionMismatchError{Want: v, Got: fm.R4, Subject: "r4.StructureDefinition"}
	}
	defs := make([]*Definition, 0, len(sds))
	for _, sd := range sds {
		if sd == nil {
			return fmt.Errorf("structure definition is nil")
		}
		defs = append(defs, FromR4(sd))
	}
	return l.LoadDefinitions(defs...)
}

// LoadDefinitions loads definitions, registering base definitions before
// the profiles that constrain them. Loading continues past failures; the
// returned error joins every failure.
func (l *Loader) LoadDefinitions(defs ...*Definition) error {
	var errs []error
	pending := make([]*Definition, 0, len(defs))
	for _, d := range defs {
		if d.IsBaseDefinition() {
			errs = append(errs, l.load(d))
		} else {
			pending = append(pending, d)
		}
	}

	// profiles may build on other profiles in the same batch
	for len(pending) > 0 {
		var next []*Definition
		for _, d := range pending {
			if _, ok := l.table.LookupURL(d.BaseDefinition); ok || !dependsOn(d, pending) {
				errs = append(errs, l.load(d))
			} else {
				next = append(next, d)
			}
		}
		if len(next) == len(pending) {
			// cyclic or self-referencing profiles: load as they are
			for _, d := range next {
				errs = append(errs, l.load(d))
			}
			break
		}
		pending = next
	}
	return errors.Join(errs...)
}

// dependsOn reports whether d derives from another definition in batch.
func dependsOn(d *Definition, batch []*Definition) bool {
	for _, other := range batch {
		if other != d && other.URL == d.BaseDefinition {
			return true
		}
	}
	return false
}

func (l *Loader) load(d *Definition) error {
	recs, err := d.build(l.table.Version(), l.table.LookupURL)
	if err != nil {
		l.log.Warn("skipping structure definition", zap.String("url", d.URL), zap.Error(err))
		return fmt.Errorf("loading %s: %w", d.URL, err)
	}
	for _, info := range recs.types {
		if err := l.table.Add(info); err != nil {
			return fmt.Errorf("loading %s: %w", d.URL, err)
		}
	}
	for typeName, cs := range recs.constraints {
		l.table.AddConstraints(typeName, cs...)
	}
	if d.URL != "" {
		l.table.AddURL(d.URL, recs.name)
	}

	l.mu.Lock()
	l.loaded++
	l.mu.Unlock()
	l.log.Debug("loaded structure definition",
		zap.String("type", recs.name),
		zap.String("url", d.URL),
		zap.Int("records", len(recs.types)))
	return nil
}

// LoadJSON loads a StructureDefinition or a Bundle of them and returns the
// number of definitions found.
func (l *Loader) LoadJSON(data []byte) (int, error) {
	defs, err := l.parse(data)
	if err != nil {
		return 0, err
	}
	return len(defs), l.LoadDefinitions(defs...)
}

// parse decodes data into definitions. Bundle entries that are not
// StructureDefinitions are skipped.
func (l *Loader) parse(data []byte) ([]*Definition, error) {
	rt, err := jsonparser.GetString(data, "resourceType")
	if err != nil {
		return nil, fmt.Errorf("%w: reading resourceType: %v", fm.ErrMalformedInput, err)
	}

	switch rt {
	case "StructureDefinition":
		d, err := l.decode(data)
		if err != nil {
			return nil, err
		}
		return []*Definition{d}, nil

	case "Bundle":
		var defs []*Definition
		var errs []error
		_, err := jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
			raw, typ, _, err := jsonparser.Get(value, "resource")
			if err != nil || typ != jsonparser.Object {
				return
			}
			if rt, _ := jsonparser.GetString(raw, "resourceType"); rt != "StructureDefinition" {
				return
			}
			d, err := l.decode(raw)
			if err != nil {
				errs = append(errs, err)
				return
			}
			defs = append(defs, d)
		}, "entry")
		if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil, fmt.Errorf("%w: reading bundle entries: %v", fm.ErrMalformedInput, err)
		}
		return defs, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%w: %w %s", fm.ErrMalformedInput, errUnsupportedResource, rt)
}

var errUnsupportedResource = errors.New("unsupported resourceType")

// decode reads one StructureDefinition, through the typed R4 model when the
// table is R4.
func (l *Loader) decode(data []byte) (*Definition, error) {
	if l.table.Version() == fm.R4 {
		var sd r4.StructureDefinition
		if err := json.Unmarshal(data, &sd); err != nil {
			return nil, fmt.Errorf("%w: parsing StructureDefinition: %v", fm.ErrMalformedInput, err)
		}
		return FromR4(&sd), nil
	}
	d, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing StructureDefinition: %v", fm.ErrMalformedInput, err)
	}
	return d, nil
}

// LoadFS loads every file below the root of fsys whose base name matches
// pattern ("*.json" when empty). Resources other than StructureDefinitions
// and Bundles are skipped. Files that fail to parse or load are
// reported in the joined error; the others are still loaded.
func (l *Loader) LoadFS(fsys fs.FS, pattern string) (int, error) {
	if pattern == "" {
		pattern = "*.json"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var defs []*Definition
	var errs []error
	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if ok, _ := path.Match(pattern, entry.Name()); !ok {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		parsed, err := l.parse(data)
		if errors.Is(err, errUnsupportedResource) {
			l.log.Debug("skipping file", zap.String("path", p), zap.Error(err))
			return nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
		defs = append(defs, parsed...)
		return nil
	})
	if err != nil {
		return 0, err
	}

	errs = append(errs, l.LoadDefinitions(defs...))
	l.log.Info("loaded structure definitions", zap.Int("count", len(defs)), zap.Int("types", l.table.Len()))
	return len(defs), errors.Join(errs...)
}

// LoadDir is LoadFS over a directory on disk.
func (l *Loader) LoadDir(dir string) (int, error) {
	return l.LoadFS(os.DirFS(dir), "*.json")
}
