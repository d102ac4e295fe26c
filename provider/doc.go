// Package provider implements fm.ModelProvider on top of a schema.Table.
//
// A Provider is fixed to one FHIR version and one table for its lifetime.
// Resolved type records are cached in an LRU; concurrent misses for the
// same name are collapsed with singleflight. Every record handed out is a
// copy, so callers may modify what they receive.
//
// Basic usage:
//
//	table := schema.NewTable(fm.R4)
//	if _, err := loader.New(table, nil).LoadDir("definitions"); err != nil {
//		return err
//	}
//	p, err := provider.New(fm.R4, table, fm.WithAsync(true))
//	if err != nil {
//		return err
//	}
//	result, err := p.Validate(ctx, resourceJSON)
package provider
