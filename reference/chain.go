package reference

import (
	"context"
	"errors"

	fm "github.com/gofhir/model"
)

// Chain tries asynchronous contexts in order until one finds the target.
type Chain struct {
	contexts []fm.AsyncResolutionContext
}

// NewChain creates a chain.
func NewChain(contexts ...fm.AsyncResolutionContext) *Chain {
	return &Chain{contexts: contexts}
}

// Add appends a context to the chain.
func (c *Chain) Add(ctx fm.AsyncResolutionContext) {
	c.contexts = append(c.contexts, ctx)
}

// Fetch returns the first resource found. A context reporting not found
// passes to the next one; any other error stops the chain.
func (c *Chain) Fetch(ctx context.Context, ref fm.Reference) (*fm.Resource, error) {
	for _, rc := range c.contexts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := rc.Fetch(ctx, ref)
		if err == nil && res != nil {
			return res, nil
		}
		if err != nil && !errors.Is(err, fm.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fm.ErrNotFound
}

// Func adapts a function to fm.AsyncResolutionContext.
type Func func(ctx context.Context, ref fm.Reference) (*fm.Resource, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, ref fm.Reference) (*fm.Resource, error) {
	return f(ctx, ref)
}

// Async adapts a synchronous context to the asynchronous path.
func Async(rc fm.ResolutionContext) fm.AsyncResolutionContext {
	return Func(func(ctx context.Context, ref fm.Reference) (*fm.Resource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res, ok := rc.Resolve(ref); ok {
			return res, nil
		}
		return nil, fm.ErrNotFound
	})
}

// Sync tries synchronous contexts in order.
type Sync []fm.ResolutionContext

// Resolve returns the first match.
func (s Sync) Resolve(ref fm.Reference) (*fm.Resource, bool) {
	for _, rc := range s {
		if res, ok := rc.Resolve(ref); ok {
			return res, true
		}
	}
	return nil, false
}

var (
	_ fm.AsyncResolutionContext = (*Chain)(nil)
	_ fm.AsyncResolutionContext = Func(nil)
	_ fm.ResolutionContext      = Sync(nil)
)
