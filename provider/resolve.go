package provider

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	fm "github.com/gofhir/model"
)

// ResolveReference resolves reference against rc. Malformed and unresolved
// references yield nil.
func (p *Provider) ResolveReference(reference string, rc fm.ResolutionContext) *fm.ResolvedReference {
	ref, err := fm.ParseReference(reference)
	if err != nil || rc == nil {
		p.metrics.RecordReference(false)
		return nil
	}
	res, ok := rc.Resolve(ref)
	if !ok || res == nil {
		p.metrics.RecordReference(false)
		return nil
	}
	p.metrics.RecordReference(true)
	return &fm.ResolvedReference{Reference: ref, Resource: res}
}

// ResolveReferenceAsync resolves reference through rc in a new goroutine.
// It requires WithAsync(true). The returned future yields nil for
// unresolved references, including ones whose fetch failed; its only error
// is ctx's. No result is published after Cancel.
func (p *Provider) ResolveReferenceAsync(ctx context.Context, reference string, rc fm.AsyncResolutionContext) (*fm.Future[*fm.ResolvedReference], error) {
	if !p.opts.EnableAsync {
		return nil, fmt.Errorf("%w: async reference resolution", fm.ErrCapabilityDisabled)
	}
	ref, err := fm.ParseReference(reference)
	if err != nil || rc == nil {
		p.metrics.RecordReference(false)
		return fm.Completed[*fm.ResolvedReference](nil, nil), nil
	}

	return fm.Go(ctx, func(ctx context.Context) (*fm.ResolvedReference, error) {
		res, err := rc.Fetch(ctx, ref)
		switch {
		case ctx.Err() != nil:
			p.metrics.RecordReferenceCancelled()
			return nil, ctx.Err()
		case err != nil:
			if !errors.Is(err, fm.ErrNotFound) {
				p.log.Debug("reference fetch failed", zap.String("reference", reference), zap.Error(err))
			}
			p.metrics.RecordReference(false)
			return nil, nil
		case res == nil:
			p.metrics.RecordReference(false)
			return nil, nil
		}
		p.metrics.RecordReference(true)
		return &fm.ResolvedReference{Reference: ref, Resource: res}, nil
	}), nil
}
