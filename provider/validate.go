package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	fm "github.com/gofhir/model"
)

// ValidateConformance parses resource and walks it against its declared
// type. Only unparseable input is an error.
func (p *Provider) ValidateConformance(ctx context.Context, resource []byte) (*fm.ConformanceResult, error) {
	res, err := fm.ParseResource(resource)
	if err != nil {
		return nil, err
	}
	return p.ValidateResource(ctx, res)
}

// ValidateResource walks an already parsed resource.
func (p *Provider) ValidateResource(ctx context.Context, res *fm.Resource) (*fm.ConformanceResult, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil resource", fm.ErrMalformedInput)
	}
	if res.FHIRVersion != "" && res.FHIRVersion != p.version {
		return nil, &fm.VersionMismatchError{Want: p.version, Got: res.FHIRVersion, Subject: res.Key()}
	}
	result, err := p.validator.Validate(ctx, res)
	if err != nil {
		return result, err
	}
	p.metrics.RecordValidation(result.Status())
	return result, nil
}

// Validate runs the structural walk and then every invariant of the
// resource's type, folding constraint outcomes into one result.
func (p *Provider) Validate(ctx context.Context, resource []byte) (*fm.ConformanceResult, error) {
	res, err := fm.ParseResource(resource)
	if err != nil {
		return nil, err
	}
	result, err := p.ValidateResource(ctx, res)
	if err != nil {
		return result, err
	}

	constraints, err := p.Constraints(res.ResourceType)
	if err != nil {
		// The walk has already reported the broken type.
		p.log.Debug("constraints unavailable", zap.String("type", res.ResourceType), zap.Error(err))
		return result, nil
	}
	results := p.engine.EvaluateAll(ctx, constraints, res)
	for i, r := range results {
		c := constraints[i]
		switch r.Outcome {
		case fm.OutcomeViolated:
			result.Add(fm.NewViolation(c.Severity).
				At(res.ResourceType).
				Message(c.Human).
				Constraint(c.ID).
				Build())
		case fm.OutcomeError:
			result.Add(fm.Warning().
				At(res.ResourceType).
				Messagef("constraint could not be evaluated: %s", r.Diagnostic).
				Constraint(c.ID).
				Build())
		}
	}
	return result, ctx.Err()
}

// EvaluateConstraint evaluates one invariant against res. Failures are
// reported in the result.
func (p *Provider) EvaluateConstraint(ctx context.Context, c fm.ConstraintInfo, res *fm.Resource) fm.ConstraintResult {
	return p.engine.Evaluate(ctx, c, res)
}

// EvaluateConstraints evaluates cs independently; results keep the order
// of cs.
func (p *Provider) EvaluateConstraints(ctx context.Context, cs []fm.ConstraintInfo, res *fm.Resource) []fm.ConstraintResult {
	return p.engine.EvaluateAll(ctx, cs, res)
}
