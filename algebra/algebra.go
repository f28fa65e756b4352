// Package algebra evaluates parsed eligibility trees against a patient by
// composing leaf evaluations with AND, OR, NOT and WARN_IF.
package algebra

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/registry"
)

// Resolver builds the evaluator for a leaf function
type Resolver interface {
	Build(fn criteria.Function) (registry.Evaluator, error)
}

// OrRecoverability decides whether an OR whose children all FAIL is recoverable
type OrRecoverability int

const (
	// RequireAllRecoverable makes the OR recoverable only when every failing
	// alternative is recoverable
	RequireAllRecoverable OrRecoverability = iota
	// AnyRecoverable makes the OR recoverable when at least one alternative is
	AnyRecoverable
)

func (p OrRecoverability) String() string {
	if p == AnyRecoverable {
		return "any"
	}
	return "all"
}

// ParseOrRecoverability accepts "all" or "any"
func ParseOrRecoverability(s string) (OrRecoverability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return RequireAllRecoverable, nil
	case "any":
		return AnyRecoverable, nil
	default:
		return 0, fmt.Errorf("unknown OR recoverability policy %q (want all or any)", s)
	}
}

// Option configures an Algebra
type Option func(*Algebra)

// WithOrRecoverability sets the OR-of-FAILs policy
func WithOrRecoverability(p OrRecoverability) Option {
	return func(a *Algebra) { a.orPolicy = p }
}

// Algebra is stateless after construction and safe for concurrent use
type Algebra struct {
	resolver Resolver
	orPolicy OrRecoverability
}

// New creates an algebra that delegates leaves to resolver
func New(resolver Resolver, opts ...Option) *Algebra {
	a := &Algebra{resolver: resolver, orPolicy: RequireAllRecoverable}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OrPolicy returns the configured OR-of-FAILs policy
func (a *Algebra) OrPolicy() OrRecoverability { return a.orPolicy }

// Evaluate walks fn and returns its evaluation for record. Errors are
// configuration problems or evaluator failures; they are never turned into
// UNDETERMINED results.
func (a *Algebra) Evaluate(fn criteria.Function, record patient.Record) (evaluation.Evaluation, error) {
	switch fn.Rule.Operator() {
	case criteria.OpLeaf:
		return a.leaf(fn, record)
	case criteria.OpAnd:
		children, err := a.children(fn, record, 1, -1)
		if err != nil {
			return evaluation.Evaluation{}, err
		}
		return evaluation.MergeInstances(children...), nil
	case criteria.OpOr:
		children, err := a.children(fn, record, 1, -1)
		if err != nil {
			return evaluation.Evaluation{}, err
		}
		return a.or(children), nil
	case criteria.OpNot:
		children, err := a.children(fn, record, 1, 1)
		if err != nil {
			return evaluation.Evaluation{}, err
		}
		return not(children[0]), nil
	case criteria.OpWarnIf:
		children, err := a.children(fn, record, 1, 1)
		if err != nil {
			return evaluation.Evaluation{}, err
		}
		return warnIf(children[0]), nil
	default:
		return evaluation.Evaluation{}, &registry.ConfigurationError{Rule: fn.Rule, Reason: "unknown operator " + fn.Rule.Operator().String()}
	}
}

func (a *Algebra) leaf(fn criteria.Function, record patient.Record) (evaluation.Evaluation, error) {
	ev, err := a.resolver.Build(fn)
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	result, err := ev.Evaluate(record)
	if err != nil {
		return evaluation.Evaluation{}, fmt.Errorf("evaluator for %s failed: %w", fn, err)
	}
	if err := result.Validate(); err != nil {
		return evaluation.Evaluation{}, fmt.Errorf("evaluator for %s returned an invalid evaluation: %w", fn, err)
	}
	return result, nil
}

// children evaluates the nested criteria of a composite; maxArgs < 0 means unbounded
func (a *Algebra) children(fn criteria.Function, record patient.Record, minArgs, maxArgs int) ([]evaluation.Evaluation, error) {
	nested := fn.Children()
	if len(nested) != len(fn.Parameters) {
		return nil, &registry.ConfigurationError{Rule: fn.Rule, Reason: "composite rule with non-criterion parameters"}
	}
	if len(nested) < minArgs || (maxArgs >= 0 && len(nested) > maxArgs) {
		return nil, &registry.ConfigurationError{Rule: fn.Rule, Reason: fmt.Sprintf("unexpected number of criteria: %d", len(nested))}
	}

	out := make([]evaluation.Evaluation, len(nested))
	for i, child := range nested {
		e, err := a.Evaluate(child, record)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (a *Algebra) or(children []evaluation.Evaluation) evaluation.Evaluation {
	best := evaluation.NotEvaluated
	for _, c := range children {
		r := c.Result()
		if r == evaluation.NotEvaluated {
			continue
		}
		if best == evaluation.NotEvaluated || r.BetterThan(best) {
			best = r
		}
	}
	if best == evaluation.NotEvaluated {
		return evaluation.NewNotEvaluated()
	}

	recoverable := a.orPolicy == RequireAllRecoverable
	var (
		messages []evaluation.Message
		events   []string
	)
	for _, c := range children {
		if c.Result() != best {
			continue
		}
		if a.orPolicy == RequireAllRecoverable {
			recoverable = recoverable && c.Recoverable()
		} else {
			recoverable = recoverable || c.Recoverable()
		}
		messages = append(messages, c.Messages(best)...)
		events = append(events, c.InclusionMolecularEvents()...)
	}

	return evaluation.Combine(evaluation.New(best, recoverable, messages...).WithInclusionEvents(events...))
}

func not(child evaluation.Evaluation) evaluation.Evaluation {
	switch child.Result() {
	case evaluation.Pass:
		return evaluation.New(evaluation.Fail, child.Recoverable(), child.Messages(evaluation.Pass)...)
	case evaluation.Fail:
		return evaluation.New(evaluation.Pass, false, child.Messages(evaluation.Fail)...)
	default:
		return child
	}
}

func warnIf(child evaluation.Evaluation) evaluation.Evaluation {
	if child.Result() != evaluation.Pass {
		return child
	}
	return evaluation.New(evaluation.Warn, false, child.Messages(evaluation.Pass)...).
		WithInclusionEvents(child.InclusionMolecularEvents()...)
}
