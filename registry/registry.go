// Package registry maps every leaf rule of the vocabulary to the factory
// that builds its evaluator.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
)

// Evaluator scores one leaf criterion against a patient record
type Evaluator interface {
	Evaluate(record patient.Record) (evaluation.Evaluation, error)
}

// EvaluatorFunc adapts a plain function to Evaluator
type EvaluatorFunc func(record patient.Record) (evaluation.Evaluation, error)

func (f EvaluatorFunc) Evaluate(record patient.Record) (evaluation.Evaluation, error) {
	return f(record)
}

// Factory builds an evaluator bound to the parameters of fn
type Factory func(fn criteria.Function) (Evaluator, error)

// ConfigurationError reports an inconsistent rule binding. These are
// programming or deployment errors, never patient-data errors.
type ConfigurationError struct {
	Rule   criteria.Rule
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Rule == "" {
		return "rule configuration: " + e.Reason
	}
	return fmt.Sprintf("rule configuration for %s: %s", e.Rule, e.Reason)
}

// Registry is an immutable, total mapping from leaf rule to factory
type Registry struct {
	factories map[criteria.Rule]Factory
}

// New checks that bindings cover exactly the leaf rules of the vocabulary
func New(bindings map[criteria.Rule]Factory) (*Registry, error) {
	factories := make(map[criteria.Rule]Factory, len(bindings))
	for rule, factory := range bindings {
		switch {
		case !rule.Valid():
			return nil, &ConfigurationError{Rule: rule, Reason: "not in the rule vocabulary"}
		case rule.IsComposite():
			return nil, &ConfigurationError{Rule: rule, Reason: "composite rules are evaluated by the algebra and cannot be bound"}
		case factory == nil:
			return nil, &ConfigurationError{Rule: rule, Reason: "nil factory"}
		}
		factories[rule] = factory
	}

	var missing []string
	for _, rule := range criteria.LeafRules() {
		if _, ok := factories[rule]; !ok {
			missing = append(missing, string(rule))
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Reason: "no evaluator bound for " + strings.Join(missing, ", ")}
	}

	return &Registry{factories: factories}, nil
}

// Resolve returns the factory bound to a leaf rule
func (r *Registry) Resolve(rule criteria.Rule) (Factory, error) {
	factory, ok := r.factories[rule]
	if !ok {
		return nil, &ConfigurationError{Rule: rule, Reason: "no evaluator bound"}
	}
	return factory, nil
}

// Build resolves the factory for fn and binds it to fn's parameters
func (r *Registry) Build(fn criteria.Function) (Evaluator, error) {
	factory, err := r.Resolve(fn.Rule)
	if err != nil {
		return nil, err
	}
	ev, err := factory(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluator for %s: %w", fn.Rule, err)
	}
	return ev, nil
}

// Rules lists the bound rules, sorted
func (r *Registry) Rules() []criteria.Rule {
	out := make([]criteria.Rule, 0, len(r.factories))
	for rule := range r.factories {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge combines binding sets; a rule bound in a later set overrides
// earlier bindings
func Merge(sets ...map[criteria.Rule]Factory) map[criteria.Rule]Factory {
	out := make(map[criteria.Rule]Factory)
	for _, set := range sets {
		for rule, factory := range set {
			out[rule] = factory
		}
	}
	return out
}
