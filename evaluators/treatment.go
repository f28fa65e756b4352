// Package evaluators holds leaf evaluators that are awkward to express as
// CEL bindings, and assembles the default rule registry.
package evaluators

import (
	"fmt"
	"strings"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/registry"
)

const treatmentHistoryKey = "treatment-history"

// HasHadTreatmentName passes when the history contains the referenced
// treatment. An unnamed entry sharing one of the treatment's categories
// leaves the answer open.
func HasHadTreatmentName(fn criteria.Function) (registry.Evaluator, error) {
	ref, err := referenceParam(fn, 0)
	if err != nil {
		return nil, err
	}

	return registry.EvaluatorFunc(func(record patient.Record) (evaluation.Evaluation, error) {
		var unclear bool
		for _, entry := range record.Treatments {
			if strings.EqualFold(entry.Name, ref.Name) {
				return evaluation.NewPass(evaluation.NewItemsMessage(treatmentHistoryKey, "Has received ", ref.Name)), nil
			}
			if entry.Name == "" && sharesAny(entry.Categories, ref.Categories) {
				unclear = true
			}
		}
		if unclear {
			return evaluation.NewUndetermined(evaluation.NewItemsMessage("treatment-unclear", "Unclear whether patient has received ", ref.Name)), nil
		}
		return evaluation.NewFail(evaluation.NewItemsMessage("treatment-missing", "Has not received ", ref.Name)), nil
	}), nil
}

func sharesAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

func referenceParam(fn criteria.Function, i int) (criteria.Reference, error) {
	if i >= len(fn.Parameters) {
		return criteria.Reference{}, fmt.Errorf("rule %s: missing parameter %d", fn.Rule, i+1)
	}
	ref, ok := fn.Parameters[i].(criteria.Reference)
	if !ok {
		return criteria.Reference{}, fmt.Errorf("rule %s: parameter %d is not a reference", fn.Rule, i+1)
	}
	return ref, nil
}

func doubleParam(fn criteria.Function, i int) (float64, error) {
	if i >= len(fn.Parameters) {
		return 0, fmt.Errorf("rule %s: missing parameter %d", fn.Rule, i+1)
	}
	lit, ok := fn.Parameters[i].(criteria.Literal)
	if !ok || lit.Kind() == criteria.LiteralString {
		return 0, fmt.Errorf("rule %s: parameter %d is not numeric", fn.Rule, i+1)
	}
	return lit.Double(), nil
}
