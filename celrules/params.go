package celrules

import (
	"fmt"

	"github.com/liamcoop/trialmatch/criteria"
)

// paramValues converts typed parameters into the values bound to `params`.
// String lists become lists, references become maps with name, categories
// and types.
func paramValues(fn criteria.Function) ([]any, error) {
	kinds := fn.Rule.ParamKinds()
	if len(kinds) != len(fn.Parameters) {
		return nil, fmt.Errorf("rule %s takes %d parameter(s), got %d", fn.Rule, len(kinds), len(fn.Parameters))
	}

	out := make([]any, len(fn.Parameters))
	for i, p := range fn.Parameters {
		switch v := p.(type) {
		case criteria.Literal:
			if kinds[i] == criteria.KindStringList {
				out[i] = toAny(v.Strings())
			} else {
				out[i] = v.Value()
			}
		case criteria.Reference:
			out[i] = map[string]any{
				"kind":       string(v.Kind),
				"name":       v.Name,
				"categories": toAny(v.Categories),
				"types":      toAny(v.Types),
			}
		default:
			return nil, fmt.Errorf("rule %s: parameter %d is a nested criterion", fn.Rule, i+1)
		}
	}
	return out, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
