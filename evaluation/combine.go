package evaluation

import "sort"

// Combine merges messages that share a combine key. It is idempotent.
func Combine(e Evaluation) Evaluation {
	if len(e.messages) == 0 {
		return e
	}
	e.messages = CombineMessages(e.messages)
	return e
}

// CombineMessages folds each combine-key group into one message. Groups are
// sorted by rendered text before folding so the output does not depend on
// input order; the result is ordered by combine key, then text.
func CombineMessages(msgs []Message) []Message {
	groups := make(map[string][]Message)
	for _, m := range msgs {
		key := m.CombineKey()
		groups[key] = append(groups[key], m)
	}

	out := make([]Message, 0, len(groups))
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Render() < group[j].Render()
		})
		merged := group[0]
		for _, m := range group[1:] {
			merged = merged.Combine(m)
		}
		out = append(out, merged)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CombineKey() != out[j].CombineKey() {
			return out[i].CombineKey() < out[j].CombineKey()
		}
		return out[i].Render() < out[j].Render()
	})
	return out
}
