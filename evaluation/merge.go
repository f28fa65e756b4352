package evaluation

// MergeInstances reduces several evaluations of the same criterion (one per
// measurement or history entry) to the worst of them. NotEvaluated inputs
// are ignored; if nothing else remains the result is NotEvaluated.
//
// A FAIL is recoverable only if every failing input is recoverable. The
// messages and inclusion events of all inputs sharing the worst result are
// unioned and combined.
func MergeInstances(evals ...Evaluation) Evaluation {
	worst := NotEvaluated
	for _, e := range evals {
		if e.result == NotEvaluated {
			continue
		}
		if worst == NotEvaluated || e.result.WorseThan(worst) {
			worst = e.result
		}
	}
	if worst == NotEvaluated {
		return NewNotEvaluated()
	}

	recoverable := true
	var (
		messages []Message
		events   []string
	)
	for _, e := range evals {
		if e.result != worst {
			continue
		}
		recoverable = recoverable && e.recoverable
		messages = append(messages, e.messages...)
		events = append(events, e.inclusionEvents...)
	}

	return Combine(New(worst, recoverable, messages...).WithInclusionEvents(events...))
}
