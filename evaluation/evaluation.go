package evaluation

import (
	"encoding/json"
	"fmt"
)

// Evaluation is the outcome of one criterion for one patient. Values are
// immutable: every With* method and every composition returns a copy.
//
// Exactly one message category is populated, the one matching Result
// (NotEvaluated carries none). Recoverable only matters for Fail: it marks
// a disqualification that more patient data could still reverse.
type Evaluation struct {
	result          Result
	recoverable     bool
	messages        []Message
	inclusionEvents []string
}

// New creates an evaluation with messages filed under result's category
func New(result Result, recoverable bool, messages ...Message) Evaluation {
	e := Evaluation{
		result:      result,
		recoverable: recoverable && result == Fail,
	}
	if result != NotEvaluated && len(messages) > 0 {
		e.messages = make([]Message, len(messages))
		copy(e.messages, messages)
	}
	return e
}

// NewPass creates a PASS evaluation
func NewPass(msg Message, more ...Message) Evaluation {
	return New(Pass, false, append([]Message{msg}, more...)...)
}

// NewWarn creates a WARN evaluation
func NewWarn(msg Message, more ...Message) Evaluation {
	return New(Warn, false, append([]Message{msg}, more...)...)
}

// NewUndetermined creates an UNDETERMINED evaluation
func NewUndetermined(msg Message, more ...Message) Evaluation {
	return New(Undetermined, false, append([]Message{msg}, more...)...)
}

// NewFail creates an unrecoverable FAIL evaluation
func NewFail(msg Message, more ...Message) Evaluation {
	return New(Fail, false, append([]Message{msg}, more...)...)
}

// NewRecoverableFail creates a FAIL that additional data may reverse
func NewRecoverableFail(msg Message, more ...Message) Evaluation {
	return New(Fail, true, append([]Message{msg}, more...)...)
}

// NewNotEvaluated creates the neutral result for deliberately skipped rules
func NewNotEvaluated() Evaluation {
	return Evaluation{result: NotEvaluated}
}

// Result returns the verdict
func (e Evaluation) Result() Result { return e.result }

// Recoverable reports whether a FAIL may still be reversed
func (e Evaluation) Recoverable() bool { return e.recoverable }

// IsUnrecoverableFail reports a FAIL that rules the patient out
func (e Evaluation) IsUnrecoverableFail() bool {
	return e.result == Fail && !e.recoverable
}

// Messages returns the messages of category; empty unless category == Result()
func (e Evaluation) Messages(category Result) []Message {
	if category != e.result || len(e.messages) == 0 {
		return nil
	}
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// InclusionMolecularEvents returns the molecular events that made the
// patient match, sorted
func (e Evaluation) InclusionMolecularEvents() []string {
	if len(e.inclusionEvents) == 0 {
		return nil
	}
	out := make([]string, len(e.inclusionEvents))
	copy(out, e.inclusionEvents)
	return out
}

// WithInclusionEvents returns a copy with events added to the inclusion set
func (e Evaluation) WithInclusionEvents(events ...string) Evaluation {
	all := make([]string, 0, len(e.inclusionEvents)+len(events))
	all = append(all, e.inclusionEvents...)
	all = append(all, events...)
	e.inclusionEvents = sortedUnique(all)
	if len(e.inclusionEvents) == 0 {
		e.inclusionEvents = nil
	}
	return e
}

// Validate checks the message invariant
func (e Evaluation) Validate() error {
	if e.result < Pass || e.result > NotEvaluated {
		return fmt.Errorf("invalid result %d", int(e.result))
	}
	if e.recoverable && e.result != Fail {
		return fmt.Errorf("%s evaluation marked recoverable", e.result)
	}
	if e.result == NotEvaluated {
		if len(e.messages) > 0 {
			return fmt.Errorf("NOT_EVALUATED evaluation carries messages")
		}
		return nil
	}
	if len(e.messages) == 0 {
		return fmt.Errorf("%s evaluation without %s messages", e.result, e.result)
	}
	return nil
}

type evaluationJSON struct {
	Result                   Result              `json:"result"`
	Recoverable              bool                `json:"recoverable"`
	Messages                 map[string][]string `json:"messages,omitempty"`
	InclusionMolecularEvents []string            `json:"inclusionMolecularEvents,omitempty"`
}

// MarshalJSON renders messages to text, keyed by category
func (e Evaluation) MarshalJSON() ([]byte, error) {
	out := evaluationJSON{
		Result:                   e.result,
		Recoverable:              e.recoverable,
		InclusionMolecularEvents: e.inclusionEvents,
	}
	if len(e.messages) > 0 {
		out.Messages = map[string][]string{e.result.String(): Render(e.messages)}
	}
	return json.Marshal(out)
}
