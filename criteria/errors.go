package criteria

import "fmt"

// ParseError reports criterion text that violates the grammar
type ParseError struct {
	Criterion string
	Rule      string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("parse error in %q: %s", e.Criterion, e.Reason)
	}
	return fmt.Sprintf("parse error in %q (rule %s): %s", e.Criterion, e.Rule, e.Reason)
}

// ValidationError reports parameters that do not fit the target rule
type ValidationError struct {
	Criterion string
	Rule      string
	// Params is the raw parameter text for diagnostics
	Params string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid inputs for rule %s in %q (params %q): %s", e.Rule, e.Criterion, e.Params, e.Reason)
}
