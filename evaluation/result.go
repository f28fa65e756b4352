package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the verdict of one criterion for one patient.
// Values are ordered from best to worst; NotEvaluated sits outside the
// precedence and is skipped by composition.
type Result int

const (
	Pass Result = iota
	Warn
	Undetermined
	Fail
	NotEvaluated
)

// Categories lists the results that carry messages, in precedence order
var Categories = []Result{Pass, Warn, Undetermined, Fail}

func (r Result) String() string {
	switch r {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Undetermined:
		return "UNDETERMINED"
	case Fail:
		return "FAIL"
	case NotEvaluated:
		return "NOT_EVALUATED"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// ParseResult converts the String form back into a Result
func ParseResult(s string) (Result, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return Pass, nil
	case "WARN":
		return Warn, nil
	case "UNDETERMINED":
		return Undetermined, nil
	case "FAIL":
		return Fail, nil
	case "NOT_EVALUATED":
		return NotEvaluated, nil
	default:
		return Pass, fmt.Errorf("unknown evaluation result %q", s)
	}
}

// WorseThan reports whether r ranks below other. NotEvaluated never does.
func (r Result) WorseThan(other Result) bool {
	if r == NotEvaluated || other == NotEvaluated {
		return false
	}
	return r > other
}

// BetterThan reports whether r ranks above other. NotEvaluated never does.
func (r Result) BetterThan(other Result) bool {
	if r == NotEvaluated || other == NotEvaluated {
		return false
	}
	return r < other
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
