package trial

import (
	"fmt"
	"strings"
)

// InvalidConfigError reports a configuration rejected before parsing
type InvalidConfigError struct {
	TrialID string
	Reason  string
	Err     error
}

func (e *InvalidConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid trial %q: %v", e.TrialID, e.Err)
	}
	return fmt.Sprintf("trial %q: %s", e.TrialID, e.Reason)
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// ValidateConfig checks a curated trial before any criterion is parsed.
// Criterion text itself is checked by Build.
func ValidateConfig(cfg Config) error {
	invalid := func(format string, args ...any) error {
		return &InvalidConfigError{TrialID: cfg.TrialID, Reason: fmt.Sprintf(format, args...)}
	}

	if err := validate.Struct(cfg); err != nil {
		return &InvalidConfigError{TrialID: cfg.TrialID, Err: err}
	}

	if len(cfg.Criteria) == 0 && len(cfg.Cohorts) == 0 {
		return invalid("has neither general criteria nor cohorts")
	}

	seen := make(map[string]bool, len(cfg.Cohorts))
	for _, c := range cfg.Cohorts {
		if seen[c.CohortID] {
			return invalid("duplicate cohort %q", c.CohortID)
		}
		seen[c.CohortID] = true

		for i, crit := range c.Criteria {
			if strings.TrimSpace(crit.Rule) == "" {
				return invalid("cohort %q: criterion %d is blank", c.CohortID, i+1)
			}
		}
	}

	for i, crit := range cfg.Criteria {
		if strings.TrimSpace(crit.Rule) == "" {
			return invalid("general criterion %d is blank", i+1)
		}
	}

	return nil
}
