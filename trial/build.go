package trial

import (
	"errors"
	"fmt"

	"github.com/liamcoop/trialmatch/criteria"
)

// Parser turns criterion text into a function tree
type Parser interface {
	Parse(text string) (criteria.Function, error)
}

// Build validates cfg and parses every criterion. All criterion errors are
// reported together; any error means the trial must not be matched.
// Ignored cohorts are left out.
func Build(cfg Config, parser Parser) (Trial, error) {
	if err := ValidateConfig(cfg); err != nil {
		return Trial{}, err
	}

	var errs []error
	t := Trial{
		Identification: Identification{
			TrialID: cfg.TrialID,
			Acronym: cfg.Acronym,
			Title:   cfg.Title,
			Open:    cfg.Open,
			NCTID:   cfg.NCTID,
		},
	}

	general, err := buildEligibility(cfg.Criteria, parser)
	if err != nil {
		errs = append(errs, fmt.Errorf("trial %s general eligibility: %w", cfg.TrialID, err))
	}
	t.GeneralEligibility = general

	for _, c := range cfg.Cohorts {
		if c.Ignore {
			continue
		}
		elig, err := buildEligibility(c.Criteria, parser)
		if err != nil {
			errs = append(errs, fmt.Errorf("trial %s cohort %s: %w", cfg.TrialID, c.CohortID, err))
			continue
		}
		t.Cohorts = append(t.Cohorts, Cohort{
			Metadata: CohortMetadata{
				CohortID:       c.CohortID,
				Evaluable:      c.IsEvaluable(),
				Open:           c.Open,
				SlotsAvailable: c.SlotsAvailable,
				Description:    c.Description,
			},
			Eligibility: elig,
		})
	}

	if err := errors.Join(errs...); err != nil {
		return Trial{}, err
	}
	return t, nil
}

// CohortCount is the number of cohorts the built trial is expected to hold
func (c Config) CohortCount() int {
	n := 0
	for _, cohort := range c.Cohorts {
		if !cohort.Ignore {
			n++
		}
	}
	return n
}

func buildEligibility(configs []CriterionConfig, parser Parser) ([]Eligibility, error) {
	out := make([]Eligibility, 0, len(configs))
	var errs []error
	for i, c := range configs {
		fn, err := parser.Parse(c.Rule)
		if err != nil {
			errs = append(errs, fmt.Errorf("criterion %d: %w", i+1, err))
			continue
		}
		refs := make([]string, len(c.References))
		copy(refs, c.References)
		out = append(out, Eligibility{References: refs, Function: fn})
	}
	return out, errors.Join(errs...)
}
