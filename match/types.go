// Package match applies parsed trials to a patient and derives potential
// eligibility per trial and cohort.
package match

import (
	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/trial"
)

// EligibilityEvaluation pairs a criterion with its evaluation
type EligibilityEvaluation struct {
	Eligibility trial.Eligibility     `json:"eligibility"`
	Evaluation  evaluation.Evaluation `json:"evaluation"`
}

// Evaluations keeps configuration order
type Evaluations []EligibilityEvaluation

// Lookup finds the evaluation of a criterion by structural equality
func (es Evaluations) Lookup(fn criteria.Function) (evaluation.Evaluation, bool) {
	for _, e := range es {
		if e.Eligibility.Function.Equal(fn) {
			return e.Evaluation, true
		}
	}
	return evaluation.Evaluation{}, false
}

// CohortMatch is the outcome for one cohort
type CohortMatch struct {
	Metadata              trial.CohortMetadata `json:"metadata"`
	Evaluations           Evaluations          `json:"evaluations"`
	IsPotentiallyEligible bool                 `json:"isPotentiallyEligible"`
}

// TrialMatch is the outcome for one trial
type TrialMatch struct {
	Identification        trial.Identification `json:"identification"`
	Evaluations           Evaluations          `json:"evaluations"`
	IsPotentiallyEligible bool                 `json:"isPotentiallyEligible"`
	Cohorts               []CohortMatch        `json:"cohorts"`
	NonEvaluableCohorts   []CohortMatch        `json:"nonEvaluableCohorts"`
}

// IsPotentiallyEligible is true unless some evaluation is an unrecoverable FAIL
func IsPotentiallyEligible(evals ...Evaluations) bool {
	for _, set := range evals {
		for _, e := range set {
			if e.Evaluation.IsUnrecoverableFail() {
				return false
			}
		}
	}
	return true
}
