// Package trial holds parsed clinical trials and the curated configuration
// they are built from.
package trial

import (
	"github.com/liamcoop/trialmatch/criteria"
)

// Identification names a trial
type Identification struct {
	TrialID string `json:"trialId"`
	Acronym string `json:"acronym,omitempty"`
	Title   string `json:"title,omitempty"`
	Open    bool   `json:"open"`
	NCTID   string `json:"nctId,omitempty"`
}

// CohortMetadata describes a cohort. Only evaluable cohorts take part in
// matching; the others are evaluated for reporting only.
type CohortMetadata struct {
	CohortID       string `json:"cohortId"`
	Evaluable      bool   `json:"evaluable"`
	Open           bool   `json:"open"`
	SlotsAvailable bool   `json:"slotsAvailable"`
	Description    string `json:"description,omitempty"`
}

// Eligibility is one parsed criterion with its provenance
type Eligibility struct {
	References []string          `json:"references,omitempty"`
	Function   criteria.Function `json:"function"`
}

// Cohort is a trial arm with its own criteria
type Cohort struct {
	Metadata    CohortMetadata `json:"metadata"`
	Eligibility []Eligibility  `json:"eligibility"`
}

// Trial is immutable after Build and may be shared between goroutines
type Trial struct {
	Identification     Identification `json:"identification"`
	GeneralEligibility []Eligibility  `json:"generalEligibility"`
	Cohorts            []Cohort       `json:"cohorts"`
}
