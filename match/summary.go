package match

import "github.com/liamcoop/trialmatch/evaluation"

// Summary counts the outcome of a matching run
type Summary struct {
	Trials                     int            `json:"trials"`
	PotentiallyEligibleTrials  int            `json:"potentiallyEligibleTrials"`
	Cohorts                    int            `json:"cohorts"`
	PotentiallyEligibleCohorts int            `json:"potentiallyEligibleCohorts"`
	NonEvaluableCohorts        int            `json:"nonEvaluableCohorts"`
	Results                    map[string]int `json:"results"`
}

// Summarize counts trials and evaluable cohorts that remain candidates.
// A cohort only counts when its trial is potentially eligible as well.
func Summarize(matches []TrialMatch) Summary {
	s := Summary{Results: make(map[string]int)}
	count := func(evals Evaluations) {
		for _, e := range evals {
			s.Results[e.Evaluation.Result().String()]++
		}
	}

	for _, tm := range matches {
		s.Trials++
		if tm.IsPotentiallyEligible {
			s.PotentiallyEligibleTrials++
		}
		count(tm.Evaluations)

		for _, c := range tm.Cohorts {
			s.Cohorts++
			if tm.IsPotentiallyEligible && c.IsPotentiallyEligible {
				s.PotentiallyEligibleCohorts++
			}
			count(c.Evaluations)
		}
		s.NonEvaluableCohorts += len(tm.NonEvaluableCohorts)
	}
	return s
}

// ResultCount returns how many evaluations ended in r
func (s Summary) ResultCount(r evaluation.Result) int {
	return s.Results[r.String()]
}
