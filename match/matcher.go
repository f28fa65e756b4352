package match

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/trial"
)

// Evaluator evaluates a criterion tree; *algebra.Algebra satisfies it
type Evaluator interface {
	Evaluate(fn criteria.Function, record patient.Record) (evaluation.Evaluation, error)
}

// Option configures a Matcher
type Option func(*Matcher)

// WithConcurrency bounds how many trials are matched at once
func WithConcurrency(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// Matcher is stateless and safe for concurrent use
type Matcher struct {
	evaluator   Evaluator
	concurrency int
}

// NewMatcher creates a matcher; concurrency defaults to GOMAXPROCS
func NewMatcher(evaluator Evaluator, opts ...Option) *Matcher {
	m := &Matcher{evaluator: evaluator, concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DetermineEligibility matches record against every trial. The result keeps
// the order of trials. The first evaluator error cancels the remaining
// work and is returned; no partial result is reported.
func (m *Matcher) DetermineEligibility(ctx context.Context, record patient.Record, trials []trial.Trial) ([]TrialMatch, error) {
	out := make([]TrialMatch, len(trials))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, t := range trials {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tm, err := m.MatchTrial(record, t)
			if err != nil {
				return fmt.Errorf("failed to match trial %s: %w", t.Identification.TrialID, err)
			}
			out[i] = tm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchTrial evaluates the general criteria and every cohort of t
func (m *Matcher) MatchTrial(record patient.Record, t trial.Trial) (TrialMatch, error) {
	general, err := m.evaluate(t.GeneralEligibility, record)
	if err != nil {
		return TrialMatch{}, fmt.Errorf("general eligibility: %w", err)
	}

	tm := TrialMatch{
		Identification:        t.Identification,
		Evaluations:           general,
		IsPotentiallyEligible: IsPotentiallyEligible(general),
		Cohorts:               []CohortMatch{},
		NonEvaluableCohorts:   []CohortMatch{},
	}

	for _, c := range t.Cohorts {
		evals, err := m.evaluate(c.Eligibility, record)
		if err != nil {
			return TrialMatch{}, fmt.Errorf("cohort %s: %w", c.Metadata.CohortID, err)
		}
		cm := CohortMatch{
			Metadata:              c.Metadata,
			Evaluations:           evals,
			IsPotentiallyEligible: IsPotentiallyEligible(general, evals),
		}
		if c.Metadata.Evaluable {
			tm.Cohorts = append(tm.Cohorts, cm)
		} else {
			tm.NonEvaluableCohorts = append(tm.NonEvaluableCohorts, cm)
		}
	}

	if got := len(tm.Cohorts) + len(tm.NonEvaluableCohorts); got != len(t.Cohorts) {
		return TrialMatch{}, fmt.Errorf("cohort accounting mismatch: %d configured, %d matched", len(t.Cohorts), got)
	}
	return tm, nil
}

func (m *Matcher) evaluate(elig []trial.Eligibility, record patient.Record) (Evaluations, error) {
	out := make(Evaluations, 0, len(elig))
	for _, e := range elig {
		ev, err := m.evaluator.Evaluate(e.Function, record)
		if err != nil {
			return nil, err
		}
		out = append(out, EligibilityEvaluation{
			Eligibility: e,
			Evaluation:  evaluation.Combine(ev),
		})
	}
	return out, nil
}
