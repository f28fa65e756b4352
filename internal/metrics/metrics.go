// Package metrics declares the Prometheus collectors exported on /metrics
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/match"
)

var (
	// MatchRuns counts matching runs by outcome
	MatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialmatch_match_runs_total",
		Help: "Total matching runs by outcome",
	}, []string{"outcome"})

	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trialmatch_match_duration_seconds",
		Help:    "Matching run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// CriterionResults counts evaluated criteria by result
	CriterionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialmatch_criterion_results_total",
		Help: "Evaluated eligibility criteria by result",
	}, []string{"result"})

	PotentiallyEligibleTrials = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trialmatch_potentially_eligible_trials",
		Help:    "Potentially eligible trials per matching run",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	ParseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialmatch_parse_requests_total",
		Help: "Criterion parse requests by outcome",
	}, []string{"outcome"})

	// CatalogTrials reports usable and blocked trials after the last reload
	CatalogTrials = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trialmatch_catalog_trials",
		Help: "Trials held by the catalog by state",
	}, []string{"state"})

	// Log-side counters; they count every event, sampled or not
	LoggedErrors      = logCounter("trialmatch_logged_errors_total", "Errors logged", &logger.TotalErrors)
	LoggedWarnings    = logCounter("trialmatch_logged_warnings_total", "Warnings logged", &logger.TotalWarnings)
	ParseFailures     = logCounter("trialmatch_parse_failures_total", "Criteria rejected by the parser", &logger.ParseFailures)
	EvaluatorFailures = logCounter("trialmatch_evaluator_failures_total", "Matching runs aborted by an evaluator error", &logger.EvaluatorFailures)
	BlockedTrials     = logCounter("trialmatch_blocked_trials_total", "Trial builds blocked from matching", &logger.BlockedTrials)
)

func logCounter(name, help string, v *atomic.Int64) prometheus.CounterFunc {
	return promauto.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
		return float64(v.Load())
	})
}

// ObserveMatch records a finished matching run
func ObserveMatch(started time.Time, s match.Summary, err error) {
	MatchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		MatchRuns.WithLabelValues("error").Inc()
		return
	}
	MatchRuns.WithLabelValues("ok").Inc()
	PotentiallyEligibleTrials.Observe(float64(s.PotentiallyEligibleTrials))
	for _, r := range []evaluation.Result{evaluation.Pass, evaluation.Warn, evaluation.Fail, evaluation.Undetermined, evaluation.NotEvaluated} {
		if n := s.ResultCount(r); n > 0 {
			CriterionResults.WithLabelValues(r.String()).Add(float64(n))
		}
	}
}

// SetCatalog records the catalog sizes after a reload
func SetCatalog(usable, blocked int) {
	CatalogTrials.WithLabelValues("usable").Set(float64(usable))
	CatalogTrials.WithLabelValues("blocked").Set(float64(blocked))
}
