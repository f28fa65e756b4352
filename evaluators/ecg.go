package evaluators

import (
	"sort"
	"time"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/registry"
)

// HasQTCFOfAtMost checks the QTcF readings of the most recent ECG day
func HasQTCFOfAtMost(fn criteria.Function) (registry.Evaluator, error) {
	maxMs, err := doubleParam(fn, 0)
	if err != nil {
		return nil, err
	}

	return registry.EvaluatorFunc(func(record patient.Record) (evaluation.Evaluation, error) {
		ecgs := make([]patient.ECGMeasurement, len(record.ECGs))
		copy(ecgs, record.ECGs)
		sort.SliceStable(ecgs, func(i, j int) bool { return ecgs[i].Date.After(ecgs[j].Date) })

		latest := latestDay(ecgs, func(m patient.ECGMeasurement) time.Time { return m.Date })
		if len(latest) == 0 {
			return evaluation.NewUndetermined(evaluation.Static("No QTcF measurement found")), nil
		}

		evals := make([]evaluation.Evaluation, len(latest))
		for i, m := range latest {
			shown := formatValue(m.QTCFMs) + " ms"
			if m.QTCFMs > maxMs {
				evals[i] = evaluation.NewRecoverableFail(evaluation.NewItemsMessage("qtcf-fail", "QTcF above "+formatValue(maxMs)+" ms: ", shown))
			} else {
				evals[i] = evaluation.NewPass(evaluation.NewItemsMessage("qtcf-pass", "QTcF within limit: ", shown))
			}
		}
		return evaluation.MergeInstances(evals...), nil
	}), nil
}
