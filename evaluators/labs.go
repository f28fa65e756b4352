package evaluators

import (
	"fmt"
	"strconv"
	"time"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/registry"
)

// Lab codes as curated in patient records
const (
	LabLeukocytesAbs = "LEUKOCYTES_ABS"
	LabHemoglobin    = "HEMOGLOBIN"
	LabCreatinine    = "CREATININE"
)

// MaxLabAge is how old the latest measurement may be before a passing
// value is only reported as a warning
const MaxLabAge = 90 * 24 * time.Hour

type labRule struct {
	code  string
	label string
	unit  string
	// atLeast selects a minimum threshold; otherwise the threshold is a maximum
	atLeast bool
	// uln compares value / upper limit of normal instead of the raw value
	uln bool
}

var (
	leukocytesAtLeast = labRule{code: LabLeukocytesAbs, label: "leukocytes", unit: "10^9/L", atLeast: true}
	hemoglobinAtLeast = labRule{code: LabHemoglobin, label: "hemoglobin", unit: "g/dL", atLeast: true}
	creatinineULN     = labRule{code: LabCreatinine, label: "creatinine", unit: "ULN", uln: true}
)

func (l labRule) factory(fn criteria.Function) (registry.Evaluator, error) {
	threshold, err := doubleParam(fn, 0)
	if err != nil {
		return nil, err
	}
	return registry.EvaluatorFunc(func(record patient.Record) (evaluation.Evaluation, error) {
		return l.evaluate(record, threshold), nil
	}), nil
}

// evaluate uses the measurements of the most recent day; several values on
// that day are merged so the worst one decides
func (l labRule) evaluate(record patient.Record, threshold float64) evaluation.Evaluation {
	labs := latestDay(record.LabsFor(l.code), func(v patient.LabValue) time.Time { return v.Date })
	if len(labs) == 0 {
		return evaluation.NewUndetermined(evaluation.NewItemsMessage("lab-missing", "No measurement found for ", l.label))
	}

	evals := make([]evaluation.Evaluation, len(labs))
	for i, lab := range labs {
		evals[i] = l.single(record, lab, threshold)
	}
	return evaluation.MergeInstances(evals...)
}

func (l labRule) single(record patient.Record, lab patient.LabValue, threshold float64) evaluation.Evaluation {
	value := lab.Value
	if l.uln {
		if lab.RefLimitUp == nil || *lab.RefLimitUp <= 0 {
			return evaluation.NewUndetermined(evaluation.NewItemsMessage("lab-uln", "Upper limit of normal unknown for ", l.label))
		}
		value = lab.Value / *lab.RefLimitUp
	}

	shown := fmt.Sprintf("%s %s %s", l.label, formatValue(value), l.unit)
	ok := value <= threshold
	if l.atLeast {
		ok = value >= threshold
	}
	if !ok {
		bound := "above maximum "
		if l.atLeast {
			bound = "below minimum "
		}
		return evaluation.NewRecoverableFail(evaluation.NewItemsMessage("lab-fail-"+l.code, "Lab value "+bound+formatValue(threshold)+": ", shown))
	}
	if record.ReferenceDate.Sub(lab.Date) > MaxLabAge {
		return evaluation.NewWarn(evaluation.NewItemsMessage("lab-outdated", "Latest measurement older than 90 days: ", shown))
	}
	return evaluation.NewPass(evaluation.NewItemsMessage("lab-pass-"+l.code, "Lab value within limit: ", shown))
}

// latestDay returns the items dated on the same calendar day as the most
// recent one. items must be sorted most recent first.
func latestDay[T any](items []T, date func(T) time.Time) []T {
	if len(items) == 0 {
		return nil
	}
	y, m, d := date(items[0]).Date()
	var out []T
	for _, item := range items {
		iy, im, id := date(item).Date()
		if iy != y || im != m || id != d {
			break
		}
		out = append(out, item)
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
