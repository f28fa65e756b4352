package evaluators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/registry"
)

var refDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func run(t *testing.T, factory registry.Factory, fn criteria.Function, rec patient.Record) evaluation.Evaluation {
	t.Helper()
	ev, err := factory(fn)
	require.NoError(t, err)
	e, err := ev.Evaluate(rec)
	require.NoError(t, err)
	require.NoError(t, e.Validate())
	return e
}

func TestDefaultRegistryIsTotal(t *testing.T) {
	reg, err := NewDefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, criteria.LeafRules(), reg.Rules())
}

func TestHasHadTreatmentName(t *testing.T) {
	cisplatin := criteria.Reference{Kind: criteria.ReferenceTreatment, Name: "Cisplatin", Categories: []string{"CHEMOTHERAPY"}}
	fn := criteria.NewFunction(criteria.HasHadTreatmentNameX, cisplatin)

	e := run(t, HasHadTreatmentName, fn, patient.Record{Treatments: []patient.TreatmentEntry{{Name: "cisplatin"}}})
	assert.Equal(t, evaluation.Pass, e.Result())
	assert.Equal(t, []string{"Has received Cisplatin"}, evaluation.Render(e.Messages(evaluation.Pass)))

	e = run(t, HasHadTreatmentName, fn, patient.Record{Treatments: []patient.TreatmentEntry{{Categories: []string{"chemotherapy"}}}})
	assert.Equal(t, evaluation.Undetermined, e.Result())

	e = run(t, HasHadTreatmentName, fn, patient.Record{})
	assert.Equal(t, evaluation.Fail, e.Result())
	assert.False(t, e.Recoverable())

	_, err := HasHadTreatmentName(criteria.NewFunction(criteria.HasHadTreatmentNameX, criteria.StringLiteral("Cisplatin")))
	assert.Error(t, err)
}

func TestLabThresholds(t *testing.T) {
	hbFn := criteria.NewFunction(criteria.HasHemoglobinGPerDLOfAtLeastX, criteria.DoubleLiteral(9))
	factory := Native()[criteria.HasHemoglobinGPerDLOfAtLeastX]

	testCases := []struct {
		name string
		labs []patient.LabValue
		want evaluation.Result
	}{
		{"no measurement", nil, evaluation.Undetermined},
		{"latest passes", []patient.LabValue{
			{Code: LabHemoglobin, Date: refDate.AddDate(0, 0, -30), Value: 8.1},
			{Code: LabHemoglobin, Date: refDate.AddDate(0, 0, -2), Value: 10.2},
		}, evaluation.Pass},
		{"latest fails", []patient.LabValue{
			{Code: LabHemoglobin, Date: refDate.AddDate(0, 0, -30), Value: 11},
			{Code: LabHemoglobin, Date: refDate.AddDate(0, 0, -2), Value: 8.4},
		}, evaluation.Fail},
		{"outdated", []patient.LabValue{
			{Code: LabHemoglobin, Date: refDate.AddDate(-1, 0, 0), Value: 12},
		}, evaluation.Warn},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := run(t, factory, hbFn, patient.Record{ReferenceDate: refDate, Labs: tc.labs})
			assert.Equal(t, tc.want, e.Result())
			if tc.want == evaluation.Fail {
				assert.True(t, e.Recoverable())
			}
		})
	}
}

func TestSameDayMeasurementsMerged(t *testing.T) {
	day := refDate.AddDate(0, 0, -1)
	rec := patient.Record{ReferenceDate: refDate, Labs: []patient.LabValue{
		{Code: LabLeukocytesAbs, Date: day, Value: 3.9},
		{Code: LabLeukocytesAbs, Date: day.Add(2 * time.Hour), Value: 4.2},
	}}
	fn := criteria.NewFunction(criteria.HasLeukocytesAbsOfAtLeastX, criteria.DoubleLiteral(4))

	e := run(t, Native()[criteria.HasLeukocytesAbsOfAtLeastX], fn, rec)
	assert.Equal(t, evaluation.Fail, e.Result())
	assert.Equal(t, []string{"Lab value below minimum 4: leukocytes 3.9 10^9/L"}, evaluation.Render(e.Messages(evaluation.Fail)))
}

func TestCreatinineULN(t *testing.T) {
	fn := criteria.NewFunction(criteria.HasCreatinineULNOfAtMostX, criteria.DoubleLiteral(1.5))
	factory := Native()[criteria.HasCreatinineULNOfAtMostX]
	uln := 100.0

	e := run(t, factory, fn, patient.Record{ReferenceDate: refDate, Labs: []patient.LabValue{
		{Code: LabCreatinine, Date: refDate, Value: 120, RefLimitUp: &uln},
	}})
	assert.Equal(t, evaluation.Pass, e.Result())

	e = run(t, factory, fn, patient.Record{ReferenceDate: refDate, Labs: []patient.LabValue{
		{Code: LabCreatinine, Date: refDate, Value: 120},
	}})
	assert.Equal(t, evaluation.Undetermined, e.Result())
}

func TestQTCF(t *testing.T) {
	fn := criteria.NewFunction(criteria.HasQTCFOfAtMostX, criteria.DoubleLiteral(470))
	day := refDate.AddDate(0, 0, -3)
	rec := patient.Record{ReferenceDate: refDate, ECGs: []patient.ECGMeasurement{
		{Date: refDate.AddDate(0, -2, 0), QTCFMs: 500},
		{Date: day, QTCFMs: 450},
		{Date: day, QTCFMs: 480},
		{Date: day, QTCFMs: 490},
	}}

	e := run(t, HasQTCFOfAtMost, fn, rec)
	assert.Equal(t, evaluation.Fail, e.Result())
	assert.True(t, e.Recoverable())
	assert.Equal(t, []string{"QTcF above 470 ms: 480 ms, 490 ms"}, evaluation.Render(e.Messages(evaluation.Fail)))

	e = run(t, HasQTCFOfAtMost, fn, patient.Record{ReferenceDate: refDate})
	assert.Equal(t, evaluation.Undetermined, e.Result())
}
