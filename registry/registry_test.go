package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
)

func passFactory(criteria.Function) (Evaluator, error) {
	return EvaluatorFunc(func(patient.Record) (evaluation.Evaluation, error) {
		return evaluation.NewPass(evaluation.Static("ok")), nil
	}), nil
}

func fullBindings() map[criteria.Rule]Factory {
	out := make(map[criteria.Rule]Factory)
	for _, rule := range criteria.LeafRules() {
		out[rule] = passFactory
	}
	return out
}

func TestNewRequiresTotalBinding(t *testing.T) {
	reg, err := New(fullBindings())
	require.NoError(t, err)
	assert.Equal(t, criteria.LeafRules(), reg.Rules())

	partial := fullBindings()
	delete(partial, criteria.IsMale)
	_, err = New(partial)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "IS_MALE")
}

func TestNewRejectsCompositeAndUnknownRules(t *testing.T) {
	bindings := fullBindings()
	bindings[criteria.And] = passFactory
	_, err := New(bindings)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, criteria.And, cfgErr.Rule)

	bindings = fullBindings()
	bindings[criteria.Rule("HAS_SUPERPOWERS")] = passFactory
	_, err = New(bindings)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, criteria.Rule("HAS_SUPERPOWERS"), cfgErr.Rule)
}

func TestResolve(t *testing.T) {
	reg, err := New(fullBindings())
	require.NoError(t, err)

	factory, err := reg.Resolve(criteria.IsMale)
	require.NoError(t, err)
	ev, err := factory(criteria.NewFunction(criteria.IsMale))
	require.NoError(t, err)
	got, err := ev.Evaluate(patient.Record{})
	require.NoError(t, err)
	assert.Equal(t, evaluation.Pass, got.Result())

	_, err = reg.Resolve(criteria.Or)
	assert.Error(t, err)
}

func TestBuildWrapsFactoryErrors(t *testing.T) {
	bindings := fullBindings()
	boom := errors.New("boom")
	bindings[criteria.IsFemale] = func(criteria.Function) (Evaluator, error) { return nil, boom }
	reg, err := New(bindings)
	require.NoError(t, err)

	_, err = reg.Build(criteria.NewFunction(criteria.IsFemale))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "IS_FEMALE")
}

func TestMergeLaterSetsOverride(t *testing.T) {
	failFactory := func(criteria.Function) (Evaluator, error) {
		return EvaluatorFunc(func(patient.Record) (evaluation.Evaluation, error) {
			return evaluation.NewFail(evaluation.Static("no")), nil
		}), nil
	}
	a := map[criteria.Rule]Factory{criteria.IsMale: passFactory, criteria.IsFemale: passFactory}
	b := map[criteria.Rule]Factory{criteria.IsFemale: failFactory}

	merged := Merge(a, b)
	require.Len(t, merged, 2)

	ev, err := merged[criteria.IsFemale](criteria.NewFunction(criteria.IsFemale))
	require.NoError(t, err)
	got, err := ev.Evaluate(patient.Record{})
	require.NoError(t, err)
	assert.Equal(t, evaluation.Fail, got.Result())
}
