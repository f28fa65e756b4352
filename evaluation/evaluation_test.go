package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOrdering(t *testing.T) {
	assert.True(t, Fail.WorseThan(Undetermined))
	assert.True(t, Undetermined.WorseThan(Warn))
	assert.True(t, Warn.WorseThan(Pass))
	assert.True(t, Pass.BetterThan(Warn))
	assert.False(t, NotEvaluated.WorseThan(Pass))
	assert.False(t, Fail.WorseThan(NotEvaluated))
	assert.False(t, NotEvaluated.BetterThan(Fail))
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Undetermined)
	require.NoError(t, err)
	assert.JSONEq(t, `"UNDETERMINED"`, string(data))

	var r Result
	require.NoError(t, json.Unmarshal([]byte(`"not_evaluated"`), &r))
	assert.Equal(t, NotEvaluated, r)
	assert.Error(t, json.Unmarshal([]byte(`"MAYBE"`), &r))
}

func TestMessagesOnlyInOwnCategory(t *testing.T) {
	e := NewWarn(Static("borderline"))
	assert.Equal(t, []string{"borderline"}, Render(e.Messages(Warn)))
	for _, c := range []Result{Pass, Undetermined, Fail} {
		assert.Empty(t, e.Messages(c), c.String())
	}
	require.NoError(t, e.Validate())
}

func TestRecoverableOnlyForFail(t *testing.T) {
	assert.False(t, New(Pass, true, Static("ok")).Recoverable())
	assert.True(t, NewRecoverableFail(Static("no")).Recoverable())
	assert.True(t, NewFail(Static("no")).IsUnrecoverableFail())
	assert.False(t, NewRecoverableFail(Static("no")).IsUnrecoverableFail())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewNotEvaluated().Validate())
	assert.Error(t, New(Fail, false).Validate(), "FAIL without messages")
	assert.Error(t, Evaluation{result: Result(42)}.Validate())
	assert.Error(t, Evaluation{result: Pass, recoverable: true, messages: []Message{Static("x")}}.Validate())
	assert.Error(t, Evaluation{result: NotEvaluated, messages: []Message{Static("x")}}.Validate())
}

func TestEvaluationIsImmutable(t *testing.T) {
	e := NewPass(Static("a"))
	msgs := e.Messages(Pass)
	msgs[0] = Static("changed")
	assert.Equal(t, []string{"a"}, Render(e.Messages(Pass)))

	withEvents := e.WithInclusionEvents("KRAS G12C", "BRAF V600E", "KRAS G12C")
	assert.Empty(t, e.InclusionMolecularEvents())
	assert.Equal(t, []string{"BRAF V600E", "KRAS G12C"}, withEvents.InclusionMolecularEvents())
}

func TestEvaluationJSON(t *testing.T) {
	e := NewRecoverableFail(Static("Lab value missing")).WithInclusionEvents("EGFR L858R")
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"result": "FAIL",
		"recoverable": true,
		"messages": {"FAIL": ["Lab value missing"]},
		"inclusionMolecularEvents": ["EGFR L858R"]
	}`, string(data))
}
