package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineSharedKey(t *testing.T) {
	e := NewPass(NewItemsMessage("key", "", "test1"), NewItemsMessage("key", "", "test2"))

	combined := Combine(e)
	msgs := combined.Messages(Pass)
	require.Len(t, msgs, 1)
	assert.Equal(t, "test1, test2", msgs[0].Render())
}

func TestCombineDistinctKeys(t *testing.T) {
	e := NewFail(NewItemsMessage("key1", "", "test1"), NewItemsMessage("key2", "", "test2"))

	msgs := Combine(e).Messages(Fail)
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"test1", "test2"}, Render(msgs))
}

func TestCombineOrderIndependentAndIdempotent(t *testing.T) {
	a := NewItemsMessage("history", "Has received ", "Oxaliplatin")
	b := NewItemsMessage("history", "Has received ", "Cisplatin", "Capecitabine")
	c := Static("Patient is male")

	forward := Combine(NewPass(a, b, c))
	backward := Combine(NewPass(c, b, a))
	assert.Equal(t, Render(forward.Messages(Pass)), Render(backward.Messages(Pass)))
	assert.Equal(t, []string{
		"Patient is male",
		"Has received Capecitabine, Cisplatin, Oxaliplatin",
	}, Render(forward.Messages(Pass)))

	again := Combine(forward)
	assert.Equal(t, Render(forward.Messages(Pass)), Render(again.Messages(Pass)))
}

func TestCombineDuplicateStaticMessages(t *testing.T) {
	msgs := CombineMessages([]Message{Static("same"), Static("same")})
	require.Len(t, msgs, 1)
	assert.Equal(t, "same", msgs[0].Render())
}

func TestCombineMixedMessageKinds(t *testing.T) {
	msgs := CombineMessages([]Message{
		NewItemsMessage("labs", "Low ", "hemoglobin"),
		NewItemsMessage("labs", "Elevated ", "creatinine"),
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, "Elevated creatinine, Low hemoglobin", msgs[0].Render())
}

func TestCombineKeepsNotEvaluated(t *testing.T) {
	e := Combine(NewNotEvaluated())
	assert.Equal(t, NotEvaluated, e.Result())
	assert.NoError(t, e.Validate())
}

func TestCombineIsAssociative(t *testing.T) {
	messages := [][3]Message{
		{
			NewItemsMessage("lab-fail-leukocytes", "Lab value below minimum 4: ", "leukocytes 3.9 10^9/L"),
			NewItemsMessage("lab-fail-leukocytes", "Lab value below minimum 5: ", "leukocytes 3.9 10^9/L"),
			NewItemsMessage("lab-fail-leukocytes", "Lab value below minimum 4: ", "leukocytes 3.5 10^9/L"),
		},
		{
			NewItemsMessage("labs", "Elevated ", "creatinine"),
			NewItemsMessage("labs", "Low ", "leukocytes"),
			NewItemsMessage("labs", "Low ", "hemoglobin"),
		},
		{
			Static("labs"),
			NewItemsMessage("labs", "Low ", "hemoglobin"),
			Static("labs"),
		},
	}

	for _, m := range messages {
		a, b, c := m[0], m[1], m[2]
		left := a.Combine(b).Combine(c).Render()
		right := a.Combine(b.Combine(c)).Render()
		swapped := c.Combine(a).Combine(b).Render()
		assert.Equal(t, left, right)
		assert.Equal(t, left, swapped)
	}
}

func TestCombineFlatMatchesNested(t *testing.T) {
	a := NewItemsMessage("lab-fail-leukocytes", "Lab value below minimum 4: ", "leukocytes 3.9 10^9/L")
	b := NewItemsMessage("lab-fail-leukocytes", "Lab value below minimum 5: ", "leukocytes 3.9 10^9/L")
	c := NewItemsMessage("lab-fail-leukocytes", "Lab value below minimum 4: ", "leukocytes 3.5 10^9/L")

	flat := Combine(NewFail(a, b, c))
	inner := Combine(NewFail(b, c))
	nested := Combine(NewFail(a, inner.Messages(Fail)...))
	merged := MergeInstances(NewFail(a), MergeInstances(NewFail(b), NewFail(c)))

	want := []string{"Lab value below minimum 4: leukocytes 3.5 10^9/L, leukocytes 3.9 10^9/L, " +
		"Lab value below minimum 5: leukocytes 3.9 10^9/L"}
	assert.Equal(t, want, Render(flat.Messages(Fail)))
	assert.Equal(t, want, Render(nested.Messages(Fail)))
	assert.Equal(t, want, Render(merged.Messages(Fail)))
}
