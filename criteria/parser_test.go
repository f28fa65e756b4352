package criteria

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReferences() *StaticReferences {
	return NewStaticReferences(
		Reference{Kind: ReferenceTreatment, Name: "Cisplatin", Categories: []string{"Chemotherapy"}},
		Reference{Kind: ReferenceTreatment, Name: "CAPOX", Categories: []string{"Chemotherapy"}},
		Reference{Kind: ReferenceDrug, Name: "Pembrolizumab", Categories: []string{"Immunotherapy"}},
		Reference{Kind: ReferenceCategory, Name: "Immunotherapy"},
	)
}

func testParser() *Parser {
	return NewParser(NewSpecResolver(testReferences()))
}

func TestParseBareRule(t *testing.T) {
	fn, err := testParser().Parse("  IS_MALE ")
	require.NoError(t, err)
	assert.Equal(t, IsMale, fn.Rule)
	assert.Empty(t, fn.Parameters)
}

func TestParseCompositeNesting(t *testing.T) {
	fn, err := testParser().Parse("AND(IS_MALE, OR(HAS_HAD_TREATMENT_NAME_X[Cisplatin], HAS_HAD_TREATMENT_NAME_X[Capox]))")
	require.NoError(t, err)

	require.Equal(t, And, fn.Rule)
	children := fn.Children()
	require.Len(t, children, 2)
	assert.True(t, children[0].Equal(NewFunction(IsMale)))

	or := children[1]
	require.Equal(t, Or, or.Rule)
	leaves := or.Children()
	require.Len(t, leaves, 2)

	for i, name := range []string{"Cisplatin", "CAPOX"} {
		assert.Equal(t, HasHadTreatmentNameX, leaves[i].Rule)
		require.Len(t, leaves[i].Parameters, 1)
		ref, ok := leaves[i].Parameters[0].(Reference)
		require.True(t, ok, "expected a resolved treatment reference")
		assert.Equal(t, ReferenceTreatment, ref.Kind)
		assert.Equal(t, name, ref.Name)
	}
}

func TestParseTopLevelCommaSplitting(t *testing.T) {
	fn, err := testParser().Parse("HAS_RECEIVED_ANY_DRUG_X_WITHIN_Y_WEEKS_Z_HALF_LIVES[A;B, 2, 6]")
	require.NoError(t, err)
	require.Len(t, fn.Parameters, 3)

	list := fn.Parameters[0].(Literal)
	assert.Equal(t, "A;B", list.Text())
	assert.Equal(t, []string{"A", "B"}, list.Strings())
	assert.Equal(t, int64(2), fn.Parameters[1].(Literal).Integer())
	assert.Equal(t, int64(6), fn.Parameters[2].(Literal).Integer())
}

func TestSplitTopLevelRespectsBothDepths(t *testing.T) {
	parts, err := splitTopLevel("A(B, C), D[E, F], G")
	require.NoError(t, err)
	assert.Equal(t, []string{"A(B, C)", " D[E, F]", " G"}, parts)

	_, err = splitTopLevel("A(B, C")
	assert.Error(t, err)

	_, err = splitTopLevel("A], B[")
	assert.Error(t, err)
}

func TestParseSingleChildComposite(t *testing.T) {
	fn, err := testParser().Parse("AND(IS_MALE)")
	require.NoError(t, err)
	assert.Len(t, fn.Children(), 1)

	fn, err = testParser().Parse("NOT(HAS_KNOWN_ACTIVE_CNS_METASTASES)")
	require.NoError(t, err)
	assert.Equal(t, Not, fn.Rule)
	assert.Equal(t, HasKnownActiveCNSMetastases, fn.Children()[0].Rule)
}

func TestParseEmptyParameterList(t *testing.T) {
	fn, err := testParser().Parse("IS_MALE[]")
	require.NoError(t, err)
	assert.Empty(t, fn.Parameters)

	_, err = testParser().Parse("IS_AT_LEAST_X_YEARS_OLD[]")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "IS_AT_LEAST_X_YEARS_OLD", verr.Rule)
}

func TestParseRoundTrip(t *testing.T) {
	criteria := []string{
		"IS_MALE",
		"IS_AT_LEAST_X_YEARS_OLD[18]",
		"HAS_LEUKOCYTES_ABS_OF_AT_LEAST_X[1.5]",
		"HAS_QTCF_OF_AT_MOST_X[470]",
		"AND(IS_MALE, OR(HAS_HAD_TREATMENT_NAME_X[Cisplatin], HAS_HAD_TREATMENT_NAME_X[capox]))",
		"WARN_IF(HAS_HAD_CATEGORY_X_TREATMENT_OF_TYPES_Y[Immunotherapy, Anti-PD-1;Anti-PD-L1])",
		"NOT(AND(HAS_KNOWN_BRAIN_METASTASES, NOT(HAS_KNOWN_ACTIVE_CNS_METASTASES)))",
		"IS_ELIGIBLE_FOR_TREATMENT_WITH_DRUG_X[pembrolizumab]",
		"HAS_RECEIVED_ANY_DRUG_X_WITHIN_Y_WEEKS_Z_HALF_LIVES[A;B, 2, 6]",
	}

	p := testParser()
	for _, text := range criteria {
		t.Run(text, func(t *testing.T) {
			first, err := p.Parse(text)
			require.NoError(t, err)

			second, err := p.Parse(Render(first))
			require.NoError(t, err)
			assert.True(t, first.Equal(second), "render %q did not round trip", Render(first))
		})
	}
}

func TestRenderCanonicalForm(t *testing.T) {
	fn, err := testParser().Parse("AND( IS_MALE ,IS_AT_LEAST_X_YEARS_OLD[ 18 ] )")
	require.NoError(t, err)
	assert.Equal(t, "AND(IS_MALE, IS_AT_LEAST_X_YEARS_OLD[18])", Render(fn))
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name      string
		criterion string
		parse     bool
		rule      string
	}{
		{"Empty", "   ", true, ""},
		{"Unknown rule", "IS_A_UNICORN", true, "IS_A_UNICORN"},
		{"Lowercase identifier", "is_male", true, "is_male"},
		{"Leaf used as composite", "IS_MALE(IS_FEMALE)", true, "IS_MALE"},
		{"Unbalanced parentheses", "AND(IS_MALE, OR(IS_FEMALE)", true, ""},
		{"Trailing composite", "AND(IS_MALE)(IS_FEMALE)", true, "AND"},
		{"Dangling bracket", "IS_AT_LEAST_X_YEARS_OLD[18", true, ""},
		{"Unknown nested rule", "OR(IS_MALE, NOPE)", true, "NOPE"},
		{"Wrong arity", "IS_AT_LEAST_X_YEARS_OLD[18, 20]", false, "IS_AT_LEAST_X_YEARS_OLD"},
		{"Wrong type", "IS_AT_LEAST_X_YEARS_OLD[eighteen]", false, "IS_AT_LEAST_X_YEARS_OLD"},
		{"Unknown treatment", "HAS_HAD_TREATMENT_NAME_X[Aspirin]", false, "HAS_HAD_TREATMENT_NAME_X"},
		{"Composite without children", "AND", true, "AND"},
		{"Composite with empty children", "AND()", true, "AND"},
		{"Composite with literals", "NOT[1]", true, "NOT"},
		{"Not with two children", "NOT(IS_MALE, IS_FEMALE)", false, "NOT"},
		{"Missing parameter", "IS_MALE[18]", false, "IS_MALE"},
		{"NaN threshold", "HAS_QTCF_OF_AT_MOST_X[NaN]", false, "HAS_QTCF_OF_AT_MOST_X"},
		{"Infinite threshold", "HAS_QTCF_OF_AT_MOST_X[Inf]", false, "HAS_QTCF_OF_AT_MOST_X"},
		{"Signed infinite threshold", "HAS_QTCF_OF_AT_MOST_X[-Inf]", false, "HAS_QTCF_OF_AT_MOST_X"},
	}

	p := testParser()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Parse(tc.criterion)
			require.Error(t, err)

			var perr *ParseError
			var verr *ValidationError
			if tc.parse {
				require.True(t, errors.As(err, &perr), "expected ParseError, got %T: %v", err, err)
				if tc.rule != "" {
					assert.Equal(t, tc.rule, perr.Rule)
				}
				return
			}
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %T: %v", err, err)
			assert.Equal(t, tc.rule, verr.Rule)
			assert.True(t, strings.Contains(err.Error(), tc.rule))
		})
	}
}

func TestLoadReferences(t *testing.T) {
	doc := `
treatments:
  - name: Cisplatin
    categories: [Chemotherapy]
drugs:
  - name: Pembrolizumab
    categories: [Immunotherapy]
    types: [Anti-PD-1]
categories:
  - name: Immunotherapy
`
	refs, err := LoadReferences(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, refs.Len())

	ref, ok := refs.Lookup(ReferenceDrug, "PEMBROLIZUMAB")
	require.True(t, ok)
	assert.Equal(t, "Pembrolizumab", ref.Name)
	assert.Equal(t, ReferenceDrug, ref.Kind)
	assert.Equal(t, []string{"Anti-PD-1"}, ref.Types)

	_, ok = refs.Lookup(ReferenceTreatment, "Pembrolizumab")
	assert.False(t, ok)

	_, err = LoadReferences(strings.NewReader("treatments:\n  - categories: [x]\n"))
	assert.Error(t, err)
}

func TestVocabulary(t *testing.T) {
	assert.Equal(t, []Rule{And, Not, Or, WarnIf}, CompositeRules())
	for _, r := range LeafRules() {
		assert.False(t, r.IsComposite(), r)
		assert.Equal(t, OpLeaf, r.Operator())
	}
	assert.Equal(t, OpWarnIf, WarnIf.Operator())
	assert.False(t, Rule("UNKNOWN").Valid())
}
