package criteria

import (
	"regexp"
	"sort"
)

// VocabularyVersion identifies the revision of the rule vocabulary below.
// Curated trial configurations are written against a specific version.
const VocabularyVersion = "2024.3"

// Rule is an identifier from the closed eligibility rule vocabulary
type Rule string

// Composite rules
const (
	And    Rule = "AND"
	Or     Rule = "OR"
	Not    Rule = "NOT"
	WarnIf Rule = "WARN_IF"
)

// Leaf rules
const (
	IsMale                              Rule = "IS_MALE"
	IsFemale                            Rule = "IS_FEMALE"
	IsAtLeastXYearsOld                  Rule = "IS_AT_LEAST_X_YEARS_OLD"
	CanGiveAdequateInformedConsent      Rule = "CAN_GIVE_ADEQUATE_INFORMED_CONSENT"
	IsPregnant                          Rule = "IS_PREGNANT"
	HasWHOStatusOfAtMostX               Rule = "HAS_WHO_STATUS_OF_AT_MOST_X"
	HasActiveInfection                  Rule = "HAS_ACTIVE_INFECTION"
	HasKnownActiveCNSMetastases         Rule = "HAS_KNOWN_ACTIVE_CNS_METASTASES"
	HasKnownBrainMetastases             Rule = "HAS_KNOWN_BRAIN_METASTASES"
	HasMeasurableDisease                Rule = "HAS_MEASURABLE_DISEASE"
	HasPrimaryTumorBelongingToDoidTermX Rule = "HAS_PRIMARY_TUMOR_LOCATION_BELONGING_TO_ANY_DOID_TERM_X"
	ActivatingMutationInAnyGenesX       Rule = "ACTIVATING_MUTATION_IN_ANY_GENES_X"
	HasHadTreatmentNameX                Rule = "HAS_HAD_TREATMENT_NAME_X"
	HasHadAnyCancerTreatment            Rule = "HAS_HAD_ANY_CANCER_TREATMENT"
	HasHadCategoryXTreatmentOfTypesY    Rule = "HAS_HAD_CATEGORY_X_TREATMENT_OF_TYPES_Y"
	HasHadDrugsXWithinYWeeksZHalfLives  Rule = "HAS_RECEIVED_ANY_DRUG_X_WITHIN_Y_WEEKS_Z_HALF_LIVES"
	IsEligibleForTreatmentWithDrugX     Rule = "IS_ELIGIBLE_FOR_TREATMENT_WITH_DRUG_X"
	HasLeukocytesAbsOfAtLeastX          Rule = "HAS_LEUKOCYTES_ABS_OF_AT_LEAST_X"
	HasHemoglobinGPerDLOfAtLeastX       Rule = "HAS_HEMOGLOBIN_G_PER_DL_OF_AT_LEAST_X"
	HasCreatinineULNOfAtMostX           Rule = "HAS_CREATININE_ULN_OF_AT_MOST_X"
	HasQTCFOfAtMostX                    Rule = "HAS_QTCF_OF_AT_MOST_X"
)

// Operator tells the evaluation algebra how a rule composes its parameters
type Operator int

const (
	OpLeaf Operator = iota
	OpAnd
	OpOr
	OpNot
	OpWarnIf
)

func (o Operator) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	case OpWarnIf:
		return "warn_if"
	default:
		return "unknown"
	}
}

// ParamKind is the type a leaf rule expects at a parameter position
type ParamKind int

const (
	KindInteger ParamKind = iota
	KindDouble
	KindString
	// KindStringList is a single token holding ';'-separated values
	KindStringList
	KindTreatment
	KindDrug
	KindCategory
)

func (k ParamKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindStringList:
		return "string list"
	case KindTreatment:
		return "treatment"
	case KindDrug:
		return "drug"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

type ruleSpec struct {
	op     Operator
	params []ParamKind
}

var vocabulary = map[Rule]ruleSpec{
	And:    {op: OpAnd},
	Or:     {op: OpOr},
	Not:    {op: OpNot},
	WarnIf: {op: OpWarnIf},

	IsMale:                              {op: OpLeaf},
	IsFemale:                            {op: OpLeaf},
	IsAtLeastXYearsOld:                  {op: OpLeaf, params: []ParamKind{KindInteger}},
	CanGiveAdequateInformedConsent:      {op: OpLeaf},
	IsPregnant:                          {op: OpLeaf},
	HasWHOStatusOfAtMostX:               {op: OpLeaf, params: []ParamKind{KindInteger}},
	HasActiveInfection:                  {op: OpLeaf},
	HasKnownActiveCNSMetastases:         {op: OpLeaf},
	HasKnownBrainMetastases:             {op: OpLeaf},
	HasMeasurableDisease:                {op: OpLeaf},
	HasPrimaryTumorBelongingToDoidTermX: {op: OpLeaf, params: []ParamKind{KindStringList}},
	ActivatingMutationInAnyGenesX:       {op: OpLeaf, params: []ParamKind{KindStringList}},
	HasHadTreatmentNameX:                {op: OpLeaf, params: []ParamKind{KindTreatment}},
	HasHadAnyCancerTreatment:            {op: OpLeaf},
	HasHadCategoryXTreatmentOfTypesY:    {op: OpLeaf, params: []ParamKind{KindCategory, KindStringList}},
	HasHadDrugsXWithinYWeeksZHalfLives:  {op: OpLeaf, params: []ParamKind{KindStringList, KindInteger, KindInteger}},
	IsEligibleForTreatmentWithDrugX:     {op: OpLeaf, params: []ParamKind{KindDrug}},
	HasLeukocytesAbsOfAtLeastX:          {op: OpLeaf, params: []ParamKind{KindDouble}},
	HasHemoglobinGPerDLOfAtLeastX:       {op: OpLeaf, params: []ParamKind{KindDouble}},
	HasCreatinineULNOfAtMostX:           {op: OpLeaf, params: []ParamKind{KindDouble}},
	HasQTCFOfAtMostX:                    {op: OpLeaf, params: []ParamKind{KindDouble}},
}

var identifierPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Valid reports whether the rule is part of the vocabulary
func (r Rule) Valid() bool {
	_, ok := vocabulary[r]
	return ok
}

// Operator returns how the rule composes; unknown rules report OpLeaf
func (r Rule) Operator() Operator {
	return vocabulary[r].op
}

// IsComposite reports whether the rule's parameters are themselves criteria
func (r Rule) IsComposite() bool {
	spec, ok := vocabulary[r]
	return ok && spec.op != OpLeaf
}

// ParamKinds returns the expected parameter kinds of a leaf rule
func (r Rule) ParamKinds() []ParamKind {
	kinds := vocabulary[r].params
	out := make([]ParamKind, len(kinds))
	copy(out, kinds)
	return out
}

func (r Rule) String() string {
	return string(r)
}

// LeafRules returns every leaf rule of the vocabulary, sorted
func LeafRules() []Rule {
	return rulesWhere(func(s ruleSpec) bool { return s.op == OpLeaf })
}

// CompositeRules returns AND, NOT, OR and WARN_IF, sorted
func CompositeRules() []Rule {
	return rulesWhere(func(s ruleSpec) bool { return s.op != OpLeaf })
}

func rulesWhere(keep func(ruleSpec) bool) []Rule {
	var out []Rule
	for r, spec := range vocabulary {
		if keep(spec) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
