package patient

import "time"

// Facts projects the record into the nested map that CEL rule expressions
// see as the `patient` variable. Unknown values are left out so that
// expressions can test them with has().
func (r Record) Facts() map[string]any {
	facts := map[string]any{
		"id":         r.PatientID,
		"tumor":      r.tumorFacts(),
		"clinical":   r.clinicalFacts(),
		"treatments": r.treatmentFacts(),
		"variants":   r.variantFacts(),
	}
	if r.Gender != Unknown {
		facts["gender"] = string(r.Gender)
	}
	if age, ok := r.Age(); ok {
		facts["age"] = int64(age)
		facts["birthYear"] = int64(*r.BirthYear)
	}
	return facts
}

func (r Record) tumorFacts() map[string]any {
	t := map[string]any{
		"primaryDoids": stringsOrEmpty(r.Tumor.PrimaryDoids),
	}
	putBool(t, "hasActiveCnsLesions", r.Tumor.HasActiveCNSLesions)
	putBool(t, "hasBrainLesions", r.Tumor.HasBrainLesions)
	putBool(t, "hasMeasurableDisease", r.Tumor.HasMeasurableDisease)
	return t
}

func (r Record) clinicalFacts() map[string]any {
	c := map[string]any{}
	if r.Clinical.WHO != nil {
		c["who"] = int64(*r.Clinical.WHO)
	}
	putBool(c, "hasActiveInfection", r.Clinical.HasActiveInfection)
	putBool(c, "isPregnant", r.Clinical.IsPregnant)
	return c
}

func (r Record) treatmentFacts() []any {
	out := make([]any, 0, len(r.Treatments))
	for _, t := range r.Treatments {
		entry := map[string]any{
			"name":       t.Name,
			"categories": stringsOrEmpty(t.Categories),
			"types":      stringsOrEmpty(t.Types),
		}
		if t.StopDate != nil {
			entry["weeksSinceStop"] = weeksBetween(*t.StopDate, r.ReferenceDate)
		}
		out = append(out, entry)
	}
	return out
}

func (r Record) variantFacts() []any {
	out := make([]any, 0, len(r.Variants))
	for _, v := range r.Variants {
		out = append(out, map[string]any{
			"gene":         v.Gene,
			"event":        v.Event,
			"isActivating": v.IsActivating,
		})
	}
	return out
}

func weeksBetween(from, to time.Time) int64 {
	return int64(to.Sub(from).Hours() / (24 * 7))
}

func putBool(m map[string]any, key string, v *bool) {
	if v != nil {
		m[key] = *v
	}
}

func stringsOrEmpty(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
