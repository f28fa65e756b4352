// Package patient holds the read-only clinical record that eligibility
// rules are evaluated against. The matching core never mutates a Record.
package patient

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Gender as curated from the clinical record
type Gender string

const (
	Male    Gender = "male"
	Female  Gender = "female"
	Unknown Gender = ""
)

// Tumor describes the primary tumor and its lesions.
// Nil pointers mean the value is not known.
type Tumor struct {
	PrimaryDoids         []string `json:"primaryDoids,omitempty"`
	HasActiveCNSLesions  *bool    `json:"hasActiveCnsLesions,omitempty"`
	HasBrainLesions      *bool    `json:"hasBrainLesions,omitempty"`
	HasMeasurableDisease *bool    `json:"hasMeasurableDisease,omitempty"`
}

// ClinicalStatus holds performance and general status fields
type ClinicalStatus struct {
	WHO                *int  `json:"who,omitempty"`
	HasActiveInfection *bool `json:"hasActiveInfection,omitempty"`
	IsPregnant         *bool `json:"isPregnant,omitempty"`
}

// TreatmentEntry is one line of prior oncological treatment
type TreatmentEntry struct {
	Name       string     `json:"name"`
	Categories []string   `json:"categories,omitempty"`
	Types      []string   `json:"types,omitempty"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	StopDate   *time.Time `json:"stopDate,omitempty"`
}

// LabValue is a single laboratory measurement
type LabValue struct {
	Code       string    `json:"code"`
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	RefLimitUp *float64  `json:"refLimitUp,omitempty"`
}

// ECGMeasurement is a single QTcF reading
type ECGMeasurement struct {
	Date   time.Time `json:"date"`
	QTCFMs float64   `json:"qtcfMs"`
}

// Variant is a molecular finding
type Variant struct {
	Gene         string `json:"gene"`
	Event        string `json:"event"`
	IsActivating bool   `json:"isActivating"`
}

// Record is the full patient record used for matching
type Record struct {
	PatientID string `json:"patientId"`
	// ReferenceDate anchors age and time-window computations so that
	// evaluation does not depend on the wall clock
	ReferenceDate time.Time        `json:"referenceDate"`
	BirthYear     *int             `json:"birthYear,omitempty"`
	Gender        Gender           `json:"gender,omitempty"`
	Tumor         Tumor            `json:"tumor"`
	Clinical      ClinicalStatus   `json:"clinical"`
	Treatments    []TreatmentEntry `json:"treatments,omitempty"`
	Labs          []LabValue       `json:"labs,omitempty"`
	ECGs          []ECGMeasurement `json:"ecgs,omitempty"`
	Variants      []Variant        `json:"variants,omitempty"`
}

// Load decodes a JSON record
func Load(r io.Reader) (Record, error) {
	var rec Record
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode patient record: %w", err)
	}
	if rec.ReferenceDate.IsZero() {
		return Record{}, fmt.Errorf("patient record %s has no reference date", rec.PatientID)
	}
	return rec, nil
}

// Age returns the age in years at the reference date, if known
func (r Record) Age() (int, bool) {
	if r.BirthYear == nil {
		return 0, false
	}
	return r.ReferenceDate.Year() - *r.BirthYear, true
}

// LabsFor returns the measurements for a lab code, most recent first
func (r Record) LabsFor(code string) []LabValue {
	var out []LabValue
	for _, lab := range r.Labs {
		if lab.Code == code {
			out = append(out, lab)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Bool and Int are helpers for building records with optional fields
func Bool(b bool) *bool { return &b }

func Int(n int) *int { return &n }
