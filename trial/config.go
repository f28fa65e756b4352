package trial

import (
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CriterionConfig is one curated criterion before parsing
type CriterionConfig struct {
	Rule       string   `yaml:"rule" json:"rule" validate:"required"`
	References []string `yaml:"references,omitempty" json:"references,omitempty"`
}

// CohortConfig is a curated cohort. Evaluable defaults to true.
type CohortConfig struct {
	CohortID       string            `yaml:"cohortId" json:"cohortId" validate:"required,trialid"`
	Description    string            `yaml:"description,omitempty" json:"description,omitempty"`
	Evaluable      *bool             `yaml:"evaluable,omitempty" json:"evaluable,omitempty"`
	Open           bool              `yaml:"open" json:"open"`
	SlotsAvailable bool              `yaml:"slotsAvailable" json:"slotsAvailable"`
	Ignore         bool              `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Criteria       []CriterionConfig `yaml:"criteria,omitempty" json:"criteria,omitempty" validate:"dive"`
}

// IsEvaluable reports whether the cohort takes part in matching
func (c CohortConfig) IsEvaluable() bool {
	return c.Evaluable == nil || *c.Evaluable
}

// Config is the curated form of a trial as stored and exchanged
type Config struct {
	TrialID  string            `yaml:"trialId" json:"trialId" validate:"required,trialid"`
	Acronym  string            `yaml:"acronym,omitempty" json:"acronym,omitempty"`
	Title    string            `yaml:"title,omitempty" json:"title,omitempty"`
	Open     bool              `yaml:"open" json:"open"`
	NCTID    string            `yaml:"nctId,omitempty" json:"nctId,omitempty" validate:"omitempty,nctid"`
	Criteria []CriterionConfig `yaml:"criteria,omitempty" json:"criteria,omitempty" validate:"dive"`
	Cohorts  []CohortConfig    `yaml:"cohorts,omitempty" json:"cohorts,omitempty" validate:"max=500,dive"`
}

type configFile struct {
	Trials []Config `yaml:"trials"`
}

var (
	validate *validator.Validate

	idPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)
	nctIDPattern = regexp.MustCompile(`^NCT[0-9]{8}$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("trialid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= 100 && idPattern.MatchString(s)
	})
	_ = validate.RegisterValidation("nctid", func(fl validator.FieldLevel) bool {
		return nctIDPattern.MatchString(fl.Field().String())
	})
}

// DecodeConfigs reads a YAML document with a top-level `trials` list
func DecodeConfigs(r io.Reader) ([]Config, error) {
	var f configFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode trial configurations: %w", err)
	}
	return f.Trials, nil
}

// EncodeConfigs writes configs in the format DecodeConfigs reads
func EncodeConfigs(w io.Writer, configs []Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(configFile{Trials: configs}); err != nil {
		return fmt.Errorf("failed to encode trial configurations: %w", err)
	}
	return enc.Close()
}
