package celrules

import (
	_ "embed"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/trialmatch/criteria"
)

//go:embed bindings.yaml
var defaultBindings []byte

var validate = validator.New()

// Outcome is the result reported when a binding's pass condition is false
type Outcome string

const (
	OutcomeFail            Outcome = "fail"
	OutcomeRecoverableFail Outcome = "recoverableFail"
	OutcomeUndetermined    Outcome = "undetermined"
)

// MessageSpec describes how to build one evaluation message. Text and Items
// are CEL expressions over `patient` and `params`; when Items is set the
// message is an items message grouped under Key.
type MessageSpec struct {
	Text   string `yaml:"text" validate:"required_without=Items"`
	Key    string `yaml:"key" validate:"required_with=Items"`
	Prefix string `yaml:"prefix"`
	Items  string `yaml:"items"`
}

// Messages holds one message spec per result category
type Messages struct {
	Pass         *MessageSpec `yaml:"pass"`
	Warn         *MessageSpec `yaml:"warn"`
	Fail         *MessageSpec `yaml:"fail"`
	Undetermined *MessageSpec `yaml:"undetermined"`
}

// Binding declares how a leaf rule is evaluated.
//
// Evaluation order: Skip yields NOT_EVALUATED; a false Available yields
// UNDETERMINED; a true Pass yields PASS; a true Warn yields WARN; anything
// else yields OnFail.
type Binding struct {
	Rule      criteria.Rule `yaml:"rule" validate:"required"`
	Skip      bool          `yaml:"skip"`
	Available string        `yaml:"available"`
	Pass      string        `yaml:"pass" validate:"required_unless=Skip true"`
	Warn      string        `yaml:"warn"`
	OnFail    Outcome       `yaml:"onFail" validate:"omitempty,oneof=fail recoverableFail undetermined"`
	// Events is a CEL list expression of molecular events that made the
	// patient pass
	Events   string   `yaml:"events"`
	Messages Messages `yaml:"messages"`
}

// File is the on-disk form of a binding set
type File struct {
	Version string    `yaml:"version" validate:"required"`
	Rules   []Binding `yaml:"rules" validate:"dive"`
}

// DecodeFile reads and validates a YAML binding file
func DecodeFile(r io.Reader) (*File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode rule bindings: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid rule bindings: %w", err)
	}
	if f.Version != criteria.VocabularyVersion {
		return nil, fmt.Errorf("rule bindings are for vocabulary %s, this build uses %s", f.Version, criteria.VocabularyVersion)
	}
	return &f, nil
}

// check verifies the parts validator tags cannot express
func (b Binding) check() error {
	if !b.Rule.Valid() {
		return fmt.Errorf("unknown rule %s", b.Rule)
	}
	if b.Rule.IsComposite() {
		return fmt.Errorf("composite rule %s cannot be bound", b.Rule)
	}
	if b.Skip {
		return nil
	}
	if b.Messages.Pass == nil || b.Messages.Fail == nil {
		return fmt.Errorf("rule %s needs pass and fail messages", b.Rule)
	}
	if b.Available != "" && b.Messages.Undetermined == nil {
		return fmt.Errorf("rule %s has an availability check but no undetermined message", b.Rule)
	}
	if b.Warn != "" && b.Messages.Warn == nil {
		return fmt.Errorf("rule %s has a warn condition but no warn message", b.Rule)
	}
	return nil
}

func (b Binding) onFail() Outcome {
	if b.OnFail == "" {
		return OutcomeFail
	}
	return b.OnFail
}
