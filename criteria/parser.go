package criteria

import (
	"strings"
)

// InputResolver converts raw parameter tokens into typed parameters and
// checks a built function against its rule's signature. It is consulted
// at parse time only.
type InputResolver interface {
	// ResolveParameter converts the token at position for rule
	ResolveParameter(rule Rule, position int, raw string) (Parameter, error)

	// HasValidInputs reports whether fn's parameters fit its rule.
	// known is false when validity cannot be decided.
	HasValidInputs(fn Function) (valid bool, known bool)
}

// Parser turns criterion text into Function trees
type Parser struct {
	resolver InputResolver
}

// NewParser creates a parser backed by the given input resolver
func NewParser(resolver InputResolver) *Parser {
	return &Parser{resolver: resolver}
}

// Parse parses one criterion, e.g. "AND(IS_MALE, IS_AT_LEAST_X_YEARS_OLD[18])".
// Grammar violations return *ParseError; parameters that do not fit the
// rule return *ValidationError.
func (p *Parser) Parse(text string) (Function, error) {
	return p.parse(strings.TrimSpace(text))
}

func (p *Parser) parse(text string) (Function, error) {
	if text == "" {
		return Function{}, &ParseError{Criterion: text, Reason: "empty criterion"}
	}

	var (
		fn  Function
		raw string
		err error
	)
	switch {
	case strings.Contains(text, "(") && strings.HasSuffix(text, ")"):
		fn, raw, err = p.parseComposite(text)
	case strings.Contains(text, "[") && strings.HasSuffix(text, "]"):
		fn, raw, err = p.parseParameterized(text)
	default:
		if strings.ContainsAny(text, "()[],") {
			return Function{}, &ParseError{Criterion: text, Reason: "malformed criterion"}
		}
		var rule Rule
		rule, err = p.identifier(text, text)
		if err == nil && rule.IsComposite() {
			err = &ParseError{Criterion: text, Rule: string(rule), Reason: "composite rule requires parenthesised criteria"}
		}
		fn = NewFunction(rule)
	}
	if err != nil {
		return Function{}, err
	}

	valid, known := p.resolver.HasValidInputs(fn)
	if !known {
		return Function{}, &ValidationError{Criterion: text, Rule: string(fn.Rule), Params: raw, Reason: "could not determine whether inputs are valid"}
	}
	if !valid {
		return Function{}, &ValidationError{Criterion: text, Rule: string(fn.Rule), Params: raw, Reason: "parameters do not match the rule signature"}
	}
	return fn, nil
}

func (p *Parser) parseComposite(text string) (Function, string, error) {
	open := strings.Index(text, "(")
	rule, err := p.identifier(text[:open], text)
	if err != nil {
		return Function{}, "", err
	}
	if !rule.IsComposite() {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: "rule is not composite and cannot take criteria"}
	}
	if matchingClose(text, open, '(', ')') != len(text)-1 {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: "unbalanced parentheses"}
	}

	inner := text[open+1 : len(text)-1]
	if strings.TrimSpace(inner) == "" {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: "composite rule has no criteria"}
	}
	segments, err := splitTopLevel(inner)
	if err != nil {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: err.Error()}
	}

	params := make([]Parameter, 0, len(segments))
	for _, segment := range segments {
		child, err := p.parse(strings.TrimSpace(segment))
		if err != nil {
			return Function{}, "", err
		}
		params = append(params, Nested{Function: child})
	}
	return Function{Rule: rule, Parameters: params}, inner, nil
}

func (p *Parser) parseParameterized(text string) (Function, string, error) {
	open := strings.Index(text, "[")
	rule, err := p.identifier(text[:open], text)
	if err != nil {
		return Function{}, "", err
	}
	if rule.IsComposite() {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: "composite rule requires parenthesised criteria"}
	}
	if matchingClose(text, open, '[', ']') != len(text)-1 {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: "unbalanced square brackets"}
	}

	inner := text[open+1 : len(text)-1]
	if strings.TrimSpace(inner) == "" {
		return NewFunction(rule), inner, nil
	}
	tokens, err := splitTopLevel(inner)
	if err != nil {
		return Function{}, "", &ParseError{Criterion: text, Rule: string(rule), Reason: err.Error()}
	}

	params := make([]Parameter, 0, len(tokens))
	for i, token := range tokens {
		param, err := p.resolver.ResolveParameter(rule, i, strings.TrimSpace(token))
		if err != nil {
			return Function{}, "", &ValidationError{Criterion: text, Rule: string(rule), Params: inner, Reason: err.Error()}
		}
		params = append(params, param)
	}
	return Function{Rule: rule, Parameters: params}, inner, nil
}

func (p *Parser) identifier(raw, text string) (Rule, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", &ParseError{Criterion: text, Reason: "missing rule identifier"}
	}
	if !identifierPattern.MatchString(name) {
		return "", &ParseError{Criterion: text, Rule: name, Reason: "invalid rule identifier"}
	}
	rule := Rule(name)
	if !rule.Valid() {
		return "", &ParseError{Criterion: text, Rule: name, Reason: "unknown rule"}
	}
	return rule, nil
}
