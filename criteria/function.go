package criteria

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Parameter is one argument of an eligibility function.
// The variants are Literal, Reference and Nested; the set is closed.
type Parameter interface {
	// Render returns the parameter as it appears in criterion text
	Render() string
	equal(other Parameter) bool
	isParameter()
}

// LiteralKind tags the value held by a Literal
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralInteger
	LiteralDouble
)

// Literal is a string, integer or double parameter
type Literal struct {
	kind LiteralKind
	str  string
	num  int64
	dbl  float64
}

// StringLiteral creates a string literal
func StringLiteral(s string) Literal { return Literal{kind: LiteralString, str: s} }

// IntegerLiteral creates an integer literal
func IntegerLiteral(n int64) Literal { return Literal{kind: LiteralInteger, num: n} }

// DoubleLiteral creates a double literal
func DoubleLiteral(d float64) Literal { return Literal{kind: LiteralDouble, dbl: d} }

// Kind returns which value the literal holds
func (l Literal) Kind() LiteralKind { return l.kind }

// Text returns the string value; only meaningful for LiteralString
func (l Literal) Text() string { return l.str }

// Integer returns the integer value; only meaningful for LiteralInteger
func (l Literal) Integer() int64 { return l.num }

// Double returns the numeric value, widening integers
func (l Literal) Double() float64 {
	if l.kind == LiteralInteger {
		return float64(l.num)
	}
	return l.dbl
}

// Strings splits a ';'-separated string literal into trimmed values
func (l Literal) Strings() []string {
	if l.str == "" {
		return nil
	}
	parts := strings.Split(l.str, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Value returns the held value as string, int64 or float64
func (l Literal) Value() any {
	switch l.kind {
	case LiteralInteger:
		return l.num
	case LiteralDouble:
		return l.dbl
	default:
		return l.str
	}
}

func (l Literal) Render() string {
	switch l.kind {
	case LiteralInteger:
		return strconv.FormatInt(l.num, 10)
	case LiteralDouble:
		return strconv.FormatFloat(l.dbl, 'f', -1, 64)
	default:
		return l.str
	}
}

func (l Literal) equal(other Parameter) bool {
	o, ok := other.(Literal)
	return ok && l == o
}

func (Literal) isParameter() {}

// ReferenceKind is the domain object type a Reference points to
type ReferenceKind string

const (
	ReferenceTreatment ReferenceKind = "treatment"
	ReferenceDrug      ReferenceKind = "drug"
	ReferenceCategory  ReferenceKind = "category"
)

// Reference is a domain object resolved at parse time by a ReferenceLookup
type Reference struct {
	Kind       ReferenceKind `json:"kind" yaml:"kind"`
	Name       string        `json:"name" yaml:"name"`
	Categories []string      `json:"categories,omitempty" yaml:"categories"`
	Types      []string      `json:"types,omitempty" yaml:"types"`
}

func (r Reference) Render() string { return r.Name }

func (r Reference) equal(other Parameter) bool {
	o, ok := other.(Reference)
	return ok && r.Kind == o.Kind && r.Name == o.Name &&
		equalStrings(r.Categories, o.Categories) && equalStrings(r.Types, o.Types)
}

func (Reference) isParameter() {}

// Nested wraps a sub-criterion of a composite rule
type Nested struct {
	Function Function
}

func (n Nested) Render() string { return Render(n.Function) }

func (n Nested) equal(other Parameter) bool {
	o, ok := other.(Nested)
	return ok && n.Function.Equal(o.Function)
}

func (Nested) isParameter() {}

// Function is a parsed eligibility criterion: a rule plus its parameters
type Function struct {
	Rule       Rule
	Parameters []Parameter
}

// NewFunction builds a function, copying the parameter slice
func NewFunction(rule Rule, params ...Parameter) Function {
	p := make([]Parameter, len(params))
	copy(p, params)
	return Function{Rule: rule, Parameters: p}
}

// Children returns the nested functions of a composite rule in order
func (f Function) Children() []Function {
	var out []Function
	for _, p := range f.Parameters {
		if n, ok := p.(Nested); ok {
			out = append(out, n.Function)
		}
	}
	return out
}

// Equal reports structural equality of rule and parameters
func (f Function) Equal(other Function) bool {
	if f.Rule != other.Rule || len(f.Parameters) != len(other.Parameters) {
		return false
	}
	for i, p := range f.Parameters {
		if !p.equal(other.Parameters[i]) {
			return false
		}
	}
	return true
}

func (f Function) String() string {
	return Render(f)
}

// MarshalJSON encodes the function as its canonical criterion text
func (f Function) MarshalJSON() ([]byte, error) {
	return json.Marshal(Render(f))
}

// Render prints a function in canonical criterion syntax
func Render(f Function) string {
	if len(f.Parameters) == 0 {
		return string(f.Rule)
	}
	parts := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		parts[i] = p.Render()
	}
	if f.Rule.IsComposite() {
		return string(f.Rule) + "(" + strings.Join(parts, ", ") + ")"
	}
	return string(f.Rule) + "[" + strings.Join(parts, ", ") + "]"
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
