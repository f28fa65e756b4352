package criteria

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReferenceLookup resolves names of treatments, drugs and categories
type ReferenceLookup interface {
	Lookup(kind ReferenceKind, name string) (Reference, bool)
}

// SpecResolver is the default InputResolver. It converts tokens according
// to the vocabulary's parameter kinds and resolves references by name.
type SpecResolver struct {
	refs ReferenceLookup
}

// NewSpecResolver creates a resolver; refs may be nil when no rule in use
// takes reference parameters
func NewSpecResolver(refs ReferenceLookup) *SpecResolver {
	if refs == nil {
		refs = NewStaticReferences()
	}
	return &SpecResolver{refs: refs}
}

// ResolveParameter converts one raw token into a typed parameter
func (r *SpecResolver) ResolveParameter(rule Rule, position int, raw string) (Parameter, error) {
	if !rule.Valid() {
		return nil, fmt.Errorf("unknown rule %s", rule)
	}
	if rule.IsComposite() {
		return nil, fmt.Errorf("composite rule %s takes criteria, not parameters", rule)
	}
	kinds := vocabulary[rule].params
	if position >= len(kinds) {
		return nil, fmt.Errorf("rule %s takes %d parameter(s), got more", rule, len(kinds))
	}
	if raw == "" {
		return nil, fmt.Errorf("parameter %d is empty", position+1)
	}

	switch kind := kinds[position]; kind {
	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %q is not an integer", position+1, raw)
		}
		return IntegerLiteral(n), nil
	case KindDouble:
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("parameter %d: %q is not a finite number", position+1, raw)
		}
		return DoubleLiteral(d), nil
	case KindString:
		return StringLiteral(raw), nil
	case KindStringList:
		lit := StringLiteral(raw)
		if len(lit.Strings()) == 0 {
			return nil, fmt.Errorf("parameter %d: empty list", position+1)
		}
		return lit, nil
	case KindTreatment, KindDrug, KindCategory:
		refKind := referenceKindFor(kind)
		ref, ok := r.refs.Lookup(refKind, raw)
		if !ok {
			return nil, fmt.Errorf("parameter %d: unknown %s %q", position+1, refKind, raw)
		}
		return ref, nil
	default:
		return nil, fmt.Errorf("parameter %d: unsupported kind %s", position+1, kind)
	}
}

// HasValidInputs checks arity and parameter variants against the rule
func (r *SpecResolver) HasValidInputs(fn Function) (bool, bool) {
	spec, ok := vocabulary[fn.Rule]
	if !ok {
		return false, false
	}

	switch spec.op {
	case OpAnd, OpOr:
		return len(fn.Parameters) >= 1 && allNested(fn.Parameters), true
	case OpNot, OpWarnIf:
		return len(fn.Parameters) == 1 && allNested(fn.Parameters), true
	case OpLeaf:
		if len(fn.Parameters) != len(spec.params) {
			return false, true
		}
		for i, p := range fn.Parameters {
			if !fitsKind(p, spec.params[i]) {
				return false, true
			}
		}
		return true, true
	default:
		return false, false
	}
}

func allNested(params []Parameter) bool {
	for _, p := range params {
		if _, ok := p.(Nested); !ok {
			return false
		}
	}
	return true
}

func fitsKind(p Parameter, kind ParamKind) bool {
	switch v := p.(type) {
	case Literal:
		switch kind {
		case KindInteger:
			return v.Kind() == LiteralInteger
		case KindDouble:
			return v.Kind() == LiteralDouble || v.Kind() == LiteralInteger
		case KindString, KindStringList:
			return v.Kind() == LiteralString
		}
		return false
	case Reference:
		return (kind == KindTreatment || kind == KindDrug || kind == KindCategory) && v.Kind == referenceKindFor(kind)
	default:
		return false
	}
}

func referenceKindFor(kind ParamKind) ReferenceKind {
	switch kind {
	case KindDrug:
		return ReferenceDrug
	case KindCategory:
		return ReferenceCategory
	default:
		return ReferenceTreatment
	}
}

// StaticReferences is an in-memory ReferenceLookup. Names match
// case-insensitively; the stored spelling is returned.
type StaticReferences struct {
	entries map[ReferenceKind]map[string]Reference
}

// NewStaticReferences creates a lookup holding refs
func NewStaticReferences(refs ...Reference) *StaticReferences {
	s := &StaticReferences{entries: make(map[ReferenceKind]map[string]Reference)}
	for _, ref := range refs {
		s.Add(ref)
	}
	return s
}

// Add registers a reference, replacing any entry with the same kind and name
func (s *StaticReferences) Add(ref Reference) {
	byName, ok := s.entries[ref.Kind]
	if !ok {
		byName = make(map[string]Reference)
		s.entries[ref.Kind] = byName
	}
	byName[strings.ToLower(ref.Name)] = ref
}

// Lookup finds a reference by kind and name
func (s *StaticReferences) Lookup(kind ReferenceKind, name string) (Reference, bool) {
	ref, ok := s.entries[kind][strings.ToLower(strings.TrimSpace(name))]
	return ref, ok
}

// Len returns the number of stored references
func (s *StaticReferences) Len() int {
	n := 0
	for _, byName := range s.entries {
		n += len(byName)
	}
	return n
}

type referenceFile struct {
	Treatments []Reference `yaml:"treatments"`
	Drugs      []Reference `yaml:"drugs"`
	Categories []Reference `yaml:"categories"`
}

// LoadReferences reads a YAML document with treatments, drugs and categories
func LoadReferences(r io.Reader) (*StaticReferences, error) {
	var file referenceFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}

	s := NewStaticReferences()
	for kind, refs := range map[ReferenceKind][]Reference{
		ReferenceTreatment: file.Treatments,
		ReferenceDrug:      file.Drugs,
		ReferenceCategory:  file.Categories,
	} {
		for _, ref := range refs {
			if strings.TrimSpace(ref.Name) == "" {
				return nil, fmt.Errorf("%s reference without a name", kind)
			}
			ref.Kind = kind
			s.Add(ref)
		}
	}
	return s, nil
}
