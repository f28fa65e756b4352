// Package celrules evaluates leaf eligibility rules declared as CEL
// expressions over the patient's facts and the rule's parameters.
package celrules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/registry"
)

// costLimit bounds the work a single expression may do
const costLimit = 1000000

// Engine holds one compiled program set per bound rule.
// Safe for concurrent use; Load swaps program sets atomically.
type Engine struct {
	env      *cel.Env
	programs map[criteria.Rule]*compiled
	mu       sync.RWMutex
}

type compiledMessage struct {
	spec  MessageSpec
	text  cel.Program
	items cel.Program
}

type compiled struct {
	binding   Binding
	available cel.Program
	pass      cel.Program
	warn      cel.Program
	events    cel.Program
	messages  map[evaluation.Result]*compiledMessage
}

// NewEngine creates an engine with an empty binding set
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("patient", cel.DynType),
		cel.Variable("params", cel.ListType(cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		programs: make(map[criteria.Rule]*compiled),
	}, nil
}

// NewDefaultEngine creates an engine loaded with the built-in bindings
func NewDefaultEngine() (*Engine, error) {
	en, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := en.Load(bytes.NewReader(defaultBindings)); err != nil {
		return nil, fmt.Errorf("failed to load built-in rule bindings: %w", err)
	}
	return en, nil
}

// Load decodes a binding file, compiles every binding and replaces the
// engine's binding set. Nothing changes if any binding fails to compile.
func (en *Engine) Load(r io.Reader) error {
	f, err := DecodeFile(r)
	if err != nil {
		return err
	}

	programs := make(map[criteria.Rule]*compiled, len(f.Rules))
	var errs []error
	for _, b := range f.Rules {
		if _, dup := programs[b.Rule]; dup {
			errs = append(errs, fmt.Errorf("rule %s bound more than once", b.Rule))
			continue
		}
		c, err := en.compile(b)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to compile binding for %s: %w", b.Rule, err))
			continue
		}
		programs[b.Rule] = c
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs = programs
	en.mu.Unlock()
	return nil
}

// Compile adds or replaces a single binding
func (en *Engine) Compile(b Binding) error {
	if err := validate.Struct(&b); err != nil {
		return fmt.Errorf("invalid binding: %w", err)
	}
	c, err := en.compile(b)
	if err != nil {
		return fmt.Errorf("failed to compile binding for %s: %w", b.Rule, err)
	}

	en.mu.Lock()
	en.programs[b.Rule] = c
	en.mu.Unlock()
	return nil
}

func (en *Engine) compile(b Binding) (*compiled, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	c := &compiled{binding: b, messages: make(map[evaluation.Result]*compiledMessage)}
	if b.Skip {
		return c, nil
	}

	var err error
	if c.available, err = en.program(b.Available, cel.BoolType); err != nil {
		return nil, fmt.Errorf("available: %w", err)
	}
	if c.pass, err = en.program(b.Pass, cel.BoolType); err != nil {
		return nil, fmt.Errorf("pass: %w", err)
	}
	if c.warn, err = en.program(b.Warn, cel.BoolType); err != nil {
		return nil, fmt.Errorf("warn: %w", err)
	}
	if c.events, err = en.program(b.Events, nil); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	specs := map[evaluation.Result]*MessageSpec{
		evaluation.Pass:         b.Messages.Pass,
		evaluation.Warn:         b.Messages.Warn,
		evaluation.Fail:         b.Messages.Fail,
		evaluation.Undetermined: b.Messages.Undetermined,
	}
	for category, spec := range specs {
		if spec == nil {
			continue
		}
		m := &compiledMessage{spec: *spec}
		if m.text, err = en.program(spec.Text, cel.StringType); err != nil {
			return nil, fmt.Errorf("%s message: %w", category, err)
		}
		if m.items, err = en.program(spec.Items, nil); err != nil {
			return nil, fmt.Errorf("%s message items: %w", category, err)
		}
		c.messages[category] = m
	}
	return c, nil
}

// program compiles expr; an empty expression yields a nil program. When want
// is set the checked output type must be want or dyn.
func (en *Engine) program(expr string, want *cel.Type) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}
	ast, issues := en.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if want != nil {
		out := ast.OutputType()
		if !out.IsExactType(want) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("expression %q has type %s, want %s", expr, out, want)
		}
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Rules lists the bound rules, sorted
func (en *Engine) Rules() []criteria.Rule {
	en.mu.RLock()
	defer en.mu.RUnlock()

	out := make([]criteria.Rule, 0, len(en.programs))
	for rule := range en.programs {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Factory builds an evaluator for fn from its compiled binding
func (en *Engine) Factory(fn criteria.Function) (registry.Evaluator, error) {
	en.mu.RLock()
	c, ok := en.programs[fn.Rule]
	en.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("rule %s has no CEL binding", fn.Rule)
	}

	params, err := paramValues(fn)
	if err != nil {
		return nil, err
	}
	return registry.EvaluatorFunc(func(record patient.Record) (evaluation.Evaluation, error) {
		return c.evaluate(map[string]any{
			"patient": record.Facts(),
			"params":  params,
		})
	}), nil
}

// Bindings returns a registry binding for every compiled rule
func (en *Engine) Bindings() map[criteria.Rule]registry.Factory {
	out := make(map[criteria.Rule]registry.Factory)
	for _, rule := range en.Rules() {
		out[rule] = en.Factory
	}
	return out
}

func (c *compiled) evaluate(vars map[string]any) (evaluation.Evaluation, error) {
	b := c.binding
	if b.Skip {
		return evaluation.NewNotEvaluated(), nil
	}

	if c.available != nil {
		ok, err := evalBool(c.available, vars)
		if err != nil {
			return evaluation.Evaluation{}, fmt.Errorf("available: %w", err)
		}
		if !ok {
			return c.outcome(evaluation.Undetermined, false, vars)
		}
	}

	passed, err := evalBool(c.pass, vars)
	if err != nil {
		return evaluation.Evaluation{}, fmt.Errorf("pass: %w", err)
	}
	if passed {
		e, err := c.outcome(evaluation.Pass, false, vars)
		if err != nil || c.events == nil {
			return e, err
		}
		events, err := evalStrings(c.events, vars)
		if err != nil {
			return evaluation.Evaluation{}, fmt.Errorf("events: %w", err)
		}
		return e.WithInclusionEvents(events...), nil
	}

	if c.warn != nil {
		warned, err := evalBool(c.warn, vars)
		if err != nil {
			return evaluation.Evaluation{}, fmt.Errorf("warn: %w", err)
		}
		if warned {
			return c.outcome(evaluation.Warn, false, vars)
		}
	}

	switch b.onFail() {
	case OutcomeRecoverableFail:
		return c.outcome(evaluation.Fail, true, vars)
	case OutcomeUndetermined:
		e, err := c.outcome(evaluation.Fail, false, vars)
		if err != nil {
			return e, err
		}
		return evaluation.New(evaluation.Undetermined, false, e.Messages(evaluation.Fail)...), nil
	default:
		return c.outcome(evaluation.Fail, false, vars)
	}
}

func (c *compiled) outcome(result evaluation.Result, recoverable bool, vars map[string]any) (evaluation.Evaluation, error) {
	m, ok := c.messages[result]
	if !ok {
		return evaluation.Evaluation{}, fmt.Errorf("no %s message bound", result)
	}
	msg, err := m.build(vars)
	if err != nil {
		return evaluation.Evaluation{}, fmt.Errorf("%s message: %w", result, err)
	}
	return evaluation.New(result, recoverable, msg), nil
}

func (m *compiledMessage) build(vars map[string]any) (evaluation.Message, error) {
	if m.items != nil {
		items, err := evalStrings(m.items, vars)
		if err != nil {
			return nil, err
		}
		return evaluation.NewItemsMessage(m.spec.Key, m.spec.Prefix, items...), nil
	}
	out, _, err := m.text.Eval(vars)
	if err != nil {
		return nil, err
	}
	text, ok := out.Value().(string)
	if !ok {
		return nil, fmt.Errorf("message expression returned %T, want string", out.Value())
	}
	return evaluation.Static(text), nil
}

func evalBool(prg cel.Program, vars map[string]any) (bool, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return b, nil
}

func evalStrings(prg cel.Program, vars map[string]any) ([]string, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, err
	}
	native, err := out.ConvertToNative(reflect.TypeOf([]string{}))
	if err != nil {
		return nil, fmt.Errorf("expression did not return a list of strings: %w", err)
	}
	return native.([]string), nil
}
