// Package binding wires named input controls to output slots through an
// explicit dependency table and re-evaluates dependent rules on change.
package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/verte-zerg/gapdash/internal/binding"

var (
	// ErrUnknownInput is returned when a changed input is not declared by any rule.
	ErrUnknownInput = errors.New("unknown input")
	// ErrMissingInput is returned when state lacks a value a rule depends on.
	ErrMissingInput = errors.New("missing input value")
	// ErrInvalidRule is returned by NewGraph for a malformed dependency table.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrIncompleteBatch is returned when a rule does not produce every output it declares.
	ErrIncompleteBatch = errors.New("incomplete batch")
	// ErrRulePanic is returned when a compute function panics.
	ErrRulePanic = errors.New("rule panicked")
)

// InputID names a control whose value drives rules.
type InputID string

// OutputID names a slot that receives computed values.
type OutputID string

// State is the current value of every control.
type State map[InputID]any

// ComputeFunc evaluates a rule from the full set of its input values and
// returns exactly one value per declared output.
type ComputeFunc[V any] func(ctx context.Context, in Inputs) (map[OutputID]V, error)

// Rule is one dependency group: its outputs are always recomputed together
// when any of its inputs change.
type Rule[V any] struct {
	Name    string
	Inputs  []InputID
	Outputs []OutputID
	Compute ComputeFunc[V]
}

// Batch carries every output of one rule from a single evaluation.
type Batch[V any] struct {
	Rule    string
	Outputs map[OutputID]V
}

// Dependency describes a rule without its compute function.
type Dependency struct {
	Rule    string     `json:"rule"`
	Inputs  []InputID  `json:"inputs"`
	Outputs []OutputID `json:"outputs"`
}

// Observer receives the outcome of every rule evaluation.
type Observer interface {
	ObserveRule(rule string, d time.Duration, err error)
}

// Option configures a Graph.
type Option func(*options)

type options struct {
	observer Observer
	tracer   trace.TracerProvider
}

// WithObserver reports rule evaluations to o.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithTracerProvider records one span per rule evaluation with tp. The
// global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(opts *options) {
		opts.tracer = tp
	}
}

// Graph is an immutable dependency table. It is safe for concurrent use.
type Graph[V any] struct {
	rules    []Rule[V]
	byInput  map[InputID][]int
	observer Observer
	tracer   trace.Tracer
}

// NewGraph validates rules and indexes them by input.
func NewGraph[V any](rules []Rule[V], opts ...Option) (*Graph[V], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", ErrInvalidRule)
	}

	names := make(map[string]struct{}, len(rules))
	outputs := make(map[OutputID]string)
	byInput := make(map[InputID][]int)
	own := make([]Rule[V], len(rules))
	for i, r := range rules {
		switch {
		case r.Name == "":
			return nil, fmt.Errorf("%w: rule %d has no name", ErrInvalidRule, i)
		case len(r.Inputs) == 0:
			return nil, fmt.Errorf("%w: %s has no inputs", ErrInvalidRule, r.Name)
		case len(r.Outputs) == 0:
			return nil, fmt.Errorf("%w: %s has no outputs", ErrInvalidRule, r.Name)
		case r.Compute == nil:
			return nil, fmt.Errorf("%w: %s has no compute function", ErrInvalidRule, r.Name)
		}
		if _, ok := names[r.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate rule %s", ErrInvalidRule, r.Name)
		}
		names[r.Name] = struct{}{}

		for _, out := range r.Outputs {
			if owner, ok := outputs[out]; ok {
				return nil, fmt.Errorf("%w: output %s claimed by %s and %s", ErrInvalidRule, out, owner, r.Name)
			}
			outputs[out] = r.Name
		}
		seen := make(map[InputID]struct{}, len(r.Inputs))
		for _, in := range r.Inputs {
			if _, ok := seen[in]; ok {
				return nil, fmt.Errorf("%w: %s lists input %s twice", ErrInvalidRule, r.Name, in)
			}
			seen[in] = struct{}{}
			byInput[in] = append(byInput[in], i)
		}

		own[i] = Rule[V]{
			Name:    r.Name,
			Inputs:  append([]InputID(nil), r.Inputs...),
			Outputs: append([]OutputID(nil), r.Outputs...),
			Compute: r.Compute,
		}
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}
	return &Graph[V]{
		rules:    own,
		byInput:  byInput,
		observer: o.observer,
		tracer:   o.tracer.Tracer(tracerName),
	}, nil
}

// Rules describes the dependency table in declaration order.
func (g *Graph[V]) Rules() []Dependency {
	deps := make([]Dependency, len(g.rules))
	for i, r := range g.rules {
		deps[i] = Dependency{
			Rule:    r.Name,
			Inputs:  append([]InputID(nil), r.Inputs...),
			Outputs: append([]OutputID(nil), r.Outputs...),
		}
	}
	return deps
}

// Inputs lists every declared input in first-declared order.
func (g *Graph[V]) Inputs() []InputID {
	var ids []InputID
	seen := make(map[InputID]struct{})
	for _, r := range g.rules {
		for _, in := range r.Inputs {
			if _, ok := seen[in]; ok {
				continue
			}
			seen[in] = struct{}{}
			ids = append(ids, in)
		}
	}
	return ids
}

// Dependents returns the names of rules that read input.
func (g *Graph[V]) Dependents(input InputID) []string {
	idx := g.byInput[input]
	names := make([]string, len(idx))
	for i, ri := range idx {
		names[i] = g.rules[ri].Name
	}
	return names
}

// Initial evaluates every rule, as on page load.
func (g *Graph[V]) Initial(ctx context.Context, state State) ([]Batch[V], error) {
	all := make([]int, len(g.rules))
	for i := range all {
		all[i] = i
	}
	return g.evaluate(ctx, all, state)
}

// Dispatch evaluates every rule whose inputs intersect changed and returns
// one batch per rule in declaration order. Each rule sees the full current
// value of all of its inputs, not only the changed ones.
func (g *Graph[V]) Dispatch(ctx context.Context, changed []InputID, state State) ([]Batch[V], error) {
	selected := make(map[int]struct{})
	for _, id := range changed {
		idx, ok := g.byInput[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInput, id)
		}
		for _, ri := range idx {
			selected[ri] = struct{}{}
		}
	}
	order := make([]int, 0, len(selected))
	for i := range g.rules {
		if _, ok := selected[i]; ok {
			order = append(order, i)
		}
	}
	return g.evaluate(ctx, order, state)
}

func (g *Graph[V]) evaluate(ctx context.Context, order []int, state State) ([]Batch[V], error) {
	inputs := make([]Inputs, len(order))
	for i, ri := range order {
		in, err := collect(g.rules[ri], state)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}

	batches := make([]Batch[V], len(order))
	eg, ctx := errgroup.WithContext(ctx)
	for i, ri := range order {
		rule := g.rules[ri]
		in := inputs[i]
		eg.Go(func() error {
			spanCtx, span := g.tracer.Start(ctx, "binding.rule", trace.WithAttributes(
				attribute.String("rule", rule.Name),
				attribute.Int("outputs", len(rule.Outputs)),
			))
			defer span.End()

			start := time.Now()
			out, err := g.run(spanCtx, rule, in)
			if g.observer != nil {
				g.observer.ObserveRule(rule.Name, time.Since(start), err)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			batches[i] = Batch[V]{Rule: rule.Name, Outputs: out}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// run evaluates one rule. Rules run on errgroup goroutines where no HTTP
// recoverer can reach, so a panic is turned into an error here.
func (g *Graph[V]) run(ctx context.Context, rule Rule[V], in Inputs) (out map[OutputID]V, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrRulePanic, rule.Name, r)
		}
	}()
	out, err = rule.Compute(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
	}
	if len(out) != len(rule.Outputs) {
		return nil, fmt.Errorf("%w: %s returned %d of %d outputs", ErrIncompleteBatch, rule.Name, len(out), len(rule.Outputs))
	}
	for _, id := range rule.Outputs {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s did not return %s", ErrIncompleteBatch, rule.Name, id)
		}
	}
	return out, nil
}

func collect[V any](rule Rule[V], state State) (Inputs, error) {
	in := make(Inputs, len(rule.Inputs))
	for _, id := range rule.Inputs {
		v, ok := state[id]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s needs %s", ErrMissingInput, rule.Name, id)
		}
		in[id] = v
	}
	return in, nil
}
