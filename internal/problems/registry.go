package problems

import (
	"fmt"
	"sort"

	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/evaluate"
)

// Model is a named DAE system with defaults suitable for a demo run.
type Model interface {
	// Name returns the registry key for this model.
	Name() string
	// Description returns a one-line summary for listings.
	Description() string
	// Build assembles the problem definition and its evaluator
	// functions.
	Build() (*dae.Problem, evaluate.Funcs)
	// DefaultTimes returns the output grid used when the caller does
	// not supply one.
	DefaultTimes() []float64
}

var registry = map[string]func() Model{
	"decay":     func() Model { return NewDecay() },
	"algebraic": func() Model { return NewAlgebraic() },
	"robertson": func() Model { return NewRobertson() },
	"battery":   func() Model { return NewBatteryRC() },
}

// Get returns a fresh instance of the named model.
func Get(name string) (Model, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem %q (available: %v)", name, Names())
	}
	return mk(), nil
}

// Names lists the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// linspace returns n evenly spaced points from a to b inclusive.
func linspace(a, b float64, n int) []float64 {
	ts := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range ts {
		ts[i] = a + float64(i)*step
	}
	ts[n-1] = b
	return ts
}
