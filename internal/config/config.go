package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRTol            = 1e-6
	DefaultATol            = 1e-6
	DefaultMaxOrder        = 5
	DefaultMaxSteps        = 10000
	DefaultMaxNewtonIters  = 4
	DefaultMaxErrTestFails = 10
	DefaultMaxConvFails    = 10
	DefaultICMaxIters      = 10
)

// Options is the full solver configuration. There are no process-wide
// defaults: every solve receives its own Options value at construction.
type Options struct {
	RTol float64 `yaml:"rtol"`
	ATol float64 `yaml:"atol"`

	// ATolByComponent, when non-empty, overrides ATol with one absolute
	// tolerance per state component.
	ATolByComponent []float64 `yaml:"atol_by_component,omitempty"`

	MaxOrder    int     `yaml:"max_order"`
	MaxSteps    int     `yaml:"max_steps"`
	InitialStep float64 `yaml:"initial_step,omitempty"`
	MinStep     float64 `yaml:"min_step,omitempty"`
	MaxStep     float64 `yaml:"max_step,omitempty"`

	MaxNewtonIters  int `yaml:"max_newton_iters"`
	MaxErrTestFails int `yaml:"max_err_test_fails"`
	MaxConvFails    int `yaml:"max_conv_fails"`
	ICMaxIters      int `yaml:"ic_max_iters"`

	// RootTol is the time tolerance for event localization; zero means a
	// machine-precision default scaled by the current time and step.
	RootTol float64 `yaml:"root_tol,omitempty"`

	// LinearSolver is "auto", "sparse", or "dense".
	LinearSolver string `yaml:"linear_solver"`

	// DenseThreshold is the dimension at or below which auto selection
	// uses the dense solver; zero means the package default.
	DenseThreshold int `yaml:"dense_threshold,omitempty"`
}

// Default returns the stock solver configuration.
func Default() Options {
	return Options{
		RTol:            DefaultRTol,
		ATol:            DefaultATol,
		MaxOrder:        DefaultMaxOrder,
		MaxSteps:        DefaultMaxSteps,
		MaxNewtonIters:  DefaultMaxNewtonIters,
		MaxErrTestFails: DefaultMaxErrTestFails,
		MaxConvFails:    DefaultMaxConvFails,
		ICMaxIters:      DefaultICMaxIters,
		LinearSolver:    "auto",
	}
}

// Load reads options from a YAML file, filling unset fields from Default.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// Save writes options to a YAML file.
func Save(path string, opts Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks option values against the state dimension n.
func (o Options) Validate(n int) error {
	if o.RTol <= 0 {
		return fmt.Errorf("config: rtol must be positive, got %g", o.RTol)
	}
	if o.ATol <= 0 && len(o.ATolByComponent) == 0 {
		return fmt.Errorf("config: atol must be positive, got %g", o.ATol)
	}
	if len(o.ATolByComponent) > 0 && len(o.ATolByComponent) != n {
		return fmt.Errorf("config: atol_by_component has length %d, want %d", len(o.ATolByComponent), n)
	}
	for i, a := range o.ATolByComponent {
		if a <= 0 {
			return fmt.Errorf("config: atol_by_component[%d] must be positive, got %g", i, a)
		}
	}
	if o.MaxOrder < 1 || o.MaxOrder > 5 {
		return fmt.Errorf("config: max_order must be in [1,5], got %d", o.MaxOrder)
	}
	if o.MaxSteps <= 0 {
		return fmt.Errorf("config: max_steps must be positive, got %d", o.MaxSteps)
	}
	if o.MinStep < 0 || o.MaxStep < 0 || o.InitialStep < 0 {
		return fmt.Errorf("config: step sizes must be non-negative")
	}
	if o.MaxStep > 0 && o.MinStep > o.MaxStep {
		return fmt.Errorf("config: min_step %g exceeds max_step %g", o.MinStep, o.MaxStep)
	}
	if o.MaxNewtonIters < 1 {
		return fmt.Errorf("config: max_newton_iters must be at least 1, got %d", o.MaxNewtonIters)
	}
	if o.MaxErrTestFails < 1 || o.MaxConvFails < 1 {
		return fmt.Errorf("config: retry budgets must be at least 1")
	}
	if o.ICMaxIters < 1 {
		return fmt.Errorf("config: ic_max_iters must be at least 1, got %d", o.ICMaxIters)
	}
	switch o.LinearSolver {
	case "", "auto", "sparse", "dense":
	default:
		return fmt.Errorf("config: unknown linear_solver %q", o.LinearSolver)
	}
	return nil
}

// AbsTol materializes the per-component absolute tolerance vector.
func (o Options) AbsTol(n int) []float64 {
	atol := make([]float64, n)
	if len(o.ATolByComponent) == n {
		copy(atol, o.ATolByComponent)
		return atol
	}
	for i := range atol {
		atol[i] = o.ATol
	}
	return atol
}
