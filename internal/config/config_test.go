package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	opts := Default()

	assert.Equal(t, DefaultRTol, opts.RTol)
	assert.Equal(t, DefaultATol, opts.ATol)
	assert.Equal(t, DefaultMaxOrder, opts.MaxOrder)
	assert.Equal(t, "auto", opts.LinearSolver)
	assert.NoError(t, opts.Validate(3))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")

	opts := Default()
	opts.RTol = 1e-8
	opts.ATolByComponent = []float64{1e-6, 1e-10}
	opts.LinearSolver = "sparse"
	opts.MaxStep = 0.5

	require.NoError(t, Save(path, opts))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, opts, loaded)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, writeFile(path, "rtol: 1.0e-9\nlinear_solver: dense\n"))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-9, opts.RTol)
	assert.Equal(t, "dense", opts.LinearSolver)
	assert.Equal(t, DefaultMaxSteps, opts.MaxSteps)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		ok     bool
	}{
		{"default", func(o *Options) {}, true},
		{"zero rtol", func(o *Options) { o.RTol = 0 }, false},
		{"negative atol", func(o *Options) { o.ATol = -1 }, false},
		{"per-component atol", func(o *Options) {
			o.ATol = 0
			o.ATolByComponent = []float64{1e-6, 1e-8}
		}, true},
		{"wrong atol length", func(o *Options) { o.ATolByComponent = []float64{1e-6} }, false},
		{"order too high", func(o *Options) { o.MaxOrder = 6 }, false},
		{"order too low", func(o *Options) { o.MaxOrder = 0 }, false},
		{"min above max step", func(o *Options) { o.MinStep = 1; o.MaxStep = 0.1 }, false},
		{"bad solver", func(o *Options) { o.LinearSolver = "qr" }, false},
		{"empty solver", func(o *Options) { o.LinearSolver = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			tt.mutate(&opts)
			err := opts.Validate(2)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAbsTol(t *testing.T) {
	opts := Default()
	assert.Equal(t, []float64{1e-6, 1e-6}, opts.AbsTol(2))

	opts.ATolByComponent = []float64{1e-4, 1e-8}
	assert.Equal(t, []float64{1e-4, 1e-8}, opts.AbsTol(2))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
