package evaluate

import (
	"github.com/san-kum/daesim/internal/dae"
)

// Callback invokes opaque externally supplied evaluators. Unlike [Compiled],
// the callee is host code the solver knows nothing about, so integrator-owned
// buffers are never passed through: inputs are staged into private copies and
// outputs copied back. A callback that retains a slice therefore cannot alias
// solver state on a later step.
type Callback struct {
	funcs    Funcs
	params   []float64
	sparsity dae.Sparsity

	yBuf, ypBuf, vBuf, spBuf, outBuf []float64
	jacVals                          []float64
}

// NewCallback wraps external evaluator callbacks for the given problem.
func NewCallback(funcs Funcs, p *dae.Problem) (*Callback, error) {
	if err := funcs.validate(p); err != nil {
		return nil, err
	}
	if funcs.MassAction == nil {
		funcs.MassAction = diagMassAction(p.Differential)
	}
	c := &Callback{
		funcs:    funcs,
		params:   append([]float64(nil), p.Params...),
		sparsity: p.Sparsity,
		yBuf:     make([]float64, p.N),
		ypBuf:    make([]float64, p.N),
		vBuf:     make([]float64, p.N),
		spBuf:    make([]float64, p.N),
		outBuf:   make([]float64, maxInt(p.N, p.NumEvents)),
		jacVals:  make([]float64, p.Sparsity.NNZ()),
	}
	return c, nil
}

func (c *Callback) Name() string { return "callback" }

func (c *Callback) stage(y, yp []float64) {
	copy(c.yBuf, y)
	copy(c.ypBuf, yp)
}

func (c *Callback) Residual(t float64, y, yp, r []float64) error {
	c.stage(y, yp)
	out := c.outBuf[:len(r)]
	c.funcs.Residual(t, c.yBuf, c.ypBuf, c.params, out)
	copy(r, out)
	return nil
}

func (c *Callback) Jacobian(t float64, y, yp []float64, cj float64, vals []float64) error {
	c.stage(y, yp)
	c.funcs.Jacobian(t, c.yBuf, c.ypBuf, cj, c.params, c.jacVals)
	copy(vals, c.jacVals)
	return nil
}

func (c *Callback) MassAction(v, mv []float64) error {
	copy(c.vBuf, v)
	out := c.outBuf[:len(mv)]
	c.funcs.MassAction(c.vBuf, out)
	copy(mv, out)
	return nil
}

func (c *Callback) JacAction(t float64, y, yp, v, jv []float64) error {
	c.stage(y, yp)
	copy(c.vBuf, v)
	if c.funcs.JacAction != nil {
		out := c.outBuf[:len(jv)]
		c.funcs.JacAction(t, c.yBuf, c.ypBuf, c.params, c.vBuf, out)
		copy(jv, out)
		return nil
	}
	c.funcs.Jacobian(t, c.yBuf, c.ypBuf, 0, c.params, c.jacVals)
	cscMatVec(c.sparsity, c.jacVals, c.vBuf, jv)
	return nil
}

func (c *Callback) Events(t float64, y, g []float64) error {
	copy(c.yBuf, y)
	out := c.outBuf[:len(g)]
	c.funcs.Events(t, c.yBuf, c.params, out)
	copy(g, out)
	return nil
}

func (c *Callback) SensResidual(j int, t float64, y, yp, s, sp, r []float64) error {
	c.stage(y, yp)
	copy(c.vBuf, s)
	copy(c.spBuf, sp)
	out := c.outBuf[:len(r)]
	c.funcs.SensResidual(j, t, c.yBuf, c.ypBuf, c.vBuf, c.spBuf, c.params, out)
	copy(r, out)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
