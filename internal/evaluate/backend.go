package evaluate

import (
	"fmt"

	"github.com/san-kum/daesim/internal/dae"
)

// Backend is the capability set the integrator needs from a compiled model.
//
// All methods write into caller-provided output slices. Jacobian fills the
// structural nonzeros of cj*dF/dy' + dF/dy in the declared compressed-column
// order. MassAction applies the mass matrix dF/dy' to a vector; JacAction
// applies dF/dy. Together they let the integrator re-evaluate the linear
// sensitivity residual after a correction without another model callback.
// SensResidual evaluates the forward-sensitivity residual
// dF/dy*s + dF/dy'*sp + dF/dp_j for tracked parameter j.
type Backend interface {
	Name() string
	Residual(t float64, y, yp, r []float64) error
	Jacobian(t float64, y, yp []float64, cj float64, vals []float64) error
	MassAction(v, mv []float64) error
	JacAction(t float64, y, yp, v, jv []float64) error
	Events(t float64, y, g []float64) error
	SensResidual(j int, t float64, y, yp, s, sp, r []float64) error
}

// ResidualFunc evaluates F(t, y, y', p) into r.
type ResidualFunc func(t float64, y, yp, p, r []float64)

// JacobianFunc fills the structural nonzeros of cj*dF/dy' + dF/dy.
type JacobianFunc func(t float64, y, yp []float64, cj float64, p, vals []float64)

// MassActionFunc writes M*v into mv.
type MassActionFunc func(v, mv []float64)

// JacActionFunc writes (dF/dy)*v into jv.
type JacActionFunc func(t float64, y, yp, p, v, jv []float64)

// EventsFunc fills the event vector g.
type EventsFunc func(t float64, y, p, g []float64)

// SensResidualFunc evaluates the sensitivity residual for parameter j.
type SensResidualFunc func(j int, t float64, y, yp, s, sp, p, r []float64)

// Funcs bundles the evaluators supplied by the model-compilation collaborator.
// MassAction may be nil when the mass matrix is the diagonal of the
// component-kind vector; JacAction may be nil when a backend can derive it
// from the sparse Jacobian; Events and SensResidual may be nil when the
// problem declares none.
type Funcs struct {
	Residual     ResidualFunc
	Jacobian     JacobianFunc
	MassAction   MassActionFunc
	JacAction    JacActionFunc
	Events       EventsFunc
	SensResidual SensResidualFunc
}

func (f Funcs) validate(p *dae.Problem) error {
	if f.Residual == nil {
		return fmt.Errorf("evaluate: residual function is required: %w", dae.ErrBadConfig)
	}
	if f.Jacobian == nil {
		return fmt.Errorf("evaluate: jacobian function is required: %w", dae.ErrBadConfig)
	}
	if p.NumEvents > 0 && f.Events == nil {
		return fmt.Errorf("evaluate: %d events declared but no event function: %w", p.NumEvents, dae.ErrBadConfig)
	}
	if p.NumSens > 0 && f.SensResidual == nil {
		return fmt.Errorf("evaluate: %d sensitivities requested but no sensitivity residual: %w", p.NumSens, dae.ErrBadConfig)
	}
	return nil
}

// diagMassAction applies the default mass matrix diag(id): the identity on
// differential components, zero on algebraic ones.
func diagMassAction(differential []bool) MassActionFunc {
	return func(v, mv []float64) {
		for i := range mv {
			if differential[i] {
				mv[i] = v[i]
			} else {
				mv[i] = 0
			}
		}
	}
}

// cscMatVec computes jv = A*v for values laid out in the given pattern.
func cscMatVec(sp dae.Sparsity, vals, v, jv []float64) {
	for i := range jv {
		jv[i] = 0
	}
	n := len(sp.ColPtrs) - 1
	for j := 0; j < n; j++ {
		xj := v[j]
		if xj == 0 {
			continue
		}
		for p := sp.ColPtrs[j]; p < sp.ColPtrs[j+1]; p++ {
			jv[sp.RowIdx[p]] += vals[p] * xj
		}
	}
}
