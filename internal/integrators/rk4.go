package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// Classic fourth-order tableau: stage offsets and quadrature weights.
var (
	rk4Offsets = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

// RK4 keeps one derivative buffer per stage between calls.
type RK4 struct {
	stages [4]dynamo.State
	probe  dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) resize(n int) {
	if len(r.probe) == n {
		return
	}
	for s := range r.stages {
		r.stages[s] = make(dynamo.State, n)
	}
	r.probe = make(dynamo.State, n)
}

func (r *RK4) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	r.resize(len(x))

	copy(r.probe, x)
	for s, c := range rk4Offsets {
		if s > 0 {
			floats.AddScaledTo(r.probe, x, c*dt, r.stages[s-1])
		}
		copy(r.stages[s], sys.Derive(r.probe, u, t+c*dt))
	}

	next := x.Clone()
	for s, w := range rk4Weights {
		floats.AddScaled(next, w*dt/6, r.stages[s])
	}
	return next
}
