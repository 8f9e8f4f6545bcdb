package policy

import (
	"context"
	"math"
	"math/rand"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// PosController drives the agent toward random nearby targets. Every
// Repeat steps it draws a new increment in [-MaxStep, MaxStep]^2 and sets
// the target to the current position plus that increment. The increment
// is returned as TargetInc; U is the PD force that chases the target.
type PosController struct {
	MaxStep float64
	Repeat  int
	// Arena clips targets to [-Arena, Arena]^2 when positive.
	Arena float64

	axes [ActionDim]*PID
	inc  dynamo.Control
	rng  *rand.Rand
}

var _ dynamo.Configurable = (*PosController)(nil)

func NewPosController(kp, ki, kd, maxStep float64, rng *rand.Rand) *PosController {
	return &PosController{
		MaxStep: maxStep,
		Repeat:  1,
		Arena:   0.45,
		axes:    [ActionDim]*PID{NewPID(kp, ki, kd, 0), NewPID(kp, ki, kd, 0)},
		inc:     make(dynamo.Control, ActionDim),
		rng:     rng,
	}
}

func (p *PosController) Kind() Kind { return KindCollector }

func (p *PosController) Act(ctx context.Context, obs Observation) (CollectorAction, error) {
	if obs.T == 0 {
		for _, a := range p.axes {
			a.Reset()
		}
	}
	repeat := p.Repeat
	if repeat <= 0 {
		repeat = 1
	}
	if obs.T%repeat == 0 {
		for i := range p.inc {
			p.inc[i] = (2*p.rng.Float64() - 1) * p.MaxStep
		}
		for i, a := range p.axes {
			target := obs.X[i] + p.inc[i]
			if p.Arena > 0 {
				target = math.Max(-p.Arena, math.Min(p.Arena, target))
			}
			a.Target = target
		}
	}

	u := make(dynamo.Control, ActionDim)
	for i, a := range p.axes {
		u[i] = a.Compute(obs.X[i], float64(obs.T))
	}
	return CollectorAction{U: u, TargetInc: p.inc.Clone()}, nil
}

func (p *PosController) GetParams() map[string]float64 {
	params := p.axes[0].GetParams()
	delete(params, "Target")
	params["MaxStep"] = p.MaxStep
	return params
}

func (p *PosController) SetParam(name string, value float64) error {
	if name == "MaxStep" {
		p.MaxStep = value
		return nil
	}
	if name == "Target" {
		return dynamo.Configf("target is chosen by the controller")
	}
	for _, a := range p.axes {
		if err := a.SetParam(name, value); err != nil {
			return err
		}
	}
	return nil
}
