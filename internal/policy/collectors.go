package policy

import (
	"context"
	"math/rand"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// ActionDim is the size of the agent control vector.
const ActionDim = 2

type Zero struct{}

func (Zero) Kind() Kind { return KindCollector }

func (Zero) Act(ctx context.Context, obs Observation) (CollectorAction, error) {
	return CollectorAction{
		U:         make(dynamo.Control, ActionDim),
		TargetInc: make(dynamo.Control, ActionDim),
	}, nil
}

// Scripted replays Actions by timestep and holds zero once they run out.
type Scripted struct {
	Actions []dynamo.Control
}

func NewScripted(actions [][]float64) *Scripted {
	s := &Scripted{Actions: make([]dynamo.Control, len(actions))}
	for i, u := range actions {
		s.Actions[i] = dynamo.Control(u).Clone()
	}
	return s
}

func (s *Scripted) Kind() Kind { return KindCollector }

func (s *Scripted) Act(ctx context.Context, obs Observation) (CollectorAction, error) {
	if obs.T < len(s.Actions) {
		u := s.Actions[obs.T].Clone()
		return CollectorAction{U: u, TargetInc: u.Clone()}, nil
	}
	return Zero{}.Act(ctx, obs)
}

type Random struct {
	Std float64
	rng *rand.Rand
}

func NewRandom(std float64, rng *rand.Rand) *Random {
	return &Random{Std: std, rng: rng}
}

func (r *Random) Kind() Kind { return KindCollector }

func (r *Random) Act(ctx context.Context, obs Observation) (CollectorAction, error) {
	u := make(dynamo.Control, ActionDim)
	for i := range u {
		u[i] = r.rng.NormFloat64() * r.Std
	}
	return CollectorAction{U: u, TargetInc: u.Clone()}, nil
}

// Noisy adds Gaussian noise to the wrapped collector's action when the
// observation asks for it.
type Noisy struct {
	Collector
	Std float64
	rng *rand.Rand
}

func WithNoise(c Collector, std float64, rng *rand.Rand) *Noisy {
	return &Noisy{Collector: c, Std: std, rng: rng}
}

func (n *Noisy) Act(ctx context.Context, obs Observation) (CollectorAction, error) {
	a, err := n.Collector.Act(ctx, obs)
	if err != nil || !obs.Noisy {
		return a, err
	}
	u := a.U.Clone()
	for i := range u {
		u[i] += n.rng.NormFloat64() * n.Std
	}
	a.U = u
	return a, nil
}
