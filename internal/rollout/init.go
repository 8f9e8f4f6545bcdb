package rollout

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
)

const (
	// PoseSize is the qpos length of one free object: position and quaternion.
	PoseSize = 7
	// agentPrefix is the x0 length that holds only the agent's qpos and qvel.
	agentPrefix  = 4
	markerHeight = 0.1
	// PlacementRange bounds sampled object positions to [-r, r]^2.
	PlacementRange = 0.35
)

// Initializer builds the starting qpos of a trial.
type Initializer struct {
	rng *rand.Rand
}

func NewInitializer(rng *rand.Rand) *Initializer {
	return &Initializer{rng: rng}
}

// Init returns x0[:2] followed by the object poses and, when a goal is
// configured, the goal and reference markers. Object poses come from x0[4:]
// when present and are sampled otherwise.
func (in *Initializer) Init(cfg *config.Config) (dynamo.State, error) {
	x0 := cfg.X0
	if len(x0) < 2 {
		return nil, dynamo.Configf("x0 needs the agent position, got %d entries", len(x0))
	}

	var objects []float64
	if len(x0) > agentPrefix {
		objects = x0[agentPrefix:]
		if len(objects)%PoseSize != 0 {
			return nil, dynamo.Configf("x0 object poses have %d entries, not a multiple of %d", len(objects), PoseSize)
		}
	} else {
		objects = in.ObjectPoses(cfg.NumObjects)
	}

	qpos := make(dynamo.State, 0, 2+len(objects)+6)
	qpos = append(qpos, x0[:2]...)
	qpos = append(qpos, objects...)

	if cfg.HasGoal() {
		if len(objects) == 0 {
			return nil, dynamo.Configf("goal_point needs an object to track")
		}
		qpos = append(qpos, cfg.GoalPoint[0], cfg.GoalPoint[1], markerHeight)
		qpos = append(qpos, objects[0], objects[1], markerHeight)
	}
	return qpos, nil
}

// ObjectPoses samples n resting poses: uniform planar position in the
// placement square, zero height and a uniform rotation about the vertical
// axis.
func (in *Initializer) ObjectPoses(n int) []float64 {
	poses := make([]float64, 0, n*PoseSize)
	for i := 0; i < n; i++ {
		x := (2*in.rng.Float64() - 1) * PlacementRange
		y := (2*in.rng.Float64() - 1) * PlacementRange
		alpha := in.rng.Float64() * 2 * math.Pi
		q := quat.Exp(quat.Number{Kmag: alpha / 2})
		poses = append(poses, x, y, 0, q.Real, q.Imag, q.Jmag, q.Kmag)
	}
	return poses
}
