package rollout

import (
	"image"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// Trajectory is the record of one trial. All four sequences have length T
// and are index aligned.
type Trajectory struct {
	X      []dynamo.Vec2
	Xdot   []dynamo.Vec2
	U      []dynamo.Control
	Images []*image.NRGBA

	Metrics map[string]float64
	// Score is the final goal distance; valid only when Scored.
	Score  float64
	Scored bool
}

func newTrajectory(T int) *Trajectory {
	return &Trajectory{
		X:      make([]dynamo.Vec2, T),
		Xdot:   make([]dynamo.Vec2, T),
		U:      make([]dynamo.Control, T),
		Images: make([]*image.NRGBA, T),
	}
}

func (tr *Trajectory) Len() int { return len(tr.X) }
