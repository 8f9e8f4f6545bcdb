package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// ControlEffort is the mean L1 norm of the recorded actions. Steps without
// an action count as zero effort.
type ControlEffort struct {
	total float64
	steps int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) > 0 {
		c.total += floats.Norm(u, 1)
	}
	c.steps++
}

func (c *ControlEffort) Value() float64 {
	if c.steps == 0 {
		return 0
	}
	return c.total / float64(c.steps)
}

func (c *ControlEffort) Reset() {
	*c = ControlEffort{}
}
