package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/sim"
)

// GoalDistance is the planar Euclidean distance between a site position and
// the goal. Only the first two entries of site are used.
func GoalDistance(site, goal []float64) (float64, error) {
	if len(goal) != 2 {
		return 0, dynamo.Configf("goal point needs 2 entries, got %d", len(goal))
	}
	if len(site) < 2 {
		return 0, dynamo.Simulatorf("site position has %d entries", len(site))
	}
	return floats.Distance(goal, site[:2], 2), nil
}

// Evaluate scores the model's current state: the distance from site 0 to
// the goal.
func Evaluate(m sim.Model, goal []float64) (float64, error) {
	if len(goal) == 0 {
		return 0, dynamo.Configf("goal point is not configured")
	}
	site, err := m.Site(0)
	if err != nil {
		return 0, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	return GoalDistance(site, goal)
}
