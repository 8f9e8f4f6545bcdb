package metrics

import "github.com/san-kum/lsdc/internal/dynamo"

// Default returns the metrics reported for every trajectory.
func Default() []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewPathLength(),
		NewContainment(0.5),
	}
}

// Summarize resets ms, feeds them the recorded positions and actions in
// order and returns their values by name.
func Summarize(x []dynamo.Vec2, u []dynamo.Control, ms ...dynamo.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for t := range x {
			var ut dynamo.Control
			if t < len(u) {
				ut = u[t]
			}
			m.Observe(dynamo.State{x[t][0], x[t][1]}, ut, float64(t))
		}
		out[m.Name()] = m.Value()
	}
	return out
}
