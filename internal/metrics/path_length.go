package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// PathLength accumulates the planar distance travelled between observed
// positions.
type PathLength struct {
	name   string
	total  float64
	prev   []float64
	primed bool
}

func NewPathLength() *PathLength {
	return &PathLength{name: "path_length", prev: make([]float64, 2)}
}

func (p *PathLength) Name() string { return p.name }

func (p *PathLength) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 2 {
		return
	}
	if p.primed {
		p.total += floats.Distance(p.prev, x[:2], 2)
	}
	copy(p.prev, x[:2])
	p.primed = true
}

func (p *PathLength) Value() float64 { return p.total }

func (p *PathLength) Reset() {
	p.total = 0
	p.primed = false
}
