package metrics

import (
	"math"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// Containment is the fraction of observed positions inside the square
// [-bound, bound]^2.
type Containment struct {
	name       string
	bound      float64
	violations int
	samples    int
}

func NewContainment(bound float64) *Containment {
	return &Containment{
		name:  "containment",
		bound: bound,
	}
}

func (s *Containment) Name() string {
	return s.name
}

func (s *Containment) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	for _, val := range x[:min(len(x), 2)] {
		if math.Abs(val) > s.bound {
			s.violations++
			break
		}
	}
}

func (s *Containment) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Containment) Reset() {
	s.violations = 0
	s.samples = 0
}
