package policy

import (
	"context"
	"image"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/sim"
	"github.com/san-kum/lsdc/internal/viz"
)

type Kind int

const (
	KindCollector Kind = iota
	KindPlanner
)

func (k Kind) String() string {
	if k == KindPlanner {
		return "planner"
	}
	return "collector"
}

type Policy interface {
	Kind() Kind
}

// Observation is what a collector sees at step T. Images holds the frames
// captured so far, Images[T] being the current one.
type Observation struct {
	X, Xdot dynamo.Vec2
	Images  []*image.NRGBA
	T       int
	Noisy   bool
}

type CollectorAction struct {
	U dynamo.Control
	// TargetInc is recorded instead of U when the agent runs a position
	// controller. U is still what the simulator receives.
	TargetInc dynamo.Control
}

type Collector interface {
	Policy
	Act(ctx context.Context, obs Observation) (CollectorAction, error)
}

// PlanningInput carries the history up to and including step T. Model is
// the live simulator; planners must leave it as they found it.
type PlanningInput struct {
	X, Xdot []dynamo.Vec2
	Images  []*image.NRGBA
	T       int
	Model   sim.Model
}

type Decision struct {
	U      dynamo.Control
	Bundle *viz.Bundle
}

type Planner interface {
	Policy
	Plan(ctx context.Context, in PlanningInput) (Decision, error)
}

// CheckAction returns an ErrPolicy when u is not a finite vector of length
// dim.
func CheckAction(u dynamo.Control, dim int) error {
	if u == nil {
		return dynamo.Policyf("missing action")
	}
	if len(u) != dim {
		return dynamo.Policyf("action has %d entries, expected %d", len(u), dim)
	}
	if !u.IsValid() {
		return dynamo.Policyf("action %v is not finite", u)
	}
	return nil
}
