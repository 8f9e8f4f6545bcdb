package rollout_test

import (
	"context"
	"errors"
	"image"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/policy"
	"github.com/san-kum/lsdc/internal/sim"
	"github.com/san-kum/lsdc/internal/sim/simtest"
	"github.com/san-kum/lsdc/internal/viz"
)

const (
	liveModel     = "live.xml"
	noMarkerModel = "nomarkers.xml"
)

func quickConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Model = liveModel
	cfg.ModelNoMarkers = noMarkerModel
	cfg.T = 5
	cfg.Substeps = 1
	cfg.SkipFirst = 0
	cfg.ImageWidth = 8
	cfg.ImageHeight = 6
	cfg.ImageChannels = 3
	cfg.LargeImageSize = 16
	cfg.AdditionalViewer = false
	cfg.DataCollection = true
	cfg.NumObjects = 0
	cfg.X0 = []float64{0, 0}
	cfg.Seed = 1
	return cfg
}

// planningConfig has one object, a goal and the large viewer.
func planningConfig() *config.Config {
	cfg := quickConfig()
	cfg.DataCollection = false
	cfg.AdditionalViewer = true
	cfg.NumObjects = 1
	cfg.GoalPoint = []float64{0, 0}
	return cfg
}

func fakeLoader(cfg *config.Config) *simtest.Loader {
	nq, nv := 2, 2
	n := cfg.ObjectCount()
	nq += 7 * n
	nv += 6 * n
	if cfg.HasGoal() {
		nq += 6
		nv += 6
	}
	return &simtest.Loader{Models: map[string]*simtest.Model{
		liveModel:     simtest.NewModel(liveModel, nq, nv),
		noMarkerModel: simtest.NewModel(noMarkerModel, nq, nv),
	}}
}

// failingLoader refuses to start the viewer with index failAt.
type failingLoader struct {
	*simtest.Loader
	failAt int
}

func (l *failingLoader) NewViewer(w, h, c int) (sim.Viewer, error) {
	if len(l.Viewers) == l.failAt {
		return nil, errors.New("no display")
	}
	return l.Loader.NewViewer(w, h, c)
}

type constCollector struct {
	u, inc dynamo.Control
	seen   []policy.Observation
	err    error
}

func (c *constCollector) Kind() policy.Kind { return policy.KindCollector }

func (c *constCollector) Act(ctx context.Context, obs policy.Observation) (policy.CollectorAction, error) {
	c.seen = append(c.seen, obs)
	if c.err != nil {
		return policy.CollectorAction{}, c.err
	}
	inc := c.inc
	if inc == nil {
		inc = c.u
	}
	return policy.CollectorAction{U: c.u.Clone(), TargetInc: inc.Clone()}, nil
}

type fakePlanner struct {
	u       dynamo.Control
	bundle  *viz.Bundle
	inputs  []policy.PlanningInput
	failAt  int
	failErr error
}

func (p *fakePlanner) Kind() policy.Kind { return policy.KindPlanner }

func (p *fakePlanner) Plan(ctx context.Context, in policy.PlanningInput) (policy.Decision, error) {
	p.inputs = append(p.inputs, in)
	if p.failErr != nil && in.T == p.failAt {
		return policy.Decision{}, p.failErr
	}
	return policy.Decision{U: p.u.Clone(), Bundle: p.bundle}, nil
}

func twoIterationBundle() *viz.Bundle {
	path := [][2]float64{{2, 2}, {4, 4}, {6, 6}}
	return &viz.Bundle{
		Positions: [][][][2]float64{
			{path, path},
			{path, path},
		},
		Ranking: [][]int{{1, 0}, {0}},
	}
}

type countingVisualizer struct {
	calls int
	inner *viz.Overlay
}

func (v *countingVisualizer) Render(frame image.Image, b *viz.Bundle) ([]*image.RGBA, error) {
	v.calls++
	return v.inner.Render(frame, b)
}

type capturedRecording struct {
	calls  int
	path   string
	frames []image.Image
}

func (r *capturedRecording) record(frames []image.Image, path string) error {
	r.calls++
	r.path = path
	r.frames = frames
	return nil
}

type stepObserver struct {
	steps []int
	us    []dynamo.Control
}

func (o *stepObserver) OnStep(t int, x, xdot dynamo.Vec2, u dynamo.Control) {
	o.steps = append(o.steps, t)
	o.us = append(o.us, u)
}

// scribbler writes over the history it is handed.
type scribbler struct {
	u dynamo.Control
}

func (s *scribbler) Kind() policy.Kind { return policy.KindPlanner }

func (s *scribbler) Plan(ctx context.Context, in policy.PlanningInput) (policy.Decision, error) {
	in.X[0] = dynamo.Vec2{99, 99}
	in.Xdot[0] = dynamo.Vec2{99, 99}
	in.Images[0] = nil
	return policy.Decision{U: s.u.Clone()}, nil
}

func (s *scribbler) Act(ctx context.Context, obs policy.Observation) (policy.CollectorAction, error) {
	obs.Images[0] = nil
	return policy.CollectorAction{U: s.u.Clone(), TargetInc: s.u.Clone()}, nil
}

// scribblingCollector is a scribbler that presents the collector contract.
type scribblingCollector struct{ scribbler }

func (*scribblingCollector) Kind() policy.Kind { return policy.KindCollector }
