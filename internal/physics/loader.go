package physics

import (
	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/render"
	"github.com/san-kum/lsdc/internal/sim"
)

type LoaderOption func(*Loader)

// WithObjectCount overrides the object count of every loaded scene.
func WithObjectCount(n int) LoaderOption {
	return func(l *Loader) {
		l.objects = &n
	}
}

// WithSceneParams applies tunable parameters to every loaded model.
func WithSceneParams(params map[string]float64) LoaderOption {
	return func(l *Loader) {
		l.params = params
	}
}

// WithMarkers turns the goal and reference markers of every loaded scene
// on or off.
func WithMarkers(on bool) LoaderOption {
	return func(l *Loader) {
		l.markers = &on
	}
}

// Loader implements sim.Loader for pushing scenes.
type Loader struct {
	objects *int
	markers *bool
	params  map[string]float64
}

var _ sim.Loader = (*Loader)(nil)

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoaderFor shapes loaded scenes to cfg: its object count, markers only
// when a goal is set, and its scene parameters.
func LoaderFor(cfg *config.Config) *Loader {
	return NewLoader(
		WithObjectCount(cfg.ObjectCount()),
		WithMarkers(cfg.HasGoal()),
		WithSceneParams(cfg.SceneParams),
	)
}

func (l *Loader) Load(path string) (sim.Model, error) {
	scene, err := LoadScene(path)
	if err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if l.objects != nil {
		scene.Objects.Count = *l.objects
	}
	if l.markers != nil {
		scene.Markers = *l.markers
	}
	p, err := NewPusher(scene)
	if err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	for name, value := range l.params {
		if err := p.SetParam(name, value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (l *Loader) NewViewer(width, height, channels int) (sim.Viewer, error) {
	cam, err := render.NewCamera(width, height, channels)
	if err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	return cam, nil
}
