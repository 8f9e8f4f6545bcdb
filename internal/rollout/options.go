package rollout

import (
	"image"
	"math/rand"

	"go.uber.org/zap"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/viz"
)

// Visualizer turns a large frame and a candidate bundle into one annotated
// frame per planning iteration. *viz.Overlay implements it.
type Visualizer interface {
	Render(frame image.Image, b *viz.Bundle) ([]*image.RGBA, error)
}

// Recorder writes the exported frames of a trial to path.
type Recorder func(frames []image.Image, path string) error

type Option func(*Agent)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *Agent) {
		a.log = log
	}
}

func WithVisualizer(v Visualizer) Option {
	return func(a *Agent) {
		a.visualizer = v
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Agent) {
		a.recorder = r
	}
}

// WithObserver registers o to be notified after every recorded timestep.
func WithObserver(o dynamo.Observer) Option {
	return func(a *Agent) {
		a.observers = append(a.observers, o)
	}
}

// WithMetrics replaces the per-trajectory metrics.
func WithMetrics(ms ...dynamo.Metric) Option {
	return func(a *Agent) {
		a.metrics = ms
	}
}

// WithRand overrides the seeded source used for object placement.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) {
		a.rng = rng
	}
}

// SampleOptions are the per-trial switches of Agent.Sample.
type SampleOptions struct {
	// Verbose logs every timestep at debug level.
	Verbose bool
	// Save keeps the trajectory in Agent.Samples.
	Save bool
	// Noisy is forwarded to collectors.
	Noisy bool
	// Record overrides the configured recording path for this trial.
	Record string
}
