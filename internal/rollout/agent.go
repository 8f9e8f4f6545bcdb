package rollout

import (
	"image"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/export"
	"github.com/san-kum/lsdc/internal/metrics"
	"github.com/san-kum/lsdc/internal/sim"
	"github.com/san-kum/lsdc/internal/viz"
)

// Agent drives trials against one simulator. Calls to Sample are
// serialized; the agent must be released with Finish.
type Agent struct {
	mu sync.Mutex

	cfg *config.Config
	log *zap.SugaredLogger

	model     sim.Model
	noMarkers sim.Model
	small     sim.Viewer
	large     sim.Viewer

	init       *Initializer
	rng        *rand.Rand
	visualizer Visualizer
	recorder   Recorder
	observers  []dynamo.Observer
	metrics    []dynamo.Metric

	largeImages []*image.NRGBA
	annotated   []*image.RGBA
	score       float64
	scored      bool
	samples     []*Trajectory
	finished    bool
}

// New loads both models and starts the cameras. Anything already started
// is released again when a later step fails.
func New(cfg *config.Config, loader sim.Loader, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:        cfg.Clone(),
		log:        zap.NewNop().Sugar(),
		visualizer: viz.NewOverlay(),
		recorder:   export.WriteGIF,
		metrics:    metrics.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		a.rng = rand.New(rand.NewSource(seed))
	}
	a.init = NewInitializer(a.rng)

	var err error
	if a.model, err = loader.Load(cfg.Model); err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if a.noMarkers, err = loader.Load(cfg.ModelNoMarkers); err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}

	if a.small, err = startViewer(loader, cfg.ImageWidth, cfg.ImageHeight, cfg.ImageChannels); err != nil {
		return nil, err
	}
	cam := a.small.Camera()
	cam.ID = 0
	a.small.SetCamera(cam)

	if cfg.AdditionalViewer {
		size := cfg.LargeImageSize
		if a.large, err = startViewer(loader, size, size, cfg.ImageChannels); err != nil {
			return nil, multierr.Append(err, a.small.Finish())
		}
	}

	a.log.Infow("agent ready",
		"model", cfg.Model,
		"T", cfg.T,
		"collector", cfg.Collects(),
		"additional_viewer", cfg.AdditionalViewer)
	return a, nil
}

func startViewer(loader sim.Loader, w, h, c int) (sim.Viewer, error) {
	v, err := loader.NewViewer(w, h, c)
	if err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if err := v.Start(); err != nil {
		return nil, multierr.Append(dynamo.Classify(dynamo.ErrSimulator, err), v.Finish())
	}
	return v, nil
}

// Finish releases both cameras. Later calls return nil.
func (a *Agent) Finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return nil
	}
	a.finished = true

	var err error
	if a.large != nil {
		err = multierr.Append(err, a.large.Finish())
	}
	err = multierr.Append(err, a.small.Finish())
	if err != nil {
		a.log.Warnw("releasing cameras", "error", err)
	}
	return err
}

// Config returns a copy of the agent configuration.
func (a *Agent) Config() *config.Config { return a.cfg.Clone() }

// FinalScore is the goal distance of the last planning trial.
func (a *Agent) FinalScore() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.score, a.scored
}

// LargeImages returns the full-marker frames of the last trial, one per
// timestep, or nothing when the additional viewer is disabled.
func (a *Agent) LargeImages() []*image.NRGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*image.NRGBA(nil), a.largeImages...)
}

// AnnotatedImages returns the candidate overlays of the last trial.
func (a *Agent) AnnotatedImages() []*image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*image.RGBA(nil), a.annotated...)
}

// Samples returns the trajectories kept with SampleOptions.Save.
func (a *Agent) Samples() []*Trajectory {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Trajectory(nil), a.samples...)
}

// exportFrames picks what the recorder writes: overlays when planning
// produced any, raw large frames otherwise.
func (a *Agent) exportFrames() []image.Image {
	if len(a.annotated) > 0 && !a.cfg.RandomBaseline {
		frames := make([]image.Image, len(a.annotated))
		for i, f := range a.annotated {
			frames[i] = f
		}
		return frames
	}
	frames := make([]image.Image, len(a.largeImages))
	for i, f := range a.largeImages {
		frames[i] = f
	}
	return frames
}
