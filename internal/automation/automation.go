// Package automation runs scripted batches of rollout trials described in
// YAML scenarios.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/physics"
	"github.com/san-kum/lsdc/internal/policy"
	"github.com/san-kum/lsdc/internal/rollout"
	"github.com/san-kum/lsdc/internal/sim"
	"github.com/san-kum/lsdc/internal/storage"
)

// Scenario is a named list of trial groups sharing a base configuration.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Base is a preset name or a config file; empty means defaults.
	Base  string  `yaml:"base"`
	Steps []Group `yaml:"steps"`
}

// Group runs Repeat trials of one configuration. Config is decoded on top
// of the scenario base, so it only needs the fields that change.
type Group struct {
	Name   string    `yaml:"name"`
	Repeat int       `yaml:"repeat"`
	Config yaml.Node `yaml:"config"`
	Noisy  bool      `yaml:"noisy"`
	Save   bool      `yaml:"save"`
	Sweep  *Sweep    `yaml:"sweep,omitempty"`
}

// Sweep varies one scene parameter linearly over Steps values.
type Sweep struct {
	Param string  `yaml:"param"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Steps int     `yaml:"steps"`
}

// Values returns the swept parameter values, endpoints included.
func (s *Sweep) Values() []float64 {
	if s.Steps <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.Steps-1)
	vals := make([]float64, s.Steps)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	return vals
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, dynamo.Configf("scenario: %v", err)
	}
	if len(scenario.Steps) == 0 {
		return nil, dynamo.Configf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// BaseConfig resolves the scenario base.
func (s *Scenario) BaseConfig() (*config.Config, error) {
	if s.Base == "" {
		return config.DefaultConfig(), nil
	}
	if cfg := config.GetPreset(s.Base); cfg != nil {
		return cfg, nil
	}
	return config.Load(s.Base)
}

// Trial is one fully resolved run of a group.
type Trial struct {
	Group  string
	Index  int
	Config *config.Config
	Noisy  bool
	Save   bool
}

// Expand resolves every group into its trials.
func (s *Scenario) Expand() ([]Trial, error) {
	base, err := s.BaseConfig()
	if err != nil {
		return nil, err
	}

	var trials []Trial
	for i, g := range s.Steps {
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		cfg := base.Clone()
		if !g.Config.IsZero() {
			if err := g.Config.Decode(cfg); err != nil {
				return nil, dynamo.Configf("step %s: %v", name, err)
			}
		}

		variants := []*config.Config{cfg}
		if g.Sweep != nil {
			variants = variants[:0]
			for _, v := range g.Sweep.Values() {
				c := cfg.Clone()
				if c.SceneParams == nil {
					c.SceneParams = make(map[string]float64)
				}
				c.SceneParams[g.Sweep.Param] = v
				variants = append(variants, c)
			}
		}

		repeat := max(g.Repeat, 1)
		for _, v := range variants {
			for r := 0; r < repeat; r++ {
				c := v.Clone()
				if c.Seed != 0 {
					c.Seed += int64(r)
				}
				c.Record = RecordPath(c.Record, len(trials), repeat*len(variants))
				if err := c.Validate(); err != nil {
					return nil, fmt.Errorf("step %s: %w", name, err)
				}
				trials = append(trials, Trial{Group: name, Index: len(trials), Config: c, Noisy: g.Noisy, Save: g.Save})
			}
		}
	}
	return trials, nil
}

// RecordPath numbers the recording of trial index when a batch produces
// more than one.
func RecordPath(path string, index, n int) string {
	if path == "" || n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(path, ext), index, ext)
}

// Progress receives per-trial notifications. *tui.Reporter implements it.
type Progress interface {
	dynamo.Observer
	BeginTrial(i int)
	EndTrial(score float64, scored bool, err error)
}

// Result is the outcome of one trial. Err is set when it aborted.
type Result struct {
	Group   string
	Index   int
	RunID   string
	Score   float64
	Scored  bool
	Metrics map[string]float64
	Params  map[string]float64
	Err     error
}

type Runner struct {
	Registry *policy.Registry
	// Loader builds the simulator for a trial; physics.LoaderFor when nil.
	Loader   func(cfg *config.Config) sim.Loader
	Store    *storage.Store
	Log      *zap.SugaredLogger
	Progress Progress
}

func NewRunner() *Runner {
	return &Runner{
		Registry: policy.NewRegistry(),
		Log:      zap.NewNop().Sugar(),
	}
}

func (r *Runner) loader(cfg *config.Config) sim.Loader {
	if r.Loader != nil {
		return r.Loader(cfg)
	}
	return physics.LoaderFor(cfg)
}

// RunScenario runs every trial of scenario in order. A failed trial is
// recorded in its Result and the batch continues; configuration errors
// and cancellation stop it.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]Result, error) {
	trials, err := scenario.Expand()
	if err != nil {
		return nil, err
	}
	r.Log.Infow("scenario start", "name", scenario.Name, "trials", len(trials))

	results := make([]Result, 0, len(trials))
	for _, trial := range trials {
		res := r.RunTrial(ctx, trial)
		results = append(results, res)
		if res.Err == nil {
			continue
		}
		r.Log.Warnw("trial failed", "group", trial.Group, "index", trial.Index, "error", res.Err)
		if errors.Is(res.Err, dynamo.ErrConfiguration) || ctx.Err() != nil {
			return results, res.Err
		}
	}
	return results, nil
}

// RunTrial builds an agent for one trial, samples it and releases it.
func (r *Runner) RunTrial(ctx context.Context, trial Trial) (res Result) {
	cfg := trial.Config
	res = Result{Group: trial.Group, Index: trial.Index, Params: cfg.SceneParams}
	if r.Progress != nil {
		r.Progress.BeginTrial(trial.Index)
		defer func() { r.Progress.EndTrial(res.Score, res.Scored, res.Err) }()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p, err := r.Registry.Get(cfg.Policy, rand.New(rand.NewSource(seed+1)))
	if err != nil {
		res.Err = err
		return res
	}

	opts := []rollout.Option{rollout.WithLogger(r.Log.With("trial", trial.Index))}
	if r.Progress != nil {
		opts = append(opts, rollout.WithObserver(r.Progress))
	}
	agent, err := rollout.New(cfg, r.loader(cfg), opts...)
	if err != nil {
		res.Err = err
		return res
	}
	defer func() { res.Err = multierr.Append(res.Err, agent.Finish()) }()

	traj, err := agent.Sample(ctx, p, rollout.SampleOptions{Noisy: trial.Noisy})
	if err != nil {
		res.Err = err
		return res
	}
	res.Score, res.Scored = traj.Score, traj.Scored
	res.Metrics = traj.Metrics

	if trial.Save && r.Store != nil {
		if res.RunID, err = r.Store.Save(cfg, cfg.Policy.Name, traj); err != nil {
			res.Err = err
		}
	}
	return res
}
