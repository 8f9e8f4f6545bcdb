package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/lsdc/internal/dynamo"
)

const (
	DefaultModel          = "builtin:pusher"
	DefaultModelNoMarkers = "builtin:pusher_nomarkers"
	DefaultT              = 15
	DefaultSkipFirst      = 0
	DefaultSubsteps       = 20
	DefaultImageSize      = 64
	DefaultChannels       = 3
	DefaultNumObjects     = 1
	DefaultLargeImageSize = 480
	DefaultPolicy         = "random"
)

// Config holds the hyperparameters of one rollout agent. It is read once
// and never changed while a trial runs.
type Config struct {
	Model          string `yaml:"filename"`
	ModelNoMarkers string `yaml:"filename_nomarkers"`

	T         int `yaml:"sequence_length"`
	SkipFirst int `yaml:"skip_first"`
	Substeps  int `yaml:"substeps"`

	ImageHeight    int `yaml:"image_height"`
	ImageWidth     int `yaml:"image_width"`
	ImageChannels  int `yaml:"image_channels"`
	LargeImageSize int `yaml:"large_image_size"`

	NumObjects int       `yaml:"num_objects"`
	GoalPoint  []float64 `yaml:"goal_point,omitempty"`
	X0         []float64 `yaml:"x0"`

	DataCollection   bool `yaml:"data_collection"`
	RandomBaseline   bool `yaml:"random_baseline"`
	AdditionalViewer bool `yaml:"additional_viewer"`
	PosController    bool `yaml:"poscontroller"`
	// Visualize draws candidate overlays in planning mode.
	Visualize bool   `yaml:"visualize"`
	Record    string `yaml:"record,omitempty"`

	Seed int64 `yaml:"seed"`

	Policy      PolicyConfig       `yaml:"policy"`
	SceneParams map[string]float64 `yaml:"scene_params,omitempty"`
}

type PolicyConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Noise is the action standard deviation of the random collector.
	Noise   float64 `yaml:"noise"`
	MaxStep float64 `yaml:"max_step"`
	// Repeat is how many steps the position controller holds a target.
	Repeat int         `yaml:"repeat,omitempty"`
	Kp     float64     `yaml:"kp"`
	Ki     float64     `yaml:"ki"`
	Kd     float64     `yaml:"kd"`
	Script [][]float64 `yaml:"script,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:            DefaultModel,
		ModelNoMarkers:   DefaultModelNoMarkers,
		T:                DefaultT,
		SkipFirst:        DefaultSkipFirst,
		Substeps:         DefaultSubsteps,
		ImageHeight:      DefaultImageSize,
		ImageWidth:       DefaultImageSize,
		ImageChannels:    DefaultChannels,
		LargeImageSize:   DefaultLargeImageSize,
		NumObjects:       DefaultNumObjects,
		X0:               []float64{0, 0, 0, 0},
		DataCollection:   true,
		AdditionalViewer: true,
		Visualize:        true,
		Policy: PolicyConfig{
			Name:    DefaultPolicy,
			Timeout: 30 * time.Second,
			Noise:   1.0,
			MaxStep: 0.05,
			Kp:      20,
			Ki:      0,
			Kd:      4,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, dynamo.Configf("parse %s: %v", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first malformed field as an ErrConfiguration.
func (c *Config) Validate() error {
	switch {
	case c.Model == "":
		return dynamo.Configf("filename is required")
	case c.ModelNoMarkers == "":
		return dynamo.Configf("filename_nomarkers is required")
	case c.T <= 0:
		return dynamo.Configf("sequence_length must be positive, got %d", c.T)
	case c.SkipFirst < 0:
		return dynamo.Configf("skip_first must be non-negative, got %d", c.SkipFirst)
	case c.Substeps <= 0:
		return dynamo.Configf("substeps must be positive, got %d", c.Substeps)
	case c.ImageHeight <= 0 || c.ImageWidth <= 0:
		return dynamo.Configf("image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	case c.ImageChannels != 3 && c.ImageChannels != 4:
		return dynamo.Configf("image_channels must be 3 or 4, got %d", c.ImageChannels)
	case c.AdditionalViewer && c.LargeImageSize <= 0:
		return dynamo.Configf("large_image_size must be positive, got %d", c.LargeImageSize)
	case c.NumObjects < 0:
		return dynamo.Configf("num_objects must be non-negative, got %d", c.NumObjects)
	case len(c.X0) < 2:
		return dynamo.Configf("x0 needs the agent position, got %d entries", len(c.X0))
	case c.GoalPoint != nil && len(c.GoalPoint) != 2:
		return dynamo.Configf("goal_point must have 2 entries, got %d", len(c.GoalPoint))
	case c.Evaluates() && c.GoalPoint == nil:
		return dynamo.Configf("goal_point is required outside data collection")
	case c.Policy.Repeat < 0:
		return dynamo.Configf("policy repeat must be non-negative, got %d", c.Policy.Repeat)
	}
	return nil
}

// Collects reports whether the agent drives a collector policy.
func (c *Config) Collects() bool {
	return c.DataCollection || c.RandomBaseline
}

// Evaluates reports whether trials end with a goal-distance score.
func (c *Config) Evaluates() bool {
	return !c.DataCollection
}

func (c *Config) HasGoal() bool {
	return len(c.GoalPoint) == 2
}

// ObjectCount is the number of free objects the scene needs: the poses in
// x0 when given, NumObjects otherwise.
func (c *Config) ObjectCount() int {
	if len(c.X0) > 4 {
		return (len(c.X0) - 4) / 7
	}
	return c.NumObjects
}

func (c *Config) Clone() *Config {
	out := *c
	out.GoalPoint = append([]float64(nil), c.GoalPoint...)
	out.X0 = append([]float64(nil), c.X0...)
	if c.SceneParams != nil {
		out.SceneParams = make(map[string]float64, len(c.SceneParams))
		for k, v := range c.SceneParams {
			out.SceneParams[k] = v
		}
	}
	if c.Policy.Script != nil {
		out.Policy.Script = make([][]float64, len(c.Policy.Script))
		for i, u := range c.Policy.Script {
			out.Policy.Script[i] = append([]float64(nil), u...)
		}
	}
	return &out
}
