package physics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scene describes a pushing world: one actuated point agent sliding on a
// table with Objects.Count free bodies and, optionally, two marker bodies
// (goal and reference) that are positioned but never simulated.
type Scene struct {
	Name        string      `yaml:"name"`
	Timestep    float64     `yaml:"timestep"`
	Integrator  string      `yaml:"integrator"`
	Arena       float64     `yaml:"arena"`
	Agent       AgentSpec   `yaml:"agent"`
	Objects     ObjectSpec  `yaml:"objects"`
	Contact     ContactSpec `yaml:"contact"`
	Markers     bool        `yaml:"markers"`
	ShowMarkers bool        `yaml:"show_markers"`
}

type AgentSpec struct {
	Radius  float64 `yaml:"radius"`
	Mass    float64 `yaml:"mass"`
	Damping float64 `yaml:"damping"`
	Gear    float64 `yaml:"gear"`
}

type ObjectSpec struct {
	Count          int     `yaml:"count"`
	Radius         float64 `yaml:"radius"`
	Mass           float64 `yaml:"mass"`
	Inertia        float64 `yaml:"inertia"`
	Friction       float64 `yaml:"friction"`
	AngularDamping float64 `yaml:"angular_damping"`
}

type ContactSpec struct {
	Stiffness float64 `yaml:"stiffness"`
	Damping   float64 `yaml:"damping"`
}

func DefaultScene() Scene {
	return Scene{
		Name:       "pusher",
		Timestep:   0.005,
		Integrator: "rk4",
		Arena:      0.5,
		Agent: AgentSpec{
			Radius:  0.03,
			Mass:    1.0,
			Damping: 8.0,
			Gear:    10.0,
		},
		Objects: ObjectSpec{
			Count:          1,
			Radius:         0.06,
			Mass:           0.5,
			Inertia:        0.001,
			Friction:       6.0,
			AngularDamping: 0.01,
		},
		Contact: ContactSpec{
			Stiffness: 2000,
			Damping:   20,
		},
		Markers:     true,
		ShowMarkers: true,
	}
}

// Builtin scenes, addressable as "builtin:<name>" model paths.
var Builtin = map[string]func() Scene{
	"pusher": DefaultScene,
	"pusher_nomarkers": func() Scene {
		s := DefaultScene()
		s.Name = "pusher_nomarkers"
		s.ShowMarkers = false
		return s
	},
	"pusher_plain": func() Scene {
		s := DefaultScene()
		s.Name = "pusher_plain"
		s.Markers = false
		s.ShowMarkers = false
		return s
	},
}

const builtinPrefix = "builtin:"

// LoadScene reads a YAML scene file on top of DefaultScene, or resolves a
// builtin scene name.
func LoadScene(path string) (Scene, error) {
	if name, ok := strings.CutPrefix(path, builtinPrefix); ok {
		fn, ok := Builtin[name]
		if !ok {
			return Scene{}, fmt.Errorf("unknown builtin scene: %s", name)
		}
		return fn(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, err
	}
	scene := DefaultScene()
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return Scene{}, fmt.Errorf("parse scene %s: %w", path, err)
	}
	if err := scene.Validate(); err != nil {
		return Scene{}, fmt.Errorf("scene %s: %w", path, err)
	}
	return scene, nil
}

func (s Scene) Validate() error {
	if s.Timestep <= 0 {
		return fmt.Errorf("timestep must be positive, got %f", s.Timestep)
	}
	if s.Arena <= 0 {
		return fmt.Errorf("arena must be positive, got %f", s.Arena)
	}
	if s.Agent.Mass <= 0 || s.Objects.Mass <= 0 {
		return fmt.Errorf("masses must be positive")
	}
	if s.Objects.Count < 0 {
		return fmt.Errorf("object count must be non-negative, got %d", s.Objects.Count)
	}
	if s.Objects.Inertia <= 0 {
		return fmt.Errorf("object inertia must be positive")
	}
	return nil
}
