package config

import "sort"

// Presets mirror the experiment variants the agent is run in.
var Presets = map[string]func() *Config{
	"data_collection": func() *Config {
		c := DefaultConfig()
		c.T = 15
		c.Substeps = 20
		c.NumObjects = 1
		return c
	},
	"poscontroller": func() *Config {
		c := DefaultConfig()
		c.PosController = true
		c.Policy.Name = "poscontroller"
		return c
	},
	"cem_control": func() *Config {
		c := DefaultConfig()
		c.DataCollection = false
		c.T = 15
		c.SkipFirst = 2
		c.GoalPoint = []float64{0.2, 0.2}
		c.Policy.Name = "http"
		c.Policy.URL = "http://localhost:8700"
		c.Record = "cem_control.gif"
		return c
	},
	"random_baseline": func() *Config {
		c := DefaultConfig()
		c.DataCollection = false
		c.RandomBaseline = true
		c.GoalPoint = []float64{0.2, 0.2}
		c.Record = "random_baseline.gif"
		return c
	},
	"quick": func() *Config {
		c := DefaultConfig()
		c.T = 5
		c.Substeps = 1
		c.AdditionalViewer = false
		c.Policy.Name = "zero"
		return c
	},
}

func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
