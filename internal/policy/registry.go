package policy

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
)

type Factory func(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error)

type Registry struct {
	policies map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{policies: make(map[string]Factory)}

	r.policies["zero"] = func(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error) {
		return Zero{}, nil
	}
	r.policies["random"] = func(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error) {
		return WithNoise(NewRandom(cfg.Noise, rng), cfg.Noise, rng), nil
	}
	r.policies["scripted"] = func(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error) {
		if len(cfg.Script) == 0 {
			return nil, dynamo.Configf("scripted policy needs a script")
		}
		return WithNoise(NewScripted(cfg.Script), cfg.Noise, rng), nil
	}
	r.policies["poscontroller"] = func(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error) {
		pc := NewPosController(cfg.Kp, cfg.Ki, cfg.Kd, cfg.MaxStep, rng)
		if cfg.Repeat > 0 {
			pc.Repeat = cfg.Repeat
		}
		return WithNoise(pc, cfg.Noise, rng), nil
	}
	r.policies["http"] = func(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error) {
		if cfg.URL == "" {
			return nil, dynamo.Configf("http policy needs a url")
		}
		return NewHTTPPlanner(cfg.URL, cfg.Timeout), nil
	}

	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.policies[name] = f
}

func (r *Registry) Get(cfg config.PolicyConfig, rng *rand.Rand) (Policy, error) {
	fn, ok := r.policies[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown policy: %s", dynamo.ErrConfiguration, cfg.Name)
	}
	return fn(cfg, rng)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
