package automation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/sim"
	"github.com/san-kum/lsdc/internal/sim/simtest"
	"github.com/san-kum/lsdc/internal/storage"
)

const sweepScenario = `
name: friction
base: quick
steps:
  - name: repeat
    repeat: 2
    save: true
    config:
      sequence_length: 3
      seed: 5
  - name: sweep
    config:
      record: sweep.gif
    sweep:
      param: object_friction
      min: 0.1
      max: 0.3
      steps: 3
`

func TestExpand(t *testing.T) {
	sc, err := ParseScenario([]byte(sweepScenario))
	if err != nil {
		t.Fatal(err)
	}
	trials, err := sc.Expand()
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 5 {
		t.Fatalf("got %d trials, want 5", len(trials))
	}

	for i, tr := range trials[:2] {
		if tr.Config.T != 3 {
			t.Errorf("trial %d: T = %d, want 3", i, tr.Config.T)
		}
		if tr.Config.Seed != int64(5+i) {
			t.Errorf("trial %d: seed = %d", i, tr.Config.Seed)
		}
		if !tr.Save || tr.Group != "repeat" {
			t.Errorf("trial %d: %+v", i, tr)
		}
		if tr.Config.Policy.Name != "zero" {
			t.Errorf("trial %d lost the base preset", i)
		}
	}

	want := []float64{0.1, 0.2, 0.3}
	for i, tr := range trials[2:] {
		if got := tr.Config.SceneParams["object_friction"]; math.Abs(got-want[i]) > 1e-12 {
			t.Errorf("sweep %d: object_friction = %f, want %f", i, got, want[i])
		}
		if tr.Config.T != 5 {
			t.Errorf("sweep %d: T = %d, want the preset's 5", i, tr.Config.T)
		}
	}
	if trials[2].Config.Record != "sweep_002.gif" || trials[4].Config.Record != "sweep_004.gif" {
		t.Errorf("records = %q, %q", trials[2].Config.Record, trials[4].Config.Record)
	}
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "steps: [1, 2"},
		{"no steps", "name: empty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScenario([]byte(tt.data)); !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestExpandInvalidOverride(t *testing.T) {
	sc, err := ParseScenario([]byte("steps:\n  - config:\n      sequence_length: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sc.Expand(); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("got %v", err)
	}
}

func TestSweepValues(t *testing.T) {
	if got := (&Sweep{Min: 2, Steps: 1}).Values(); len(got) != 1 || got[0] != 2 {
		t.Errorf("single step sweep = %v", got)
	}
	got := (&Sweep{Min: 0, Max: 1, Steps: 5}).Values()
	if len(got) != 5 || got[4] != 1 || got[2] != 0.5 {
		t.Errorf("sweep = %v", got)
	}
}

type progressLog struct {
	begun, steps int
	ended        []error
}

func (p *progressLog) BeginTrial(i int) { p.begun++ }
func (p *progressLog) OnStep(t int, x, xdot dynamo.Vec2, u dynamo.Control) {
	p.steps++
}
func (p *progressLog) EndTrial(score float64, scored bool, err error) {
	p.ended = append(p.ended, err)
}

func TestRunScenarioBuiltinScene(t *testing.T) {
	sc, err := ParseScenario([]byte(`
base: quick
steps:
  - repeat: 2
    save: true
    config:
      sequence_length: 3
      image_height: 16
      image_width: 16
      seed: 9
`))
	if err != nil {
		t.Fatal(err)
	}

	r := NewRunner()
	r.Store = storage.New(t.TempDir())
	progress := &progressLog{}
	r.Progress = progress

	results, err := r.RunScenario(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("trial %d: %v", i, res.Err)
		}
		if res.RunID == "" {
			t.Errorf("trial %d was not stored", i)
		}
		if _, ok := res.Metrics["path_length"]; !ok {
			t.Errorf("trial %d has no path_length metric", i)
		}
	}
	runs, err := r.Store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("store has %d runs, want 2", len(runs))
	}
	if progress.begun != 2 || progress.steps != 6 || len(progress.ended) != 2 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestRunScenarioContinuesAfterSimulatorFailure(t *testing.T) {
	sc, err := ParseScenario([]byte("base: quick\nsteps:\n  - repeat: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner()
	r.Loader = func(cfg *config.Config) sim.Loader {
		return &simtest.Loader{LoadErr: errors.New("model file is corrupt")}
	}

	results, err := r.RunScenario(context.Background(), sc)
	if err != nil {
		t.Fatalf("simulator failures should not stop the batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Err, dynamo.ErrSimulator) {
			t.Errorf("result error = %v", res.Err)
		}
	}
	if s := Summarize(results); s.Failed != 3 || s.Scored != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRunScenarioStopsOnConfigurationError(t *testing.T) {
	sc, err := ParseScenario([]byte("base: quick\nsteps:\n  - repeat: 3\n    config:\n      policy:\n        name: oracle\n"))
	if err != nil {
		t.Fatal(err)
	}
	results, err := NewRunner().RunScenario(context.Background(), sc)
	if !errors.Is(err, dynamo.ErrConfiguration) {
		t.Fatalf("got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("batch ran %d trials after a configuration error", len(results))
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Group: "a", Score: 0.1, Scored: true, Metrics: map[string]float64{"path_length": 1}},
		{Group: "a", Score: 0.3, Scored: true, Metrics: map[string]float64{"path_length": 3}},
		{Group: "b", Err: errors.New("boom")},
	}
	s := Summarize(results)
	if s.Trials != 3 || s.Failed != 1 || s.Scored != 2 {
		t.Errorf("counts = %+v", s)
	}
	if math.Abs(s.MeanScore-0.2) > 1e-12 || s.BestScore != 0.1 {
		t.Errorf("mean %f best %f", s.MeanScore, s.BestScore)
	}
	if math.Abs(s.StdScore-math.Sqrt(0.02)) > 1e-12 {
		t.Errorf("std = %f", s.StdScore)
	}
	if s.Metrics["path_length"] != 2 {
		t.Errorf("path_length mean = %f", s.Metrics["path_length"])
	}

	names, groups := ByGroup(results)
	if len(names) != 2 || names[0] != "a" || len(groups["a"]) != 2 {
		t.Errorf("groups = %v %v", names, groups)
	}

	if empty := Summarize(nil); !math.IsNaN(empty.BestScore) || empty.Scored != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestRecordPath(t *testing.T) {
	tests := []struct {
		path     string
		index, n int
		want     string
	}{
		{"", 3, 5, ""},
		{"run.gif", 0, 1, "run.gif"},
		{"run.gif", 2, 3, "run_002.gif"},
		{"out/run", 1, 2, "out/run_001"},
	}

	for _, tt := range tests {
		if got := RecordPath(tt.path, tt.index, tt.n); got != tt.want {
			t.Errorf("RecordPath(%q, %d, %d) = %q, want %q", tt.path, tt.index, tt.n, got, tt.want)
		}
	}
}
