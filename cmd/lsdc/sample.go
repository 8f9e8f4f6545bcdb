package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/lsdc/internal/automation"
	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/physics"
	"github.com/san-kum/lsdc/internal/policy"
	"github.com/san-kum/lsdc/internal/rollout"
	"github.com/san-kum/lsdc/internal/storage"
	"github.com/san-kum/lsdc/internal/tui"
)

var (
	configFile string
	preset     string
	policyName string
	plannerURL string
	seqLen     int
	substeps   int
	skipFirst  int
	seed       int64
	numObjects int
	goal       []float64
	record     string
	noViewer   bool
	noisy      bool
	save       bool
	trials     int
	showTUI    bool
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "run trials with one agent",
		RunE:  runSample,
	}
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "start from a named preset")
	f.StringVar(&policyName, "policy", config.DefaultPolicy, "policy name")
	f.StringVar(&plannerURL, "url", "", "planner url for the http policy (LSDC_PLANNER_URL)")
	f.IntVarP(&seqLen, "steps", "T", config.DefaultT, "timesteps per trial")
	f.IntVar(&substeps, "substeps", config.DefaultSubsteps, "simulator steps per timestep")
	f.IntVar(&skipFirst, "skip-first", config.DefaultSkipFirst, "settling timesteps before recording")
	f.Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	f.IntVar(&numObjects, "objects", config.DefaultNumObjects, "number of objects")
	f.Float64SliceVar(&goal, "goal", nil, "goal point x,y (planning mode)")
	f.StringVar(&record, "record", "", "write a gif of the trial")
	f.BoolVar(&noViewer, "no-viewer", false, "disable the large camera")
	f.BoolVar(&noisy, "noisy", false, "add collector noise")
	f.BoolVar(&save, "save", false, "store trajectories under --data")
	f.IntVarP(&trials, "trials", "n", 1, "number of trials")
	f.BoolVar(&showTUI, "tui", false, "show live progress")
	return cmd
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy.Name = policyName
	}
	if flags.Changed("url") {
		cfg.Policy.URL = plannerURL
	} else if env := os.Getenv("LSDC_PLANNER_URL"); env != "" && cfg.Policy.URL == "" {
		cfg.Policy.URL = env
	}
	if flags.Changed("steps") {
		cfg.T = seqLen
	}
	if flags.Changed("substeps") {
		cfg.Substeps = substeps
	}
	if flags.Changed("skip-first") {
		cfg.SkipFirst = skipFirst
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("objects") {
		cfg.NumObjects = numObjects
	}
	if flags.Changed("goal") {
		cfg.GoalPoint = goal
		cfg.DataCollection = false
		// A collector scored against the goal runs as a baseline.
		p, err := policy.NewRegistry().Get(cfg.Policy, rand.New(rand.NewSource(1)))
		if err != nil {
			return nil, err
		}
		cfg.RandomBaseline = p.Kind() == policy.KindCollector
	}
	if flags.Changed("record") {
		cfg.Record = record
	}
	if noViewer {
		cfg.AdditionalViewer = false
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg, cfg.Validate()
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	var st *storage.Store
	if save {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	p, err := policy.NewRegistry().Get(cfg.Policy, rand.New(rand.NewSource(cfg.Seed+1)))
	if err != nil {
		return err
	}

	work := func(ctx context.Context, progress automation.Progress) ([]automation.Result, error) {
		opts := []rollout.Option{rollout.WithLogger(log)}
		if progress != nil {
			opts = append(opts, rollout.WithObserver(progress))
		}
		agent, err := rollout.New(cfg, physics.LoaderFor(cfg), opts...)
		if err != nil {
			return nil, err
		}
		defer agent.Finish()

		results := make([]automation.Result, 0, trials)
		for i := 0; i < trials; i++ {
			if progress != nil {
				progress.BeginTrial(i)
			}
			res := automation.Result{Group: "sample", Index: i}
			traj, err := agent.Sample(ctx, p, rollout.SampleOptions{
				Verbose: verbose,
				Noisy:   noisy,
				Record:  automation.RecordPath(cfg.Record, i, trials),
			})
			if err == nil {
				res.Score, res.Scored, res.Metrics = traj.Score, traj.Scored, traj.Metrics
				if st != nil {
					res.RunID, err = st.Save(cfg, cfg.Policy.Name, traj)
				}
			}
			res.Err = err
			if progress != nil {
				progress.EndTrial(res.Score, res.Scored, err)
			}
			results = append(results, res)
			if err != nil {
				return results, err
			}
		}
		return results, nil
	}

	start := time.Now()
	var results []automation.Result
	if showTUI {
		err = tui.Run(cmd.Context(), tui.NewProgress("lsdc sample", trials, cfg.T, cfg.GoalPoint),
			func(ctx context.Context, r *tui.Reporter) error {
				var err error
				results, err = work(ctx, r)
				return err
			})
	} else {
		results, err = work(cmd.Context(), nil)
	}
	printResults(results, time.Since(start))
	return err
}

func printResults(results []automation.Result, elapsed time.Duration) {
	if len(results) == 0 {
		return
	}
	for _, r := range results {
		line := fmt.Sprintf("trial %d", r.Index)
		switch {
		case r.Err != nil:
			line += " " + tui.StatusFailed.Render("failed")
		case r.Scored:
			line += " " + tui.MetricLabel.Render("goal distance ") + tui.MetricValue.Render(fmt.Sprintf("%.4f", r.Score))
		default:
			line += " " + tui.StatusDone.Render("ok")
		}
		if r.RunID != "" {
			line += " " + tui.Subtle.Render(r.RunID)
		}
		fmt.Println(line)
	}

	s := automation.Summarize(results)
	fmt.Printf("\n%s %d trials in %v", tui.Title.Render("done"), s.Trials, elapsed.Round(time.Millisecond))
	if s.Failed > 0 {
		fmt.Printf(", %s", tui.StatusFailed.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Println()
	if s.Scored > 0 {
		fmt.Printf("  %s %.4f ± %.4f (best %.4f)\n", tui.MetricLabel.Render("goal distance"), s.MeanScore, s.StdScore, s.BestScore)
	}
	for _, name := range sortedKeys(s.Metrics) {
		fmt.Printf("  %s %.6f\n", tui.MetricLabel.Render(name), s.Metrics[name])
	}
}
