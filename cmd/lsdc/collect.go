package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/lsdc/internal/automation"
	"github.com/san-kum/lsdc/internal/storage"
	"github.com/san-kum/lsdc/internal/tui"
)

var noStore bool

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect [scenario.yaml]",
		Short: "run a scenario of trial groups and store the trajectories",
		Args:  cobra.ExactArgs(1),
		RunE:  runCollect,
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not store trajectories")
	cmd.Flags().BoolVar(&showTUI, "tui", false, "show live progress")
	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	trials, err := sc.Expand()
	if err != nil {
		return err
	}

	runner := automation.NewRunner()
	runner.Log = log
	if !noStore {
		runner.Store = storage.New(dataDir)
		if err := runner.Store.Init(); err != nil {
			return err
		}
	}

	steps := 0
	if len(trials) > 0 {
		steps = trials[0].Config.T
	}

	start := time.Now()
	var results []automation.Result
	if showTUI {
		err = tui.Run(cmd.Context(), tui.NewProgress(sc.Name, len(trials), steps, trials[0].Config.GoalPoint),
			func(ctx context.Context, r *tui.Reporter) error {
				runner.Progress = r
				var err error
				results, err = runner.RunScenario(ctx, sc)
				return err
			})
	} else {
		results, err = runner.RunScenario(cmd.Context(), sc)
	}

	names, groups := automation.ByGroup(results)
	for _, name := range names {
		s := automation.Summarize(groups[name])
		fmt.Printf("%s %d trials", tui.Title.Render(name), s.Trials)
		if s.Failed > 0 {
			fmt.Printf(", %s", tui.StatusFailed.Render(fmt.Sprintf("%d failed", s.Failed)))
		}
		if s.Scored > 0 {
			fmt.Printf(", %s %.4f ± %.4f", tui.MetricLabel.Render("goal distance"), s.MeanScore, s.StdScore)
		}
		fmt.Println()
	}
	fmt.Printf("\n%s %d trials in %v\n", tui.Title.Render(sc.Name), len(results), time.Since(start).Round(time.Millisecond))
	return err
}
