package rollout

import (
	"context"
	"errors"
	"image"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/metrics"
	"github.com/san-kum/lsdc/internal/policy"
)

// Sample runs one trial with p and returns its trajectory. Any failure
// aborts the trial and no partial trajectory is returned.
func (a *Agent) Sample(ctx context.Context, p policy.Policy, opts SampleOptions) (*Trajectory, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished {
		return nil, dynamo.Simulatorf("agent is finished")
	}
	collector, planner, err := a.resolvePolicy(p)
	if err != nil {
		return nil, err
	}

	a.largeImages = nil
	a.annotated = nil
	a.score, a.scored = 0, false

	if err := a.reset(); err != nil {
		return nil, &dynamo.StepError{Phase: dynamo.PhaseInit, Wrapped: err}
	}
	a.log.Infow("trial start", "T", a.cfg.T, "policy", p.Kind().String(), "noisy", opts.Noisy)

	if err := a.settle(ctx); err != nil {
		return nil, err
	}

	traj := newTrajectory(a.cfg.T)
	for t := 0; t < a.cfg.T; t++ {
		if err := ctx.Err(); err != nil {
			return nil, &dynamo.StepError{Phase: dynamo.PhaseRun, Step: t, Wrapped: err}
		}
		if err := a.step(ctx, t, traj, collector, planner, opts); err != nil {
			return nil, &dynamo.StepError{Phase: dynamo.PhaseRun, Step: t, Wrapped: err}
		}
	}

	if a.cfg.Evaluates() {
		score, err := metrics.Evaluate(a.model, a.cfg.GoalPoint)
		if err != nil {
			return nil, &dynamo.StepError{Phase: dynamo.PhaseEvaluate, Step: a.cfg.T, Wrapped: err}
		}
		a.score, a.scored = score, true
		traj.Score, traj.Scored = score, true
		a.log.Infow("trial scored", "goal_distance", score)
	}

	path := opts.Record
	if path == "" {
		path = a.cfg.Record
	}
	if path != "" {
		if err := a.record(path); err != nil {
			return nil, &dynamo.StepError{Phase: dynamo.PhaseExport, Step: a.cfg.T, Wrapped: err}
		}
	}

	traj.Metrics = metrics.Summarize(traj.X, traj.U, a.metrics...)
	if opts.Save {
		a.samples = append(a.samples, traj)
	}
	a.log.Infow("trial done", "steps", traj.Len(), "metrics", traj.Metrics)
	return traj, nil
}

// resolvePolicy checks that p has the call shape the configuration asks
// for.
func (a *Agent) resolvePolicy(p policy.Policy) (policy.Collector, policy.Planner, error) {
	if p == nil {
		return nil, nil, dynamo.Configf("no policy given")
	}
	if a.cfg.Collects() {
		c, ok := p.(policy.Collector)
		if !ok || p.Kind() != policy.KindCollector {
			return nil, nil, dynamo.Configf("configuration expects a collector, got a %s", p.Kind())
		}
		return c, nil, nil
	}
	pl, ok := p.(policy.Planner)
	if !ok || p.Kind() != policy.KindPlanner {
		return nil, nil, dynamo.Configf("configuration expects a planner, got a %s", p.Kind())
	}
	return nil, pl, nil
}

// reset writes the initial qpos, zeroes qvel and binds the cameras.
func (a *Agent) reset() error {
	qpos, err := a.init.Init(a.cfg)
	if err != nil {
		return err
	}
	if err := a.model.SetPosition(qpos); err != nil {
		return modelError(err)
	}
	qvel := make(dynamo.State, len(a.model.Velocity()))
	if err := a.model.SetVelocity(qvel); err != nil {
		return modelError(err)
	}

	if err := a.small.SetModel(a.noMarkers); err != nil {
		return dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if a.large != nil {
		if err := a.large.SetModel(a.model); err != nil {
			return dynamo.Classify(dynamo.ErrSimulator, err)
		}
		a.large.SetCamera(a.small.Camera())
	}
	return nil
}

// modelError reports a qpos/qvel that does not fit the model as a
// configuration problem.
func modelError(err error) error {
	if errors.Is(err, dynamo.ErrDimensionMismatch) {
		return dynamo.Configf("initial state does not fit the model: %v", err)
	}
	return dynamo.Classify(dynamo.ErrSimulator, err)
}

func (a *Agent) settle(ctx context.Context) error {
	zero := make(dynamo.Control, policy.ActionDim)
	for t := 0; t < a.cfg.SkipFirst; t++ {
		if err := ctx.Err(); err != nil {
			return &dynamo.StepError{Phase: dynamo.PhaseSettle, Step: t, Wrapped: err}
		}
		if err := a.apply(zero); err != nil {
			return &dynamo.StepError{Phase: dynamo.PhaseSettle, Step: t, Wrapped: err}
		}
	}
	if a.cfg.SkipFirst > 0 {
		a.log.Debugw("scene settled", "steps", a.cfg.SkipFirst*a.cfg.Substeps)
	}
	return nil
}

// apply sets u and advances the live model by the configured substeps.
func (a *Agent) apply(u dynamo.Control) error {
	if err := a.model.SetControl(u); err != nil {
		return dynamo.Classify(dynamo.ErrSimulator, err)
	}
	for s := 0; s < a.cfg.Substeps; s++ {
		if err := a.model.Step(); err != nil {
			return dynamo.Classify(dynamo.ErrSimulator, err)
		}
	}
	return nil
}

func (a *Agent) step(ctx context.Context, t int, traj *Trajectory, c policy.Collector, p policy.Planner, opts SampleOptions) error {
	traj.X[t] = a.model.Position().Planar()
	traj.Xdot[t] = a.model.Velocity().Planar()

	if a.large != nil {
		if err := a.large.LoopOnce(); err != nil {
			return dynamo.Classify(dynamo.ErrSimulator, err)
		}
	}

	small, large, err := a.captureObservations()
	if err != nil {
		return err
	}
	traj.Images[t] = small
	if large != nil {
		a.largeImages = append(a.largeImages, large)
	}

	var applied, recorded dynamo.Control
	if c != nil {
		applied, recorded, err = a.collect(ctx, t, traj, c, opts)
	} else {
		applied, err = a.plan(ctx, t, traj, p, large)
		recorded = applied
	}
	if err != nil {
		return err
	}

	traj.U[t] = recorded.Clone()
	for _, o := range a.observers {
		o.OnStep(t, traj.X[t], traj.Xdot[t], traj.U[t].Clone())
	}
	if opts.Verbose {
		a.log.Debugw("step", "t", t, "x", traj.X[t], "xdot", traj.Xdot[t], "u", applied, "recorded", recorded)
	}

	return a.apply(applied)
}

func (a *Agent) collect(ctx context.Context, t int, traj *Trajectory, c policy.Collector, opts SampleOptions) (applied, recorded dynamo.Control, err error) {
	act, err := c.Act(ctx, policy.Observation{
		X:      traj.X[t],
		Xdot:   traj.Xdot[t],
		Images: history(traj.Images, t),
		T:      t,
		Noisy:  opts.Noisy,
	})
	if err != nil {
		return nil, nil, dynamo.Classify(dynamo.ErrPolicy, err)
	}
	if err := policy.CheckAction(act.U, policy.ActionDim); err != nil {
		return nil, nil, err
	}
	if !a.cfg.PosController {
		return act.U, act.U, nil
	}
	if err := policy.CheckAction(act.TargetInc, policy.ActionDim); err != nil {
		return nil, nil, dynamo.Policyf("target increment: %v", err)
	}
	return act.U, act.TargetInc, nil
}

func (a *Agent) plan(ctx context.Context, t int, traj *Trajectory, p policy.Planner, large *image.NRGBA) (dynamo.Control, error) {
	d, err := p.Plan(ctx, policy.PlanningInput{
		X:      history(traj.X, t),
		Xdot:   history(traj.Xdot, t),
		Images: history(traj.Images, t),
		T:      t,
		Model:  a.model,
	})
	if err != nil {
		return nil, dynamo.Classify(dynamo.ErrPolicy, err)
	}
	if err := policy.CheckAction(d.U, policy.ActionDim); err != nil {
		return nil, err
	}

	if a.cfg.Visualize && large != nil && d.Bundle != nil && a.visualizer != nil {
		frames, err := a.visualizer.Render(large, d.Bundle)
		if err != nil {
			return nil, dynamo.Classify(dynamo.ErrPolicy, err)
		}
		a.annotated = append(a.annotated, frames...)
	}
	return d.U, nil
}

func (a *Agent) record(path string) error {
	frames := a.exportFrames()
	if len(frames) == 0 {
		a.log.Infow("nothing to record", "path", path)
		return nil
	}
	if err := a.recorder(frames, path); err != nil {
		return err
	}
	a.log.Infow("trial recorded", "path", path, "frames", len(frames))
	return nil
}

// history copies entries 0..t so a policy cannot rewrite recorded steps.
func history[E any](s []E, t int) []E {
	return append([]E(nil), s[:t+1]...)
}
