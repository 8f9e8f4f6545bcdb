package rollout_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/logging"
	"github.com/san-kum/lsdc/internal/rollout"
	"github.com/san-kum/lsdc/internal/sim"
	"github.com/san-kum/lsdc/internal/sim/simtest"
	"github.com/san-kum/lsdc/internal/viz"
)

var _ = Describe("Agent", func() {
	var (
		cfg      *config.Config
		loader   *simtest.Loader
		recorder *capturedRecording
		ctx      context.Context
	)

	newAgent := func(opts ...rollout.Option) *rollout.Agent {
		opts = append([]rollout.Option{
			rollout.WithLogger(zap.NewNop().Sugar()),
			rollout.WithRecorder(recorder.record),
		}, opts...)
		a, err := rollout.New(cfg, loader, opts...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Finish)
		return a
	}

	live := func() *simtest.Model { return loader.Models[liveModel] }

	BeforeEach(func() {
		cfg = quickConfig()
		recorder = &capturedRecording{}
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		loader = fakeLoader(cfg)
	})

	Describe("a zero-action data collection trial", func() {
		It("returns four sequences of length T with zero actions", func() {
			a := newAgent()
			traj, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(traj.X).To(HaveLen(5))
			Expect(traj.Xdot).To(HaveLen(5))
			Expect(traj.U).To(HaveLen(5))
			Expect(traj.Images).To(HaveLen(5))
			Expect(traj.X[0]).To(Equal(dynamo.Vec2{0, 0}))
			for _, u := range traj.U {
				Expect(u).To(Equal(dynamo.Control{0, 0}))
			}
			_, scored := a.FinalScore()
			Expect(scored).To(BeFalse())
		})

		Context("with an explicit agent start", func() {
			BeforeEach(func() {
				cfg.X0 = []float64{0.1, -0.2, 0, 0}
			})

			It("records the initial position at index 0", func() {
				a := newAgent()
				traj, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(traj.X[0]).To(Equal(dynamo.Vec2{0.1, -0.2}))
			})
		})
	})

	Describe("observation capture", func() {
		It("captures state and images before the action is applied", func() {
			a := newAgent()
			traj, err := a.Sample(ctx, &constCollector{u: dynamo.Control{1, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			for t := 0; t < cfg.T; t++ {
				Expect(traj.X[t][0]).To(BeNumerically("==", t))
				Expect(traj.Images[t].Pix[0]).To(BeEquivalentTo(t), "image %d", t)
				Expect(traj.U[t]).To(Equal(dynamo.Control{1, 0}))
			}
			Expect(traj.Xdot[0]).To(Equal(dynamo.Vec2{0, 0}))
			Expect(traj.Xdot[1]).To(Equal(dynamo.Vec2{1, 0}))
		})

		It("flips frames to a top-left origin", func() {
			a := newAgent()
			traj, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			img := traj.Images[0]
			Expect(img.Bounds().Dx()).To(Equal(cfg.ImageWidth))
			Expect(img.Bounds().Dy()).To(Equal(cfg.ImageHeight))
			bottom := (cfg.ImageHeight - 1) * img.Stride
			Expect(img.Pix[bottom+2]).To(BeEquivalentTo(255))
			Expect(img.Pix[2]).To(BeEquivalentTo(0))
			Expect(img.Pix[3]).To(BeEquivalentTo(255))
		})

		It("fails with a simulator error when the frame size is wrong", func() {
			a := newAgent()
			loader.Viewers[0].W = 3
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrSimulator))
		})

		Context("with the additional viewer", func() {
			BeforeEach(func() {
				cfg.AdditionalViewer = true
			})

			It("keeps one large frame per timestep and shares the camera pose", func() {
				a := newAgent()
				loader.Viewers[0].SetCamera(sim.Camera{ID: 3, Extent: 2})

				_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
				Expect(err).NotTo(HaveOccurred())

				large := a.LargeImages()
				Expect(large).To(HaveLen(cfg.T))
				Expect(large[0].Bounds().Dx()).To(Equal(cfg.LargeImageSize))
				Expect(loader.Viewers[1].Loops).To(Equal(cfg.T))
				Expect(loader.Viewers[1].Camera().ID).To(Equal(3))
			})
		})

		It("produces no large frames without the additional viewer", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.LargeImages()).To(BeEmpty())
			Expect(loader.Viewers).To(HaveLen(1))
		})

		It("skips recording when there are no frames", func() {
			cfg.Record = "empty.gif"
			logger, logs := logging.NewObservedLogger()
			a := newAgent(rollout.WithLogger(logger))
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.calls).To(Equal(0))
			Expect(logs.FilterMessage("nothing to record").Len()).To(Equal(1))
		})
	})

	Describe("settling", func() {
		BeforeEach(func() {
			cfg.SkipFirst = 3
			cfg.Substeps = 2
		})

		It("applies zero control for skip_first macro steps before recording", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{1, 1}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			m := live()
			Expect(m.Steps).To(Equal((3 + cfg.T) * 2))
			for i := 0; i < 6; i++ {
				Expect(m.Controls[i]).To(Equal(dynamo.Control{0, 0}))
			}
			for _, u := range m.Controls[6:] {
				Expect(u).To(Equal(dynamo.Control{1, 1}))
			}
		})
	})

	Describe("the position controller branch", func() {
		BeforeEach(func() {
			cfg.PosController = true
		})

		It("records the target increment but applies the action", func() {
			a := newAgent()
			c := &constCollector{u: dynamo.Control{0.5, 0}, inc: dynamo.Control{0.01, 0.02}}
			traj, err := a.Sample(ctx, c, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			for _, u := range traj.U {
				Expect(u).To(Equal(dynamo.Control{0.01, 0.02}))
			}
			for _, u := range live().Controls {
				Expect(u).To(Equal(dynamo.Control{0.5, 0}))
			}
		})
	})

	Describe("policy contract", func() {
		It("rejects a planner in data collection mode", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &fakePlanner{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})

		It("forwards the noisy flag and the image history", func() {
			a := newAgent()
			c := &constCollector{u: dynamo.Control{0, 0}}
			_, err := a.Sample(ctx, c, rollout.SampleOptions{Noisy: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.seen).To(HaveLen(cfg.T))
			for t, obs := range c.seen {
				Expect(obs.T).To(Equal(t))
				Expect(obs.Noisy).To(BeTrue())
				Expect(obs.Images).To(HaveLen(t + 1))
			}
		})

		It("aborts the trial when the policy fails", func() {
			a := newAgent()
			traj, err := a.Sample(ctx, &constCollector{err: errors.New("model diverged")}, rollout.SampleOptions{Save: true})
			Expect(err).To(MatchError(dynamo.ErrPolicy))
			Expect(traj).To(BeNil())
			Expect(a.Samples()).To(BeEmpty())

			var se *dynamo.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Phase).To(Equal(dynamo.PhaseRun))
			Expect(se.Step).To(Equal(0))
		})

		It("treats a malformed action as a policy error", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{1}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrPolicy))
		})
	})

	Describe("policy inputs", func() {
		It("keeps the recorded frames when the collector writes into its input", func() {
			a := newAgent()
			traj, err := a.Sample(ctx, &scribblingCollector{scribbler{u: dynamo.Control{0, 0}}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			for _, img := range traj.Images {
				Expect(img).NotTo(BeNil())
			}
		})
	})

	Describe("simulator failures", func() {
		It("reports the failing step", func() {
			a := newAgent()
			live().FailAtStep = 3
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrSimulator))

			var se *dynamo.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(2))
		})

		It("reports an initial state that does not fit the model as a configuration error", func() {
			a := newAgent()
			live().NQ = 9
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})
	})

	Describe("planning trials", func() {
		var (
			planner *fakePlanner
			vis     *countingVisualizer
		)

		BeforeEach(func() {
			cfg = planningConfig()
			cfg.Record = "trial.gif"
			planner = &fakePlanner{u: dynamo.Control{0, 0}, bundle: twoIterationBundle()}
			overlay := viz.NewOverlay()
			overlay.Size = 32
			overlay.Labels = false
			vis = &countingVisualizer{inner: overlay}
		})

		It("hands the planner the history and the live model", func() {
			a := newAgent(rollout.WithVisualizer(vis))
			traj, err := a.Sample(ctx, planner, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.U).To(HaveLen(cfg.T))

			Expect(planner.inputs).To(HaveLen(cfg.T))
			for t, in := range planner.inputs {
				Expect(in.T).To(Equal(t))
				Expect(in.X).To(HaveLen(t + 1))
				Expect(in.Xdot).To(HaveLen(t + 1))
				Expect(in.Model).To(BeIdenticalTo(live()))
			}
		})

		It("keeps the recorded history when the planner writes into its input", func() {
			a := newAgent(rollout.WithVisualizer(vis))
			traj, err := a.Sample(ctx, &scribbler{u: dynamo.Control{1, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(traj.X[0]).To(Equal(dynamo.Vec2{0, 0}))
			Expect(traj.Xdot[0]).To(Equal(dynamo.Vec2{0, 0}))
			Expect(traj.X[4]).To(Equal(dynamo.Vec2{4, 0}))
			for _, img := range traj.Images {
				Expect(img).NotTo(BeNil())
			}
		})

		It("scores the trial against the goal", func() {
			a := newAgent(rollout.WithVisualizer(vis))
			live().SiteXYZ = []float64{0.3, 0.4, 0.1}
			traj, err := a.Sample(ctx, planner, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			score, ok := a.FinalScore()
			Expect(ok).To(BeTrue())
			Expect(score).To(BeNumerically("~", 0.5, 1e-12))
			Expect(traj.Scored).To(BeTrue())
			Expect(traj.Score).To(Equal(score))
		})

		It("annotates every iteration and exports the overlays", func() {
			a := newAgent(rollout.WithVisualizer(vis))
			_, err := a.Sample(ctx, planner, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(vis.calls).To(Equal(cfg.T))
			Expect(a.AnnotatedImages()).To(HaveLen(2 * cfg.T))
			Expect(recorder.calls).To(Equal(1))
			Expect(recorder.path).To(Equal("trial.gif"))
			Expect(recorder.frames).To(HaveLen(2 * cfg.T))
			Expect(recorder.frames[0].Bounds().Dx()).To(Equal(32))
		})

		It("exports raw frames when visualization is off", func() {
			cfg.Visualize = false
			a := newAgent(rollout.WithVisualizer(vis))
			_, err := a.Sample(ctx, planner, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(vis.calls).To(Equal(0))
			Expect(recorder.frames).To(HaveLen(cfg.T))
		})

		It("rejects a malformed bundle", func() {
			planner.bundle = &viz.Bundle{
				Positions: [][][][2]float64{{{{1, 1}}}},
				Ranking:   [][]int{{4}},
			}
			a := newAgent(rollout.WithVisualizer(vis))
			_, err := a.Sample(ctx, planner, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrPolicy))
		})

		It("propagates planner failures", func() {
			planner.failAt = 2
			planner.failErr = errors.New("timeout")
			a := newAgent(rollout.WithVisualizer(vis))
			_, err := a.Sample(ctx, planner, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrPolicy))
			Expect(recorder.calls).To(Equal(0))
		})

		It("rejects a collector", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})

		Context("without the additional viewer", func() {
			BeforeEach(func() {
				cfg.AdditionalViewer = false
			})

			It("skips visualization and export", func() {
				a := newAgent(rollout.WithVisualizer(vis))
				_, err := a.Sample(ctx, planner, rollout.SampleOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(vis.calls).To(Equal(0))
				Expect(recorder.calls).To(Equal(0))
				Expect(a.AnnotatedImages()).To(BeEmpty())
			})
		})

		Context("as a random baseline", func() {
			BeforeEach(func() {
				cfg.RandomBaseline = true
			})

			It("drives a collector, scores and exports raw frames", func() {
				a := newAgent(rollout.WithVisualizer(vis))
				_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
				Expect(err).NotTo(HaveOccurred())

				_, ok := a.FinalScore()
				Expect(ok).To(BeTrue())
				Expect(vis.calls).To(Equal(0))
				Expect(recorder.frames).To(HaveLen(cfg.T))
			})
		})
	})

	Describe("recording in data collection", func() {
		BeforeEach(func() {
			cfg.Record = "collect.gif"
			cfg.AdditionalViewer = true
		})

		It("writes the raw large frames", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.calls).To(Equal(1))
			Expect(recorder.frames).To(HaveLen(cfg.T))
		})

		It("writes to the per-trial path when one is given", func() {
			a := newAgent()
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{Record: "collect_001.gif"})
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.path).To(Equal("collect_001.gif"))
		})
	})

	Describe("sample bookkeeping", func() {
		It("keeps saved trajectories and notifies observers", func() {
			obs := &stepObserver{}
			a := newAgent(rollout.WithObserver(obs))
			c := &constCollector{u: dynamo.Control{0.1, 0}}

			_, err := a.Sample(ctx, c, rollout.SampleOptions{Save: true})
			Expect(err).NotTo(HaveOccurred())
			_, err = a.Sample(ctx, c, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = a.Sample(ctx, c, rollout.SampleOptions{Save: true, Verbose: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Samples()).To(HaveLen(2))
			Expect(obs.steps).To(HaveLen(3 * cfg.T))
			Expect(obs.steps[:cfg.T]).To(Equal([]int{0, 1, 2, 3, 4}))
			Expect(obs.us[0]).To(Equal(dynamo.Control{0.1, 0}))
		})

		It("notifies observers before the action is applied", func() {
			obs := &stepObserver{}
			a := newAgent(rollout.WithObserver(obs))
			live().FailAtStep = 3
			_, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrSimulator))
			Expect(obs.steps).To(Equal([]int{0, 1, 2}))
		})

		It("computes trajectory metrics", func() {
			a := newAgent()
			traj, err := a.Sample(ctx, &constCollector{u: dynamo.Control{0.1, 0}}, rollout.SampleOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Metrics).To(HaveKeyWithValue("path_length", BeNumerically("~", 0.4, 1e-9)))
			Expect(traj.Metrics).To(HaveKey("control_effort"))
		})

		It("stops between timesteps when the context is cancelled", func() {
			a := newAgent()
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := a.Sample(cctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("serializes concurrent trials", func() {
			a := newAgent()
			var wg sync.WaitGroup
			errs := make([]error, 4)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					_, errs[i] = a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{Save: true})
				}(i)
			}
			wg.Wait()
			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(a.Samples()).To(HaveLen(4))
			Expect(live().Steps).To(Equal(4 * cfg.T))
		})
	})

	Describe("lifecycle", func() {
		BeforeEach(func() {
			cfg.AdditionalViewer = true
		})

		It("starts both viewers and releases them once", func() {
			a, err := rollout.New(cfg, loader)
			Expect(err).NotTo(HaveOccurred())
			Expect(loader.Viewers).To(HaveLen(2))
			for _, v := range loader.Viewers {
				Expect(v.Started).To(BeTrue())
			}

			Expect(a.Finish()).To(Succeed())
			Expect(a.Finish()).To(Succeed())
			for _, v := range loader.Viewers {
				Expect(v.Finished).To(BeTrue())
			}

			_, err = a.Sample(ctx, &constCollector{u: dynamo.Control{0, 0}}, rollout.SampleOptions{})
			Expect(err).To(MatchError(dynamo.ErrSimulator))
		})

		It("combines release errors", func() {
			a, err := rollout.New(cfg, loader)
			Expect(err).NotTo(HaveOccurred())
			loader.Viewers[0].FinishErr = errors.New("small")
			loader.Viewers[1].FinishErr = errors.New("large")

			err = a.Finish()
			Expect(multierr.Errors(err)).To(HaveLen(2))
			Expect(loader.Viewers[0].Finished).To(BeTrue())
		})

		It("releases the small viewer when the large one cannot start", func() {
			fl := &failingLoader{Loader: loader, failAt: 1}
			_, err := rollout.New(cfg, fl)
			Expect(err).To(MatchError(dynamo.ErrSimulator))
			Expect(loader.Viewers).To(HaveLen(1))
			Expect(loader.Viewers[0].Finished).To(BeTrue())
		})

		It("fails on a model that cannot be loaded", func() {
			loader.LoadErr = errors.New("bad xml")
			_, err := rollout.New(cfg, loader)
			Expect(err).To(MatchError(dynamo.ErrSimulator))
			Expect(loader.Viewers).To(BeEmpty())
		})

		It("rejects an invalid configuration", func() {
			cfg.T = 0
			_, err := rollout.New(cfg, loader)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})
	})
})
