package rollout_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/physics"
	"github.com/san-kum/lsdc/internal/policy"
	"github.com/san-kum/lsdc/internal/rollout"
)

var _ = Describe("Agent on the built-in pushing scene", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		cfg.T = 4
		cfg.Substeps = 2
		cfg.SkipFirst = 1
		cfg.ImageWidth, cfg.ImageHeight = 16, 12
		cfg.AdditionalViewer = false
		cfg.Seed = 3
	})

	It("collects a zero-action trajectory", func() {
		cfg.X0 = []float64{0, 0, 0, 0, 0.3, 0.3, 0, 1, 0, 0, 0}
		a, err := rollout.New(cfg, physics.LoaderFor(cfg))
		Expect(err).NotTo(HaveOccurred())
		defer a.Finish()

		traj, err := a.Sample(context.Background(), policy.Zero{}, rollout.SampleOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(traj.Len()).To(Equal(4))
		for t := range traj.X {
			Expect(traj.X[t]).To(Equal(dynamo.Vec2{0, 0}))
			Expect(traj.Images[t].Bounds().Dx()).To(Equal(16))
			Expect(traj.Images[t].Bounds().Dy()).To(Equal(12))
		}
	})

	It("plans toward a goal and scores the object", func() {
		cfg.DataCollection = false
		cfg.GoalPoint = []float64{0.2, 0.2}
		cfg.AdditionalViewer = true
		cfg.LargeImageSize = 32

		a, err := rollout.New(cfg, physics.LoaderFor(cfg))
		Expect(err).NotTo(HaveOccurred())
		defer a.Finish()

		planner := &fakePlanner{u: dynamo.Control{0.5, 0.5}, bundle: twoIterationBundle()}
		traj, err := a.Sample(context.Background(), planner, rollout.SampleOptions{})
		Expect(err).NotTo(HaveOccurred())

		Expect(traj.X[3][0]).To(BeNumerically(">", traj.X[0][0]))
		Expect(a.LargeImages()).To(HaveLen(4))
		Expect(a.AnnotatedImages()).To(HaveLen(8))

		score, ok := a.FinalScore()
		Expect(ok).To(BeTrue())
		Expect(score).To(BeNumerically(">=", 0))
		Expect(score).To(BeNumerically("<", 1))
	})
})
