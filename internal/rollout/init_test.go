package rollout_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/rollout"
)

var _ = Describe("Initializer", func() {
	var (
		cfg         *config.Config
		initializer *rollout.Initializer
	)

	BeforeEach(func() {
		cfg = quickConfig()
		initializer = rollout.NewInitializer(rand.New(rand.NewSource(42)))
	})

	It("returns only the agent position without objects", func() {
		cfg.X0 = []float64{0.2, -0.1, 0.5, 0.5}
		qpos, err := initializer.Init(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(qpos).To(Equal(dynamo.State{0.2, -0.1}))
	})

	It("samples objects and appends goal and reference markers", func() {
		cfg.NumObjects = 2
		cfg.GoalPoint = []float64{0.3, -0.3}
		qpos, err := initializer.Init(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(qpos).To(HaveLen(2 + 2*rollout.PoseSize + 6))

		goal := qpos[16:19]
		ref := qpos[19:22]
		Expect(goal).To(Equal(dynamo.State{0.3, -0.3, 0.1}))
		Expect(ref).To(Equal(dynamo.State{qpos[2], qpos[3], 0.1}))
	})

	It("copies object poses from x0 verbatim", func() {
		pose := []float64{0.1, 0.2, 0, 1, 0, 0, 0}
		cfg.X0 = append([]float64{0, 0, 0, 0}, pose...)
		cfg.NumObjects = 5
		qpos, err := initializer.Init(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect([]float64(qpos[2:])).To(Equal(pose))
	})

	DescribeTable("rejects malformed configurations",
		func(mutate func(*config.Config)) {
			mutate(cfg)
			_, err := initializer.Init(cfg)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		},
		Entry("short x0", func(c *config.Config) { c.X0 = []float64{0} }),
		Entry("partial object pose", func(c *config.Config) { c.X0 = []float64{0, 0, 0, 0, 1, 2, 3} }),
		Entry("goal without objects", func(c *config.Config) {
			c.NumObjects = 0
			c.GoalPoint = []float64{0, 0}
		}),
	)

	It("keeps sampled poses on the table with unit vertical-axis rotations", func() {
		poses := initializer.ObjectPoses(10000)
		Expect(poses).To(HaveLen(10000 * rollout.PoseSize))
		for i := 0; i < len(poses); i += rollout.PoseSize {
			p := poses[i : i+rollout.PoseSize]
			Expect(math.Abs(p[0])).To(BeNumerically("<=", rollout.PlacementRange))
			Expect(math.Abs(p[1])).To(BeNumerically("<=", rollout.PlacementRange))
			Expect(p[2]).To(BeZero())

			q := quat.Number{Real: p[3], Imag: p[4], Jmag: p[5], Kmag: p[6]}
			Expect(quat.Abs(q)).To(BeNumerically("~", 1, 1e-9))
			Expect(q.Imag).To(BeZero())
			Expect(q.Jmag).To(BeZero())
		}
	})

	It("is reproducible for a fixed seed", func() {
		cfg.NumObjects = 3
		a, err := rollout.NewInitializer(rand.New(rand.NewSource(7))).Init(cfg)
		Expect(err).NotTo(HaveOccurred())
		b, err := rollout.NewInitializer(rand.New(rand.NewSource(7))).Init(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})
})
