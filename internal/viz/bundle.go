package viz

import (
	"github.com/san-kum/lsdc/internal/dynamo"
)

// Bundle holds the candidate paths a planner evaluated during one control
// step. Positions is indexed [candidate][iteration][step] and each point is
// (pixel row, pixel column) in the large camera frame. Ranking holds, per
// iteration, the best candidate first followed by the runner-ups; every
// candidate not listed is background.
//
// A Bundle is never modified by the engine or by Overlay.
type Bundle struct {
	Positions [][][][2]float64 `json:"positions"`
	Ranking   [][]int          `json:"ranking"`
	// Targets mirrors Positions; it is carried but not drawn.
	Targets [][][][2]float64 `json:"targets,omitempty"`
}

type Rank int

const (
	RankHidden Rank = iota
	RankBackground
	RankRunnerUp
	RankBest
)

func (r Rank) String() string {
	switch r {
	case RankBest:
		return "best"
	case RankRunnerUp:
		return "runner-up"
	case RankBackground:
		return "background"
	default:
		return "hidden"
	}
}

func (b *Bundle) Candidates() int { return len(b.Positions) }

func (b *Bundle) Iterations() int { return len(b.Ranking) }

// Validate checks that every candidate covers every ranked iteration and
// that rankings reference existing candidates.
func (b *Bundle) Validate() error {
	n := len(b.Positions)
	if n == 0 {
		return dynamo.Policyf("bundle has no candidates")
	}
	iters := len(b.Ranking)
	if iters == 0 {
		return dynamo.Policyf("bundle has no rankings")
	}
	for c, cand := range b.Positions {
		if len(cand) != iters {
			return dynamo.Policyf("candidate %d has %d iterations, ranking has %d", c, len(cand), iters)
		}
	}
	for i, ranked := range b.Ranking {
		if len(ranked) == 0 {
			return dynamo.Policyf("iteration %d has no best candidate", i)
		}
		for _, idx := range ranked {
			if idx < 0 || idx >= n {
				return dynamo.Policyf("iteration %d ranks candidate %d of %d", i, idx, n)
			}
		}
	}
	if b.Targets != nil {
		if len(b.Targets) != n {
			return dynamo.Policyf("targets cover %d candidates, positions %d", len(b.Targets), n)
		}
		for c := range b.Targets {
			if len(b.Targets[c]) != iters {
				return dynamo.Policyf("targets of candidate %d have %d iterations, ranking has %d", c, len(b.Targets[c]), iters)
			}
		}
	}
	return nil
}

// RankOf classifies candidate c at iteration iter. Unranked candidates
// whose index is not a multiple of 5 are hidden.
func (b *Bundle) RankOf(iter, c int) Rank {
	ranked := b.Ranking[iter]
	if ranked[0] == c {
		return RankBest
	}
	for _, idx := range ranked[1:] {
		if idx == c {
			return RankRunnerUp
		}
	}
	if c%5 == 0 {
		return RankBackground
	}
	return RankHidden
}
