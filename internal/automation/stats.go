package automation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the results of a batch.
type Summary struct {
	Trials    int
	Failed    int
	Scored    int
	MeanScore float64
	StdScore  float64
	BestScore float64
	// Metrics holds the mean of every trajectory metric over successful
	// trials.
	Metrics map[string]float64
}

func Summarize(results []Result) Summary {
	s := Summary{Trials: len(results), BestScore: math.NaN(), Metrics: map[string]float64{}}

	var scores []float64
	metricVals := map[string][]float64{}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		if r.Scored {
			scores = append(scores, r.Score)
		}
		for name, v := range r.Metrics {
			metricVals[name] = append(metricVals[name], v)
		}
	}

	s.Scored = len(scores)
	if len(scores) > 0 {
		s.MeanScore, s.StdScore = stat.MeanStdDev(scores, nil)
		if len(scores) == 1 {
			s.StdScore = 0
		}
		sort.Float64s(scores)
		s.BestScore = scores[0]
	}
	for name, vals := range metricVals {
		s.Metrics[name] = stat.Mean(vals, nil)
	}
	return s
}

// ByGroup splits results by their group name, keeping order.
func ByGroup(results []Result) (names []string, groups map[string][]Result) {
	groups = make(map[string][]Result)
	for _, r := range results {
		if _, ok := groups[r.Group]; !ok {
			names = append(names, r.Group)
		}
		groups[r.Group] = append(groups[r.Group], r)
	}
	return names, groups
}
