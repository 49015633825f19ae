package aggregator

import (
	"math"

	"sales-coach-go/internal/types"
)

// Insight is the team-level view over a set of logged calls.
type Insight struct {
	TotalCalls       int                `json:"total_calls"`
	WinRate          float64            `json:"win_rate"`
	WinRateByType    map[string]float64 `json:"win_rate_by_type"`
	OutcomeCounts    map[string]int     `json:"outcome_counts"`
	AverageScores    map[string]float64 `json:"average_scores"`
	FeedbackFailures int                `json:"feedback_failures"`
}

func Aggregate(entries []types.LogEntry) Insight {
	total := map[string]int{}
	won := map[string]int{}
	outcomes := map[string]int{}
	sums := map[string]int{}
	failures := 0
	wins := 0
	for _, e := range entries {
		ct := e.Classification.Type.String()
		total[ct]++
		if e.Classification.Won() {
			won[ct]++
			wins++
		}
		outcomes[e.Classification.Outcome.String()]++
		for _, m := range e.Scores.Metrics() {
			sums[m.Name] += m.Value
		}
		if e.FeedbackFailed {
			failures++
		}
	}

	winRate := map[string]float64{}
	for k, n := range total {
		winRate[k] = float64(won[k]) / float64(n)
	}
	avg := map[string]float64{}
	if len(entries) > 0 {
		for _, name := range types.MetricNames {
			avg[name] = round2(float64(sums[name]) / float64(len(entries)))
		}
	}
	ins := Insight{
		TotalCalls:       len(entries),
		WinRateByType:    winRate,
		OutcomeCounts:    outcomes,
		AverageScores:    avg,
		FeedbackFailures: failures,
	}
	if len(entries) > 0 {
		ins.WinRate = float64(wins) / float64(len(entries))
	}
	return ins
}

// Weakest returns the metric with the lowest average, ties broken by the
// fixed metric order. ok is false when there is nothing to rank.
func (ins Insight) Weakest() (name string, score float64, ok bool) {
	for _, n := range types.MetricNames {
		v, present := ins.AverageScores[n]
		if !present {
			continue
		}
		if !ok || v < score {
			name, score, ok = n, v, true
		}
	}
	return name, score, ok
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
