package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"sales-coach-go/internal/aggregator"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name        string
		ins         aggregator.Insight
		wantAction  string
		wantInsight string
	}{
		{
			name:        "no data",
			ins:         aggregator.Insight{},
			wantAction:  "Process recordings to build a baseline",
			wantInsight: "No calls analysed yet",
		},
		{
			name: "weak objection handling",
			ins: aggregator.Insight{
				TotalCalls:    4,
				WinRate:       0.5,
				AverageScores: map[string]float64{"empathy": 7, "persuasion": 6.5, "product_knowledge": 8, "objection_handling": 3.4},
			},
			wantAction:  drills["objection_handling"],
			wantInsight: "Lowest average is objection handling at 3.4/10 across 4 calls (win rate 50%)",
		},
		{
			name: "healthy scores low wins",
			ins: aggregator.Insight{
				TotalCalls:    10,
				WinRate:       0.1,
				AverageScores: map[string]float64{"empathy": 7, "persuasion": 7, "product_knowledge": 7, "objection_handling": 7},
			},
			wantAction:  "Review lost calls for missed closing attempts",
			wantInsight: "Scores are healthy but only 10% of calls are won",
		},
		{
			name: "all good",
			ins: aggregator.Insight{
				TotalCalls:    10,
				WinRate:       0.6,
				AverageScores: map[string]float64{"empathy": 8, "persuasion": 8, "product_knowledge": 8, "objection_handling": 8},
			},
			wantAction:  "Keep sharing winning phrases and monitor",
			wantInsight: "No strong weakness detected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := Generate(tt.ins)
			assert.Equal(t, tt.wantAction, card.Action)
			assert.Equal(t, tt.wantInsight, card.Insight)
			assert.NotEmpty(t, card.Impact)
		})
	}
}

func TestEveryMetricHasADrill(t *testing.T) {
	for _, name := range []string{"empathy", "persuasion", "product_knowledge", "objection_handling"} {
		assert.NotEmpty(t, drills[name], name)
	}
}
