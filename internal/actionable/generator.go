package actionable

import (
	"fmt"
	"strings"

	"sales-coach-go/internal/aggregator"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// Scores at or above this average are not worth a dedicated intervention.
const weakScore = 6.0

var drills = map[string]string{
	"empathy":            "Run listening drills: mirror the customer's concern back before pitching",
	"persuasion":         "Replay the winning phrase library in the next team huddle and role-play closes",
	"product_knowledge":  "Schedule a product refresher and quiz agents on plan differences",
	"objection_handling": "Build an objection playbook from won calls; practise price and timing objections",
}

func Generate(ins aggregator.Insight) ActionCard {
	if ins.TotalCalls == 0 {
		return ActionCard{
			Insight: "No calls analysed yet",
			Action:  "Process recordings to build a baseline",
			Impact:  "None until data exists",
		}
	}
	name, score, ok := ins.Weakest()
	if ok && score < weakScore {
		return ActionCard{
			Insight: fmt.Sprintf("Lowest average is %s at %.1f/10 across %d calls (win rate %.0f%%)",
				label(name), score, ins.TotalCalls, ins.WinRate*100),
			Action: drills[name],
			Impact: "Lift the weakest skill and convert more enquiries",
		}
	}
	if ins.WinRate < 0.35 {
		return ActionCard{
			Insight: fmt.Sprintf("Scores are healthy but only %.0f%% of calls are won", ins.WinRate*100),
			Action:  "Review lost calls for missed closing attempts",
			Impact:  "Turn good conversations into sales",
		}
	}
	return ActionCard{
		Insight: "No strong weakness detected",
		Action:  "Keep sharing winning phrases and monitor",
		Impact:  "Low immediate intervention",
	}
}

func label(metric string) string { return strings.ReplaceAll(metric, "_", " ") }
