package dataset

import (
	"sort"

	"sales-coach-go/internal/types"
)

// Summary describes a loaded batch before it is processed.
type Summary struct {
	TotalCalls int            `json:"total_calls"`
	ByCallType map[string]int `json:"by_call_type"`
	ByAgent    map[string]int `json:"by_agent"`
	TopAgents  []string       `json:"top_agents"`
}

const topN = 5

func Summarize(records []types.CallRecord) Summary {
	s := Summary{
		TotalCalls: len(records),
		ByCallType: map[string]int{},
		ByAgent:    map[string]int{},
	}
	for _, r := range records {
		ct := r.CallType
		if ct == "" {
			ct = "unknown"
		}
		s.ByCallType[ct]++
		if r.Agent != "" {
			s.ByAgent[r.Agent]++
		}
	}

	type kv struct {
		k string
		v int
	}
	var agents []kv
	for k, v := range s.ByAgent {
		agents = append(agents, kv{k, v})
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].v != agents[j].v {
			return agents[i].v > agents[j].v
		}
		return agents[i].k < agents[j].k
	})
	for i := 0; i < len(agents) && i < topN; i++ {
		s.TopAgents = append(s.TopAgents, agents[i].k)
	}
	return s
}
