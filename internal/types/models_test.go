package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWon(t *testing.T) {
	assert.True(t, Classification{Type: CallTypeSale, Outcome: OutcomeSuccessful}.Won())
	assert.True(t, Classification{Type: CallTypeEnquiry, Outcome: OutcomeSuccessful}.Won())
	assert.False(t, Classification{Type: CallTypeSale, Outcome: OutcomeUnsuccessful}.Won())
	assert.False(t, Classification{Type: CallTypeEnquiry, Outcome: OutcomeUnsuccessful}.Won())
}

func TestParseLenient(t *testing.T) {
	assert.Equal(t, CallTypeSale, ParseCallType(" sale "))
	assert.Equal(t, CallTypeEnquiry, ParseCallType("complaint"))
	assert.Equal(t, OutcomeSuccessful, ParseCallOutcome("successful"))
	assert.Equal(t, OutcomeUnsuccessful, ParseCallOutcome(""))
}

func TestDecodeAnalysisResult(t *testing.T) {
	raw := `{
		"call_type": "SALE",
		"call_outcome": "SUCCESSFUL",
		"transcript_summary": "Customer upgraded to the premium plan.",
		"variables_analysis": {
			"empathy_score": 8,
			"persuasion_score": 9,
			"product_knowledge_score": 7,
			"objection_handling_score": 6,
			"notes": "Strong close."
		},
		"golden_sentences": ["Sign today and save."]
	}`
	var res CallAnalysisResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	assert.Equal(t, CallTypeSale, res.Type)
	assert.True(t, res.Won())
	assert.Equal(t, 9, res.Scores.Persuasion)
	assert.Equal(t, []string{"Sign today and save."}, res.ExemplarPhrases)
	assert.Equal(t, "Strong close.", res.Scores.Notes)
}

func TestDecodeAnalysisResultDefaults(t *testing.T) {
	var res CallAnalysisResult
	require.NoError(t, json.Unmarshal([]byte(`{"variables_analysis":{}}`), &res))
	assert.Equal(t, DefaultSummary, res.Summary)
	assert.Equal(t, CallTypeEnquiry, res.Type)
	assert.Equal(t, OutcomeUnsuccessful, res.Outcome)
	assert.NotNil(t, res.ExemplarPhrases)
	assert.Empty(t, res.ExemplarPhrases)
}

func TestMetricsOrder(t *testing.T) {
	s := Scores{Empathy: 1, Persuasion: 2, ProductKnowledge: 3, ObjectionHandling: 4}
	var names []string
	for _, m := range s.Metrics() {
		names = append(names, m.Name)
	}
	assert.Equal(t, MetricNames, names)
	assert.Equal(t, 3, s.Metrics()[2].Value)
}

func TestLogEntryJSONUsesLabels(t *testing.T) {
	e := LogEntry{Classification: Classification{Type: CallTypeSale, Outcome: OutcomeSuccessful}}
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"call_type":"SALE"`)
	assert.Contains(t, string(b), `"call_outcome":"SUCCESSFUL"`)
}
