package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultSummary is used when the backend omits transcript_summary.
const DefaultSummary = "No summary provided."

// CallType is the "what kind of call" dimension.
type CallType int

const (
	CallTypeEnquiry CallType = iota
	CallTypeSale
)

func (c CallType) String() string {
	switch c {
	case CallTypeSale:
		return "SALE"
	case CallTypeEnquiry:
		return "ENQUIRY"
	}
	return fmt.Sprintf("CallType(%d)", int(c))
}

// ParseCallType is lenient: anything that isn't SALE is an enquiry.
func ParseCallType(s string) CallType {
	if strings.EqualFold(strings.TrimSpace(s), "SALE") {
		return CallTypeSale
	}
	return CallTypeEnquiry
}

func (c CallType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *CallType) UnmarshalText(b []byte) error {
	*c = ParseCallType(string(b))
	return nil
}

// CallOutcome is the win/loss dimension.
type CallOutcome int

const (
	OutcomeUnsuccessful CallOutcome = iota
	OutcomeSuccessful
)

func (o CallOutcome) String() string {
	switch o {
	case OutcomeSuccessful:
		return "SUCCESSFUL"
	case OutcomeUnsuccessful:
		return "UNSUCCESSFUL"
	}
	return fmt.Sprintf("CallOutcome(%d)", int(o))
}

// ParseCallOutcome treats anything other than SUCCESSFUL as a loss.
func ParseCallOutcome(s string) CallOutcome {
	if strings.EqualFold(strings.TrimSpace(s), "SUCCESSFUL") {
		return OutcomeSuccessful
	}
	return OutcomeUnsuccessful
}

func (o CallOutcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *CallOutcome) UnmarshalText(b []byte) error {
	*o = ParseCallOutcome(string(b))
	return nil
}

type Classification struct {
	Type    CallType    `json:"call_type"`
	Outcome CallOutcome `json:"call_outcome"`
}

// Won reports whether the call counts as a win for routing and feedback.
func (c Classification) Won() bool {
	switch c.Outcome {
	case OutcomeSuccessful:
		return true
	case OutcomeUnsuccessful:
		return false
	}
	return false
}

func (c Classification) String() string {
	return fmt.Sprintf("%s (%s)", c.Type, c.Outcome)
}

// Metric is one named score in display order.
type Metric struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Scores mirrors the variables_analysis block of the analysis response.
type Scores struct {
	Empathy           int    `json:"empathy_score"`
	Persuasion        int    `json:"persuasion_score"`
	ProductKnowledge  int    `json:"product_knowledge_score"`
	ObjectionHandling int    `json:"objection_handling_score"`
	Notes             string `json:"notes,omitempty"`
}

// MetricNames is the fixed metric order.
var MetricNames = []string{"empathy", "persuasion", "product_knowledge", "objection_handling"}

func (s Scores) Metrics() []Metric {
	return []Metric{
		{Name: "empathy", Value: s.Empathy},
		{Name: "persuasion", Value: s.Persuasion},
		{Name: "product_knowledge", Value: s.ProductKnowledge},
		{Name: "objection_handling", Value: s.ObjectionHandling},
	}
}

// CallAnalysisResult is the structured analysis of one call.
type CallAnalysisResult struct {
	Classification
	Summary         string   `json:"transcript_summary"`
	Scores          Scores   `json:"variables_analysis"`
	ExemplarPhrases []string `json:"golden_sentences"`
}

func (r *CallAnalysisResult) UnmarshalJSON(b []byte) error {
	type plain CallAnalysisResult
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Summary) == "" {
		p.Summary = DefaultSummary
	}
	if p.ExemplarPhrases == nil {
		p.ExemplarPhrases = []string{}
	}
	*r = CallAnalysisResult(p)
	return nil
}

// LogEntry is the durable record of one processed call.
type LogEntry struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	Timestamp      time.Time      `json:"timestamp"`
	URL            string         `json:"url"`
	Classification Classification `json:"classification"`
	Summary        string         `json:"summary"`
	Scores         Scores         `json:"scores"`
	Feedback       string         `json:"feedback"`
	FeedbackFailed bool           `json:"feedback_failed,omitempty"`
}

// CallRecord is one row of an input dataset.
type CallRecord struct {
	CallID   string `json:"call_id"`
	CallType string `json:"call_type,omitempty"`
	AudioURL string `json:"audio_url"`
	Agent    string `json:"agent,omitempty"`
}
