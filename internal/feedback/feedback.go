// Package feedback asks the model for coaching feedback on an analysed call.
package feedback

import (
	"context"
	"fmt"

	"sales-coach-go/internal/inference"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

// FailureSentinel replaces the feedback text when generation fails.
const FailureSentinel = "Feedback generation failed."

// Strategy is the prompt family used for a call.
type Strategy int

const (
	// Reinforce praises a won call and never lists improvements.
	Reinforce Strategy = iota
	// Coach gives gap analysis and one next action for a lost call.
	Coach
)

func (s Strategy) String() string {
	switch s {
	case Reinforce:
		return "reinforce"
	case Coach:
		return "coach"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Branch picks the strategy from the win/loss dimension.
func Branch(c types.Classification) Strategy {
	if c.Won() {
		return Reinforce
	}
	return Coach
}

// Prompt renders the prompt for a classification.
func Prompt(c types.Classification) string {
	switch Branch(c) {
	case Reinforce:
		return fmt.Sprintf(successPrompt, c.Type)
	default:
		return fmt.Sprintf(coachingPrompt, c.Type, c.Outcome)
	}
}

type Generator struct {
	backend inference.Backend
	log     *logger.Logger
}

func NewGenerator(backend inference.Backend, log *logger.Logger) *Generator {
	return &Generator{backend: backend, log: log.Component("feedback")}
}

// Generate makes exactly one backend call. On failure it returns
// FailureSentinel and ok=false; it never returns an error.
func (g *Generator) Generate(ctx context.Context, asset inference.Asset, c types.Classification) (text string, ok bool) {
	log := g.log.WithField("classification", c.String()).WithField("strategy", Branch(c).String())
	log.Info("generating feedback")

	out, err := g.backend.Generate(ctx, inference.GenerateRequest{Prompt: Prompt(c), Asset: asset})
	if err != nil {
		log.WithError(err).Error("feedback generation failed")
		return FailureSentinel, false
	}
	return out, true
}
