// Package extractor turns a model response into a validated call analysis.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"sales-coach-go/internal/inference"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/types"
)

var resultSchema = mustCompileSchema(analysisSchema, "analysis.schema.json")

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// AnalysisError explains why no result was produced.
type AnalysisError struct {
	Attempts int
	Quota    bool // the last failure was rate-limit class
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// LinearBackOff waits n*Step before the n-th retry: 10s, 20s, 30s for a 10s step.
type LinearBackOff struct {
	Step time.Duration
	n    int
}

func (b *LinearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.Step
}

func (b *LinearBackOff) Reset() { b.n = 0 }

var _ backoff.BackOff = (*LinearBackOff)(nil)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(a *Analyzer) { a.sleep = fn }
}

// Analyzer produces a CallAnalysisResult from an uploaded recording.
type Analyzer struct {
	backend     inference.Backend
	maxAttempts int
	step        time.Duration
	sleep       SleepFunc
	log         *logger.Logger
}

func NewAnalyzer(backend inference.Backend, maxAttempts int, step time.Duration, log *logger.Logger, opts ...Option) *Analyzer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	a := &Analyzer{
		backend:     backend,
		maxAttempts: maxAttempts,
		step:        step,
		sleep:       sleepCtx,
		log:         log.Component("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the structured analysis. A nil result means "skip this call";
// the error says why. Only quota errors are retried, each followed by a
// linearly growing wait. Any other failure, including an unparseable
// response, gives up immediately.
func (a *Analyzer) Analyze(ctx context.Context, asset inference.Asset) (*types.CallAnalysisResult, error) {
	log := a.log.WithField("file", asset.Name)
	schedule := &LinearBackOff{Step: a.step}

	for attempt := 1; ; attempt++ {
		log.WithField("attempt", attempt).Info("analyzing audio structure")
		raw, err := a.backend.Generate(ctx, inference.GenerateRequest{
			Prompt:           AnalysisPrompt,
			Asset:            asset,
			ResponseMIMEType: "application/json",
		})
		if err == nil {
			res, perr := Parse(raw)
			if perr != nil {
				log.WithError(perr).Warn("analysis response rejected")
				return nil, &AnalysisError{Attempts: attempt, Err: perr}
			}
			log.WithField("classification", res.Classification.String()).Info("analysis complete")
			return res, nil
		}

		if !inference.IsQuota(err) {
			log.WithError(err).Error("analysis failed")
			return nil, &AnalysisError{Attempts: attempt, Err: err}
		}

		wait := schedule.NextBackOff()
		log.WithError(err).WithField("wait", wait.String()).Warn("quota exceeded, backing off")
		if serr := a.sleep(ctx, wait); serr != nil {
			return nil, &AnalysisError{Attempts: attempt, Quota: true, Err: serr}
		}
		if attempt >= a.maxAttempts {
			return nil, &AnalysisError{Attempts: attempt, Quota: true, Err: err}
		}
	}
}

// ErrNoJSON means the response contained no JSON object.
var ErrNoJSON = errors.New("no JSON found in model output")

// Parse extracts, validates and decodes an analysis response.
func Parse(raw string) (*types.CallAnalysisResult, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, ErrNoJSON
	}
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(candidate))
	if err != nil {
		return nil, fmt.Errorf("json decode error: %w", err)
	}
	if err := resultSchema.Validate(inst); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	var res types.CallAnalysisResult
	if err := json.Unmarshal([]byte(candidate), &res); err != nil {
		return nil, fmt.Errorf("json decode error: %w", err)
	}
	return &res, nil
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")

	// Remove markdown fences (commonly output by LLMs)
	for _, r := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}

	// no balanced found
	return ""
}
