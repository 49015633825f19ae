// Package processor runs one audio URL through the whole coaching pipeline:
// download, upload, analysis, phrase routing, feedback, persistence, cleanup.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sales-coach-go/internal/inference"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/store"
	"sales-coach-go/internal/types"
)

// State is a step of a pipeline run.
type State int

const (
	StateFetching State = iota
	StateUploading
	StateAnalyzing
	StateBranching
	StateFeedback
	StatePersisting
	StateCleanup
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateUploading:
		return "UPLOADING"
	case StateAnalyzing:
		return "ANALYZING"
	case StateBranching:
		return "BRANCHING"
	case StateFeedback:
		return "FEEDBACK"
	case StatePersisting:
		return "PERSISTING"
	case StateCleanup:
		return "CLEANUP"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Collaborators. The concrete types live in fetcher, session, extractor,
// feedback and router.
type (
	Fetcher interface {
		Fetch(ctx context.Context, rawURL, name string) (string, error)
	}
	Uploader interface {
		Upload(ctx context.Context, localPath string) (inference.Asset, error)
	}
	Analyzer interface {
		Analyze(ctx context.Context, asset inference.Asset) (*types.CallAnalysisResult, error)
	}
	FeedbackGenerator interface {
		Generate(ctx context.Context, asset inference.Asset, c types.Classification) (string, bool)
	}
	Router interface {
		Route(ctx context.Context, runID, url string, res *types.CallAnalysisResult) (bool, error)
	}
	// Deleter releases a remote asset; inference.Backend satisfies it.
	Deleter interface {
		Delete(ctx context.Context, asset inference.Asset) error
	}
)

// Deps groups everything a Processor needs.
type Deps struct {
	Fetcher  Fetcher
	Uploader Uploader
	Analyzer Analyzer
	Feedback FeedbackGenerator
	Router   Router
	Sink     store.Sink
	Deleter  Deleter
}

// Result reports how a run ended. Entry is set only when a LogEntry was persisted.
type Result struct {
	RunID           string          `json:"run_id"`
	URL             string          `json:"audio_url"`
	State           State           `json:"state"`
	FailedAt        State           `json:"-"`
	Entry           *types.LogEntry `json:"entry,omitempty"`
	ExemplarsStored bool            `json:"exemplars_stored"`
	Err             error           `json:"-"`
	Error           string          `json:"error,omitempty"`
	DurationMs      int64           `json:"duration_ms"`
}

// OK reports whether the run reached DONE.
func (r Result) OK() bool { return r.State == StateDone }

const cleanupTimeout = 30 * time.Second

type Processor struct {
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

// New builds a Processor. A Sink that is not already a store.Multi is wrapped
// in one so a failed append is retried once.
func New(deps Deps, log *logger.Logger) *Processor {
	if _, ok := deps.Sink.(*store.Multi); !ok && deps.Sink != nil {
		deps.Sink = store.NewMulti(deps.Sink)
	}
	return &Processor{deps: deps, log: log.Component("processor"), now: time.Now}
}

// run is the mutable state of one pipeline execution.
type run struct {
	id       string
	url      string
	state    State
	tempPath string
	asset    inference.Asset
}

// ProcessSingleURL never panics and never returns an error that should stop
// the caller; failures are reported in Result.
func (p *Processor) ProcessSingleURL(ctx context.Context, url string) (res Result) {
	start := time.Now()
	r := &run{id: uuid.NewString(), url: url, state: StateFetching}
	log := p.log.WithField("run_id", r.id).WithField("audio_url", url)
	res = Result{RunID: r.id, URL: url}

	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
	}()
	defer func() {
		if v := recover(); v != nil {
			log.WithField("state", r.state.String()).Errorf("panic during run: %v", v)
			res.State, res.FailedAt = StateAborted, r.state
			res.Entry = nil
			res.Err = fmt.Errorf("panic in %s: %v", r.state, v)
		}
	}()
	defer p.cleanup(ctx, r, log)

	entry, stored, err := p.execute(ctx, r, log)
	res.ExemplarsStored = stored
	if err != nil {
		res.State, res.FailedAt, res.Err = StateAborted, r.state, err
		log.WithError(err).WithField("state", r.state.String()).Error("run aborted")
		return res
	}
	res.State, res.Entry = StateDone, entry
	log.WithField("classification", entry.Classification.String()).Info("run complete")
	return res
}

func (p *Processor) execute(ctx context.Context, r *run, log *logrus.Entry) (*types.LogEntry, bool, error) {
	path, err := p.deps.Fetcher.Fetch(ctx, r.url, r.id)
	if err != nil {
		return nil, false, err
	}
	r.tempPath = path

	r.state = StateUploading
	r.asset, err = p.deps.Uploader.Upload(ctx, path)
	if err != nil {
		return nil, false, err
	}

	r.state = StateAnalyzing
	result, err := p.deps.Analyzer.Analyze(ctx, r.asset)
	if err != nil {
		return nil, false, err
	}
	if result == nil {
		return nil, false, errors.New("analysis returned no result")
	}

	r.state = StateBranching
	stored, err := p.deps.Router.Route(ctx, r.id, r.url, result)
	if err != nil {
		// Losing the phrases does not lose the call record.
		log.WithError(err).Error("saving exemplar phrases failed")
	}

	r.state = StateFeedback
	text, ok := p.deps.Feedback.Generate(ctx, r.asset, result.Classification)

	r.state = StatePersisting
	entry := types.LogEntry{
		ID:             uuid.NewString(),
		RunID:          r.id,
		Timestamp:      p.now(),
		URL:            r.url,
		Classification: result.Classification,
		Summary:        result.Summary,
		Scores:         result.Scores,
		Feedback:       text,
		FeedbackFailed: !ok,
	}
	if err := p.deps.Sink.Append(ctx, entry); err != nil {
		var pe *store.PersistenceError
		if !errors.As(err, &pe) {
			err = &store.PersistenceError{Op: "log entry", Err: err}
		}
		return nil, stored, err
	}
	return &entry, stored, nil
}

// cleanup removes the temp file and asks the backend to drop the asset.
// Errors are logged, never returned.
func (p *Processor) cleanup(ctx context.Context, r *run, log *logrus.Entry) {
	prev := r.state
	r.state = StateCleanup
	defer func() { r.state = prev }()

	if r.tempPath != "" {
		if err := os.Remove(r.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", r.tempPath).Warn("failed to remove temp file")
		}
	}
	if r.asset.Name != "" && p.deps.Deleter != nil {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := p.deps.Deleter.Delete(dctx, r.asset); err != nil {
			log.WithError(err).WithField("file", r.asset.Name).Warn("failed to delete remote file")
		} else {
			log.WithField("file", r.asset.Name).Debug("remote file deleted")
		}
	}
}
