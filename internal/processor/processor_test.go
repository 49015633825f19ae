package processor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sales-coach-go/internal/extractor"
	"sales-coach-go/internal/feedback"
	"sales-coach-go/internal/fetcher"
	"sales-coach-go/internal/inference"
	"sales-coach-go/internal/inference/inferencetest"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/router"
	"sales-coach-go/internal/session"
	"sales-coach-go/internal/store"
	"sales-coach-go/internal/store/storetest"
	"sales-coach-go/internal/types"
)

const wonSale = `{
  "call_type": "SALE",
  "call_outcome": "SUCCESSFUL",
  "transcript_summary": "Closed the annual plan.",
  "variables_analysis": {"empathy_score": 8, "persuasion_score": 9, "product_knowledge_score": 7, "objection_handling_score": 8},
  "golden_sentences": ["Sign today and save."]
}`

const lostEnquiry = `{
  "call_type": "ENQUIRY",
  "call_outcome": "UNSUCCESSFUL",
  "transcript_summary": "Asked about coverage, hung up.",
  "variables_analysis": {"empathy_score": 4, "persuasion_score": 3, "product_knowledge_score": 5, "objection_handling_score": 2},
  "golden_sentences": []
}`

var quotaErr = &inference.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "Quota exceeded"}

type harness struct {
	backend   *inferencetest.Backend
	exemplars *storetest.Memory
	sink      *storetest.Memory
	scratch   string
	waits     []time.Duration
	audio     *httptest.Server
	p         *Processor
}

// newHarness wires the real pipeline components around a fake backend.
// analysis answers structured requests; feedback answers free-text ones.
func newHarness(t *testing.T, analysis func(n int) (string, error), fb func() (string, error)) *harness {
	t.Helper()
	h := &harness{
		backend:   &inferencetest.Backend{},
		exemplars: &storetest.Memory{},
		sink:      &storetest.Memory{},
		scratch:   t.TempDir(),
	}
	analysisCalls := 0
	h.backend.OnGenerate = func(_ int, req inference.GenerateRequest) (string, error) {
		if req.ResponseMIMEType == "application/json" {
			analysisCalls++
			return analysis(analysisCalls)
		}
		if fb == nil {
			return "Well done.", nil
		}
		return fb()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/call.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ID3 fake audio bytes"))
	})
	h.audio = httptest.NewServer(mux)
	t.Cleanup(h.audio.Close)

	log := logger.Discard()
	sleep := func(_ context.Context, d time.Duration) error {
		h.waits = append(h.waits, d)
		return nil
	}
	h.p = New(Deps{
		Fetcher:  fetcher.New(h.scratch, h.audio.Client(), log),
		Uploader: session.NewManager(h.backend, time.Millisecond, time.Second, log),
		Analyzer: extractor.NewAnalyzer(h.backend, 3, 10*time.Second, log, extractor.WithSleep(sleep)),
		Feedback: feedback.NewGenerator(h.backend, log),
		Router:   router.New(h.exemplars, log),
		Sink:     h.sink,
		Deleter:  h.backend,
	}, log)
	return h
}

func fixed(s string) func(int) (string, error) {
	return func(int) (string, error) { return s, nil }
}

func (h *harness) url(path string) string { return h.audio.URL + path }

func (h *harness) scratchFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.scratch)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWonSale(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.ExemplarsStored)
	assert.Equal(t, []string{"Sign today and save."}, h.exemplars.Phrases())

	require.Len(t, h.sink.Entries, 1)
	e := h.sink.Entries[0]
	assert.Equal(t, types.OutcomeSuccessful, e.Classification.Outcome)
	assert.Equal(t, h.url("/call.mp3"), e.URL)
	assert.Equal(t, res.RunID, e.RunID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "Closed the annual plan.", e.Summary)
	assert.Equal(t, "Well done.", e.Feedback)

	require.Len(t, h.backend.Generated, 2)
	c := types.Classification{Type: types.CallTypeSale, Outcome: types.OutcomeSuccessful}
	assert.Equal(t, feedback.Prompt(c), h.backend.Generated[1].Prompt)
	assert.Equal(t, feedback.Reinforce, feedback.Branch(c))

	assert.Empty(t, h.scratchFiles(t))
	assert.Equal(t, []string{"files/fake-1"}, h.backend.Deleted)
}

func TestLostEnquiry(t *testing.T) {
	h := newHarness(t, fixed(lostEnquiry), nil)
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	require.True(t, res.OK(), res.Error)
	assert.False(t, res.ExemplarsStored)
	assert.Empty(t, h.exemplars.Batches)

	require.Len(t, h.sink.Entries, 1)
	assert.Equal(t, types.OutcomeUnsuccessful, h.sink.Entries[0].Classification.Outcome)
	c := types.Classification{Type: types.CallTypeEnquiry, Outcome: types.OutcomeUnsuccessful}
	assert.Equal(t, feedback.Prompt(c), h.backend.Generated[1].Prompt)
	assert.Equal(t, feedback.Coach, feedback.Branch(c))
}

func TestDownload404(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	res := h.p.ProcessSingleURL(context.Background(), h.url("/missing.mp3"))

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, StateFetching, res.FailedAt)
	var fe *fetcher.FetchError
	require.True(t, errors.As(res.Err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)

	assert.Empty(t, h.scratchFiles(t))
	assert.Empty(t, h.backend.Uploads)
	assert.Empty(t, h.sink.Entries)
	assert.Empty(t, h.backend.Deleted)

	// the next input still runs
	assert.True(t, h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3")).OK())
}

func TestQuotaExhaustion(t *testing.T) {
	h := newHarness(t, func(int) (string, error) { return "", quotaErr }, nil)
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, StateAnalyzing, res.FailedAt)
	var ae *extractor.AnalysisError
	require.True(t, errors.As(res.Err, &ae))
	assert.True(t, ae.Quota)
	assert.Equal(t, 3, ae.Attempts)

	assert.Equal(t, 3, h.backend.GenerateCalls())
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}, h.waits)
	assert.Empty(t, h.sink.Entries)
	assert.Empty(t, h.scratchFiles(t))
	assert.Equal(t, []string{"files/fake-1"}, h.backend.Deleted)
}

func TestUploadFailureStillCleansUp(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	h.backend.States = []inference.AssetState{inference.StateProcessing, inference.StateFailed}
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, StateUploading, res.FailedAt)
	var ue *session.UploadError
	require.True(t, errors.As(res.Err, &ue))
	assert.Equal(t, "remote processing failed", ue.Reason)

	assert.Empty(t, h.scratchFiles(t))
	assert.Equal(t, []string{"files/fake-1"}, h.backend.Deleted)
	assert.Zero(t, h.backend.GenerateCalls())
}

func TestUploadRejectedDeletesNothingRemote(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	h.backend.UploadErr = errors.New("403 forbidden")
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, h.scratchFiles(t))
	assert.Empty(t, h.backend.Deleted)
}

func TestFeedbackFailureStillPersists(t *testing.T) {
	h := newHarness(t, fixed(wonSale), func() (string, error) { return "", errors.New("500") })
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	require.True(t, res.OK(), res.Error)
	require.Len(t, h.sink.Entries, 1)
	assert.Equal(t, feedback.FailureSentinel, h.sink.Entries[0].Feedback)
	assert.True(t, h.sink.Entries[0].FeedbackFailed)
}

func TestRemoteDeleteErrorIsSwallowed(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	h.backend.DeleteErr = errors.New("not found")
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	assert.True(t, res.OK(), res.Error)
	assert.Len(t, h.backend.Deleted, 1)
}

func TestPersistRetriedOnceThenSurfaced(t *testing.T) {
	h := newHarness(t, fixed(lostEnquiry), nil)
	h.sink.Err = errors.New("disk full")
	h.sink.FailTimes = 1
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))
	require.True(t, res.OK(), res.Error)
	assert.Len(t, h.sink.Entries, 1)

	h2 := newHarness(t, fixed(lostEnquiry), nil)
	h2.sink.Err = errors.New("disk full")
	res = h2.p.ProcessSingleURL(context.Background(), h2.url("/call.mp3"))
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, StatePersisting, res.FailedAt)
	var pe *store.PersistenceError
	require.True(t, errors.As(res.Err, &pe))
	assert.Nil(t, res.Entry)
	assert.Empty(t, h2.scratchFiles(t))
}

func TestExemplarFailureDoesNotBlockLogEntry(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	h.exemplars.Err = errors.New("read-only")
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	require.True(t, res.OK(), res.Error)
	assert.False(t, res.ExemplarsStored)
	assert.Len(t, h.sink.Entries, 1)
}

func TestSameURLTwiceAppendsTwice(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	first := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))
	second := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	require.True(t, first.OK())
	require.True(t, second.OK())
	assert.NotEqual(t, first.RunID, second.RunID)
	require.Len(t, h.sink.Entries, 2)
	assert.NotEqual(t, h.sink.Entries[0].ID, h.sink.Entries[1].ID)
	assert.Len(t, h.exemplars.Batches, 2)
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, inference.Asset) (*types.CallAnalysisResult, error) {
	panic("boom")
}

func TestPanicIsContained(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	h.p.deps.Analyzer = panicAnalyzer{}
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, StateAnalyzing, res.FailedAt)
	assert.Contains(t, res.Error, "boom")
	assert.Empty(t, h.scratchFiles(t))
	assert.Equal(t, []string{"files/fake-1"}, h.backend.Deleted)
}

func TestTempFileNamedAfterRun(t *testing.T) {
	h := newHarness(t, fixed(wonSale), nil)
	res := h.p.ProcessSingleURL(context.Background(), h.url("/call.mp3"))
	require.Len(t, h.backend.Uploads, 1)
	assert.Equal(t, filepath.Join(h.scratch, "temp_"+res.RunID+".mp3"), h.backend.Uploads[0])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "PERSISTING", StatePersisting.String())
	assert.Equal(t, "State(42)", State(42).String())
}
