package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sales-coach-go/internal/dataset"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/processor"
	"sales-coach-go/internal/types"
)

// fakePipeline succeeds for every URL except those listed in fail.
type fakePipeline struct {
	mu   sync.Mutex
	urls []string
	fail map[string]bool
}

func (f *fakePipeline) ProcessSingleURL(_ context.Context, url string) processor.Result {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.fail[url] {
		return processor.Result{
			URL:      url,
			State:    processor.StateAborted,
			FailedAt: processor.StateFetching,
			Err:      errors.New("HTTP 404"),
			Error:    "HTTP 404",
		}
	}
	return processor.Result{
		URL:             url,
		State:           processor.StateDone,
		ExemplarsStored: true,
		Entry: &types.LogEntry{
			URL:            url,
			Classification: types.Classification{Type: types.CallTypeSale, Outcome: types.OutcomeSuccessful},
			Summary:        "Closed.",
			Scores:         types.Scores{Empathy: 8, Persuasion: 7, ProductKnowledge: 9, ObjectionHandling: 6},
			Feedback:       "Nice close.",
		},
	}
}

func TestRunLoop(t *testing.T) {
	p := &fakePipeline{fail: map[string]bool{"https://x/bad.mp3": true}}
	in := strings.NewReader("https://x/a.mp3\n\n   \nhttps://x/bad.mp3\nhttps://x/b.mp3\nexit\nhttps://x/never.mp3\n")
	var out bytes.Buffer

	require.NoError(t, runLoop(context.Background(), in, &out, true, p))
	assert.Equal(t, []string{"https://x/a.mp3", "https://x/bad.mp3", "https://x/b.mp3"}, p.urls)
	assert.Contains(t, out.String(), "Enter audio URL (or 'exit'): ")
	assert.Contains(t, out.String(), "failed while FETCHING: HTTP 404")
	assert.Contains(t, out.String(), "--- FEEDBACK ---\nNice close.")
}

func TestRunLoopStopsAtEOF(t *testing.T) {
	p := &fakePipeline{}
	var out bytes.Buffer
	require.NoError(t, runLoop(context.Background(), strings.NewReader("https://x/a.mp3"), &out, false, p))
	assert.Len(t, p.urls, 1)
	assert.NotContains(t, out.String(), "Enter audio URL")
}

func TestRunLoopCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakePipeline{}
	err := runLoop(ctx, strings.NewReader("https://x/a.mp3\n"), &bytes.Buffer{}, false, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.urls)
}

func TestRunBatch(t *testing.T) {
	p := &fakePipeline{fail: map[string]bool{"u2": true}}
	records := []types.CallRecord{
		{CallID: "c1", AudioURL: "u1"},
		{CallID: "c2", AudioURL: "u2"},
		{CallID: "c3", AudioURL: "u3"},
	}
	var out bytes.Buffer
	ok, failed := runBatch(context.Background(), &out, p, records, 2)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"u1", "u2"}, p.urls)
}

func TestPrintResult(t *testing.T) {
	p := &fakePipeline{}
	var out bytes.Buffer
	printResult(&out, p.ProcessSingleURL(context.Background(), "https://x/a.mp3"))
	s := out.String()
	assert.Contains(t, s, "[SALE (SUCCESSFUL)] https://x/a.mp3")
	assert.Contains(t, s, "   - Product Knowledge Score: 9")
	assert.Contains(t, s, "Winning phrases saved.")
}

func TestMux(t *testing.T) {
	p := &fakePipeline{fail: map[string]bool{"https://x/bad.mp3": true}}
	list := func(context.Context, int) ([]types.LogEntry, error) {
		return []types.LogEntry{
			{Classification: types.Classification{Type: types.CallTypeSale, Outcome: types.OutcomeSuccessful},
				Scores: types.Scores{Empathy: 8, Persuasion: 8, ProductKnowledge: 8, ObjectionHandling: 2}},
		}, nil
	}
	srv := httptest.NewServer(newMux(logger.Discard(), p, list))
	defer srv.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("process missing url", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/process")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("process ok", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/process?audio_url=https://x/a.mp3")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "DONE", body["state"])
		entry := body["entry"].(map[string]any)
		cls := entry["classification"].(map[string]any)
		assert.Equal(t, "SALE", cls["call_type"])
	})

	t.Run("process failure", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/process?audio_url=https://x/bad.mp3")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ABORTED", body["state"])
		assert.Equal(t, "HTTP 404", body["error"])
	})

	t.Run("report", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/report?limit=10")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var rep Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
		assert.Equal(t, 1, rep.Insight.TotalCalls)
		assert.Contains(t, rep.ActionCard.Insight, "objection handling")
	})

	t.Run("report bad limit", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/report?limit=-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "process", "batch", "serve", "report"} {
		assert.Contains(t, names, want)
	}
}

func TestBaseLoggerReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\nENVIRONMENT=production\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	// registers restore, then leaves both unset so .env can fill them
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENVIRONMENT", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))
	require.NoError(t, os.Unsetenv("ENVIRONMENT"))

	log := newBaseLogger("")
	assert.Equal(t, logrus.DebugLevel, log.Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Logger.Formatter)

	assert.Equal(t, logrus.WarnLevel, newBaseLogger("warn").Logger.GetLevel())
}

func TestLogDatasetSummary(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithEnvironment("production"), logger.WithLevel("info"))
	logDatasetSummary(log, "calls.json", dataset.Summarize([]types.CallRecord{
		{CallID: "c1", Agent: "ann", CallType: "sale"},
		{CallID: "c2", Agent: "bob", CallType: "sale"},
		{CallID: "c3", Agent: "ann", CallType: "enquiry"},
	}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dataset loaded", line["msg"])
	assert.Equal(t, float64(3), line["total_calls"])
	assert.Equal(t, map[string]any{"ann": float64(2), "bob": float64(1)}, line["by_agent"])
	assert.Equal(t, []any{"ann", "bob"}, line["top_agents"])
}
