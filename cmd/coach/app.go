package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"sales-coach-go/internal/config"
	"sales-coach-go/internal/extractor"
	"sales-coach-go/internal/feedback"
	"sales-coach-go/internal/fetcher"
	"sales-coach-go/internal/inference"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/processor"
	"sales-coach-go/internal/router"
	"sales-coach-go/internal/session"
	"sales-coach-go/internal/store"
	"sales-coach-go/internal/store/jsonl"
	"sales-coach-go/internal/store/sqlstore"
	"sales-coach-go/internal/store/textfile"
	"sales-coach-go/internal/types"
)

// pipeline is what the commands need from a processor.
type pipeline interface {
	ProcessSingleURL(ctx context.Context, url string) processor.Result
}

// app holds everything built from the config for one command invocation.
type app struct {
	cfg    config.Config
	log    *logger.Logger
	proc   pipeline
	stores *store.Multi
	sql    *sqlstore.Store
}

// newApp builds the dependency graph once: config, logger, backend client,
// pipeline stages and the persistence fan-out.
func newApp(log *logger.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	stores, sql, err := openStores(cfg, log)
	if err != nil {
		return nil, err
	}

	client := inference.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model, log,
		inference.WithHTTPClient(&http.Client{Timeout: cfg.Gemini.HTTPTimeout}))

	proc := processor.New(processor.Deps{
		Fetcher:  fetcher.New(cfg.Pipeline.ScratchDir, nil, log),
		Uploader: session.NewManager(client, cfg.Pipeline.PollInterval, cfg.Pipeline.PollMaxWait, log),
		Analyzer: extractor.NewAnalyzer(client, cfg.Pipeline.AnalysisMaxAttempts, cfg.Pipeline.AnalysisBackoffStep, log),
		Feedback: feedback.NewGenerator(client, log),
		Router:   router.New(stores, log),
		Sink:     stores,
		Deleter:  client,
	}, log)

	log.WithField("model", cfg.Gemini.Model).
		WithField("db_driver", cfg.Storage.DBDriver).
		Info("coach ready")
	return &app{cfg: cfg, log: log, proc: proc, stores: stores, sql: sql}, nil
}

func openStores(cfg config.Config, log *logger.Logger) (*store.Multi, *sqlstore.Store, error) {
	backends := []io.Closer{
		textfile.New(cfg.Storage.FeedbackLogFile, cfg.Storage.DailyLogFile, cfg.Storage.ExemplarFile),
	}
	events, err := jsonl.New(cfg.Storage.EventLogFile)
	if err != nil {
		return nil, nil, err
	}
	backends = append(backends, events)

	var sql *sqlstore.Store
	if cfg.Storage.DBDriver != "none" {
		sql, err = sqlstore.Open(cfg.Storage.DBDriver, cfg.Storage.DBDSN)
		if err != nil {
			events.Close()
			return nil, nil, err
		}
		backends = append(backends, sql)
		log.WithField("dsn", redactDSN(cfg.Storage.DBDriver, cfg.Storage.DBDSN)).Info("database connected")
	}
	return store.NewMulti(backends...), sql, nil
}

// entries returns stored calls for reporting, preferring the database.
func (a *app) entries(ctx context.Context, limit int) ([]types.LogEntry, error) {
	if a.sql != nil {
		return a.sql.ListEntries(ctx, limit)
	}
	all, err := jsonl.ReadEntries(a.cfg.Storage.EventLogFile)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (a *app) Close() error {
	return a.stores.Close()
}

// printResult echoes a finished run to the console.
func printResult(w io.Writer, res processor.Result) {
	if !res.OK() {
		fmt.Fprintf(w, "\n[%s] %s\n  failed while %s: %s\n", res.State, res.URL, res.FailedAt, res.Error)
		return
	}
	e := res.Entry
	fmt.Fprintf(w, "\n[%s] %s\n", e.Classification, res.URL)
	fmt.Fprintf(w, "Summary: %s\n", e.Summary)
	fmt.Fprint(w, textfile.FormatScores(e.Scores))
	if res.ExemplarsStored {
		fmt.Fprintln(w, "Winning phrases saved.")
	}
	fmt.Fprintf(w, "\n--- FEEDBACK ---\n%s\n", e.Feedback)
}

func redactDSN(driver, dsn string) string {
	if driver == "sqlite" {
		return dsn
	}
	return "<redacted>"
}

// newBaseLogger loads .env first so ENVIRONMENT and LOG_LEVEL set there apply.
func newBaseLogger(level string) *logger.Logger {
	config.LoadDotEnv()
	return newLogger(level)
}

func newLogger(level string) *logger.Logger {
	opts := []logger.Option{logger.WithOutput(os.Stderr)}
	if level != "" {
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...)
}
