// Package router decides where the output of an analysed call goes.
package router

import (
	"context"
	"time"

	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/store"
	"sales-coach-go/internal/types"
)

// Router captures exemplar phrases from won calls only.
type Router struct {
	exemplars store.ExemplarStore
	log       *logger.Logger
	now       func() time.Time
}

func New(exemplars store.ExemplarStore, log *logger.Logger) *Router {
	return &Router{exemplars: exemplars, log: log.Component("router"), now: time.Now}
}

// Route appends the result's phrases when the call was won. Lost calls and
// won calls with no phrases are skipped. It reports whether anything was written.
func (r *Router) Route(ctx context.Context, runID, url string, res *types.CallAnalysisResult) (bool, error) {
	if res == nil || !res.Classification.Won() {
		if res != nil && len(res.ExemplarPhrases) > 0 {
			r.log.WithField("run_id", runID).
				WithField("phrases", len(res.ExemplarPhrases)).
				Debug("ignoring phrases from a call that was not won")
		}
		return false, nil
	}
	if len(res.ExemplarPhrases) == 0 {
		return false, nil
	}
	batch := store.ExemplarBatch{
		RunID:    runID,
		URL:      url,
		CallType: res.Classification.Type,
		Phrases:  res.ExemplarPhrases,
		At:       r.now(),
	}
	if err := r.exemplars.AppendExemplars(ctx, batch); err != nil {
		return false, err
	}
	r.log.WithField("run_id", runID).
		WithField("phrases", len(batch.Phrases)).
		Info("exemplar phrases saved")
	return true, nil
}
