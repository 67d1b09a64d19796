package workers

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/fetcher"
	"github.com/ternarybob/vigil/internal/services/jobruns"
	"github.com/ternarybob/vigil/internal/services/settings"
)

// fetchJobName identifies fetch cycles in the job-run ledger.
const fetchJobName = "fetch_cycle"

// FetchWorker runs fetch cycles continuously: claim due sources, fetch
// them, sleep with jitter, repeat. Every cycle is recorded in the
// job-run ledger and survives panics from individual extractors.
type FetchWorker struct {
	manager  *fetcher.Manager
	jobRuns  *jobruns.Service
	settings *settings.Service
	config   common.WorkerConfig
	logger   arbor.ILogger
}

// NewFetchWorker creates a fetch worker.
func NewFetchWorker(
	manager *fetcher.Manager,
	jobRunService *jobruns.Service,
	settingsService *settings.Service,
	config common.WorkerConfig,
	logger arbor.ILogger,
) *FetchWorker {
	return &FetchWorker{
		manager:  manager,
		jobRuns:  jobRunService,
		settings: settingsService,
		config:   config,
		logger:   logger,
	}
}

// Run executes fetch cycles until the context is cancelled.
func (w *FetchWorker) Run(ctx context.Context) {
	w.logger.Info().
		Int("interval_seconds", w.config.IntervalSeconds).
		Int("jitter_seconds", w.config.JitterSeconds).
		Int("max_sources", w.config.MaxSources).
		Msg("Fetch worker started")

	for {
		if err := w.RunCycle(ctx); err != nil {
			w.logger.Error().Err(err).Msg("Fetch cycle failed")
		}

		if !w.sleep(ctx, w.cycleDelay()) {
			w.logger.Info().Msg("Fetch worker stopped")
			return
		}
	}
}

// RunCycle runs one fetch cycle inside a job-run record. A panic in
// the cycle is recovered and recorded as an error outcome so one bad
// source cannot kill the worker.
func (w *FetchWorker) RunCycle(ctx context.Context) (err error) {
	workerCount, settingsErr := w.settings.GetInt(ctx, settings.KeyFetchWorkerCount)
	if settingsErr != nil {
		workerCount = 1
	}

	runID, runErr := w.jobRuns.Start(ctx, fetchJobName, map[string]interface{}{
		"max_sources":  w.config.MaxSources,
		"worker_count": workerCount,
	})
	if runErr != nil {
		return fmt.Errorf("failed to record fetch cycle: %w", runErr)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch cycle panicked: %v", r)
			w.jobRuns.Finish(ctx, runID, models.JobRunStatusError, nil, err.Error())
		}
	}()

	stats, err := w.manager.FetchDueSources(ctx, w.config.MaxSources, workerCount)
	details := map[string]interface{}{
		"sources_checked":   stats.SourcesChecked,
		"sources_fetched":   stats.SourcesFetched,
		"articles_found":    stats.ArticlesFound,
		"articles_new":      stats.ArticlesNew,
		"articles_filtered": stats.ArticlesFiltered,
		"articles_old":      stats.ArticlesOld,
		"errors":            stats.Errors,
	}

	if err != nil {
		w.jobRuns.Finish(ctx, runID, models.JobRunStatusError, details, err.Error())
		return err
	}

	w.jobRuns.Finish(ctx, runID, models.JobRunStatusSuccess, details, "")
	w.logger.Info().
		Int("sources_checked", stats.SourcesChecked).
		Int("articles_new", stats.ArticlesNew).
		Int("source_errors", len(stats.Errors)).
		Msg("Fetch cycle complete")
	return nil
}

// cycleDelay is the configured interval plus a uniform random jitter,
// which keeps multiple workers from fetching in lockstep.
func (w *FetchWorker) cycleDelay() time.Duration {
	delay := time.Duration(w.config.IntervalSeconds) * time.Second
	if w.config.JitterSeconds > 0 {
		delay += time.Duration(rand.Int63n(int64(w.config.JitterSeconds)+1)) * time.Second
	}
	return delay
}

// sleep waits for the delay in short slices so shutdown is noticed
// within a second. Returns false when the context ended.
func (w *FetchWorker) sleep(ctx context.Context, delay time.Duration) bool {
	deadline := time.Now().Add(delay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(remaining):
		}
	}
}
