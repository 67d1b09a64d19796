package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/jobruns"
	"github.com/ternarybob/vigil/internal/services/settings"
)

// jobName identifies scheduler cycles in the job-run ledger.
const jobName = "digest_scheduler"

// Skip reasons recorded in job-run details.
const (
	skipAlreadyExists  = "already_exists"
	skipUniqueConflict = "unique_conflict"
)

// Scheduler fires digest generation once per day at the configured
// time. Every firing is recorded in the job-run ledger, including the
// ones that skip because the digest already exists.
type Scheduler struct {
	service  *Service
	settings *settings.Service
	jobRuns  *jobruns.Service
	logger   arbor.ILogger
}

// NewScheduler creates a digest scheduler.
func NewScheduler(service *Service, settingsService *settings.Service, jobRunService *jobruns.Service, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		service:  service,
		settings: settingsService,
		jobRuns:  jobRunService,
		logger:   logger,
	}
}

// NextRunUTC computes the next daily firing after now for a HH:MM
// clock time in UTC. A target exactly equal to now schedules the next
// day, never an immediate double fire.
func NextRunUTC(now time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid digest time '%s': expected HH:MM", clock)
	}

	now = now.UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	if !now.Before(target) {
		target = target.Add(24 * time.Hour)
	}
	return target, nil
}

// RunOnce generates today's digest and records the outcome in the
// job-run ledger. The error return reflects generation failures only;
// an already-existing digest is a successful skip.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	date := time.Now().UTC().Format("2006-01-02")

	clock, err := s.settings.GetString(ctx, settings.KeyDigestTime)
	if err != nil {
		clock = "08:00"
	}

	runID, err := s.jobRuns.Start(ctx, jobName, map[string]interface{}{
		"digest_date":     date,
		"digest_time_utc": clock,
	})
	if err != nil {
		return fmt.Errorf("failed to record scheduler run: %w", err)
	}

	digest, err := s.service.Generate(ctx, date)
	switch {
	case err == nil:
		s.jobRuns.Finish(ctx, runID, models.JobRunStatusSuccess, map[string]interface{}{
			"digest_date":     date,
			"digest_id":       digest.ID,
			"digest_time_utc": clock,
			"notified":        digest.NotifiedAt != nil,
		}, "")
		return nil

	case errors.Is(err, interfaces.ErrDigestExists):
		// Found up front vs lost the insert race: the ledger records
		// which, the outcome is the same
		reason := skipUniqueConflict
		if digest != nil {
			reason = skipAlreadyExists
		}
		s.logger.Info().Str("date", date).Str("reason", reason).Msg("Digest already exists, skipping")
		s.jobRuns.Finish(ctx, runID, models.JobRunStatusSkipped, map[string]interface{}{
			"digest_date": date,
			"reason":      reason,
		}, "")
		return nil

	default:
		s.jobRuns.Finish(ctx, runID, models.JobRunStatusError, map[string]interface{}{
			"digest_date": date,
		}, err.Error())
		return err
	}
}

// Loop runs the scheduler until the context is cancelled. The digest
// time setting is re-read after every firing, so changing it takes
// effect without a restart.
func (s *Scheduler) Loop(ctx context.Context) {
	for {
		clock, err := s.settings.GetString(ctx, settings.KeyDigestTime)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read digest time, using default")
			clock = "08:00"
		}

		next, err := NextRunUTC(time.Now(), clock)
		if err != nil {
			s.logger.Error().Err(err).Msg("Invalid digest time setting, retrying in a minute")
			if !sleepUntil(ctx, time.Now().Add(time.Minute)) {
				return
			}
			continue
		}

		s.logger.Info().Str("next_run", next.Format(time.RFC3339)).Msg("Digest scheduler waiting")
		if !sleepUntil(ctx, next) {
			return
		}

		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Digest generation failed")
		}
	}
}

// sleepUntil waits for the target time in short slices so cancellation
// is noticed within a second. Returns false when the context ended.
func sleepUntil(ctx context.Context, target time.Time) bool {
	for {
		remaining := time.Until(target)
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
