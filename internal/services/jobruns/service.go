package jobruns

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// maxErrorLength caps stored error messages so one giant stack trace
// does not bloat the ledger.
const maxErrorLength = 500

// Service is the job-run ledger: every scheduler and worker cycle is
// recorded with its outcome so operators can see what ran and why.
type Service struct {
	storage interfaces.JobRunStorage
	logger  arbor.ILogger
}

// NewService creates the job-run service.
func NewService(storage interfaces.JobRunStorage, logger arbor.ILogger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Start records a new running job and returns its id.
func (s *Service) Start(ctx context.Context, jobName string, details map[string]interface{}) (string, error) {
	run := &models.JobRun{
		ID:        common.NewID(),
		JobName:   jobName,
		Status:    models.JobRunStatusRunning,
		StartedAt: time.Now().UTC(),
		Details:   details,
	}
	if err := s.storage.InsertRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// Finish records a job outcome. Errors here are logged, not returned:
// a ledger write failure must never fail the job itself.
func (s *Service) Finish(ctx context.Context, id, status string, details map[string]interface{}, errorMessage string) {
	if len(errorMessage) > maxErrorLength {
		errorMessage = errorMessage[:maxErrorLength]
	}
	if err := s.storage.FinishRun(ctx, id, status, time.Now().UTC(), details, errorMessage); err != nil {
		s.logger.Warn().Str("run_id", id).Err(err).Msg("Failed to record job outcome")
	}
}

// GetLatest returns the most recent run of a job.
func (s *Service) GetLatest(ctx context.Context, jobName string) (*models.JobRun, error) {
	return s.storage.GetLatestRun(ctx, jobName)
}
