package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// JobRunStorage implements interfaces.JobRunStorage for SQLite
type JobRunStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewJobRunStorage creates a new JobRunStorage instance
func NewJobRunStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobRunStorage {
	return &JobRunStorage{
		db:     db,
		logger: logger,
	}
}

const jobRunColumns = `id, job_name, status, started_at, finished_at, details, error_message`

// InsertRun records the start of a job run
func (s *JobRunStorage) InsertRun(ctx context.Context, run *models.JobRun) error {
	details := run.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	var errorMessage sql.NullString
	if run.ErrorMessage != "" {
		errorMessage = sql.NullString{String: run.ErrorMessage, Valid: true}
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO job_runs (id, job_name, status, started_at, finished_at, details, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.JobName,
		run.Status,
		run.StartedAt.Unix(),
		nullUnix(run.FinishedAt),
		string(detailsJSON),
		errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job run: %w", err)
	}

	return nil
}

// FinishRun records the completion of a job run. Details replace the
// stored details only when non-nil.
func (s *JobRunStorage) FinishRun(ctx context.Context, id, status string, finishedAt time.Time, details map[string]interface{}, errorMessage string) error {
	query := `UPDATE job_runs SET status = ?, finished_at = ?`
	args := []interface{}{status, finishedAt.Unix()}

	if details != nil {
		detailsJSON, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		query += `, details = ?`
		args = append(args, string(detailsJSON))
	}
	if errorMessage != "" {
		query += `, error_message = ?`
		args = append(args, errorMessage)
	}

	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := s.db.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to finish job run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job run %s: %w", id, interfaces.ErrNotFound)
	}

	return nil
}

// GetRun retrieves a job run by ID
func (s *JobRunStorage) GetRun(ctx context.Context, id string) (*models.JobRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_runs WHERE id = ?`, jobRunColumns)

	run, err := scanJobRun(s.db.DB().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job run %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job run: %w", err)
	}

	return run, nil
}

// GetLatestRun retrieves the most recent run for a job name
func (s *JobRunStorage) GetLatestRun(ctx context.Context, jobName string) (*models.JobRun, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM job_runs
		WHERE job_name = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, jobRunColumns)

	run, err := scanJobRun(s.db.DB().QueryRowContext(ctx, query, jobName))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobName, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest job run: %w", err)
	}

	return run, nil
}

func scanJobRun(row rowScanner) (*models.JobRun, error) {
	var run models.JobRun
	var startedAt int64
	var finishedAt sql.NullInt64
	var detailsJSON string
	var errorMessage sql.NullString

	err := row.Scan(
		&run.ID,
		&run.JobName,
		&run.Status,
		&startedAt,
		&finishedAt,
		&detailsJSON,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt = timeFromUnix(startedAt)
	run.FinishedAt = timePtr(finishedAt)
	run.ErrorMessage = errorMessage.String
	if err := json.Unmarshal([]byte(detailsJSON), &run.Details); err != nil {
		return nil, fmt.Errorf("failed to unmarshal details: %w", err)
	}

	return &run, nil
}
