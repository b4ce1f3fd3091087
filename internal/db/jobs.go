package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"textflow/internal/models"
)

// CreateJobRequest persists a job-request row. The row must exist before the
// job id is handed to a dispatch backend.
func (d *DB) CreateJobRequest(ctx context.Context, job *models.JobRequest) error {
	query := `
		INSERT INTO job_requests (organization_id, campaign_id, job_type, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	return d.Pool.QueryRow(ctx, query,
		job.OrganizationID, job.CampaignID, job.JobType, job.Payload, job.Status,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// GetJobRequest retrieves a job-request row by ID.
func (d *DB) GetJobRequest(ctx context.Context, id uuid.UUID) (*models.JobRequest, error) {
	query := `
		SELECT id, organization_id, campaign_id, job_type, payload, status,
		       result_message, locked_at, created_at, updated_at
		FROM job_requests WHERE id = $1
	`

	var job models.JobRequest
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.OrganizationID, &job.CampaignID, &job.JobType, &job.Payload,
		&job.Status, &job.ResultMessage, &job.LockedAt, &job.CreatedAt, &job.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// GetPendingJobRequests returns up to limit pending jobs, oldest first.
func (d *DB) GetPendingJobRequests(ctx context.Context, limit int) ([]*models.JobRequest, error) {
	query := `
		SELECT id, organization_id, campaign_id, job_type, payload, status,
		       result_message, locked_at, created_at, updated_at
		FROM job_requests
		WHERE status = $1 AND locked_at IS NULL
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := d.Pool.Query(ctx, query, models.JobStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.JobRequest
	for rows.Next() {
		var job models.JobRequest
		if err := rows.Scan(
			&job.ID, &job.OrganizationID, &job.CampaignID, &job.JobType, &job.Payload,
			&job.Status, &job.ResultMessage, &job.LockedAt, &job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// MarkJobRunning locks a pending job for execution. Returns ErrJobNotFound
// when another worker already claimed it, which callers treat as "skip".
func (d *DB) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE job_requests
		SET status = $2, locked_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3 AND locked_at IS NULL
	`, id, models.JobStatusRunning, models.JobStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FinishJob records a job's terminal status and result message.
func (d *DB) FinishJob(ctx context.Context, id uuid.UUID, status, resultMessage string) error {
	_, err := d.Pool.Exec(ctx, `
		UPDATE job_requests
		SET status = $2, result_message = $3, locked_at = NULL, updated_at = now()
		WHERE id = $1
	`, id, status, resultMessage)
	return err
}

// ClearOldJobs deletes finished jobs older than the retention interval.
func (d *DB) ClearOldJobs(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `
		DELETE FROM job_requests
		WHERE status IN ($1, $2) AND updated_at < now() - make_interval(days => $3)
	`, models.JobStatusDone, models.JobStatusFailed, retentionDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
