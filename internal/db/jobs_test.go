package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"textflow/internal/models"
)

func createTestJob(t *testing.T, database *DB, orgID uuid.UUID, campaignID *uuid.UUID, jobType string) *models.JobRequest {
	t.Helper()
	job := &models.JobRequest{
		OrganizationID: orgID,
		CampaignID:     campaignID,
		JobType:        jobType,
		Payload:        []byte(`{}`),
	}
	if err := database.CreateJobRequest(context.Background(), job); err != nil {
		t.Fatalf("CreateJobRequest() error = %v", err)
	}
	return job
}

func TestCreateJobRequest(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	campaign := createTestCampaign(t, db, org.ID)

	job := &models.JobRequest{
		OrganizationID: org.ID,
		CampaignID:     &campaign.ID,
		JobType:        "start-campaign",
		Payload:        []byte(`{"campaign_id":"x"}`),
	}
	if err := db.CreateJobRequest(ctx, job); err != nil {
		t.Fatalf("CreateJobRequest() error = %v", err)
	}

	if job.ID == uuid.Nil {
		t.Error("CreateJobRequest() did not set ID")
	}
	if job.Status != models.JobStatusPending {
		t.Errorf("CreateJobRequest() status = %q, want %q", job.Status, models.JobStatusPending)
	}

	found, err := db.GetJobRequest(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJobRequest() error = %v", err)
	}
	if found.JobType != "start-campaign" {
		t.Errorf("GetJobRequest() type = %q, want %q", found.JobType, "start-campaign")
	}
	if string(found.Payload) != `{"campaign_id":"x"}` {
		t.Errorf("GetJobRequest() payload = %q", found.Payload)
	}
	if found.CampaignID == nil || *found.CampaignID != campaign.ID {
		t.Errorf("GetJobRequest() campaign = %v, want %v", found.CampaignID, campaign.ID)
	}
	if found.LockedAt != nil {
		t.Error("GetJobRequest() locked_at should start NULL")
	}
}

func TestGetJobRequest_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.GetJobRequest(context.Background(), uuid.New())
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJobRequest() error = %v, want ErrJobNotFound", err)
	}
}

func TestMarkJobRunning_ClaimOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	job := createTestJob(t, db, org.ID, nil, "archive-campaign")

	if err := db.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkJobRunning() error = %v", err)
	}

	found, err := db.GetJobRequest(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJobRequest() error = %v", err)
	}
	if found.Status != models.JobStatusRunning {
		t.Errorf("status after claim = %q, want %q", found.Status, models.JobStatusRunning)
	}
	if found.LockedAt == nil {
		t.Error("MarkJobRunning() did not set locked_at")
	}

	// A second worker claiming the same row loses.
	err = db.MarkJobRunning(ctx, job.ID)
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second MarkJobRunning() error = %v, want ErrJobNotFound", err)
	}
}

func TestFinishJob(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	job := createTestJob(t, db, org.ID, nil, "archive-campaign")

	if err := db.MarkJobRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkJobRunning() error = %v", err)
	}
	if err := db.FinishJob(ctx, job.ID, models.JobStatusFailed, "no such campaign"); err != nil {
		t.Fatalf("FinishJob() error = %v", err)
	}

	found, err := db.GetJobRequest(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJobRequest() error = %v", err)
	}
	if found.Status != models.JobStatusFailed {
		t.Errorf("status = %q, want %q", found.Status, models.JobStatusFailed)
	}
	if found.ResultMessage != "no such campaign" {
		t.Errorf("result_message = %q, want %q", found.ResultMessage, "no such campaign")
	}
	if found.LockedAt != nil {
		t.Error("FinishJob() did not release the lock")
	}
}

func TestGetPendingJobRequests(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	first := createTestJob(t, db, org.ID, nil, "start-campaign")
	second := createTestJob(t, db, org.ID, nil, "archive-campaign")
	claimed := createTestJob(t, db, org.ID, nil, "start-campaign")

	if err := db.MarkJobRunning(ctx, claimed.ID); err != nil {
		t.Fatalf("MarkJobRunning() error = %v", err)
	}

	jobs, err := db.GetPendingJobRequests(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingJobRequests() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("GetPendingJobRequests() = %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Errorf("GetPendingJobRequests() order = %v, %v; want oldest first", jobs[0].ID, jobs[1].ID)
	}

	// Limit applies
	jobs, err = db.GetPendingJobRequests(ctx, 1)
	if err != nil {
		t.Fatalf("GetPendingJobRequests() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("GetPendingJobRequests(limit=1) = %d jobs, want 1", len(jobs))
	}
}

func TestClearOldJobs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	old := createTestJob(t, db, org.ID, nil, "start-campaign")
	recent := createTestJob(t, db, org.ID, nil, "start-campaign")
	pending := createTestJob(t, db, org.ID, nil, "archive-campaign")

	if err := db.FinishJob(ctx, old.ID, models.JobStatusDone, ""); err != nil {
		t.Fatalf("FinishJob() error = %v", err)
	}
	if err := db.FinishJob(ctx, recent.ID, models.JobStatusDone, ""); err != nil {
		t.Fatalf("FinishJob() error = %v", err)
	}
	// Backdate one finished row past the retention window.
	if _, err := db.Pool.Exec(ctx, `
		UPDATE job_requests SET updated_at = now() - interval '30 days' WHERE id = $1
	`, old.ID); err != nil {
		t.Fatalf("failed to backdate job: %v", err)
	}

	n, err := db.ClearOldJobs(ctx, 7)
	if err != nil {
		t.Fatalf("ClearOldJobs() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ClearOldJobs() = %d, want 1", n)
	}

	if _, err := db.GetJobRequest(ctx, old.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("old job error = %v, want ErrJobNotFound", err)
	}
	if _, err := db.GetJobRequest(ctx, recent.ID); err != nil {
		t.Errorf("recent finished job should survive: %v", err)
	}
	if _, err := db.GetJobRequest(ctx, pending.ID); err != nil {
		t.Errorf("pending job should survive: %v", err)
	}
}
