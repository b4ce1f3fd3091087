package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/db"
	"textflow/internal/models"
)

// Executor runs registered tasks and jobs. Every backend funnels execution
// through it so claim/finish bookkeeping is identical regardless of how the
// work arrived.
type Executor struct {
	table *Table
	store JobStore
	log   *zap.Logger
}

// NewExecutor creates an executor over a task table and job store.
func NewExecutor(table *Table, store JobStore, log *zap.Logger) *Executor {
	return &Executor{table: table, store: store, log: log}
}

// ExecuteTask resolves a task name and runs it. An unregistered name is an
// error for the calling backend's failure channel.
func (e *Executor) ExecuteTask(ctx context.Context, name string, payload []byte, budget TimeBudget) error {
	fn, ok := e.table.Task(name)
	if !ok {
		return fmt.Errorf("task %q is not registered", name)
	}
	if budget == nil {
		budget = DefaultBudget
	}
	return fn(ctx, payload, budget)
}

// ExecuteJob loads the persisted job row, claims it and runs the
// registered implementation, recording the outcome on the row. A missing
// row returns db.ErrJobNotFound for the backend to surface. A row already
// claimed by another worker is skipped silently: at-least-once delivery
// makes duplicate claims routine.
func (e *Executor) ExecuteJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := e.store.GetJobRequest(ctx, jobID)
	if err != nil {
		return err
	}

	if err := e.store.MarkJobRunning(ctx, jobID); err != nil {
		if errors.Is(err, db.ErrJobNotFound) {
			e.log.Info("job already claimed, skipping",
				zap.String("job_id", jobID.String()), zap.String("job_type", job.JobType))
			return nil
		}
		return err
	}

	return e.runClaimedJob(ctx, job)
}

// runClaimedJob executes a job the caller has already claimed.
func (e *Executor) runClaimedJob(ctx context.Context, job *models.JobRequest) error {
	fn, ok := e.table.Job(job.JobType)
	if !ok {
		err := fmt.Errorf("job type %q is not registered", job.JobType)
		e.finish(ctx, job.ID, models.JobStatusFailed, err.Error())
		return err
	}

	e.log.Info("running job",
		zap.String("job_id", job.ID.String()), zap.String("job_type", job.JobType))

	if err := fn(ctx, job); err != nil {
		e.finish(ctx, job.ID, models.JobStatusFailed, err.Error())
		return err
	}
	e.finish(ctx, job.ID, models.JobStatusDone, "")
	return nil
}

func (e *Executor) finish(ctx context.Context, jobID uuid.UUID, status, message string) {
	if err := e.store.FinishJob(ctx, jobID, status, message); err != nil {
		e.log.Error("failed to record job outcome",
			zap.String("job_id", jobID.String()), zap.String("status", status), zap.Error(err))
	}
}
