// Package dispatch provides the uniform contract for submitting named
// asynchronous tasks and durable jobs, with interchangeable backends: an
// in-process runner, a Kafka queue, and Lambda invocation. Retry policy is
// entirely a backend property; this package never retries on its own.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/config"
	"textflow/internal/models"
)

// TimeBudget reports the remaining execution time a task may rely on.
// Backends without a host-imposed deadline supply a generous constant.
type TimeBudget func() time.Duration

// DefaultBudget is used where no host deadline exists.
func DefaultBudget() time.Duration { return 5 * time.Minute }

// TaskFunc is a registered task implementation. The payload is opaque to
// the dispatcher.
type TaskFunc func(ctx context.Context, payload []byte, budget TimeBudget) error

// JobFunc is a registered job implementation, invoked with the persisted
// job-request row.
type JobFunc func(ctx context.Context, job *models.JobRequest) error

// Dispatcher is the process-wide dispatch contract. Exactly one
// implementation is selected at startup.
type Dispatcher interface {
	// DispatchTask schedules a named task with an opaque payload. It must
	// not block on completion when the backend is asynchronous.
	DispatchTask(ctx context.Context, name string, payload []byte) error
	// DispatchJob schedules a previously persisted job-request row for
	// one-time execution by some worker.
	DispatchJob(ctx context.Context, jobID uuid.UUID) error
	// FullyConfigured reports readiness. Checked once at startup; a false
	// answer fails the process fast rather than silently falling back.
	FullyConfigured() bool
	// Name identifies the backend in logs and metrics.
	Name() string
}

// JobStore is the durable job-request boundary the executor works through.
type JobStore interface {
	GetJobRequest(ctx context.Context, id uuid.UUID) (*models.JobRequest, error)
	GetPendingJobRequests(ctx context.Context, limit int) ([]*models.JobRequest, error)
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	FinishJob(ctx context.Context, id uuid.UUID, status, resultMessage string) error
}

// Table maps task names and job types to registered implementations.
// Built once during startup wiring; lookups afterwards are read-only.
type Table struct {
	tasks map[string]TaskFunc
	jobs  map[string]JobFunc
}

// NewTable creates an empty task/job table.
func NewTable() *Table {
	return &Table{tasks: map[string]TaskFunc{}, jobs: map[string]JobFunc{}}
}

// RegisterTask registers a task implementation under a name.
func (t *Table) RegisterTask(name string, fn TaskFunc) {
	t.tasks[name] = fn
}

// RegisterJob registers a job implementation under a job type.
func (t *Table) RegisterJob(jobType string, fn JobFunc) {
	t.jobs[jobType] = fn
}

// Task returns the registered task function for a name.
func (t *Table) Task(name string) (TaskFunc, bool) {
	fn, ok := t.tasks[name]
	return fn, ok
}

// Job returns the registered job function for a job type.
func (t *Table) Job(jobType string) (JobFunc, bool) {
	fn, ok := t.jobs[jobType]
	return fn, ok
}

// Select builds the configured dispatch backend and verifies it is fully
// configured, failing startup otherwise.
func Select(ctx context.Context, cfg *config.Config, exec *Executor, log *zap.Logger) (Dispatcher, error) {
	var d Dispatcher
	var err error

	switch cfg.JobRunner {
	case config.RunnerLocal:
		d = NewLocalRunner(exec, cfg.JobsSameProcess, log)
	case config.RunnerKafka:
		d, err = NewKafkaRunner(cfg, log)
	case config.RunnerLambda:
		d, err = NewLambdaRunner(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("job runner %q not found", cfg.JobRunner)
	}
	if err != nil {
		return nil, err
	}

	if !d.FullyConfigured() {
		return nil, fmt.Errorf("job runner %q is not fully configured", d.Name())
	}

	log.Info("loaded job runner", zap.String("name", d.Name()))
	return d, nil
}
