package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/metrics"
)

// LocalRunner executes work in the dispatching process. Tasks run on their
// own goroutine unless same-process mode forces inline execution; jobs stay
// pending on their durable rows until a Sweep picks them up.
type LocalRunner struct {
	exec   *Executor
	inline bool
	log    *zap.Logger
}

// NewLocalRunner creates the in-process backend. inline runs tasks and jobs
// synchronously in the caller, which tests and single-process deployments
// rely on.
func NewLocalRunner(exec *Executor, inline bool, log *zap.Logger) *LocalRunner {
	return &LocalRunner{exec: exec, inline: inline, log: log}
}

// Name implements Dispatcher.
func (l *LocalRunner) Name() string { return "local" }

// FullyConfigured implements Dispatcher. The local backend needs nothing
// external.
func (l *LocalRunner) FullyConfigured() bool { return true }

// DispatchTask implements Dispatcher.
func (l *LocalRunner) DispatchTask(ctx context.Context, name string, payload []byte) error {
	if l.inline {
		err := l.exec.ExecuteTask(ctx, name, payload, DefaultBudget)
		l.record("task", err)
		return err
	}

	go func() {
		// The request context that triggered the dispatch may end before
		// the task does; tasks get their own lifetime.
		err := l.exec.ExecuteTask(context.Background(), name, payload, DefaultBudget)
		l.record("task", err)
		if err != nil {
			l.log.Error("task failed", zap.String("task", name), zap.Error(err))
		}
	}()
	return nil
}

// DispatchJob implements Dispatcher. The job row is already pending in the
// durable store; the next sweep executes it. Inline mode executes it now.
func (l *LocalRunner) DispatchJob(ctx context.Context, jobID uuid.UUID) error {
	if l.inline {
		err := l.exec.ExecuteJob(ctx, jobID)
		l.record("job", err)
		return err
	}
	metrics.DispatchTotal.WithLabelValues(l.Name(), "job", "queued").Inc()
	return nil
}

// Sweep executes all currently pending job rows, oldest first. One job's
// failure or panic never prevents the rest of the sweep from running.
func (l *LocalRunner) Sweep(ctx context.Context, batchSize int) {
	jobs, err := l.exec.store.GetPendingJobRequests(ctx, batchSize)
	if err != nil {
		l.log.Error("sweep could not list pending jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		l.runOne(ctx, job.ID)
	}
}

func (l *LocalRunner) runOne(ctx context.Context, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("job panicked",
				zap.String("job_id", jobID.String()), zap.Any("panic", r))
			metrics.DispatchTotal.WithLabelValues(l.Name(), "job", "error").Inc()
		}
	}()

	err := l.exec.ExecuteJob(ctx, jobID)
	l.record("job", err)
	if err != nil {
		l.log.Error("job failed", zap.String("job_id", jobID.String()), zap.Error(err))
	}
}

func (l *LocalRunner) record(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.DispatchTotal.WithLabelValues(l.Name(), kind, outcome).Inc()
}
