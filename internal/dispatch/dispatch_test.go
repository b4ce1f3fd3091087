package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"textflow/internal/config"
	"textflow/internal/db"
	"textflow/internal/models"
)

// fakeJobStore is an in-memory JobStore with the same claim semantics as
// the durable one: claiming anything but a pending row fails with
// db.ErrJobNotFound.
type fakeJobStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*models.JobRequest
	order []uuid.UUID
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*models.JobRequest{}}
}

func (f *fakeJobStore) add(jobType string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.jobs[id] = &models.JobRequest{ID: id, JobType: jobType, Status: models.JobStatusPending}
	f.order = append(f.order, id)
	return id
}

func (f *fakeJobStore) status(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id].Status
}

func (f *fakeJobStore) GetJobRequest(ctx context.Context, id uuid.UUID) (*models.JobRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, db.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobStore) GetPendingJobRequests(ctx context.Context, limit int) ([]*models.JobRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.JobRequest
	for _, id := range f.order {
		if len(out) >= limit {
			break
		}
		if job := f.jobs[id]; job.Status == models.JobStatusPending {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobStore) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != models.JobStatusPending {
		return db.ErrJobNotFound
	}
	job.Status = models.JobStatusRunning
	return nil
}

func (f *fakeJobStore) FinishJob(ctx context.Context, id uuid.UUID, status, resultMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return db.ErrJobNotFound
	}
	job.Status = status
	job.ResultMessage = resultMessage
	return nil
}

func newTestExecutor(store *fakeJobStore) (*Executor, *Table) {
	table := NewTable()
	return NewExecutor(table, store, zap.NewNop()), table
}

func TestExecuteTaskUnregistered(t *testing.T) {
	exec, _ := newTestExecutor(newFakeJobStore())

	err := exec.ExecuteTask(context.Background(), "nope", nil, nil)
	require.Error(t, err)
}

func TestExecuteTaskDefaultBudget(t *testing.T) {
	exec, table := newTestExecutor(newFakeJobStore())

	var got time.Duration
	table.RegisterTask("probe", func(ctx context.Context, payload []byte, budget TimeBudget) error {
		got = budget()
		return nil
	})

	require.NoError(t, exec.ExecuteTask(context.Background(), "probe", nil, nil))
	require.Equal(t, DefaultBudget(), got)
}

func TestExecuteJobSuccessMarksDone(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)

	ran := false
	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error {
		ran = true
		return nil
	})

	id := store.add("export")
	require.NoError(t, exec.ExecuteJob(context.Background(), id))
	require.True(t, ran)
	require.Equal(t, models.JobStatusDone, store.status(id))
}

func TestExecuteJobFailureMarksFailed(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)

	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error {
		return errors.New("upstream unavailable")
	})

	id := store.add("export")
	require.Error(t, exec.ExecuteJob(context.Background(), id))
	require.Equal(t, models.JobStatusFailed, store.status(id))
}

func TestExecuteJobMissingRow(t *testing.T) {
	exec, _ := newTestExecutor(newFakeJobStore())

	err := exec.ExecuteJob(context.Background(), uuid.New())
	require.ErrorIs(t, err, db.ErrJobNotFound)
}

func TestExecuteJobAlreadyClaimedSkips(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)

	runs := 0
	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error {
		runs++
		return nil
	})

	id := store.add("export")
	require.NoError(t, exec.ExecuteJob(context.Background(), id))
	// A second delivery of the same id must be a silent no-op.
	require.NoError(t, exec.ExecuteJob(context.Background(), id))
	require.Equal(t, 1, runs)
}

func TestExecuteJobUnregisteredTypeMarksFailed(t *testing.T) {
	store := newFakeJobStore()
	exec, _ := newTestExecutor(store)

	id := store.add("mystery")
	require.Error(t, exec.ExecuteJob(context.Background(), id))
	require.Equal(t, models.JobStatusFailed, store.status(id))
}

func TestLocalRunnerInline(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)
	runner := NewLocalRunner(exec, true, zap.NewNop())

	var taskRan bool
	table.RegisterTask("ping", func(ctx context.Context, payload []byte, budget TimeBudget) error {
		taskRan = true
		return nil
	})
	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error { return nil })

	require.NoError(t, runner.DispatchTask(context.Background(), "ping", nil))
	require.True(t, taskRan, "inline mode runs the task in the caller")

	id := store.add("export")
	require.NoError(t, runner.DispatchJob(context.Background(), id))
	require.Equal(t, models.JobStatusDone, store.status(id))
}

func TestLocalRunnerDeferredJobStaysPending(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)
	runner := NewLocalRunner(exec, false, zap.NewNop())

	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error { return nil })

	id := store.add("export")
	require.NoError(t, runner.DispatchJob(context.Background(), id))
	require.Equal(t, models.JobStatusPending, store.status(id), "non-inline dispatch leaves the row for the sweep")

	runner.Sweep(context.Background(), 10)
	require.Equal(t, models.JobStatusDone, store.status(id))
}

func TestSweepIsolatesFailures(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)
	runner := NewLocalRunner(exec, false, zap.NewNop())

	table.RegisterJob("good", func(ctx context.Context, job *models.JobRequest) error { return nil })
	table.RegisterJob("bad", func(ctx context.Context, job *models.JobRequest) error {
		return errors.New("boom")
	})
	table.RegisterJob("panics", func(ctx context.Context, job *models.JobRequest) error {
		panic("unexpected state")
	})

	first := store.add("good")
	second := store.add("bad")
	third := store.add("panics")
	fourth := store.add("good")

	runner.Sweep(context.Background(), 10)

	require.Equal(t, models.JobStatusDone, store.status(first))
	require.Equal(t, models.JobStatusFailed, store.status(second))
	require.Equal(t, models.JobStatusRunning, store.status(third), "a panicking job stays claimed")
	require.Equal(t, models.JobStatusDone, store.status(fourth), "failures must not stop the sweep")
}

func TestSweepHonorsContextCancellation(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)
	runner := NewLocalRunner(exec, false, zap.NewNop())

	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error { return nil })
	id := store.add("export")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner.Sweep(ctx, 10)

	require.Equal(t, models.JobStatusPending, store.status(id))
}

func TestQueueEventRoundTrip(t *testing.T) {
	jobID := uuid.New()
	tests := []struct {
		name  string
		event queueEvent
	}{
		{
			name:  "task event",
			event: queueEvent{Type: eventTypeTask, TaskName: "update-assigned-count", Payload: json.RawMessage(`{"campaign_id":"x"}`)},
		},
		{
			name:  "job event",
			event: queueEvent{Type: eventTypeJob, JobID: jobID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)

			var decoded queueEvent
			require.NoError(t, json.Unmarshal(data, &decoded))
			require.Equal(t, tt.event.Type, decoded.Type)
			require.Equal(t, tt.event.TaskName, decoded.TaskName)
			require.Equal(t, tt.event.JobID, decoded.JobID)
			if len(tt.event.Payload) > 0 {
				require.JSONEq(t, string(tt.event.Payload), string(decoded.Payload), "payload must survive as raw JSON")
			}
		})
	}
}

func TestWorkerHandle(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)
	w := &Worker{exec: exec, log: zap.NewNop()}

	var payload []byte
	table.RegisterTask("ping", func(ctx context.Context, p []byte, budget TimeBudget) error {
		payload = p
		return nil
	})
	table.RegisterJob("export", func(ctx context.Context, job *models.JobRequest) error { return nil })

	taskEvent, _ := json.Marshal(queueEvent{Type: eventTypeTask, TaskName: "ping", Payload: json.RawMessage(`{"n":1}`)})
	require.NoError(t, w.handle(context.Background(), taskEvent))
	require.JSONEq(t, `{"n":1}`, string(payload))

	id := store.add("export")
	jobEvent, _ := json.Marshal(queueEvent{Type: eventTypeJob, JobID: id})
	require.NoError(t, w.handle(context.Background(), jobEvent))
	require.Equal(t, models.JobStatusDone, store.status(id))
}

func TestWorkerHandleHardErrors(t *testing.T) {
	store := newFakeJobStore()
	exec, _ := newTestExecutor(store)
	w := &Worker{exec: exec, log: zap.NewNop()}
	ctx := context.Background()

	require.Error(t, w.handle(ctx, []byte("{malformed")), "malformed events are hard errors")

	unknown, _ := json.Marshal(queueEvent{Type: "MAINTENANCE"})
	require.Error(t, w.handle(ctx, unknown))

	// A job id with no row must bounce back to the queue for retry.
	missing, _ := json.Marshal(queueEvent{Type: eventTypeJob, JobID: uuid.New()})
	require.ErrorIs(t, w.handle(ctx, missing), db.ErrJobNotFound)
}

func TestLambdaHandlerSuppressesBusinessErrors(t *testing.T) {
	store := newFakeJobStore()
	exec, table := newTestExecutor(store)
	handler := NewLambdaHandler(exec, zap.NewNop())
	ctx := context.Background()

	table.RegisterTask("fails", func(ctx context.Context, payload []byte, budget TimeBudget) error {
		return errors.New("downstream timeout")
	})
	table.RegisterJob("fails", func(ctx context.Context, job *models.JobRequest) error {
		return errors.New("downstream timeout")
	})

	require.NoError(t, handler(ctx, queueEvent{Type: eventTypeTask, TaskName: "fails"}),
		"task failures must not trigger host retries")

	id := store.add("fails")
	require.NoError(t, handler(ctx, queueEvent{Type: eventTypeJob, JobID: id}),
		"job failures are recorded on the row, not retried by the host")
	require.Equal(t, models.JobStatusFailed, store.status(id))
}

func TestLambdaHandlerRejectsMalformedEvents(t *testing.T) {
	exec, _ := newTestExecutor(newFakeJobStore())
	handler := NewLambdaHandler(exec, zap.NewNop())
	ctx := context.Background()

	require.Error(t, handler(ctx, queueEvent{Type: eventTypeJob}), "JOB without a job id")
	require.Error(t, handler(ctx, queueEvent{Type: eventTypeTask}), "TASK without a name")
	require.Error(t, handler(ctx, queueEvent{Type: "MAINTENANCE"}))
}

func TestLambdaHandlerBudgetFromDeadline(t *testing.T) {
	exec, table := newTestExecutor(newFakeJobStore())
	handler := NewLambdaHandler(exec, zap.NewNop())

	var got time.Duration
	table.RegisterTask("probe", func(ctx context.Context, payload []byte, budget TimeBudget) error {
		got = budget()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, handler(ctx, queueEvent{Type: eventTypeTask, TaskName: "probe"}))
	require.Greater(t, got, 20*time.Second)
	require.LessOrEqual(t, got, 30*time.Second)
}

func TestHostBudgetWithoutDeadline(t *testing.T) {
	budget := hostBudget(context.Background())
	require.Equal(t, DefaultBudget(), budget())
}

func TestSelectLocalRunner(t *testing.T) {
	exec, _ := newTestExecutor(newFakeJobStore())

	d, err := Select(context.Background(), &config.Config{JobRunner: config.RunnerLocal}, exec, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "local", d.Name())
	require.True(t, d.FullyConfigured())
}

func TestSelectKafkaWithoutBrokersFails(t *testing.T) {
	exec, _ := newTestExecutor(newFakeJobStore())

	_, err := Select(context.Background(), &config.Config{
		JobRunner:      config.RunnerKafka,
		KafkaTaskTopic: "tasks",
		KafkaJobTopic:  "jobs",
	}, exec, zap.NewNop())
	require.Error(t, err, "an unconfigured backend must fail startup")
}

func TestLambdaRunnerUnconfigured(t *testing.T) {
	runner, err := NewLambdaRunner(context.Background(), &config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, runner.FullyConfigured())
}
