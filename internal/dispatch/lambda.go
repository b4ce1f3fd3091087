package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/config"
	"textflow/internal/metrics"
)

// lambdaInvoker is the slice of the Lambda API the runner needs.
type lambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaRunner dispatches work by asynchronously invoking a Lambda
// function per event. The host guarantees at-least-once delivery.
type LambdaRunner struct {
	client   lambdaInvoker
	function string
	log      *zap.Logger
}

// NewLambdaRunner builds the serverless backend from the ambient AWS
// configuration.
func NewLambdaRunner(ctx context.Context, cfg *config.Config, log *zap.Logger) (*LambdaRunner, error) {
	if cfg.LambdaFunction == "" {
		return &LambdaRunner{log: log}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &LambdaRunner{
		client:   lambda.NewFromConfig(awsCfg),
		function: cfg.LambdaFunction,
		log:      log,
	}, nil
}

// Name implements Dispatcher.
func (l *LambdaRunner) Name() string { return "lambda" }

// FullyConfigured implements Dispatcher.
func (l *LambdaRunner) FullyConfigured() bool {
	return l.client != nil && l.function != ""
}

// DispatchTask implements Dispatcher.
func (l *LambdaRunner) DispatchTask(ctx context.Context, name string, payload []byte) error {
	return l.invoke(ctx, queueEvent{Type: eventTypeTask, TaskName: name, Payload: payload}, "task")
}

// DispatchJob implements Dispatcher.
func (l *LambdaRunner) DispatchJob(ctx context.Context, jobID uuid.UUID) error {
	return l.invoke(ctx, queueEvent{Type: eventTypeJob, JobID: jobID}, "job")
}

func (l *LambdaRunner) invoke(ctx context.Context, event queueEvent, kind string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}

	_, err = l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &l.function,
		InvocationType: types.InvocationTypeEvent,
		Payload:        data,
	})
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(l.Name(), kind, "error").Inc()
		return fmt.Errorf("failed to invoke %s: %w", l.function, err)
	}

	metrics.DispatchTotal.WithLabelValues(l.Name(), kind, "queued").Inc()
	return nil
}

// NewLambdaHandler returns the function-compute entry point. Business
// errors are logged and suppressed so the host does not retry logically
// completed work; only malformed events abort the invocation.
func NewLambdaHandler(exec *Executor, log *zap.Logger) func(ctx context.Context, event queueEvent) error {
	return func(ctx context.Context, event queueEvent) error {
		log.Info("received event",
			zap.String("type", event.Type), zap.String("task", event.TaskName))

		switch event.Type {
		case eventTypeJob:
			if event.JobID == uuid.Nil {
				return fmt.Errorf("missing job_id in JOB event")
			}
			if err := exec.ExecuteJob(ctx, event.JobID); err != nil {
				log.Error("caught error while processing job",
					zap.String("job_id", event.JobID.String()), zap.Error(err))
			}
			return nil

		case eventTypeTask:
			if event.TaskName == "" {
				return fmt.Errorf("missing task_name in TASK event")
			}
			budget := hostBudget(ctx)
			if err := exec.ExecuteTask(ctx, event.TaskName, event.Payload, budget); err != nil {
				log.Error("caught error while processing task",
					zap.String("task", event.TaskName), zap.Error(err))
			}
			return nil

		default:
			return fmt.Errorf("unknown event type %q", event.Type)
		}
	}
}

// hostBudget derives a remaining-time budget from the invocation deadline
// the host put on the context.
func hostBudget(ctx context.Context) TimeBudget {
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultBudget
	}
	return func() time.Duration { return time.Until(deadline) }
}
