package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/config"
	"textflow/internal/metrics"
)

// queueEvent is the wire format shared by the kafka and lambda backends.
type queueEvent struct {
	Type     string          `json:"type"`
	TaskName string          `json:"task_name,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	JobID    uuid.UUID       `json:"job_id,omitempty"`
}

const (
	eventTypeTask = "TASK"
	eventTypeJob  = "JOB"
)

// KafkaRunner publishes dispatches to two topics: ad hoc named tasks on
// one, durable job-request ids on the other. Delivery and retry are the
// queue's responsibility.
type KafkaRunner struct {
	producer  sarama.SyncProducer
	taskTopic string
	jobTopic  string
	log       *zap.Logger
}

// NewKafkaRunner connects a synchronous producer to the configured brokers.
func NewKafkaRunner(cfg *config.Config, log *zap.Logger) (*KafkaRunner, error) {
	if len(cfg.KafkaBrokers) == 0 {
		// FullyConfigured reports the problem; Select turns it into a
		// startup failure with a uniform message.
		return &KafkaRunner{taskTopic: cfg.KafkaTaskTopic, jobTopic: cfg.KafkaJobTopic, log: log}, nil
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaRunner{
		producer:  producer,
		taskTopic: cfg.KafkaTaskTopic,
		jobTopic:  cfg.KafkaJobTopic,
		log:       log,
	}, nil
}

// Name implements Dispatcher.
func (k *KafkaRunner) Name() string { return "kafka" }

// FullyConfigured implements Dispatcher.
func (k *KafkaRunner) FullyConfigured() bool {
	return k.producer != nil && k.taskTopic != "" && k.jobTopic != ""
}

// DispatchTask implements Dispatcher.
func (k *KafkaRunner) DispatchTask(_ context.Context, name string, payload []byte) error {
	event := queueEvent{Type: eventTypeTask, TaskName: name, Payload: payload}
	return k.publish(k.taskTopic, name, event, "task")
}

// DispatchJob implements Dispatcher.
func (k *KafkaRunner) DispatchJob(_ context.Context, jobID uuid.UUID) error {
	event := queueEvent{Type: eventTypeJob, JobID: jobID}
	return k.publish(k.jobTopic, jobID.String(), event, "job")
}

func (k *KafkaRunner) publish(topic, key string, event queueEvent, kind string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(k.Name(), kind, "error").Inc()
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	metrics.DispatchTotal.WithLabelValues(k.Name(), kind, "queued").Inc()
	return nil
}

// Close shuts down the producer.
func (k *KafkaRunner) Close() error {
	if k.producer == nil {
		return nil
	}
	return k.producer.Close()
}

// Worker consumes both dispatch topics with a consumer group and executes
// the work. It satisfies sarama.ConsumerGroupHandler.
type Worker struct {
	exec   *Executor
	group  sarama.ConsumerGroup
	topics []string
	log    *zap.Logger
}

// NewWorker creates a queue worker over the configured topics.
func NewWorker(cfg *config.Config, exec *Executor, log *zap.Logger) (*Worker, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.KafkaBrokers, cfg.KafkaGroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Worker{
		exec:   exec,
		group:  group,
		topics: []string{cfg.KafkaTaskTopic, cfg.KafkaJobTopic},
		log:    log,
	}, nil
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		if err := w.group.Close(); err != nil {
			w.log.Warn("failed to close consumer group", zap.Error(err))
		}
	}()

	w.log.Info("queue worker started", zap.Strings("topics", w.topics))

	for {
		if err := w.group.Consume(ctx, w.topics, w); err != nil {
			w.log.Error("consume error", zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Setup implements sarama.ConsumerGroupHandler.
func (w *Worker) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		w.log.Info("partition assignment",
			zap.String("topic", topic), zap.Any("partitions", partitions))
	}
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim executes each message's work. A failure is returned to the
// queue unmarked so the queue's own retry semantics apply; in particular a
// dispatched job id with no job row is a hard error, never swallowed.
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := w.handle(session.Context(), msg.Value); err != nil {
			w.log.Error("queue message failed",
				zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
			metrics.DispatchTotal.WithLabelValues("kafka", "consume", "error").Inc()
			return err
		}
		session.MarkMessage(msg, "")
		metrics.DispatchTotal.WithLabelValues("kafka", "consume", "ok").Inc()
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, value []byte) error {
	var event queueEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("malformed queue event: %w", err)
	}

	switch event.Type {
	case eventTypeTask:
		return w.exec.ExecuteTask(ctx, event.TaskName, event.Payload, DefaultBudget)
	case eventTypeJob:
		return w.exec.ExecuteJob(ctx, event.JobID)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}
