package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Louguiman/tekra-store-sub002/internal/platform/config"
)

// KafkaNotifier publishes notifications to a Kafka topic for SIEM and
// alerting pipelines. Notify only enqueues into a bounded ring buffer;
// the Run loop drains it in batches so a slow broker never backs up into
// the recorder's write path.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	buffer *RingBuffer
	logger *slog.Logger

	flushInterval time.Duration
	batchSize     int
}

// kafkaPayload is the JSON structure published per notification.
type kafkaPayload struct {
	Kind        string `json:"Kind"`
	ID          string `json:"ID"`
	Action      string `json:"Action,omitempty"`
	AlertType   string `json:"AlertType,omitempty"`
	Severity    string `json:"Severity"`
	Description string `json:"Description,omitempty"`
	ActorID     string `json:"ActorID,omitempty"`
	IP          string `json:"IP,omitempty"`
	Timestamp   string `json:"Timestamp"`
}

// KafkaOption configures the KafkaNotifier.
type KafkaOption func(*KafkaNotifier)

// WithDropCounter sets the counter incremented when the buffer overflows
// and drops its oldest pending notification.
func WithDropCounter(c FailureCounter) KafkaOption {
	return func(k *KafkaNotifier) { k.buffer.SetDropHook(c.Inc) }
}

// NewKafkaNotifier connects to the brokers and ensures the topic exists.
// Topic creation failures on already-existing topics are ignored.
func NewKafkaNotifier(cfg config.KafkaConfig, logger *slog.Logger, opts ...KafkaOption) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 3, 1, nil, cfg.Topic); err != nil {
		logger.Warn("kafka topic creation failed, assuming it exists",
			"topic", cfg.Topic,
			"error", err,
		)
	}

	k := &KafkaNotifier{
		client:        client,
		topic:         cfg.Topic,
		buffer:        NewRingBuffer(cfg.BufferSize),
		logger:        logger,
		flushInterval: time.Second,
		batchSize:     256,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Notify enqueues the notification. It never blocks and never fails; if
// the buffer is full the oldest pending notification is dropped.
func (k *KafkaNotifier) Notify(_ context.Context, n Notification) error {
	k.buffer.Enqueue(n)
	return nil
}

// Run drains the buffer until ctx is cancelled, then performs a final
// flush and closes the client.
func (k *KafkaNotifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush with a fresh context: the run context is gone.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			k.flush(flushCtx)
			cancel()
			k.client.Close()
			return ctx.Err()
		case <-ticker.C:
			k.flush(ctx)
		}
	}
}

func (k *KafkaNotifier) flush(ctx context.Context) {
	for {
		batch := k.buffer.DequeueBatch(k.batchSize)
		if len(batch) == 0 {
			return
		}

		records := make([]*kgo.Record, 0, len(batch))
		for _, n := range batch {
			payload, err := json.Marshal(kafkaPayload{
				Kind:        string(n.Kind),
				ID:          n.ID.String(),
				Action:      n.Action,
				AlertType:   n.AlertType,
				Severity:    n.Severity,
				Description: n.Description,
				ActorID:     n.ActorID,
				IP:          n.IPAddress,
				Timestamp:   n.CreatedAt.Format(time.RFC3339Nano),
			})
			if err != nil {
				k.logger.Warn("failed to marshal notification", "id", n.ID, "error", err)
				continue
			}
			records = append(records, &kgo.Record{
				Topic: k.topic,
				Key:   []byte(n.ID.String()),
				Value: payload,
			})
		}
		if len(records) == 0 {
			continue
		}

		if err := k.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
			k.logger.Warn("kafka produce failed, notifications dropped",
				"count", len(records),
				"error", err,
			)
			return
		}
	}
}

// Buffered returns the number of notifications waiting for the next flush.
func (k *KafkaNotifier) Buffered() int {
	return k.buffer.Len()
}
