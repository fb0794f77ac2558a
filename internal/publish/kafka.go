package publish

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"zonetime/internal/types"
)

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one message per published snapshot, keyed by entity so
// snapshots of one person stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaWriter builds a synchronous writer that waits for all in-sync
// replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
}

// NewKafkaSink wraps writer. topic is only used for logging.
func NewKafkaSink(writer MessageWriter, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{writer: writer, topic: topic, logger: logger}
}

// Name implements scheduler.SnapshotPublisher.
func (k *KafkaSink) Name() string { return "kafka" }

// Publish serializes the result and writes it.
func (k *KafkaSink) Publish(ctx context.Context, r *types.DwellResult) error {
	body, err := encode(r)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode snapshot", err)
	}

	msg := kafka.Message{
		Key:   []byte(r.EntityID),
		Value: body,
		Time:  r.LastUpdated,
		Headers: []kafka.Header{
			{Key: "cycle_id", Value: []byte(r.CycleID)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(SchemaVersion))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPublish, "failed to write snapshot to topic "+k.topic, err)
	}

	k.logger.InfoContext(ctx, "snapshot published", "sink", k.Name(), "topic", k.topic, "cycle_id", r.CycleID)
	return nil
}

// Close releases the writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
