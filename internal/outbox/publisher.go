package outbox

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers outbox records to a broker.
type Publisher interface {
	Publish(ctx context.Context, recs ...Record) error
	Close() error
}

// KafkaPublisher writes records to Kafka, keyed by the record key so all
// events of one checkout land on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaPublisher creates a publisher for brokers. The topic of each
// message comes from its record.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Publish writes recs as one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, recs ...Record) error {
	msgs := make([]kafka.Message, 0, len(recs))
	for _, r := range recs {
		msgs = append(msgs, toMessage(r))
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(r Record) kafka.Message {
	return kafka.Message{
		Topic: r.Topic,
		Key:   []byte(r.Key),
		Value: r.Payload,
		Time:  r.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.EventID)},
		},
	}
}

// LogPublisher logs records instead of sending them. Used when no brokers
// are configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs each record at info level.
func (p LogPublisher) Publish(ctx context.Context, recs ...Record) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, r := range recs {
		logger.InfoContext(ctx, "outbox event", "event_id", r.EventID, "topic", r.Topic, "key", r.Key)
	}
	return nil
}

// Close does nothing.
func (LogPublisher) Close() error { return nil }
