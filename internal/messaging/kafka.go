// Package messaging publishes domain events to Kafka.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one record to publish. Records sharing a key land on the same
// partition and keep their relative order.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type KafkaPublisher struct {
	writer  *kafka.Writer
	brokers []string
	logger  *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	logger = logger.With("component", "kafka-publisher", "topic", topic)
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}

	logger.Info("kafka publisher initialized", "brokers", brokers)
	return &KafkaPublisher{writer: writer, brokers: brokers, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	p.logger.Debug("message published", "key", string(msg.Key))
	return nil
}

// Ping succeeds if any configured broker accepts a connection.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("Ping: no broker reachable: %w", errors.Join(errs...))
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	p.logger.Info("kafka publisher closed")
	return nil
}
