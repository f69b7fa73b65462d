package kafka

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// Message is a consumed record with its headers flattened.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// HandlerFunc processes one consumed message. A nil return commits the offset.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer wraps a kafka-go Reader bound to a consumer group.
type Consumer struct {
	reader *kafkago.Reader
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewConsumer constructs a group Consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			GroupID: cfg.GroupID,
		}),
	}
}

// Run fetches messages until ctx is cancelled or handle fails. Offsets are
// committed only after handle succeeds; on failure Run returns without
// committing so the message is redelivered to the group after a restart.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		if err := handle(ctx, fromKafka(m)); err != nil {
			return fmt.Errorf("handle offset %d: %w", m.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func fromKafka(m kafkago.Message) Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{Key: m.Key, Value: m.Value, Headers: headers}
}
