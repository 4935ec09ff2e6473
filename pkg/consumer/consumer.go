// Package consumer reads JSON messages from a Kafka topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string `yaml:"brokers" json:"brokers" validate:"required,min=1"`
	Topic   string   `yaml:"topic" json:"topic" validate:"required"`
	GroupID string   `yaml:"groupID" json:"groupID"`
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer decodes each message value into T. Messages are committed only
// when a group is configured and after they decode.
type Consumer[T any] struct {
	reader messageReader
	commit bool
}

func NewConsumer[T any](cfg Config) *Consumer[T] {
	rc := kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	}
	return &Consumer[T]{reader: kafka.NewReader(rc), commit: cfg.GroupID != ""}
}

func (c *Consumer[T]) Read(ctx context.Context) (T, error) {
	var zero T

	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return zero, err
	}

	var payload T
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return zero, fmt.Errorf("message at offset %d: %w", msg.Offset, err)
	}

	if c.commit {
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return zero, err
		}
	}

	return payload, nil
}

func (c *Consumer[T]) Close() error {
	return c.reader.Close()
}
