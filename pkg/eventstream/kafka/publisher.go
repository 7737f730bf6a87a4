// Package kafka publishes persistence events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/probeworks/gauntlet/pkg/eventstream"
)

// Config holds connection settings for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic events are published to.
	Topic string
}

// Publisher streams piece and score events to Kafka. Messages are keyed
// by conversation so consumers see each conversation in order.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker required")
	}

	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic required")
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafkago.LeastBytes{},
	}

	return &Publisher{writer: writer}, nil
}

// PublishPiece writes a piece event keyed by its conversation id.
func (p *Publisher) PublishPiece(ctx context.Context, event *eventstream.PiecePersistedEvent) error {
	if event == nil || event.Piece == nil {
		return eventstream.ErrNilPieceEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal piece event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Piece.ConversationID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write piece event: %w", err)
	}

	return nil
}

// PublishScore writes a score event keyed by the scored piece id.
func (p *Publisher) PublishScore(ctx context.Context, event *eventstream.ScorePersistedEvent) error {
	if event == nil || event.Score == nil {
		return eventstream.ErrNilScoreEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal score event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Score.PieceID.String()),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write score event: %w", err)
	}

	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
