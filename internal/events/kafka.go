// Package events announces published sequences on Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/oeis-bot/internal/models"
)

// MessageWriter is the part of *kafka.Writer the announcer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Announcer writes one message per published sequence.
type Announcer struct {
	w MessageWriter
}

// NewKafkaAnnouncer connects a writer for topic on brokers.
func NewKafkaAnnouncer(brokers []string, topic string) *Announcer {
	return NewAnnouncer(kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	}))
}

// NewAnnouncer wraps an existing writer.
func NewAnnouncer(w MessageWriter) *Announcer {
	return &Announcer{w: w}
}

// Announce writes ev keyed by its A-number.
func (a *Announcer) Announce(ctx context.Context, ev models.PostedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal posted event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Sequence),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(ev.RunID)},
			{Key: "timestamp", Value: []byte(ev.PostedAt.UTC().Format(time.RFC3339))},
		},
	}
	if err := a.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write posted event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (a *Announcer) Close() error {
	return a.w.Close()
}
