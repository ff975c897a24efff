// Package events publishes upload and vote notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeImageUploaded = "image.uploaded"
	TypeVoteRecorded  = "vote.recorded"
)

type Event struct {
	Type    string    `json:"type"`
	ImageID int64     `json:"image_id"`
	IP      string    `json:"ip,omitempty"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           2 * time.Second,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	const op = "events.Publish"

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// keyed by image so events for one image stay ordered within a partition
	msg := kafka.Message{Key: []byte(fmt.Sprint(e.ImageID)), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func Decode(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, fmt.Errorf("events.Decode: %w", err)
	}
	if e.Type == "" {
		return Event{}, errors.New("events.Decode: missing type")
	}
	return e, nil
}

// MessageReader is the subset of *kafka.Reader used by Consume.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consume reads events until ctx is cancelled. Undecodable messages and
// handler errors are logged and skipped.
func Consume(ctx context.Context, r MessageReader, handle func(Event) error) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("events.Consume: %w", err)
		}

		e, err := Decode(msg.Value)
		if err != nil {
			slog.Warn("skipping malformed event", "offset", msg.Offset, "error", err)
			continue
		}
		if err := handle(e); err != nil {
			slog.Error("error handling event", "type", e.Type, "image_id", e.ImageID, "error", err)
		}
	}
}
