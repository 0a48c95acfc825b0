// Package fanout carries per-identity frames between gateway instances over
// Kafka. Every gateway reads the whole topic with its own consumer group and
// delivers the frames addressed to identities it holds.
package fanout

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Deliverer is the local side of the router.
type Deliverer interface {
	DeliverLocal(identity string, frame []byte) int
}

type record struct {
	Identity string          `json:"identity"`
	Frame    json.RawMessage `json:"frame"`
}

func encode(identity string, frame []byte) ([]byte, error) {
	return json.Marshal(record{Identity: identity, Frame: frame})
}

func decode(value []byte) (record, error) {
	var r record
	if err := json.Unmarshal(value, &r); err != nil {
		return record{}, err
	}
	if r.Identity == "" {
		return record{}, fmt.Errorf("record without identity")
	}
	return r, nil
}

type KafkaRelay struct {
	log    *slog.Logger
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaRelay(log *slog.Logger, brokers []string, topic string) *KafkaRelay {
	k := NewKafkaPublisher(log, brokers, topic)
	k.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		// Unique group per instance so every gateway sees every record.
		GroupID:     "gateway-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     100 * time.Millisecond,
	})
	return k
}

// NewKafkaPublisher only publishes. It suits processes that hold no
// connections but still notify users, like the HTTP API.
func NewKafkaPublisher(log *slog.Logger, brokers []string, topic string) *KafkaRelay {
	writer := &kafka.Writer{
		Addr:  kafka.TCP(brokers...),
		Topic: topic,
		// Same identity, same partition: per-identity order is kept.
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 5 * time.Millisecond,
	}

	return &KafkaRelay{log: log, writer: writer}
}

func (k *KafkaRelay) Publish(ctx context.Context, identity string, frame []byte) error {
	value, err := encode(identity, frame)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(identity),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// Run consumes the topic until ctx is done.
func (k *KafkaRelay) Run(ctx context.Context, local Deliverer) error {
	if k.reader == nil {
		return fmt.Errorf("publisher has no consumer")
	}
	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				return nil
			}
			k.log.Error("Gateway consumer error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		r, err := decode(m.Value)
		if err != nil {
			k.log.Warn("Failed to unmarshal message from Kafka", "offset", m.Offset, "error", err)
			continue
		}
		local.DeliverLocal(r.Identity, r.Frame)
	}
}

func (k *KafkaRelay) Close() error {
	err := k.writer.Close()
	if k.reader != nil {
		err = stderrors.Join(err, k.reader.Close())
	}
	return err
}
