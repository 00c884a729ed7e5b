package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/config"
)

// HeaderType names the event type carried in every message's headers, so
// consumers can route before decoding the body.
const HeaderType = "event-type"

// Event is one message to publish. Key picks the partition; events sharing a
// key, such as every event about one document name, stay in order. Value is
// encoded as JSON.
type Event struct {
	Key     string
	Type    string
	Value   any
	Headers map[string]string
	// Time defaults to the moment of publishing.
	Time time.Time
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes events to one topic and waits for every in-sync replica
// to acknowledge them.
type Producer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer returns a Producer for topic on cfg's brokers. The writer
// batches briefly so that a bulk import goes out in few requests.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
		now:    time.Now,
	}
}

func (p *Producer) encode(events []Event) ([]kafka.Message, error) {
	now := p.now().UTC()
	msgs := make([]kafka.Message, 0, len(events))
	for i, e := range events {
		if e.Key == "" {
			return nil, fmt.Errorf("event %d has no key", i)
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding event %q: %w", e.Key, err)
		}
		headers := make([]kafka.Header, 0, len(e.Headers)+2)
		headers = append(headers, kafka.Header{Key: "content-type", Value: []byte("application/json")})
		if e.Type != "" {
			headers = append(headers, kafka.Header{Key: HeaderType, Value: []byte(e.Type)})
		}
		for k, v := range e.Headers {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		ts := e.Time
		if ts.IsZero() {
			ts = now
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.Key),
			Value:   value,
			Headers: headers,
			Time:    ts,
		})
	}
	return msgs, nil
}

// Publish encodes events and writes them in one synchronous call. Nothing
// is written if any event fails to encode.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := p.encode(events)
	if err != nil {
		return err
	}
	start := p.now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish",
			"count", len(msgs),
			"first_key", events[0].Key,
			"error", err,
		)
		return fmt.Errorf("publishing %d events to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("published", "count", len(msgs), "elapsed", p.now().Sub(start))
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
