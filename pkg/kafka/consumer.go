// Package kafka carries ingest events over segmentio/kafka-go. Events are
// JSON bodies keyed by document name; the consumer hands each body to a
// MessageHandler and commits it once it has been handled or judged
// unprocessable.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/resilience"
)

// MessageHandler processes one message body.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ErrSkip marks a message that will never succeed (malformed JSON, missing
// fields). It is committed without further attempts.
var ErrSkip = errors.New("skip message")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// handleBackoff governs repeated attempts at a message whose handler failed
// with anything other than ErrSkip.
var handleBackoff = resilience.Backoff{
	Attempts:  4,
	Initial:   200 * time.Millisecond,
	Max:       5 * time.Second,
	Retryable: func(err error) bool { return !errors.Is(err, ErrSkip) },
}

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	types   map[string]bool
	logger  *slog.Logger

	fetchWait time.Duration
}

// ConsumerOption adjusts a Consumer.
type ConsumerOption func(*Consumer)

// AcceptTypes limits the consumer to messages whose event-type header is one
// of types. Messages without the header are always accepted; others are
// committed unhandled.
func AcceptTypes(types ...string) ConsumerOption {
	return func(c *Consumer) {
		c.types = make(map[string]bool, len(types))
		for _, t := range types {
			c.types[t] = true
		}
	}
}

// NewConsumer joins cfg.ConsumerGroup on topic. A new group starts at the
// first offset, so a fresh replica rebuilds its corpus from the whole log.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return newConsumer(r, topic, handler, opts...)
}

func newConsumer(r messageReader, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:    r,
		handler:   handler,
		logger:    slog.Default().With("component", "kafka-consumer", "topic", topic),
		fetchWait: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) accepts(msg kafka.Message) bool {
	if c.types == nil {
		return true
	}
	for _, h := range msg.Headers {
		if h.Key == HeaderType {
			return c.types[string(h.Value)]
		}
	}
	return true
}

// Start consumes until ctx ends, which is a clean stop. A message whose
// handler keeps failing stops the consumer with an error and stays
// uncommitted, so it is delivered again after a restart.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consumer started")

	wait := c.fetchWait
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			wait = min(2*wait, 30*time.Second)
			continue
		}
		wait = c.fetchWait

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		if !c.accepts(msg) {
			log.Debug("ignoring message of another event type")
		} else {
			err := resilience.Retry(ctx, "handle "+string(msg.Key), handleBackoff, func(ctx context.Context) error {
				return c.handler(ctx, msg.Key, msg.Value)
			})
			switch {
			case errors.Is(err, ErrSkip):
				log.Warn("skipping unprocessable message", "error", err)
			case err != nil && ctx.Err() != nil:
				return nil
			case err != nil:
				log.Error("giving up on message", "error", err)
				return fmt.Errorf("handling message at offset %d: %w", msg.Offset, err)
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("failed to commit message", "error", err)
		}
	}
}

// DecodeJSON unmarshals a message body into T. A body that does not decode
// is wrapped in ErrSkip.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %v", ErrSkip, err)
	}
	return result, nil
}
