// Package consumer turns ingest events into corpus documents. The same Sink
// serves the Kafka consumer and, when Kafka is off, an in-process loopback.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/resilience"
)

// markBackoff bounds how long a status update may hold up the consume loop.
var markBackoff = resilience.Backoff{
	Attempts: 3,
	Initial:  20 * time.Millisecond,
	Max:      200 * time.Millisecond,
}

// StatusMarker records that a stored document reached the corpus.
type StatusMarker interface {
	MarkIndexed(ctx context.Context, id string) error
}

// Invalidator drops cached analysis results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Sink adds ingested documents to Docs. Store, Cache and Metrics are
// optional.
type Sink struct {
	Docs    *corpus.Collection
	Store   StatusMarker
	Cache   Invalidator
	Metrics *metrics.Metrics
	// Source labels the ingested-documents metric.
	Source string
}

// Handle is a kafka.MessageHandler. Undecodable or incomplete events are
// skipped; replays of a known document name are no-ops.
func (s *Sink) Handle(ctx context.Context, key []byte, value []byte) error {
	logger := slog.Default().With("component", "ingest-consumer")
	event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
	if err != nil {
		logger.Error("failed to decode ingest event",
			"error", err,
			"key", string(key),
		)
		return err
	}
	if strings.TrimSpace(event.Name) == "" || strings.TrimSpace(event.Text) == "" {
		return fmt.Errorf("%w: event %s has no name or text", kafka.ErrSkip, event.DocumentID)
	}

	doc := corpus.NewDocument(event.Name, event.Text, event.Meta)
	doc.ID = event.DocumentID
	doc.CreatedAt = event.IngestedAt

	added := s.Docs.Add(doc)
	if added > 0 {
		if s.Cache != nil {
			if err := s.Cache.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation after ingest failed", "error", err)
			}
		}
		if s.Metrics != nil {
			s.Metrics.DocsIngestedTotal.WithLabelValues(s.Source).Inc()
			s.Metrics.CorpusDocuments.Set(float64(s.Docs.Len()))
		}
	}

	if s.Store != nil && event.DocumentID != "" {
		err := resilience.Retry(ctx, "mark-indexed", markBackoff, func(ctx context.Context) error {
			return s.Store.MarkIndexed(ctx, event.DocumentID)
		})
		if err != nil {
			logger.Error("failed to update document status",
				"doc_id", event.DocumentID,
				"error", err,
			)
		}
	}

	logger.Info("document added to corpus",
		"doc_id", event.DocumentID,
		"name", event.Name,
		"new", added > 0,
		"corpus_size", s.Docs.Len(),
	)
	return nil
}

// Loopback delivers events straight to a handler. It stands in for the Kafka
// producer when the service runs without a broker.
type Loopback struct {
	Handler kafka.MessageHandler
}

func (l Loopback) Publish(ctx context.Context, events ...kafka.Event) error {
	for _, e := range events {
		data, err := json.Marshal(e.Value)
		if err != nil {
			return fmt.Errorf("marshalling event: %w", err)
		}
		if err := l.Handler(ctx, []byte(e.Key), data); err != nil {
			return err
		}
	}
	return nil
}
