// Package publisher persists documents to PostgreSQL and publishes ingest
// events to Kafka, from where every service instance adds them to its
// corpus. Writes are idempotent per idempotency key.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/kafka"
)

// DocumentStore is the persistence the publisher writes through.
// *corpus.Repository implements it.
type DocumentStore interface {
	Save(ctx context.Context, d corpus.Document, idempotencyKey string) (corpus.Document, error)
	FindByIdempotencyKey(ctx context.Context, key string) (corpus.Document, string, bool, error)
}

// EventPublisher sends ingest events downstream. *kafka.Producer implements
// it.
type EventPublisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// NameIndex reports whether a document name is already taken.
// *corpus.Collection implements it.
type NameIndex interface {
	Has(name string) bool
}

// Publisher coordinates document persistence and event production.
type Publisher struct {
	store    DocumentStore
	producer EventPublisher
	names    NameIndex
	logger   *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithNames rejects names already in the index when there is no store to
// enforce uniqueness.
func WithNames(names NameIndex) Option {
	return func(p *Publisher) { p.names = names }
}

// New creates a Publisher. A nil store skips persistence, so documents live
// only as long as the consumers that receive them.
func New(store DocumentStore, producer EventPublisher, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest persists the document and publishes an IngestEvent. A repeated
// idempotency key returns the earlier document without publishing again.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if p.store != nil && req.IdempotencyKey != "" {
		existing, status, ok, err := p.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if ok {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.ID,
			)
			return &ingestion.IngestResponse{DocumentID: existing.ID, Name: existing.Name, Status: status}, nil
		}
	}

	doc := corpus.NewDocument(req.Name, req.Text, req.Meta)
	if p.store != nil {
		saved, err := p.store.Save(ctx, doc, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		doc = saved
	} else {
		if p.names != nil && p.names.Has(doc.Name) {
			return nil, apperrors.Newf(apperrors.ErrDocumentExists, 409, "document %q already exists", doc.Name)
		}
		doc.ID = uuid.NewString()
		doc.CreatedAt = time.Now().UTC()
	}

	event := kafka.Event{
		Key:     doc.Name,
		Type:    ingestion.EventDocumentIngest,
		Headers: map[string]string{"doc-id": doc.ID},
		Value: ingestion.IngestEvent{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Text:       doc.Text,
			Meta:       doc.Meta(),
			IngestedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		if p.store == nil {
			return nil, fmt.Errorf("publishing ingest event: %w", err)
		}
		p.logger.Error("failed to publish ingest event, document stuck in PENDING",
			"doc_id", doc.ID,
			"name", doc.Name,
			"error", err,
		)
	}
	return &ingestion.IngestResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Status:     corpus.StatusPending,
	}, nil
}
