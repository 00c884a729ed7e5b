// Package ingestion defines the request/response types and Kafka event schemas
// used to add documents to the live corpus.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
type IngestRequest struct {
	Name           string            `json:"name"`
	Text           string            `json:"text"`
	Meta           map[string]string `json:"meta,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

// EventDocumentIngest is the event-type header of an IngestEvent message.
const EventDocumentIngest = "document.ingest"

// IngestEvent is the Kafka message payload produced after a document is
// persisted. Consumers add it to their in-memory corpus.
type IngestEvent struct {
	DocumentID string            `json:"document_id"`
	Name       string            `json:"name"`
	Text       string            `json:"text"`
	Meta       map[string]string `json:"meta,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}
