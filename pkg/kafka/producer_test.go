package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishEncodesEvents(t *testing.T) {
	w := &captureWriter{}
	p := newProducer(w, "documents.ingest")
	published := time.Date(2009, 1, 20, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return published }

	inaugurated := time.Date(1961, 1, 20, 12, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(),
		Event{Key: "2009-Obama", Type: "document.ingest", Value: map[string]string{"name": "2009-Obama"}, Headers: map[string]string{"doc-id": "d1"}},
		Event{Key: "1961-Kennedy", Value: []string{"Ask", "not"}, Time: inaugurated},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	first := w.msgs[0]
	assert.Equal(t, "2009-Obama", string(first.Key))
	assert.JSONEq(t, `{"name":"2009-Obama"}`, string(first.Value))
	assert.Equal(t, "document.ingest", header(first, HeaderType))
	assert.Equal(t, "d1", header(first, "doc-id"))
	assert.Equal(t, "application/json", header(first, "content-type"))
	assert.Equal(t, published, first.Time)

	second := w.msgs[1]
	assert.Empty(t, header(second, HeaderType))
	assert.Equal(t, inaugurated, second.Time)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishRejectsBadBatchWhole(t *testing.T) {
	w := &captureWriter{}
	p := newProducer(w, "documents.ingest")

	err := p.Publish(context.Background(),
		Event{Key: "a", Value: "ok"},
		Event{Key: "b", Value: make(chan int)},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)

	err = p.Publish(context.Background(), Event{Value: "no key"})
	require.Error(t, err)
	assert.Empty(t, w.msgs)

	require.NoError(t, p.Publish(context.Background()))
}

func TestPublishWrapsWriterErrors(t *testing.T) {
	brokerDown := errors.New("dial tcp: connection refused")
	p := newProducer(&captureWriter{err: brokerDown}, "documents.ingest")
	err := p.Publish(context.Background(), Event{Key: "a", Value: 1})
	assert.ErrorIs(t, err, brokerDown)
	assert.Contains(t, err.Error(), "documents.ingest")
}
